package controller

import (
	"errors"
	"time"

	"chat-handoff-be/internal/dto"
	"chat-handoff-be/internal/handoff"
	"chat-handoff-be/internal/pkg/serverutils"
	"chat-handoff-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IHandoffController interface {
	RegisterRoutes(r fiber.Router)
	IncomingMessage(ctx *fiber.Ctx) error
	ApproveReview(ctx *fiber.Ctx) error
	RejectReview(ctx *fiber.Ctx) error
	CancelTask(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
	UpdateConfig(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
}

type handoffController struct {
	orchestrator *handoff.Orchestrator
	messages     service.IMessageService
}

func NewHandoffController(orchestrator *handoff.Orchestrator, messages service.IMessageService) IHandoffController {
	return &handoffController{orchestrator: orchestrator, messages: messages}
}

func (c *handoffController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/handoff/v1")

	// The channel adapter authenticates at the gateway, not with operator JWTs
	h.Post("/messages", c.IncomingMessage)

	ops := h.Group("", serverutils.JwtMiddleware, serverutils.OperatorOnly)
	ops.Post("/reviews/approve", c.ApproveReview)
	ops.Post("/reviews/reject", c.RejectReview)
	ops.Post("/tasks/cancel", c.CancelTask)
	ops.Get("/status", c.Status)
	ops.Patch("/config", c.UpdateConfig)
	ops.Get("/history/:user_id", c.History)
}

func (c *handoffController) History(ctx *fiber.Ctx) error {
	userID := ctx.Params("user_id")
	limit := ctx.QueryInt("limit", 20)

	messages, total, err := c.messages.GetHistory(ctx.Context(), userID, limit)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Conversation history", fiber.Map{
		"messages": messages,
		"total":    total,
	}))
}

func (c *handoffController) IncomingMessage(ctx *fiber.Ctx) error {
	var req dto.IncomingMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewAppError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(&req); err != nil {
		return err
	}

	payload := handoff.RequestPayload{
		Text:       req.Text,
		EntityIDs:  req.EntityIDs,
		Options:    req.Options,
		Credential: req.Credential,
	}

	outcome, err := c.orchestrator.HandleIncoming(ctx.Context(), req.UserID, req.MessageID, payload)
	if err != nil {
		return mapHandoffError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Message handled", outcome))
}

func (c *handoffController) ApproveReview(ctx *fiber.Ctx) error {
	var req dto.ApproveReviewRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewAppError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(&req); err != nil {
		return err
	}

	operatorID, _ := ctx.Locals("operator_id").(string)
	if err := c.orchestrator.ApproveReview(req.UserID, req.ReviewID, operatorID); err != nil {
		return mapHandoffError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Review approved", nil))
}

func (c *handoffController) RejectReview(ctx *fiber.Ctx) error {
	var req dto.RejectReviewRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewAppError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(&req); err != nil {
		return err
	}

	operatorID, _ := ctx.Locals("operator_id").(string)
	if err := c.orchestrator.RejectReview(req.UserID, req.ReviewID, req.Reason, operatorID); err != nil {
		return mapHandoffError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Review rejected", nil))
}

func (c *handoffController) CancelTask(ctx *fiber.Ctx) error {
	var req dto.CancelTaskRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewAppError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(&req); err != nil {
		return err
	}

	if err := c.orchestrator.CancelTask(req.UserID, req.MessageID); err != nil {
		return mapHandoffError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Task cancelled", nil))
}

func (c *handoffController) Status(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Orchestrator status", c.orchestrator.Status()))
}

func (c *handoffController) UpdateConfig(ctx *fiber.Ctx) error {
	var req dto.UpdateConfigRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewAppError(fiber.StatusBadRequest, "Invalid request body")
	}

	patch := handoff.ConfigPatch{
		AiProcessingTimeout: msToDuration(req.AiProcessingTimeoutMs),
		TypingTimeout:       msToDuration(req.TypingTimeoutMs),
		ResumeDelay:         msToDuration(req.ResumeDelayMs),
		AdminReviewDelay:    msToDuration(req.AdminReviewDelayMs),
		ReviewRequired:      req.ReviewRequired,
		AutoSendEnabled:     req.AutoSendEnabled,
		ReclaimInterval:     msToDuration(req.ReclaimIntervalMs),
		DedupCacheTTL:       msToDuration(req.DedupCacheTTLMs),
	}

	updated, err := c.orchestrator.UpdateConfig(patch)
	if err != nil {
		return mapHandoffError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Config updated", updated))
}

func msToDuration(ms *int64) *time.Duration {
	if ms == nil {
		return nil
	}
	d := time.Duration(*ms) * time.Millisecond
	return &d
}

// mapHandoffError translates orchestrator sentinels to HTTP statuses.
func mapHandoffError(err error) error {
	switch {
	case errors.Is(err, handoff.ErrOperatorTyping):
		return serverutils.NewAppError(fiber.StatusConflict, "An operator is handling this conversation")
	case errors.Is(err, handoff.ErrAutomationBusy):
		return serverutils.NewAppError(fiber.StatusConflict, "A reply is already being generated for this user")
	case errors.Is(err, handoff.ErrReviewPending):
		return serverutils.NewAppError(fiber.StatusConflict, "A reply is awaiting review for this user")
	case errors.Is(err, handoff.ErrNotFoundOrStale):
		return serverutils.NewAppError(fiber.StatusNotFound, "No matching task or review")
	case errors.Is(err, handoff.ErrTimeout):
		return serverutils.NewAppError(fiber.StatusGatewayTimeout, "Reply generation timed out")
	case errors.Is(err, handoff.ErrCancelled):
		return serverutils.NewAppError(fiber.StatusConflict, "Reply generation was cancelled")
	case errors.Is(err, handoff.ErrInvalidConfig):
		return serverutils.NewAppError(fiber.StatusBadRequest, "Config durations must be positive")
	case errors.Is(err, handoff.ErrUnauthorized):
		return serverutils.NewAppError(fiber.StatusForbidden, "Operator role required")
	case errors.Is(err, handoff.ErrShutdown):
		return serverutils.NewAppError(fiber.StatusServiceUnavailable, "Shutting down")
	default:
		return err
	}
}
