package handoff

import (
	"sync"
	"time"

	"chat-handoff-be/internal/constant"
	"chat-handoff-be/internal/pkg/logger"
	"chat-handoff-be/pkg/events"
)

// presenceReader is the slice of the tracker the ledger consults before
// starting or resuming automation.
type presenceReader interface {
	ActiveTypist(userID string) (string, bool)
}

// generateFunc (re)invokes the reply generator for a task attempt. It runs in
// its own goroutine and reports back through FinishAttempt.
type generateFunc func(userID, messageID string, payload RequestPayload, attempt uint64)

// Ledger owns the per-user automation tasks. At most one task per user id.
type Ledger struct {
	mu    sync.Mutex
	tasks map[string]*AutomationTask

	presence presenceReader
	generate generateFunc
	emitter  events.Emitter
	logger   logger.ILogger
	cfg      *RuntimeConfig
}

func NewLedger(cfg *RuntimeConfig, presence presenceReader, emitter events.Emitter, log logger.ILogger) *Ledger {
	return &Ledger{
		tasks:    make(map[string]*AutomationTask),
		presence: presence,
		emitter:  emitter,
		logger:   log,
		cfg:      cfg,
	}
}

// SetGenerator wires the generation callback in after construction.
func (l *Ledger) SetGenerator(fn generateFunc) {
	l.generate = fn
}

// Start creates a Processing task for the user unless an operator is typing
// for them or a task already exists. The returned channel yields exactly one
// outcome: the generated reply, or the terminal error.
func (l *Ledger) Start(userID, messageID string, payload RequestPayload) (<-chan taskOutcome, error) {
	l.mu.Lock()
	// Presence is consulted while holding the ledger lock so a typing start
	// cannot land between the check and the task insert. A Pause racing this
	// call blocks on the lock and then pauses the freshly created task.
	if _, typing := l.presence.ActiveTypist(userID); typing {
		l.mu.Unlock()
		return nil, ErrOperatorTyping
	}
	if _, exists := l.tasks[userID]; exists {
		l.mu.Unlock()
		return nil, ErrAutomationBusy
	}

	task := &AutomationTask{
		UserID:    userID,
		MessageID: messageID,
		Status:    constant.TaskProcessing,
		CreatedAt: time.Now(),
		Payload:   payload,
		attempt:   1,
		done:      make(chan taskOutcome, 1),
	}
	l.tasks[userID] = task
	l.armDeadline(task)
	attempt := task.attempt
	l.mu.Unlock()

	l.emitter.Emit(events.New(constant.EventAutomationStarted, map[string]interface{}{
		"user_id":    userID,
		"message_id": messageID,
	}))

	go l.generate(userID, messageID, payload, attempt)
	return task.done, nil
}

// armDeadline must run with the lock held.
func (l *Ledger) armDeadline(task *AutomationTask) {
	userID, messageID := task.UserID, task.MessageID
	task.deadline = time.AfterFunc(l.cfg.Get().AiProcessingTimeout, func() {
		l.timeout(userID, messageID)
	})
}

func (l *Ledger) timeout(userID, messageID string) {
	l.mu.Lock()
	task, ok := l.tasks[userID]
	if !ok || task.MessageID != messageID || task.Status != constant.TaskProcessing {
		l.mu.Unlock()
		return
	}
	l.destroy(task, taskOutcome{err: ErrTimeout})
	l.mu.Unlock()

	l.emitter.Emit(events.New(constant.EventAutomationTimeout, map[string]interface{}{
		"user_id":    userID,
		"message_id": messageID,
	}))
}

// Pause suspends a Processing task, keeping its payload so the run can be
// re-invoked later. Pausing cancels the deadline timer.
func (l *Ledger) Pause(userID, reason string) {
	l.mu.Lock()
	task, ok := l.tasks[userID]
	if !ok || task.Status != constant.TaskProcessing {
		l.mu.Unlock()
		return
	}
	task.stopTimers()
	task.Status = constant.TaskPaused
	task.PauseReason = reason
	messageID := task.MessageID
	l.mu.Unlock()

	l.emitter.Emit(events.New(constant.EventAutomationPaused, map[string]interface{}{
		"user_id":    userID,
		"message_id": messageID,
		"reason":     reason,
	}))
}

// Resume transitions a Paused task back to Processing and re-invokes the
// generator with the original payload. Presence is re-checked immediately
// before the transition: if another operator started typing in the interim
// the resume is refused and the task stays Paused.
func (l *Ledger) Resume(userID, operatorID string) bool {
	l.mu.Lock()
	task, ok := l.tasks[userID]
	if !ok || task.Status != constant.TaskPaused {
		l.mu.Unlock()
		return false
	}
	// Same discipline as Start: the typing check and the transition happen
	// under one lock hold, so a racing typing start either refuses the resume
	// or pauses the task again right after it.
	if typist, typing := l.presence.ActiveTypist(userID); typing {
		l.mu.Unlock()
		l.logger.Info("Ledger", "Resume refused, another operator is typing", map[string]interface{}{
			"user_id":    userID,
			"typist":     typist,
			"resumed_by": operatorID,
		})
		return false
	}
	task.Status = constant.TaskProcessing
	task.PauseReason = ""
	task.attempt++
	l.armDeadline(task)
	messageID := task.MessageID
	payload := task.Payload
	attempt := task.attempt
	l.mu.Unlock()

	l.emitter.Emit(events.New(constant.EventAutomationResumed, map[string]interface{}{
		"user_id":    userID,
		"message_id": messageID,
		"resumed_by": operatorID,
	}))

	go l.generate(userID, messageID, payload, attempt)
	return true
}

// Cancel tears the task down on explicit operator action. With a non-empty
// messageID the cancel only applies if it still matches.
func (l *Ledger) Cancel(userID, messageID string) error {
	l.mu.Lock()
	task, ok := l.tasks[userID]
	if !ok || (messageID != "" && task.MessageID != messageID) {
		l.mu.Unlock()
		return ErrNotFoundOrStale
	}
	cancelled := task.MessageID
	l.destroy(task, taskOutcome{err: ErrCancelled})
	l.mu.Unlock()

	l.emitter.Emit(events.New(constant.EventAutomationCancelled, map[string]interface{}{
		"user_id":    userID,
		"message_id": cancelled,
	}))
	return nil
}

// FinishAttempt is called by the generation goroutine when the generator
// returns. The result only lands if the task is still Processing the same
// message with the same attempt; anything else (paused meanwhile, cancelled,
// timed out, resumed under a newer attempt) drops the result silently.
func (l *Ledger) FinishAttempt(userID, messageID string, attempt uint64, reply *ReplyPayload, genErr error) bool {
	l.mu.Lock()
	task, ok := l.tasks[userID]
	if !ok || task.MessageID != messageID || task.Status != constant.TaskProcessing || task.attempt != attempt {
		l.mu.Unlock()
		l.logger.Debug("Ledger", "Dropping stale generation result", map[string]interface{}{
			"user_id":    userID,
			"message_id": messageID,
			"attempt":    attempt,
		})
		return false
	}

	if genErr != nil {
		l.destroy(task, taskOutcome{err: genErr})
		l.mu.Unlock()
		l.emitter.Emit(events.New(constant.EventAutomationError, map[string]interface{}{
			"user_id":    userID,
			"message_id": messageID,
			"error":      genErr.Error(),
		}))
		return true
	}

	l.destroy(task, taskOutcome{reply: reply})
	l.mu.Unlock()
	return true
}

// destroy must run with the lock held. It cancels the task's timers, removes
// it from the map and delivers the terminal outcome exactly once.
func (l *Ledger) destroy(task *AutomationTask, out taskOutcome) {
	task.stopTimers()
	delete(l.tasks, task.UserID)
	if !task.finished {
		task.finished = true
		task.done <- out
	}
}

// ReclaimStuck force-times-out tasks older than the processing deadline plus
// grace. Defense in depth against a lost deadline timer.
func (l *Ledger) ReclaimStuck(grace time.Duration) int {
	cutoff := time.Now().Add(-(l.cfg.Get().AiProcessingTimeout + grace))

	type victim struct{ userID, messageID string }
	var victims []victim

	l.mu.Lock()
	for _, task := range l.tasks {
		if task.CreatedAt.After(cutoff) {
			continue
		}
		victims = append(victims, victim{userID: task.UserID, messageID: task.MessageID})
		l.destroy(task, taskOutcome{err: ErrTimeout})
	}
	l.mu.Unlock()

	for _, v := range victims {
		l.emitter.Emit(events.New(constant.EventAutomationTimeout, map[string]interface{}{
			"user_id":    v.userID,
			"message_id": v.messageID,
			"reclaimed":  true,
		}))
	}
	return len(victims)
}

// Count returns the number of outstanding tasks.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// Snapshot reports task ages and statuses for the status endpoint.
func (l *Ledger) Snapshot() []map[string]interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]map[string]interface{}, 0, len(l.tasks))
	for _, task := range l.tasks {
		out = append(out, map[string]interface{}{
			"user_id":     task.UserID,
			"message_id":  task.MessageID,
			"status":      task.Status,
			"age_seconds": time.Since(task.CreatedAt).Seconds(),
		})
	}
	return out
}

// Shutdown aborts every outstanding task.
func (l *Ledger) Shutdown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, task := range l.tasks {
		l.destroy(task, taskOutcome{err: ErrShutdown})
	}
}
