// FILE: internal/pkg/mailer/email_service.go
package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendDeliveryFailureAlert(toEmail, userID, messageID, reason string) error
	SendStaleReviewAlert(toEmail, userID, reviewID string) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
}

func NewEmailService(host string, port int, username, password, senderEmail string) IEmailService {
	d := gomail.NewDialer(host, port, username, password)

	return &emailService{
		dialer:      d,
		senderEmail: senderEmail,
	}
}

func (s *emailService) SendDeliveryFailureAlert(toEmail, userID, messageID, reason string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", "Reply Delivery Failed")

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>A reply could not be delivered</h2>
			<p>Conversation: <b>%s</b></p>
			<p>Message: <b>%s</b></p>
			<p>Reason:</p>
			<pre style="background: #f4f4f4; padding: 10px; border-radius: 5px;">%s</pre>
			<p>The reply was not retried. Please follow up with the user manually.</p>
		</div>
	`, userID, messageID, reason)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send delivery alert to %s: %v\n", toEmail, err)
		return err
	}

	fmt.Printf("[MAILER] Delivery failure alert sent to %s\n", toEmail)
	return nil
}

func (s *emailService) SendStaleReviewAlert(toEmail, userID, reviewID string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", "Pending Reply Expired Without Review")

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>A pending reply expired unreviewed</h2>
			<p>Conversation: <b>%s</b></p>
			<p>Review: <b>%s</b></p>
			<p>The reply was discarded. The user received no answer to their message.</p>
		</div>
	`, userID, reviewID)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send stale review alert to %s: %v\n", toEmail, err)
		return err
	}

	fmt.Printf("[MAILER] Stale review alert sent to %s\n", toEmail)
	return nil
}
