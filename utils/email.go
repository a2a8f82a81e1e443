// utils/email.go
package utils

import (
	"fmt"

	"fashion-store/models"

	"github.com/keighl/postmark"
	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"
)

// EmailSettings selects and configures the outgoing mail provider
type EmailSettings struct {
	Provider       string // "postmark", "sendgrid" or "none"
	PostmarkToken  string
	SendgridAPIKey string
	Sender         string
	AppURL         string
}

// EmailService handles sending emails through Postmark or SendGrid
type EmailService struct {
	settings EmailSettings
	postmark *postmark.Client
	sendgrid *sendgrid.Client
	log      logrus.FieldLogger
}

// NewEmailService initializes and returns a new EmailService instance
func NewEmailService(settings EmailSettings, log logrus.FieldLogger) (*EmailService, error) {
	es := &EmailService{settings: settings, log: log}
	switch settings.Provider {
	case "postmark":
		if settings.PostmarkToken == "" {
			return nil, errors.New("POSTMARK_API_TOKEN is not set")
		}
		es.postmark = postmark.NewClient(settings.PostmarkToken, "")
	case "sendgrid":
		if settings.SendgridAPIKey == "" {
			return nil, errors.New("SENDGRID_API_KEY is not set")
		}
		es.sendgrid = sendgrid.NewSendClient(settings.SendgridAPIKey)
	case "none":
	default:
		return nil, errors.Errorf("unknown email provider %q", settings.Provider)
	}
	return es, nil
}

// SendEmail sends a basic email to the specified recipient
func (es *EmailService) SendEmail(toEmail, subject, htmlContent string) error {
	switch {
	case es.postmark != nil:
		_, err := es.postmark.SendEmail(postmark.Email{
			From:     es.settings.Sender,
			To:       toEmail,
			Subject:  subject,
			HtmlBody: htmlContent,
			TextBody: htmlContent,
		})
		if err != nil {
			return errors.Wrap(err, "postmark send")
		}
	case es.sendgrid != nil:
		message := mail.NewSingleEmail(
			mail.NewEmail("", es.settings.Sender),
			subject,
			mail.NewEmail("", toEmail),
			htmlContent,
			htmlContent,
		)
		resp, err := es.sendgrid.Send(message)
		if err != nil {
			return errors.Wrap(err, "sendgrid send")
		}
		if resp.StatusCode >= 300 {
			return errors.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
		}
	default:
		es.log.WithFields(logrus.Fields{"to": toEmail, "subject": subject}).Debug("email provider disabled, dropping message")
		return nil
	}

	es.log.WithFields(logrus.Fields{"to": toEmail, "subject": subject}).Info("email sent")
	return nil
}

// SendVerificationEmail sends an email verification link to the user
func (es *EmailService) SendVerificationEmail(toEmail, token string) error {
	subject := "Verify Your Email"
	verificationLink := fmt.Sprintf("%s/verify?token=%s", es.settings.AppURL, token)
	htmlContent := fmt.Sprintf(
		"<strong>Please verify your email by clicking on the following link:</strong> <a href=\"%s\">Verify Email</a>",
		verificationLink,
	)

	return es.SendEmail(toEmail, subject, htmlContent)
}

// SendOrderConfirmationEmail sends an order confirmation email to the user
func (es *EmailService) SendOrderConfirmationEmail(toEmail string, order models.Order) error {
	subject := "Order Confirmation"
	htmlContent := fmt.Sprintf(
		"<strong>Dear Customer,</strong><br><br>Thank you for your purchase! Your order (ID: %s) has been placed.<br><br>Total Amount: <strong>%s</strong><br>Payment Method: <strong>%s</strong><br><br>Thank you for shopping with us!",
		order.ID.Hex(),
		FormatRupiah(order.Total),
		order.PaymentMethod,
	)

	return es.SendEmail(toEmail, subject, htmlContent)
}

// SendOrderStatusEmail tells the user their order moved to a new status
func (es *EmailService) SendOrderStatusEmail(toEmail, name string, order models.Order) error {
	subject := "Order Status Updated"
	htmlContent := fmt.Sprintf(
		"Dear %s,<br><br>Your order (ID: %s) is now <strong>%s</strong>.<br><br>Thank you for shopping with us!",
		name,
		order.ID.Hex(),
		order.Status,
	)

	return es.SendEmail(toEmail, subject, htmlContent)
}
