package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// InvitationEmail is the content of an invitation notification
type InvitationEmail struct {
	To          string
	FamilyName  string
	InviterName string
	URL         string
	ExpiresAt   time.Time
}

// Notifier delivers invitation notifications
type Notifier interface {
	SendInvitation(ctx context.Context, msg InvitationEmail) error
}

// sesAPI is the part of the SES client the email service calls
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailService handles sending emails via Amazon SES
type EmailService struct {
	client    sesAPI
	fromEmail string
	fromName  string
	enabled   bool
	debug     bool
}

// NewEmailService creates a new email service. Without a sender address
// the service is disabled and every send is skipped.
func NewEmailService(ctx context.Context, awsRegion, fromEmail, fromName string, debug bool) (*EmailService, error) {
	if fromEmail == "" {
		slog.Info("Email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{enabled: false, debug: debug}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	slog.Info("Email service enabled", "from", fromEmail, "region", awsRegion)
	return newEmailService(sesv2.NewFromConfig(cfg), fromEmail, fromName, debug), nil
}

func newEmailService(client sesAPI, fromEmail, fromName string, debug bool) *EmailService {
	return &EmailService{
		client:    client,
		fromEmail: fromEmail,
		fromName:  fromName,
		enabled:   true,
		debug:     debug,
	}
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

var invitationHTML = template.Must(template.New("invitation").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<h1>Join {{.FamilyName}}</h1>
		<p>{{.InviterName}} invited you to share custody planning for {{.FamilyName}}.</p>
		<p><a href="{{.URL}}" style="display: inline-block; padding: 12px 30px; background-color: #4a90e2; color: white; text-decoration: none; border-radius: 5px;">Accept invitation</a></p>
		<p style="word-break: break-all; font-size: 12px; color: #666;">{{.URL}}</p>
		<p><strong>This invitation expires on {{.ExpiresAt.Format "2 January 2006"}}.</strong></p>
		<p>If you were not expecting this, you can ignore this email.</p>
	</div>
</body>
</html>
`))

// SendInvitation emails an invitation link to the invitee
func (s *EmailService) SendInvitation(ctx context.Context, msg InvitationEmail) error {
	if !s.enabled {
		slog.Info("Skipping email send (service disabled)", "kind", "invitation")
		if s.debug {
			slog.Debug("Invitation link", "url", msg.URL)
		}
		return nil
	}

	var html bytes.Buffer
	if err := invitationHTML.Execute(&html, msg); err != nil {
		return fmt.Errorf("failed to render invitation email: %w", err)
	}

	text := fmt.Sprintf(`%s invited you to share custody planning for %s.

Accept the invitation: %s

This invitation expires on %s.
If you were not expecting this, you can ignore this email.
`, msg.InviterName, msg.FamilyName, msg.URL, msg.ExpiresAt.Format("2 January 2006"))

	subject := fmt.Sprintf("%s invited you to join %s", msg.InviterName, msg.FamilyName)
	return s.sendEmail(ctx, msg.To, subject, html.String(), text)
}

// sendEmail sends an email using Amazon SES
func (s *EmailService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	if s.debug && result.MessageId != nil {
		slog.Debug("SES message accepted", "message_id", *result.MessageId)
	}
	slog.Info("Email sent", "subject", subject)
	return nil
}
