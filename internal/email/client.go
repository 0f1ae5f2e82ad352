// Package email sends OTP mail through Resend.
package email

import (
	"fmt"

	"github.com/resendlabs/resend-go"
	"github.com/rs/zerolog/log"
)

type Client struct {
	resend    *resend.Client
	fromEmail string
}

// New returns a mail client, or nil if no API key is configured; a nil
// client logs codes instead of sending, which keeps local development
// free of external accounts.
func New(apiKey, fromEmail string) *Client {
	if apiKey == "" {
		return nil
	}
	if fromEmail == "" {
		fromEmail = "noreply@pigeon.chat"
	}
	return &Client{
		resend:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
	}
}

func (c *Client) SendOTP(to, code string) error {
	if c == nil {
		log.Info().Str("module", "email").Str("to", to).Str("code", code).Msg("no mail client, otp logged")
		return nil
	}

	request := &resend.SendEmailRequest{
		From:    fmt.Sprintf("Pigeon <%s>", c.fromEmail),
		To:      []string{to},
		Subject: "Your Pigeon verification code",
		Html: fmt.Sprintf(
			`<p>Your verification code is</p><h2 style="letter-spacing: 4px">%s</h2><p>It expires in 10 minutes.</p>`,
			code),
	}
	if _, err := c.resend.Emails.Send(request); err != nil {
		return fmt.Errorf("send otp mail: %w", err)
	}
	return nil
}
