package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ErrMailerNotConfigured is returned by SendEmail when the API URL, key or
// sender address is missing.
var ErrMailerNotConfigured = errors.New("missing required email config")

// email request payload for ZeptoMail API
type emailRequest struct {
	From     emailAddress  `json:"from"`
	To       []toRecipient `json:"to"`
	Subject  string        `json:"subject"`
	HtmlBody string        `json:"htmlbody"`
}

type emailAddress struct {
	Address string `json:"address"`
}

type toRecipient struct {
	Email emailWithName `json:"email_address"`
}

type emailWithName struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// MailerConfig holds ZeptoMail settings.
type MailerConfig struct {
	APIURL string // e.g. https://api.zeptomail.com/v1.1/email
	APIKey string // e.g. Zoho-enczapikey xxxxx
	From   string // e.g. noreply@example.com
	ToName string
}

// Mailer sends HTML email through the ZeptoMail HTTP API.
type Mailer struct {
	cfg    MailerConfig
	client *http.Client
	log    *slog.Logger
}

func NewMailer(cfg MailerConfig, logger *slog.Logger) *Mailer {
	return &Mailer{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		log:    logger,
	}
}

// Configured reports whether SendEmail can be attempted.
func (m *Mailer) Configured() bool {
	return m != nil && m.cfg.APIURL != "" && m.cfg.APIKey != "" && m.cfg.From != ""
}

// SendEmail sends an HTML email to a single recipient.
func (m *Mailer) SendEmail(ctx context.Context, to, subject, body string) error {
	if !m.Configured() {
		return ErrMailerNotConfigured
	}

	payload := emailRequest{
		From: emailAddress{Address: m.cfg.From},
		To: []toRecipient{
			{
				Email: emailWithName{
					Address: to,
					Name:    m.cfg.ToName,
				},
			},
		},
		Subject:  subject,
		HtmlBody: body,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.APIURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("create email request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", m.cfg.APIKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("zeptomail API error: %s", resp.Status)
	}

	m.log.DebugContext(ctx, "email sent", slog.String("to", to), slog.String("subject", subject))
	return nil
}
