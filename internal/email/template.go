package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jwalitptl/lab-portal-api/internal/config"
	apperrors "github.com/jwalitptl/lab-portal-api/pkg/errors"
)

// TemplateNotifier posts the payload to a hosted email-template service.
type TemplateNotifier struct {
	cfg      config.TemplateConfig
	notifyTo string
	client   *http.Client
}

type templateRequest struct {
	ServiceID      string  `json:"service_id"`
	TemplateID     string  `json:"template_id"`
	UserID         string  `json:"user_id"`
	AccessToken    string  `json:"accessToken,omitempty"`
	TemplateParams Payload `json:"template_params"`
}

func NewTemplateNotifier(cfg config.TemplateConfig, notifyTo string, timeout time.Duration) *TemplateNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TemplateNotifier{
		cfg:      cfg,
		notifyTo: notifyTo,
		client:   &http.Client{Timeout: timeout},
	}
}

func (n *TemplateNotifier) Send(ctx context.Context, payload Payload) error {
	if err := payload.Validate(); err != nil {
		return apperrors.BadRequest(err.Error(), nil)
	}

	params := make(Payload, len(payload)+1)
	for k, v := range payload {
		params[k] = v
	}
	if params[FieldToEmail] == "" {
		params[FieldToEmail] = n.notifyTo
	}

	body, err := json.Marshal(templateRequest{
		ServiceID:      n.cfg.ServiceID,
		TemplateID:     n.cfg.TemplateID,
		UserID:         n.cfg.PublicKey,
		AccessToken:    n.cfg.AccessToken,
		TemplateParams: params,
	})
	if err != nil {
		return fmt.Errorf("failed to encode email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return apperrors.Upstream("email service unavailable", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperrors.Upstream("email service rejected the notification", resp.StatusCode,
			fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg)))
	}
	return nil
}
