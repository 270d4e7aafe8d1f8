package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	coregateway "github.com/askelund/spotheat/core/gateway"
	"github.com/askelund/spotheat/core/logger"
	"github.com/askelund/spotheat/core/model"
)

// TokenSource attaches a bearer token to outgoing requests. auth.ClientCred
// implements it.
type TokenSource interface {
	SetAuthHeader(r *http.Request) error
}

// HTTPApplier pushes heater states to the vendor device cloud.
type HTTPApplier struct {
	cfg    Config
	http   *http.Client
	tokens TokenSource
	log    logger.Logger
}

// NewHTTPApplier creates an applier for the configured device cloud.
func NewHTTPApplier(cfg Config, tokens TokenSource, log logger.Logger) *HTTPApplier {
	cfg.SetDefaults()
	return &HTTPApplier{
		cfg:    cfg,
		http:   &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		tokens: tokens,
		log:    log,
	}
}

type modeRequest struct {
	Hour time.Time `json:"hour"`
	Mode string    `json:"mode"`
}

// Apply implements gateway.Applier.
func (a *HTTPApplier) Apply(ctx context.Context, userID string, hour time.Time, state model.State) error {
	body, err := json.Marshal(modeRequest{Hour: hour.UTC(), Mode: state.String()})
	if err != nil {
		return fmt.Errorf("encode mode request: %w", err)
	}
	url := fmt.Sprintf("%s/api/v1/devices/%s/mode", a.cfg.BaseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := a.tokens.SetAuthHeader(req); err != nil {
		return &coregateway.AuthError{Err: err}
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("push mode: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &coregateway.AuthError{Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, msg)
	}
	a.log.Debugf("pushed %s for %s at %s", state, userID, hour.Format(time.RFC3339))
	return nil
}
