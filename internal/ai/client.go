// Package ai relays free-form user text to the generative backend and always
// answers with a displayable string: every failure path maps to a fixed
// user-facing message, never an error the conversation turn has to handle.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/valarieck/waconcierge/pkg/logging"
)

var aiTracer = otel.Tracer("waconcierge.internal.ai")

// Fixed user-facing answers. These are the only strings a caller ever sees
// on a failed query.
const (
	MsgEmptyInput    = "Por favor, envía un mensaje válido."
	MsgNotConfigured = "Lo siento, el servicio de IA no está configurado correctamente."
	MsgTimeout       = "Lo siento, la consulta está tardando más de lo esperado. Por favor, intenta nuevamente."
	MsgUnreachable   = "Lo siento, no puedo conectarme con el servicio de IA en este momento. Intenta más tarde."
	MsgApology       = "Lo siento, ocurrió un error al procesar tu mensaje. Por favor, intenta nuevamente."
	MsgUnparseable   = "Lo siento, no pude procesar la respuesta correctamente."
)

// answerFields is the ordered list of response field names the backend is
// known to use. The first populated one wins.
var answerFields = []string{"answer", "message", "text"}

// Client calls the chat-messages endpoint with a per-attempt timeout and a
// small bounded retry with linearly increasing backoff.
type Client struct {
	endpoint   string
	secret     string
	timeout    time.Duration
	retries    int
	baseWait   time.Duration
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient builds an AI client. apiURL is the backend base URL; the
// chat-messages path is appended. retries counts extra attempts after the
// first one.
func NewClient(apiURL, secret string, timeout time.Duration, retries int, baseWait time.Duration, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	if baseWait <= 0 {
		baseWait = time.Second
	}
	endpoint := ""
	if apiURL != "" {
		endpoint = strings.TrimRight(apiURL, "/") + "/chat-messages"
	}
	return &Client{
		endpoint: endpoint,
		secret:   secret,
		timeout:  timeout,
		retries:  retries,
		baseWait: baseWait,
		// No client-level timeout: each attempt carries its own context deadline.
		httpClient: &http.Client{},
		logger:     logger,
	}
}

type queryPayload struct {
	Query        string         `json:"query"`
	Inputs       map[string]any `json:"inputs"`
	ResponseMode string         `json:"response_mode"`
	User         string         `json:"user"`
}

// Ask sends one user message and returns the backend's answer, or one of the
// fixed failure messages. It never returns an empty string.
func (c *Client) Ask(ctx context.Context, text, userID string) string {
	query := strings.TrimSpace(text)
	if query == "" {
		c.logger.Warn("ai query with empty message", "user", userID)
		return MsgEmptyInput
	}
	if c.endpoint == "" || c.secret == "" {
		c.logger.Error("ai backend not configured")
		return MsgNotConfigured
	}

	ctx, span := aiTracer.Start(ctx, "ai.ask")
	defer span.End()
	span.SetAttributes(attribute.String("waconcierge.user", userID))

	body, err := json.Marshal(queryPayload{
		Query:        query,
		Inputs:       map[string]any{},
		ResponseMode: "blocking",
		User:         userID,
	})
	if err != nil {
		span.RecordError(err)
		return MsgApology
	}

	start := time.Now()
	var lastTimedOut bool
	for attempt := 1; attempt <= c.retries+1; attempt++ {
		answer, retryable, timedOut := c.attempt(ctx, body, attempt)
		if answer != "" {
			c.logger.Info("ai answer received", "user", userID, "duration_ms", time.Since(start).Milliseconds(), "attempts", attempt)
			return answer
		}
		if !retryable {
			return MsgApology
		}
		lastTimedOut = timedOut
		if attempt <= c.retries {
			c.logger.Warn("ai attempt failed, retrying", "attempt", attempt, "of", c.retries+1, "timed_out", timedOut)
			select {
			case <-time.After(c.baseWait * time.Duration(attempt)):
			case <-ctx.Done():
				return MsgTimeout
			}
		}
	}

	if lastTimedOut {
		return MsgTimeout
	}
	return MsgUnreachable
}

// attempt performs one HTTP call. It returns the extracted answer on success;
// otherwise retryable reports whether the failure class (timeout or
// connection refusal) is worth another attempt.
func (c *Client) attempt(ctx context.Context, body []byte, attempt int) (answer string, retryable, timedOut bool) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			c.logger.Warn("ai attempt timed out", "attempt", attempt)
			return "", true, true
		}
		if isUnreachable(err) {
			c.logger.Warn("ai backend unreachable", "attempt", attempt, "error", err)
			return "", true, false
		}
		c.logger.Error("ai request failed", "attempt", attempt, "error", err)
		return "", false, false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("ai backend rejected request", "status", resp.StatusCode, "body", truncate(string(respBody), 500))
		return "", false, false
	}

	return extractAnswer(respBody, c.logger), false, false
}

// extractAnswer tries the ordered list of known answer fields, then the
// nested data.answer shape. Unrecognized shapes are logged and degrade to a
// fixed message; extraction never fails the call.
func extractAnswer(body []byte, logger *logging.Logger) string {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		logger.Warn("ai response is not a JSON object", "body", truncate(string(body), 200))
		return MsgUnparseable
	}

	for _, field := range answerFields {
		if value, ok := parsed[field].(string); ok && strings.TrimSpace(value) != "" {
			return value
		}
	}
	if data, ok := parsed["data"].(map[string]any); ok {
		if value, ok := data["answer"].(string); ok && strings.TrimSpace(value) != "" {
			return value
		}
	}

	logger.Warn("ai response shape not recognized", "body", truncate(string(body), 200))
	return MsgUnparseable
}

// Healthy issues a minimal "ping" query and reports whether a real answer
// came back.
func (c *Client) Healthy(ctx context.Context) (bool, string) {
	answer := c.Ask(ctx, "ping", "health_check")
	switch answer {
	case MsgTimeout, MsgUnreachable, MsgNotConfigured, MsgApology, MsgUnparseable:
		return false, answer
	}
	return true, answer
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isUnreachable(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EHOSTUNREACH) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n])
}
