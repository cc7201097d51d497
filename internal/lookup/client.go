// Package lookup talks to the external person/vehicle search API and turns
// its heterogeneous payloads into user-facing text.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/valarieck/waconcierge/pkg/logging"
)

var lookupTracer = otel.Tracer("waconcierge.internal.lookup")

// Kind selects which upstream search endpoint a query is routed to.
type Kind string

const (
	KindName  Kind = "nombres"
	KindID    Kind = "cedula"
	KindPlate Kind = "placa"
)

// ReasonNotConfigured is the failure reason when the endpoint is absent.
const ReasonNotConfigured = "servicio de búsqueda no configurado"

// Result is the outcome of one search call. A failed call carries a short
// diagnostic reason; it never carries a payload.
type Result struct {
	OK     bool
	Data   json.RawMessage
	Reason string
}

func failure(reason string) Result {
	return Result{Reason: reason}
}

// Client issues one outbound call per search. There are no retries at this
// layer: a failed lookup ends the conversation turn and the user restarts
// the flow, instead of replaying a possibly malformed query.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient builds a search client against baseURL with the given credential.
func NewClient(baseURL, token string, timeout time.Duration, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Search issues a single POST for the given kind and query.
func (c *Client) Search(ctx context.Context, kind Kind, query string) Result {
	if c.baseURL == "" {
		c.logger.Error("lookup endpoint not configured")
		return failure(ReasonNotConfigured)
	}

	ctx, span := lookupTracer.Start(ctx, "lookup.search")
	defer span.End()
	span.SetAttributes(
		attribute.String("waconcierge.lookup.kind", string(kind)),
	)

	endpoint := fmt.Sprintf("%s?type=%s&query=%s",
		c.baseURL, url.QueryEscape(string(kind)), url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		span.RecordError(err)
		return failure(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("persondata", c.token)
	}

	c.logger.Info("lookup search", "kind", kind)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		c.logger.Error("lookup request failed", "kind", kind, "error", err)
		return failure(err.Error())
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("lookup rejected", "kind", kind, "status", resp.StatusCode, "body", truncate(string(body), 500))
		return failure(fmt.Sprintf("Error HTTP: %d", resp.StatusCode))
	}

	if !json.Valid(body) {
		c.logger.Warn("lookup returned non-JSON payload", "kind", kind, "body", truncate(string(body), 200))
		return failure("respuesta no reconocida")
	}

	return Result{OK: true, Data: json.RawMessage(body)}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
