// Package orion is the client for the Orion lab-information system. Every
// call is attempted once; a run of transport or 5xx failures opens a
// breaker that fails calls fast until Orion recovers. A caller that goes
// away is not an Orion failure.
package orion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jwalitptl/lab-portal-api/internal/config"
	"github.com/jwalitptl/lab-portal-api/pkg/circuitbreaker"
	apperrors "github.com/jwalitptl/lab-portal-api/pkg/errors"
	"github.com/jwalitptl/lab-portal-api/pkg/logger"
	"github.com/jwalitptl/lab-portal-api/pkg/metrics"
)

// SearchBy selects the order field a search matches on.
type SearchBy string

const (
	ByOrderNumber         SearchBy = "numero_orden"
	ByExternalOrderNumber SearchBy = "numero_orden_externa"
	ByBarcode             SearchBy = "codigo_barras"
	ByID                  SearchBy = "id"
)

func ParseSearchBy(s string) (SearchBy, bool) {
	switch by := SearchBy(strings.ToLower(strings.TrimSpace(s))); by {
	case ByOrderNumber, ByExternalOrderNumber, ByBarcode, ByID:
		return by, true
	case "":
		return ByOrderNumber, true
	}
	return "", false
}

// errMalformed marks a 2xx response whose body could not be used.
var errMalformed = errors.New("malformed response")

// UpstreamError is a failed Orion call: a transport error (Status 0), a
// non-2xx status, or an undecodable 2xx body.
type UpstreamError struct {
	Operation string
	Status    int
	Body      string
	Err       error
}

func (e *UpstreamError) Error() string {
	msg := e.Body
	if e.Err != nil {
		if msg != "" {
			msg += ": "
		}
		msg += e.Err.Error()
	}
	if e.Status == 0 {
		return fmt.Sprintf("orion %s: %s", e.Operation, msg)
	}
	return fmt.Sprintf("orion %s: status %d: %s", e.Operation, e.Status, msg)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// PDF is a streamed results document. The caller closes Body.
type PDF struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

type Client struct {
	baseURL        *url.URL
	token          string
	defaultInclude []string
	http           *http.Client
	stream         *http.Client
	breaker        *circuitbreaker.CircuitBreaker
	metrics        *metrics.Metrics
	log            *logger.Logger
}

func NewClient(cfg config.OrionConfig, m *metrics.Metrics, log *logger.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid orion base url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if m == nil {
		m = metrics.NewNop()
	}
	if log == nil {
		log = logger.Nop()
	}

	// PDFs are streamed to the caller after do returns, so the stream client
	// bounds only the wait for headers; the request context bounds the rest.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.Timeout

	c := &Client{
		baseURL:        base,
		token:          cfg.Token,
		defaultInclude: cfg.DefaultInclude,
		http:           &http.Client{Timeout: cfg.Timeout},
		stream:         &http.Client{Transport: transport},
		metrics:        m,
		log:            log,
	}
	c.breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:      "orion",
		Failures:  cfg.BreakerFailures,
		Timeout:   cfg.BreakerTimeout,
		IsFailure: isBreakerFailure,
		OnStateChange: func(name, from, to string) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from, "to", to)
		},
	})
	return c, nil
}

// isBreakerFailure counts transport errors and 5xx only; a missing order, a
// malformed body or a caller that gave up is not a sign that Orion is down.
func isBreakerFailure(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, errCallerGone) || errors.Is(err, errMalformed) {
		return false
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Status == 0 || upstream.Status >= http.StatusInternalServerError
	}
	return true
}

// SearchOrders returns the orders matching value. Orion answers with either a
// bare array or {"data": [...]}; both are accepted. No match is an empty
// slice, not an error.
func (c *Client) SearchOrders(ctx context.Context, by SearchBy, value string) ([]json.RawMessage, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, apperrors.BadRequest("search value is required", nil)
	}

	if by == ByID {
		order, err := c.GetOrder(ctx, value, nil)
		if apperrors.IsKind(err, apperrors.ErrNotFound) {
			return []json.RawMessage{}, nil
		}
		if err != nil {
			return nil, err
		}
		return []json.RawMessage{order}, nil
	}

	query := url.Values{}
	query.Set(string(by), value)

	var orders []json.RawMessage
	err := c.getJSON(ctx, "search", "ordenes", query, func(body []byte) error {
		var err error
		orders, err = decodeList(body)
		return err
	})
	if apperrors.IsKind(err, apperrors.ErrNotFound) {
		return []json.RawMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrder returns the order detail. include names the relations Orion embeds
// (sent as a comma-separated incluir); nil uses the configured default.
func (c *Client) GetOrder(ctx context.Context, id string, include []string) (json.RawMessage, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.BadRequest("order id is required", nil)
	}
	if include == nil {
		include = c.defaultInclude
	}

	query := url.Values{}
	if len(include) > 0 {
		query.Set("incluir", strings.Join(include, ","))
	}

	var order json.RawMessage
	err := c.getJSON(ctx, "order", "ordenes/"+url.PathEscape(id), query, func(body []byte) error {
		if !json.Valid(body) {
			return errors.New("order is not json")
		}
		order = json.RawMessage(body)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// FetchResultsPDF opens the results PDF of an order for streaming.
func (c *Client) FetchResultsPDF(ctx context.Context, id string) (*PDF, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.BadRequest("order id is required", nil)
	}

	var pdf *PDF
	err := c.do(ctx, c.stream, "pdf", "ordenes/"+url.PathEscape(id)+"/resultados/pdf", nil, "application/pdf", func(resp *http.Response) error {
		pdf = &PDF{
			Body:          resp.Body,
			ContentType:   resp.Header.Get("Content-Type"),
			ContentLength: resp.ContentLength,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if pdf.ContentType == "" {
		pdf.ContentType = "application/pdf"
	}
	return pdf, nil
}

// getJSON reads a 2xx body and hands it to decode. A decode error is reported
// as a malformed response.
func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, decode func([]byte) error) error {
	return c.do(ctx, c.http, op, path, query, "application/json", func(resp *http.Response) error {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return c.transportError(ctx, op, err)
		}
		if err := decode(body); err != nil {
			return &UpstreamError{Operation: op, Status: resp.StatusCode, Body: err.Error(), Err: errMalformed}
		}
		return nil
	})
}

// errCallerGone marks a call abandoned because the caller's context ended.
var errCallerGone = errors.New("caller went away")

func (c *Client) transportError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("orion %s: %w: %w", op, errCallerGone, ctx.Err())
	}
	return &UpstreamError{Operation: op, Err: err}
}

// do sends one GET. On 2xx handle owns resp.Body; otherwise the body is
// drained and an error returned. Each call records exactly one outcome.
func (c *Client) do(ctx context.Context, client *http.Client, op, path string, query url.Values, accept string, handle func(*http.Response) error) error {
	endpoint := c.baseURL.JoinPath(path)
	endpoint.RawQuery = query.Encode()

	start := time.Now()
	outcome := "rejected"
	err := c.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
		if err != nil {
			outcome = "error"
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", accept)

		resp, err := client.Do(req)
		if err != nil {
			err = c.transportError(ctx, op, err)
			outcome = "error"
			if errors.Is(err, errCallerGone) {
				outcome = "canceled"
			}
			return err
		}
		outcome = strconv.Itoa(resp.StatusCode)

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			defer resp.Body.Close()
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return &UpstreamError{Operation: op, Status: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
		}
		if err := handle(resp); err != nil {
			switch {
			case errors.Is(err, errMalformed):
				outcome = "malformed"
			case errors.Is(err, errCallerGone):
				outcome = "canceled"
			default:
				outcome = "error"
			}
			return err
		}
		return nil
	})
	c.metrics.OrionRequests.WithLabelValues(op, outcome).Inc()
	c.metrics.OrionLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err == nil {
		return nil
	}

	var upstream *UpstreamError
	switch {
	case errors.Is(err, errCallerGone):
		return apperrors.Upstream("orion request canceled", 0, err)
	case errors.Is(err, errMalformed):
		c.log.Error(err, "orion response rejected", "operation", op)
		return apperrors.Upstream("orion returned an invalid response", 0, err)
	case errors.As(err, &upstream) && upstream.Status == http.StatusNotFound:
		return apperrors.NotFound("order", err)
	case errors.As(err, &upstream):
		c.log.Error(err, "orion request failed", "operation", op, "status", upstream.Status)
		return apperrors.Upstream("orion request failed", upstream.Status, err)
	case errors.Is(err, circuitbreaker.ErrOpen):
		return apperrors.Upstream("orion unavailable", http.StatusServiceUnavailable, err)
	default:
		return apperrors.Upstream("orion request failed", 0, err)
	}
}

func decodeList(body []byte) ([]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	var list []json.RawMessage
	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	data := bytes.TrimSpace(envelope.Data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		return []json.RawMessage{}, nil
	case data[0] == '[':
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, err
		}
	case data[0] == '{':
		list = []json.RawMessage{data}
	default:
		return nil, fmt.Errorf("unexpected data %.20s", data)
	}
	if list == nil {
		list = []json.RawMessage{}
	}
	return list, nil
}
