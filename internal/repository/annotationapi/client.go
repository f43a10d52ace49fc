// Package annotationapi is the client side of the Annotation API: load, create,
// update and delete annotations of a job over HTTP.
package annotationapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"job-annotation-service/internal/apperr"
	"job-annotation-service/internal/entity"
	"job-annotation-service/internal/fetchguard"
)

const tracerName = "job-annotation-service/annotationapi"

// maxErrorBody caps how much of a failed response is kept for the error message.
const maxErrorBody = 4 << 10

// Observer receives per-call measurements. *metrics.Collector implements it.
type Observer interface {
	ObserveAPI(op, outcome string, d time.Duration)
	RecordSharedFetch()
}

type Client struct {
	baseURL string
	http    *http.Client
	obs     Observer
	guard   *fetchguard.Guard[int64, []entity.Annotation]
	log     *slog.Logger

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds every call. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.obs = o }
}

// NewClient builds a client for baseURL, e.g. "http://localhost:3000/api".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		guard:   fetchguard.New[int64, []entity.Annotation](),
		log:     slog.Default().With("component", "annotationapi"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken swaps the bearer token used for subsequent calls.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// FetchAnnotations loads every annotation of a job. A call made while another
// one for the same job is pending waits for it and gets the same list.
func (c *Client) FetchAnnotations(ctx context.Context, jobID int64) ([]entity.Annotation, error) {
	list, shared, err := c.guard.Do(ctx, jobID, func(ctx context.Context) ([]entity.Annotation, error) {
		var rows []wireAnnotation
		if err := c.do(ctx, "fetch", http.MethodGet, fmt.Sprintf("/jobs/%d/annotations", jobID), nil, &rows); err != nil {
			return nil, err
		}
		out := make([]entity.Annotation, 0, len(rows))
		for _, r := range rows {
			a, err := r.normalize()
			if err != nil {
				c.log.WarnContext(ctx, "skip malformed annotation", "job_id", jobID, "annotation_id", r.ID, "error", err)
				continue
			}
			if a.JobID == 0 {
				a.JobID = jobID
			}
			out = append(out, a)
		}
		return out, nil
	})
	if shared && c.obs != nil {
		c.obs.RecordSharedFetch()
	}
	return list, err
}

func (c *Client) CreateAnnotation(ctx context.Context, jobID int64, d entity.Draft) (entity.Annotation, error) {
	if err := entity.ValidateGeometry(d.Kind, d.Geometry); err != nil {
		return entity.Annotation{}, apperr.Validation("create", err.Error())
	}
	body := payload{
		AnnotationType: d.Kind,
		Name:           d.Name,
		Description:    d.Description,
		Coordinates:    d.Geometry,
		StyleOptions:   d.Style,
	}
	var row wireAnnotation
	if err := c.do(ctx, "create", http.MethodPost, fmt.Sprintf("/jobs/%d/annotations", jobID), body, &row); err != nil {
		return entity.Annotation{}, err
	}
	a, err := row.normalize()
	if err != nil {
		return entity.Annotation{}, &apperr.Error{Kind: apperr.KindServer, Op: "create", Msg: "malformed response", Err: err}
	}
	if a.JobID == 0 {
		a.JobID = jobID
	}
	return a, nil
}

// UpdateAnnotation sends the full current state of the annotation; the server replaces the row.
func (c *Client) UpdateAnnotation(ctx context.Context, a entity.Annotation) (entity.Annotation, error) {
	if !a.Persisted() {
		return entity.Annotation{}, apperr.Validation("update", "annotation has not been saved yet")
	}
	body := payload{
		AnnotationType: a.Kind,
		Name:           a.Name,
		Description:    a.Description,
		Coordinates:    a.Geometry,
		StyleOptions:   a.Style,
	}
	var row wireAnnotation
	if err := c.do(ctx, "update", http.MethodPut, fmt.Sprintf("/annotations/%d", a.ID), body, &row); err != nil {
		return entity.Annotation{}, err
	}
	out, err := row.normalize()
	if err != nil {
		return entity.Annotation{}, &apperr.Error{Kind: apperr.KindServer, Op: "update", Msg: "malformed response", Err: err}
	}
	if out.JobID == 0 {
		out.JobID = a.JobID
	}
	return out, nil
}

func (c *Client) DeleteAnnotation(ctx context.Context, id int64) error {
	return c.do(ctx, "delete", http.MethodDelete, fmt.Sprintf("/annotations/%d", id), nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) (err error) {
	start := time.Now()
	reqID := uuid.NewString()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "annotationapi."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
			attribute.String("request_id", reqID),
		),
	)
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = apperr.KindOf(err).String()
			if !apperr.IsAborted(err) {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
		}
		span.End()
		if c.obs != nil {
			c.obs.ObserveAPI(op, outcome, time.Since(start))
		}
		c.log.DebugContext(ctx, "annotation api call",
			"op", op, "method", method, "path", path, "request_id", reqID,
			"outcome", outcome, "duration_ms", time.Since(start).Milliseconds(),
		)
	}()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", reqID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.bearer(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.FromTransport(op, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return apperr.FromStatus(op, resp.StatusCode, errorMessage(raw))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if apperr.IsAborted(err) {
			return apperr.FromTransport(op, err)
		}
		return &apperr.Error{Kind: apperr.KindServer, Op: op, Status: resp.StatusCode, Msg: "decode response", Err: err}
	}
	return nil
}

// errorMessage pulls {"error": "..."} out of a failure body, falling back to the raw text.
func errorMessage(raw []byte) string {
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil && eb.Error != "" {
		return eb.Error
	}
	return strings.TrimSpace(string(raw))
}
