package entity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kingscribe/chancery/internal/config"
	"github.com/kingscribe/chancery/internal/observability"
	"github.com/kingscribe/chancery/model"
)

// Gateway owns the HTTP client and circuit breaker for the content
// backend and hands out per-entity repositories sharing them.
type Gateway struct {
	cfg     config.BackendConfig
	client  *http.Client
	breaker *CircuitBreaker
	log     *zap.Logger
}

// NewGateway creates a gateway for the configured backend.
func NewGateway(cfg config.BackendConfig, log *zap.Logger) *Gateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &Gateway{
		cfg: cfg,
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		breaker: NewCircuitBreaker(
			cfg.CircuitBreaker.FailureThreshold,
			cfg.CircuitBreaker.SuccessThreshold,
			cfg.CircuitBreaker.Timeout,
		),
		log: log,
	}
}

// Registry builds an entity registry with one HTTP repository per
// configured entity type.
func (g *Gateway) Registry() *Registry {
	reg := NewRegistry()
	for name, ecfg := range g.cfg.Entities {
		reg.Register(name, &httpRepository{
			gateway:      g,
			entityType:   name,
			resourcePath: ecfg.ResourcePath,
		})
	}
	return reg
}

// BreakerState exposes the breaker for readiness checks.
func (g *Gateway) BreakerState() BreakerState {
	return g.breaker.State()
}

// httpRepository implements Repository against one backend resource.
type httpRepository struct {
	gateway      *Gateway
	entityType   string
	resourcePath string
}

func (r *httpRepository) GetByID(ctx context.Context, rctx *model.RequestContext, id string) (map[string]any, error) {
	body, err := r.gateway.do(ctx, rctx, r.entityType, http.MethodGet, r.itemURL(id), nil)
	if err != nil {
		return nil, err
	}
	return asObject(body)
}

func (r *httpRepository) Create(ctx context.Context, rctx *model.RequestContext, payload map[string]any) (map[string]any, error) {
	body, err := r.gateway.do(ctx, rctx, r.entityType, http.MethodPost, r.collectionURL(nil), payload)
	if err != nil {
		return nil, err
	}
	return asObject(body)
}

func (r *httpRepository) Update(ctx context.Context, rctx *model.RequestContext, payload map[string]any) (map[string]any, error) {
	id := fmt.Sprint(payload["id"])
	if id == "" || id == "<nil>" {
		return nil, model.NewBadRequestError("update payload is missing an id")
	}
	body, err := r.gateway.do(ctx, rctx, r.entityType, http.MethodPut, r.itemURL(id), payload)
	if err != nil {
		return nil, err
	}
	return asObject(body)
}

func (r *httpRepository) Delete(ctx context.Context, rctx *model.RequestContext, id string) error {
	_, err := r.gateway.do(ctx, rctx, r.entityType, http.MethodDelete, r.itemURL(id), nil)
	return err
}

func (r *httpRepository) SearchPaged(ctx context.Context, rctx *model.RequestContext, query SearchQuery) (PagedResult, error) {
	params := url.Values{}
	if query.Term != "" {
		params.Set("q", query.Term)
	}
	if query.Page > 0 {
		params.Set("page", strconv.Itoa(query.Page))
	}
	if query.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(query.PageSize))
	}
	if query.SortBy != "" {
		params.Set("sortBy", query.SortBy)
		if query.SortDesc {
			params.Set("sortDir", "desc")
		}
	}

	body, err := r.gateway.do(ctx, rctx, r.entityType, http.MethodGet, r.collectionURL(params), nil)
	if err != nil {
		return PagedResult{}, err
	}

	var result PagedResult
	raw, err := json.Marshal(body)
	if err != nil {
		return PagedResult{}, fmt.Errorf("entity: re-encode paged result: %w", err)
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return PagedResult{}, fmt.Errorf("entity: decode paged result: %w", err)
	}
	return result, nil
}

func (r *httpRepository) itemURL(id string) string {
	return r.gateway.cfg.BaseURL + r.resourcePath + "/" + url.PathEscape(id)
}

func (r *httpRepository) collectionURL(params url.Values) string {
	u := r.gateway.cfg.BaseURL + r.resourcePath
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// do executes one backend call with retries and circuit breaker
// protection, returning the decoded JSON body. The whole call, retries
// included, runs under one client span tagged with the entity type.
func (g *Gateway) do(ctx context.Context, rctx *model.RequestContext, entityType, method, reqURL string, payload map[string]any) (result any, err error) {
	ctx, span := observability.StartSpan(ctx, "backend "+method+" "+entityType,
		observability.AttrEntityType.String(entityType))
	defer func() { observability.EndSpanWithError(span, err) }()

	var bodyBytes []byte
	if payload != nil {
		bodyBytes, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("entity: marshal payload: %w", err)
		}
	}

	retry := g.cfg.Retry
	maxAttempts := retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	canRetry := isIdempotentMethod(method) || !retry.IdempotentOnly

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoffDelay(retry, attempt)):
			}
		}

		body, retryable, err := g.doOnce(ctx, rctx, method, reqURL, bodyBytes)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !canRetry || !retryable {
			return nil, err
		}
		g.log.Debug("backend call retrying",
			zap.String("method", method),
			zap.String("url", reqURL),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return nil, lastErr
}

// doOnce performs a single request. The middle return reports whether
// the failure is worth retrying.
func (g *Gateway) doOnce(ctx context.Context, rctx *model.RequestContext, method, reqURL string, bodyBytes []byte) (any, bool, error) {
	if err := g.breaker.Allow(); err != nil {
		return nil, false, model.NewBackendUnavailableError()
	}

	var body io.Reader
	if bodyBytes != nil {
		body = bytes.NewReader(bodyBytes)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, false, fmt.Errorf("entity: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if bodyBytes != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if rctx != nil {
		if rctx.Token != "" {
			req.Header.Set("Authorization", "Bearer "+sanitizeHeader(rctx.Token))
		}
		req.Header.Set("X-Correlation-Id", sanitizeHeader(rctx.CorrelationID))
		req.Header.Set("X-Request-Subject", sanitizeHeader(rctx.SubjectID))
	}
	observability.InjectTraceHeaders(ctx, req.Header)

	resp, err := g.client.Do(req)
	if err != nil {
		g.breaker.RecordFailure()
		if ctx.Err() != nil {
			return nil, false, model.NewBackendTimeoutError()
		}
		if isConnectionError(err) {
			return nil, true, model.NewBackendUnavailableError()
		}
		return nil, true, fmt.Errorf("entity: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20)) // 10MB limit
	if err != nil {
		g.breaker.RecordFailure()
		return nil, true, fmt.Errorf("entity: read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		g.breaker.RecordFailure()
		return nil, true, model.NewBackendUnavailableError()
	}
	if resp.StatusCode >= 400 {
		// 4xx is not an infrastructure failure; leave the breaker alone.
		return nil, false, envelopeForStatus(resp.StatusCode, respBody)
	}
	g.breaker.RecordSuccess()

	if len(respBody) == 0 {
		return nil, false, nil
	}
	var parsed any
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, false, fmt.Errorf("entity: decode response: %w", err)
	}
	return parsed, false, nil
}

// envelopeForStatus maps a backend 4xx to the error taxonomy, carrying
// the backend's message through when it sends one.
func envelopeForStatus(status int, body []byte) *model.ErrorEnvelope {
	msg := backendMessage(body)
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if msg == "" {
			msg = "the backend rejected the request"
		}
		return model.NewBadRequestError(msg)
	case http.StatusUnauthorized:
		return model.NewUnauthorizedError("backend rejected credentials")
	case http.StatusForbidden:
		return model.NewForbiddenError("backend denied access")
	case http.StatusNotFound:
		if msg == "" {
			msg = "entity not found"
		}
		return model.NewNotFoundError(msg)
	case http.StatusConflict:
		if msg == "" {
			msg = "the entity has dependents or conflicts with existing data"
		}
		return model.NewConflictError(msg)
	default:
		if msg == "" {
			msg = fmt.Sprintf("backend returned status %d", status)
		}
		return model.NewBadRequestError(msg)
	}
}

func backendMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if parsed.Message != "" {
		return parsed.Message
	}
	return parsed.Error
}

func asObject(body any) (map[string]any, error) {
	if body == nil {
		return nil, nil
	}
	obj, ok := body.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("entity: backend returned a non-object body")
	}
	return obj, nil
}

// sanitizeHeader strips newlines and carriage returns to prevent header
// injection.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return s
}

func isIdempotentMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPut, http.MethodDelete,
		http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func isConnectionError(err error) bool {
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func backoffDelay(cfg config.RetryConfig, attempt int) time.Duration {
	initial := cfg.BackoffInitial
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	multiplier := cfg.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 2
	}
	max := cfg.BackoffMax
	if max <= 0 {
		max = 2 * time.Second
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * multiplier)
		if delay > max {
			return max
		}
	}
	return delay
}
