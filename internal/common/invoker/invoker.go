// internal/common/invoker/invoker.go
package invoker

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"pagegen-pipeline/internal/common/errors"
	"pagegen-pipeline/internal/common/logger"
	"pagegen-pipeline/internal/common/metrics"
	"pagegen-pipeline/internal/session"
)

// Config holds the invoker-wide settings. Per-call policy (timeout, retry
// budget) travels on the Request because each collaborator has its own.
type Config struct {
	// BackoffBase is the delay before the first retry; retry n (0-indexed)
	// waits 2^n * BackoffBase. Production default is one second.
	BackoffBase time.Duration
	// ClientID is sent as X-Client-Id on every outbound call.
	ClientID string
}

// Request describes one resilient HTTP invocation.
type Request struct {
	// Target is the logical collaborator name used in logs and metrics.
	Target  string
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte

	SessionID string
	// IdempotencyKey, when set, marks a write-type call. It is identical on
	// every retry of the same logical write so the server can de-duplicate.
	IdempotencyKey string

	// Timeout bounds the whole invocation: all attempts and backoff sleeps.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
}

// Response is the successful result of an invocation.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Invoker performs HTTP calls with bounded retry, exponential backoff, a
// hard deadline, and retryable/terminal failure classification. Every call
// into an external collaborator passes through it.
type Invoker struct {
	client   *http.Client
	cfg      Config
	sessions *session.Context
	logger   logger.Logger
}

func New(cfg Config, sessions *session.Context, log logger.Logger) *Invoker {
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = time.Second
	}
	return &Invoker{
		// Per-invocation deadlines come from the request context, not the
		// transport, so one client serves every collaborator.
		client:   &http.Client{},
		cfg:      cfg,
		sessions: sessions,
		logger:   log.With(map[string]interface{}{"component": "invoker"}),
	}
}

// Invoke performs the call. Retryable failures are timeouts, 429, 5xx and
// network-level errors; every other 4xx is terminal. The deadline aborts
// in-flight attempts and backoff sleeps alike.
func (i *Invoker) Invoke(ctx context.Context, req Request) (*Response, *errors.PipelineError) {
	requestID := i.sessions.NewRequestID()
	log := i.logger.With(map[string]interface{}{
		"target":    req.Target,
		"requestId": requestID,
		"sessionId": req.SessionID,
	})

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var lastErr *errors.PipelineError

	for attempt := 0; attempt <= req.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.InvokerRetries.WithLabelValues(req.Target).Inc()
			backoff := i.cfg.BackoffBase << (attempt - 1)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, errors.NewTimeoutError(req.URL)
			}
		}

		resp, pErr := i.attempt(ctx, req, requestID, attempt, log)
		if pErr == nil {
			return resp, nil
		}
		if !pErr.Retryable {
			return nil, pErr
		}
		if pErr.Code == errors.ErrCodeTimeout {
			// The deadline covers the whole invocation; nothing left to retry.
			return nil, pErr
		}
		lastErr = pErr
	}

	return nil, lastErr
}

func (i *Invoker) attempt(ctx context.Context, req Request, requestID string, attempt int, log logger.Logger) (*Response, *errors.PipelineError) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, errors.NewValidationError("malformed request: " + err.Error())
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set("X-Request-Id", requestID)
	if req.SessionID != "" {
		httpReq.Header.Set("X-Session-Id", req.SessionID)
	}
	if i.cfg.ClientID != "" {
		httpReq.Header.Set("X-Client-Id", i.cfg.ClientID)
	}
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("X-Idempotency-Key", req.IdempotencyKey)
	}

	start := time.Now()
	httpResp, err := i.client.Do(httpReq)
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			metrics.InvokerAttempts.WithLabelValues(req.Target, "timeout").Inc()
			log.Warn("attempt deadline exceeded", map[string]interface{}{
				"method":    req.Method,
				"url":       req.URL,
				"attempt":   attempt,
				"elapsedMs": elapsed.Milliseconds(),
			})
			return nil, errors.NewTimeoutError(req.URL)
		}
		metrics.InvokerAttempts.WithLabelValues(req.Target, "network_error").Inc()
		log.Warn("attempt failed", map[string]interface{}{
			"method":    req.Method,
			"url":       req.URL,
			"attempt":   attempt,
			"elapsedMs": elapsed.Milliseconds(),
			"error":     err.Error(),
		})
		return nil, errors.NewNetworkError(req.URL, err)
	}
	defer httpResp.Body.Close()

	body, readErr := io.ReadAll(httpResp.Body)
	if readErr != nil {
		metrics.InvokerAttempts.WithLabelValues(req.Target, "network_error").Inc()
		return nil, errors.NewNetworkError(req.URL, readErr)
	}

	log.Info("attempt completed", map[string]interface{}{
		"method":    req.Method,
		"url":       req.URL,
		"status":    httpResp.StatusCode,
		"attempt":   attempt,
		"elapsedMs": elapsed.Milliseconds(),
	})

	if httpResp.StatusCode >= 400 {
		metrics.InvokerAttempts.WithLabelValues(req.Target, "http_error").Inc()
		return nil, errors.NewHTTPError(req.URL, httpResp.StatusCode)
	}

	metrics.InvokerAttempts.WithLabelValues(req.Target, "success").Inc()
	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       body,
		Header:     httpResp.Header,
	}, nil
}
