package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/kmease-ttc/Hermes-sub004/internal/domain"
	"github.com/kmease-ttc/Hermes-sub004/internal/telemetry"
)

// Значения по умолчанию.
const (
	DefaultColdStartBackoff = 1500 * time.Millisecond
	DefaultWarmupTimeout    = 3 * time.Second
	DefaultInvokeTimeout    = 10 * time.Second
	DefaultSmokeTimeout     = 60 * time.Second
	DefaultStatusTimeout    = 10 * time.Second

	maxResponseBody = 4 << 20
)

// ErrorClass — класс исхода одной HTTP-попытки.
type ErrorClass string

const (
	// ClassNone — ответ получен, код не сигнализирует о проблеме.
	ClassNone ErrorClass = "none"

	// ClassUnavailable — 502/503/504, воркер просыпается.
	ClassUnavailable ErrorClass = "unavailable"

	// ClassNetwork — соединение не установлено или оборвано.
	ClassNetwork ErrorClass = "network"

	// ClassTimeout — истёк таймаут попытки.
	ClassTimeout ErrorClass = "timeout"

	// ClassHTTP — прочий не-2xx ответ.
	ClassHTTP ErrorClass = "http"
)

// Retryable возвращает true для классов, после которых делается повтор.
func (c ErrorClass) Retryable() bool {
	return c == ClassUnavailable || c == ClassNetwork || c == ClassTimeout
}

// Attempt — итог вызова: число попыток и класс последнего исхода.
type Attempt struct {
	Count          int        `json:"count"`
	LastErrorClass ErrorClass `json:"last_error_class"`
}

// Retried возвращает true, если был сделан повтор.
func (a Attempt) Retried() bool {
	return a.Count > 1
}

// Request — описание исходящего запроса к воркеру.
type Request struct {
	Method string
	URL    string

	// Body сериализуется в JSON; nil — без тела.
	Body any

	// APIKey передаётся как Bearer-токен, если не пуст.
	APIKey string

	// Header — дополнительные заголовки.
	Header http.Header
}

// Response — ответ воркера.
type Response struct {
	StatusCode int
	Body       []byte

	// JSON — тело, если это JSON-объект; иначе nil.
	JSON map[string]any
}

// OK возвращает true для 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Timeouts — таймауты одной попытки по типу вызова.
type Timeouts struct {
	Warmup time.Duration
	Invoke time.Duration
	Smoke  time.Duration
	Status time.Duration
}

// CallerConfig — конфигурация Caller.
type CallerConfig struct {
	// HTTPClient (опционально; по умолчанию новый http.Client без общего таймаута).
	HTTPClient *http.Client

	// ColdStartBackoff — пауза перед повтором (default: 1.5s).
	ColdStartBackoff time.Duration

	// Timeouts — таймауты попыток; нулевые поля получают значения по умолчанию.
	Timeouts Timeouts

	Logger *slog.Logger
}

// Caller выполняет вызовы воркеров с одним повтором после холодного старта.
type Caller struct {
	client   *http.Client
	backoff  time.Duration
	timeouts Timeouts
	logger   *slog.Logger
}

// NewCaller создаёт Caller.
func NewCaller(cfg CallerConfig) *Caller {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	backoff := cfg.ColdStartBackoff
	if backoff <= 0 {
		backoff = DefaultColdStartBackoff
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Caller{
		client:   client,
		backoff:  backoff,
		timeouts: withDefaults(cfg.Timeouts),
		logger:   logger,
	}
}

func withDefaults(t Timeouts) Timeouts {
	if t.Warmup <= 0 {
		t.Warmup = DefaultWarmupTimeout
	}
	if t.Invoke <= 0 {
		t.Invoke = DefaultInvokeTimeout
	}
	if t.Smoke <= 0 {
		t.Smoke = DefaultSmokeTimeout
	}
	if t.Status <= 0 {
		t.Status = DefaultStatusTimeout
	}
	return t
}

// Timeouts возвращает действующие таймауты.
func (c *Caller) Timeouts() Timeouts {
	return c.timeouts
}

// Call выполняет запрос.
//
// Первая попытка с таймаутом timeout; если ответ 502/503/504 или ошибка
// сетевая либо таймаут, после паузы ColdStartBackoff делается ровно одна
// повторная попытка, и её исход возвращается как есть.
//
// error возвращается только когда ответа нет (транспортная ошибка).
// HTTP-ошибки возвращаются через Response и Attempt.LastErrorClass.
func (c *Caller) Call(ctx context.Context, req Request, timeout time.Duration) (*Response, Attempt, error) {
	var payload []byte
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			// Запрос не отправлялся: попыток нет, класс сетевой ошибки не ставится.
			return nil, Attempt{}, fmt.Errorf("%w: marshal body: %v", ErrHTTPRequest, err)
		}
		payload = b
	}

	resp, class, err := c.do(ctx, req, payload, timeout)
	attempt := Attempt{Count: 1, LastErrorClass: class}

	if !class.Retryable() || ctx.Err() != nil {
		return resp, attempt, err
	}

	c.logger.Debug("cold start suspected, retrying",
		"url", req.URL,
		"class", class,
		"backoff", c.backoff,
	)
	telemetry.ObserveColdStartRetry(string(class))

	timer := time.NewTimer(c.backoff)
	select {
	case <-ctx.Done():
		timer.Stop()
		return resp, attempt, err
	case <-timer.C:
	}

	resp, class, err = c.do(ctx, req, payload, timeout)
	return resp, Attempt{Count: 2, LastErrorClass: class}, err
}

// do выполняет одну попытку.
func (c *Caller) do(ctx context.Context, req Request, payload []byte, timeout time.Duration) (*Response, ErrorClass, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, ClassNetwork, fmt.Errorf("%w: create request: %v", ErrHTTPRequest, err)
	}

	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(ctx, err), fmt.Errorf("%w: %v", ErrHTTPRequest, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, classifyError(ctx, err), fmt.Errorf("%w: read response: %v", ErrHTTPRequest, err)
	}

	resp := &Response{StatusCode: httpResp.StatusCode, Body: respBody}
	var obj map[string]any
	if json.Unmarshal(respBody, &obj) == nil {
		resp.JSON = obj
	}

	return resp, classifyStatus(httpResp.StatusCode), nil
}

func classifyStatus(code int) ErrorClass {
	switch {
	case code == http.StatusBadGateway, code == http.StatusServiceUnavailable, code == http.StatusGatewayTimeout:
		return ClassUnavailable
	case code >= 400:
		return ClassHTTP
	default:
		return ClassNone
	}
}

func classifyError(ctx context.Context, err error) ErrorClass {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTimeout
	}
	return ClassNetwork
}

// Warmup будит воркер запросом GET {healthPath} с коротким таймаутом.
func (c *Caller) Warmup(ctx context.Context, cfg domain.WorkerConfig) (*Response, Attempt, error) {
	return c.Probe(ctx, cfg, false, c.timeouts.Warmup)
}

// Probe выполняет GET {healthPath}, с Bearer-токеном при withAuth.
func (c *Caller) Probe(ctx context.Context, cfg domain.WorkerConfig, withAuth bool, timeout time.Duration) (*Response, Attempt, error) {
	if cfg.BaseURL == "" {
		return nil, Attempt{LastErrorClass: ClassNetwork}, ErrNoBaseURL
	}
	req := Request{Method: http.MethodGet, URL: cfg.BaseURL + cfg.HealthPath}
	if withAuth {
		req.APIKey = cfg.APIKey
	}
	return c.Call(ctx, req, timeout)
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// HTTPError формирует сообщение "HTTP <code>: <начало тела>".
func HTTPError(resp *Response) string {
	return fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(resp.Body), 200))
}
