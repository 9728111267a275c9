package worker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kmease-ttc/Hermes-sub004/internal/domain"
)

// Параметры опроса по умолчанию.
const (
	DefaultPollInterval    = 2 * time.Second
	DefaultPollMaxAttempts = 30
)

// Алиасы идентификатора задачи в ответе 202.
var jobIDAliases = []string{"jobId", "job_id", "id"}

// PollState — итог опроса задачи воркера.
type PollState string

const (
	PollCompleted PollState = "completed"
	PollFailed    PollState = "failed"
	PollExhausted PollState = "exhausted"
)

// PollResult — результат опроса.
type PollResult struct {
	State  PollState
	Result map[string]any
	Error  string

	// Polls — число выполненных запросов статуса.
	Polls int
}

// JobID извлекает идентификатор задачи из тела ответа 202.
func JobID(body map[string]any) (string, bool) {
	for _, alias := range jobIDAliases {
		switch v := body[alias].(type) {
		case string:
			if v != "" {
				return v, true
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), true
		}
	}
	return "", false
}

// BodyStatus возвращает поле status тела ответа в нижнем регистре.
func BodyStatus(body map[string]any) string {
	s, _ := body["status"].(string)
	return strings.ToLower(strings.TrimSpace(s))
}

// IsSuccessStatus — статус задачи воркера означает успех.
func IsSuccessStatus(s string) bool {
	return s == "completed" || s == "done" || s == "success"
}

// IsFailureStatus — статус задачи воркера означает ошибку.
func IsFailureStatus(s string) bool {
	return s == "failed" || s == "error"
}

// ResultPayload извлекает полезную нагрузку: result, затем data, затем всё тело.
func ResultPayload(body map[string]any) map[string]any {
	if r, ok := body["result"].(map[string]any); ok {
		return r
	}
	if d, ok := body["data"].(map[string]any); ok {
		return d
	}
	return body
}

// BodyError извлекает сообщение об ошибке из тела ответа воркера.
func BodyError(body map[string]any) string {
	for _, key := range []string{"error", "message", "reason"} {
		switch v := body[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			if msg, ok := v["message"].(string); ok && msg != "" {
				return msg
			}
		}
	}
	return "worker reported status " + BodyStatus(body)
}

// PollJob опрашивает GET {statusPath}?jobId= каждые interval, не более maxAttempts раз.
//
// Транспортные и HTTP-ошибки отдельного опроса не прерывают цикл.
// Отмена ctx завершает опрос с состоянием PollExhausted.
func (c *Caller) PollJob(ctx context.Context, cfg domain.WorkerConfig, jobID string, interval time.Duration, maxAttempts int) PollResult {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultPollMaxAttempts
	}

	statusURL := cfg.BaseURL + cfg.StatusPath + "?jobId=" + url.QueryEscape(jobID)
	lastErr := ""

	for i := 1; i <= maxAttempts; i++ {
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return PollResult{State: PollExhausted, Error: fmt.Sprintf("poll job %s: %v", jobID, ctx.Err()), Polls: i - 1}
		case <-timer.C:
		}

		resp, _, err := c.Call(ctx, Request{
			Method: http.MethodGet,
			URL:    statusURL,
			APIKey: cfg.APIKey,
		}, c.timeouts.Status)
		switch {
		case err != nil:
			lastErr = err.Error()
			continue
		case !resp.OK():
			lastErr = HTTPError(resp)
			continue
		case resp.JSON == nil:
			lastErr = "status response is not a JSON object"
			continue
		}

		status := BodyStatus(resp.JSON)
		if IsSuccessStatus(status) {
			return PollResult{State: PollCompleted, Result: ResultPayload(resp.JSON), Polls: i}
		}
		if IsFailureStatus(status) {
			return PollResult{State: PollFailed, Error: BodyError(resp.JSON), Polls: i}
		}
	}

	msg := fmt.Sprintf("%v: job %s after %d polls", ErrPollExhausted, jobID, maxAttempts)
	if lastErr != "" {
		msg += " (last error: " + lastErr + ")"
	}
	return PollResult{State: PollExhausted, Error: msg, Polls: maxAttempts}
}
