// Package synthesis — HTTP-клиент внешнего сервиса синтеза диагнозов.
//
// После завершения run оркестратор просит синтез собрать диагноз
// по результатам сервисов и сохраняет полученный идентификатор в сводке.
package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNoDiagnosisID — сервис ответил без идентификатора диагноза.
var ErrNoDiagnosisID = errors.New("synthesis response has no diagnosis id")

// DefaultTimeout — таймаут HTTP-клиента по умолчанию.
const DefaultTimeout = 30 * time.Second

var diagnosisIDAliases = []string{"diagnosisId", "diagnosis_id", "id"}

// Config — конфигурация HTTPClient.
type Config struct {
	// URL — базовый адрес сервиса синтеза.
	URL string

	// APIKey — Bearer-токен (опционально).
	APIKey string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// HTTPClient вызывает POST {url}/api/synthesize.
type HTTPClient struct {
	url    string
	apiKey string
	client *http.Client
	logger *slog.Logger
}

// New создаёт HTTPClient.
func New(cfg Config) *HTTPClient {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPClient{
		url:    strings.TrimRight(cfg.URL, "/"),
		apiKey: cfg.APIKey,
		client: client,
		logger: logger,
	}
}

type synthesizeRequest struct {
	TenantID string `json:"tenant_id"`
	RunID    string `json:"run_id"`
}

// Synthesize запрашивает диагноз для run и возвращает его идентификатор.
func (c *HTTPClient) Synthesize(ctx context.Context, tenantID string, runID uuid.UUID) (string, error) {
	payload, err := json.Marshal(synthesizeRequest{TenantID: tenantID, RunID: runID.String()})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/api/synthesize", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("synthesize: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("synthesize: HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	for _, key := range diagnosisIDAliases {
		if id, ok := out[key].(string); ok && id != "" {
			c.logger.Debug("diagnosis synthesized", "run_id", runID, "diagnosis_id", id)
			return id, nil
		}
	}
	return "", ErrNoDiagnosisID
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
