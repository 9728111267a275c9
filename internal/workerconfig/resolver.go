package workerconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/kmease-ttc/Hermes-sub004/internal/domain"
	"github.com/kmease-ttc/Hermes-sub004/internal/secrets"
)

// TenantPlaceholder подставляется в SecretName воркера.
const TenantPlaceholder = "{tenant}"

// Пути по умолчанию.
const (
	DefaultHealthPath = "/health"
	DefaultStartPath  = "/api/run"
	DefaultStatusPath = "/api/status"
)

// Списки алиасов полей секрета; первый непустой побеждает.
var (
	baseURLAliases    = []string{"base_url", "baseUrl", "baseURL", "url", "endpoint"}
	apiKeyAliases     = []string{"api_key", "apiKey", "key", "token", "secret"}
	healthPathAliases = []string{"health_path", "healthPath"}
	startPathAliases  = []string{"start_path", "startPath", "run_path", "runPath"}
	statusPathAliases = []string{"status_path", "statusPath"}
)

// Registry — реестр воркеров.
type Registry interface {
	Worker(key string) (domain.WorkerService, bool)
}

// Resolver резолвит конфигурацию воркера.
type Resolver struct {
	registry Registry
	store    secrets.Store
}

// NewResolver создаёт Resolver. registry может быть nil.
func NewResolver(registry Registry, store secrets.Store) *Resolver {
	return &Resolver{registry: registry, store: store}
}

// Resolve возвращает конфигурацию воркера для тенанта.
//
// Неизвестный ключ резолвится как секрет с тем же именем и
// обязательным base_url.
func (r *Resolver) Resolve(ctx context.Context, workerKey, tenantID string) domain.WorkerConfig {
	svc := r.lookup(workerKey)
	secretName := strings.ReplaceAll(svc.SecretName, TenantPlaceholder, tenantID)

	cfg := domain.WorkerConfig{
		ServiceKey: workerKey,
		TenantID:   tenantID,
		SecretName: secretName,
	}

	raw, ok, err := r.store.Get(ctx, secretName)
	switch {
	case err != nil:
		return invalid(cfg, domain.ConfigStatusError, fmt.Sprintf("read secret %s: %v", secretName, err))
	case !ok:
		return invalid(cfg, domain.ConfigStatusNeedsConfig, fmt.Sprintf("secret %s not configured", secretName))
	}

	fields, ok := parseObject(raw)
	if !ok {
		cfg.APIKey = strings.TrimSpace(raw)
		return invalid(cfg, domain.ConfigStatusError,
			fmt.Sprintf("secret %s is not a JSON object; service cannot be health-checked", secretName))
	}

	cfg.APIKey = pick(fields, apiKeyAliases)
	cfg.HealthPath = normalizePath(pick(fields, healthPathAliases), DefaultHealthPath)
	cfg.StartPath = normalizePath(pick(fields, startPathAliases), DefaultStartPath)
	cfg.StatusPath = normalizePath(pick(fields, statusPathAliases), DefaultStatusPath)

	if base := pick(fields, baseURLAliases); base != "" {
		if !isAbsolute(base) {
			return invalid(cfg, domain.ConfigStatusError, "invalid base_url")
		}
		cfg.BaseURL = strings.TrimRight(base, "/")
	}

	if cfg.BaseURL == "" && svc.RequiresBaseURL {
		return invalid(cfg, domain.ConfigStatusBlocked, "missing base_url")
	}

	cfg.Status = domain.ConfigStatusReady
	cfg.Valid = true
	return cfg
}

func (r *Resolver) lookup(key string) domain.WorkerService {
	if r.registry != nil {
		if svc, ok := r.registry.Worker(key); ok {
			if svc.SecretName == "" {
				svc.SecretName = key
			}
			return svc
		}
	}
	return domain.WorkerService{Key: key, SecretName: key, RequiresBaseURL: true}
}

func invalid(cfg domain.WorkerConfig, status domain.ConfigStatus, msg string) domain.WorkerConfig {
	cfg.Status = status
	cfg.Valid = false
	cfg.Error = msg
	return cfg
}

// parseObject разбирает значение секрета как JSON-объект.
func parseObject(raw string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return nil, false
	}
	return fields, true
}

// pick возвращает первое непустое строковое значение по списку алиасов.
func pick(fields map[string]any, aliases []string) string {
	for _, alias := range aliases {
		if s, ok := fields[alias].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func isAbsolute(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

func normalizePath(p, def string) string {
	if p == "" {
		return def
	}
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}
