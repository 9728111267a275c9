package domain

// WorkerConfig — разрешённая конфигурация воркера.
//
// Не хранится, пересчитывается при каждом резолве.
type WorkerConfig struct {
	ServiceKey string       `json:"service_key"`
	TenantID   string       `json:"tenant_id,omitempty"`
	SecretName string       `json:"secret_name"`
	Status     ConfigStatus `json:"status"`
	BaseURL    string       `json:"base_url,omitempty"`
	APIKey     string       `json:"api_key,omitempty"`
	HealthPath string       `json:"health_path,omitempty"`
	StartPath  string       `json:"start_path,omitempty"`
	StatusPath string       `json:"status_path,omitempty"`
	Valid      bool         `json:"valid"`
	Error      string       `json:"error,omitempty"`
}

// HasCredential возвращает true, если задан API-ключ.
func (c WorkerConfig) HasCredential() bool {
	return c.APIKey != ""
}

// Redacted возвращает копию без API-ключа.
func (c WorkerConfig) Redacted() WorkerConfig {
	if c.APIKey != "" {
		c.APIKey = "***"
	}
	return c
}
