// Package secrets содержит адаптеры хранилища секретов воркеров.
//
// Хранилище отдаёт непрозрачную строку по имени секрета; разбор
// значения выполняет workerconfig.Resolver.
package secrets

import (
	"context"
	"os"
	"strings"
	"sync"
)

// DefaultEnvPrefix — префикс переменных окружения EnvStore.
const DefaultEnvPrefix = "HERMES_SECRET_"

// Store — хранилище секретов.
//
// Get возвращает ok=false, если секрет отсутствует; err — только
// при сбое самого хранилища.
type Store interface {
	Get(ctx context.Context, name string) (value string, ok bool, err error)
}

// EnvStore читает секреты из переменных окружения.
//
// Имя секрета "seo-crawler/tenant-1" превращается в
// HERMES_SECRET_SEO_CRAWLER_TENANT_1.
type EnvStore struct {
	Prefix string
	lookup func(string) (string, bool)
}

// NewEnvStore создаёт EnvStore. Пустой prefix заменяется DefaultEnvPrefix.
func NewEnvStore(prefix string) *EnvStore {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return &EnvStore{Prefix: prefix, lookup: os.LookupEnv}
}

// Get реализует Store.
func (s *EnvStore) Get(_ context.Context, name string) (string, bool, error) {
	value, ok := s.lookup(s.EnvName(name))
	if !ok || value == "" {
		return "", false, nil
	}
	return value, true, nil
}

// EnvName возвращает имя переменной окружения для секрета.
func (s *EnvStore) EnvName(name string) string {
	var b strings.Builder
	b.WriteString(s.Prefix)
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// MapStore — хранилище секретов в памяти (тесты, локальная разработка).
type MapStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMapStore создаёт MapStore с начальными значениями.
func NewMapStore(values map[string]string) *MapStore {
	m := &MapStore{values: make(map[string]string, len(values))}
	for k, v := range values {
		m.values[k] = v
	}
	return m
}

// Get реализует Store.
func (m *MapStore) Get(_ context.Context, name string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[name]
	return v, ok, nil
}

// Set записывает значение секрета.
func (m *MapStore) Set(name, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = value
}

// Delete удаляет секрет.
func (m *MapStore) Delete(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, name)
}
