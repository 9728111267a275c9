package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvStore_EnvName(t *testing.T) {
	s := NewEnvStore("")
	assert.Equal(t, "HERMES_SECRET_SEO_CRAWLER_TENANT_1", s.EnvName("seo-crawler/tenant-1"))
	assert.Equal(t, "HERMES_SECRET_VITALS", s.EnvName("vitals"))
}

func TestEnvStore_Get(t *testing.T) {
	t.Setenv("TEST_SECRET_CRAWLER", `{"base_url":"https://crawler.example"}`)

	s := NewEnvStore("TEST_SECRET_")

	v, ok, err := s.Get(context.Background(), "crawler")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, v, "crawler.example")

	_, ok, err = s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMapStore(t *testing.T) {
	m := NewMapStore(map[string]string{"a": "1"})
	ctx := context.Background()

	v, ok, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	m.Set("b", "2")
	v, ok, _ = m.Get(ctx, "b")
	assert.True(t, ok)
	assert.Equal(t, "2", v)

	m.Delete("a")
	_, ok, _ = m.Get(ctx, "a")
	assert.False(t, ok)
}
