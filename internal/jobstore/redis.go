package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kmease-ttc/Hermes-sub004/internal/domain"
)

const (
	keyPrefix  = "hermes:testjob:"
	defaultTTL = 24 * time.Hour
)

// RedisConfig — параметры подключения.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// TTL — время жизни снимка (default: 24h).
	TTL time.Duration
}

// Redis хранит снимки задач как JSON-строки с TTL.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedis подключается к Redis и проверяет соединение.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewRedisWithClient(client, cfg.TTL), nil
}

// NewRedisWithClient оборачивает существующий клиент.
func NewRedisWithClient(client redis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

// Save записывает полный снимок одной командой SET.
func (r *Redis) Save(ctx context.Context, job *domain.TestJob) error {
	data, err := encode(job)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, jobKey(job.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save test job %s: %w", job.ID, err)
	}
	return nil
}

// Get читает снимок задачи.
func (r *Redis) Get(ctx context.Context, id uuid.UUID) (*domain.TestJob, bool, error) {
	data, err := r.client.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get test job %s: %w", id, err)
	}

	job, err := decode(data)
	if err != nil {
		return nil, false, err
	}
	return job, true, nil
}

// Close закрывает клиент.
func (r *Redis) Close() error {
	return r.client.Close()
}

func jobKey(id uuid.UUID) string {
	return keyPrefix + id.String()
}

func encode(job *domain.TestJob) ([]byte, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode test job %s: %w", job.ID, err)
	}
	return data, nil
}

func decode(data []byte) (*domain.TestJob, error) {
	var job domain.TestJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode test job: %w", err)
	}
	if job.Progress.Services == nil {
		job.Progress.Services = make(map[string]domain.ServiceProgress)
	}
	return &job, nil
}
