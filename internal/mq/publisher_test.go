package mq

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmease-ttc/Hermes-sub004/internal/domain"
)

func TestParsePayload_RoundTripsRunRequest(t *testing.T) {
	req := domain.RunRequest{TenantID: "t-1", Domain: "example.com", PlanID: "audit", IdempotencyKey: "s1_1700000000"}

	body, err := json.Marshal(NewMessage(MessageTypeRunRequested, req))
	require.NoError(t, err)

	// Так сообщение видит consumer: payload приходит как map
	var msg Message
	require.NoError(t, json.Unmarshal(body, &msg))
	assert.Equal(t, MessageTypeRunRequested, msg.Type)
	assert.NotEmpty(t, msg.ID)

	got, err := ParsePayload[domain.RunRequest](&msg)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestParsePayload_TypeMismatch(t *testing.T) {
	msg := &Message{Payload: map[string]any{"tenant_id": 42}}

	_, err := ParsePayload[domain.RunRequest](msg)
	assert.Error(t, err)
}

func TestSettle(t *testing.T) {
	failure := errors.New("boom")

	tests := []struct {
		name        string
		err         error
		requeue     bool
		redelivered bool
		want        settlement
	}{
		{"success", nil, false, false, settleAck},
		{"success after redelivery", nil, true, true, settleAck},
		{"failure without requeue", failure, false, false, settleDeadLetter},
		{"first failure with requeue", failure, true, false, settleRequeue},
		{"repeated failure with requeue", failure, true, true, settleDeadLetter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, settle(tt.err, tt.requeue, tt.redelivered))
		})
	}
}

func TestNewConsumer_Defaults(t *testing.T) {
	c := NewConsumer(nil, nil, ConsumerConfig{Queue: "runs.requested", Types: []MessageType{MessageTypeRunRequested}})

	assert.Equal(t, 1, c.cfg.Prefetch)
	assert.Contains(t, c.types, MessageTypeRunRequested)
	assert.NotContains(t, c.types, MessageTypeRunEvent)
}
