package events

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scan2pay-service/internal/domain"
)

func completedTxn() *domain.Transaction {
	corr := "ws_CO_1"
	code := 0
	desc := "ok"
	receipt := "NLJ7RT61SV"
	return &domain.Transaction{
		Reference:     "01HZY0000000000000000000AA",
		VendorID:      42,
		Direction:     domain.DirectionIn,
		Amount:        50000,
		Counterparty:  "254708374149",
		Status:        domain.TxStatusCompleted,
		CorrelationID: &corr,
		ResultCode:    &code,
		ResultDesc:    &desc,
		Receipt:       &receipt,
	}
}

func TestNewLedgerEvent(t *testing.T) {
	txn := completedTxn()
	balance := domain.Money(75000)

	e := NewLedgerEvent(ResolutionEventType(txn), txn, &balance)
	assert.Equal(t, PaymentCompleted, e.EventType)
	assert.Equal(t, "ws_CO_1", e.CorrelationID)
	assert.Equal(t, "NLJ7RT61SV", e.Receipt)
	assert.Equal(t, domain.Currency, e.Currency)

	txn.Status = domain.TxStatusFailed
	assert.Equal(t, PaymentFailed, ResolutionEventType(txn))
}

func TestKafkaMessage(t *testing.T) {
	e := NewLedgerEvent(PaymentCompleted, completedTxn(), nil)
	msg, err := toMessage(e)
	require.NoError(t, err)

	assert.Equal(t, "42", string(msg.Key))
	assert.False(t, e.Timestamp.IsZero())

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "payment.completed", decoded["event_type"])
	assert.Equal(t, "500.00", decoded["amount"])
	assert.NotContains(t, decoded, "balance_after")
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), NewLedgerEvent(PaymentFailed, completedTxn(), nil)))
	assert.NoError(t, p.Close())
}

func TestRedisPublisher(t *testing.T) {
	addr := os.Getenv("SCAN2PAY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SCAN2PAY_TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	sub := rdb.Subscribe(ctx, "ledger_events_test")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	p := NewRedisPublisher(rdb, "ledger_events_test", zap.NewNop())
	defer p.Close()
	require.NoError(t, p.Publish(ctx, NewLedgerEvent(PaymentCompleted, completedTxn(), nil)))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Contains(t, msg.Payload, `"event_type":"payment.completed"`)
}
