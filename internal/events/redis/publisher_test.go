package redis

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/banking-ledger-engine/internal/models/events"
)

func TestPublisher_Publish(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	sub := rdb.Subscribe(ctx, DefaultChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	p := NewPublisher(rdb)
	require.NoError(t, p.Publish(ctx, DefaultChannel, events.TransactionCompleted{
		OperationID: "op-7",
		Kind:        "transfer",
		FromAccount: "111",
		ToAccount:   "222",
		Amount:      decimal.NewFromInt(500),
		Charge:      decimal.Zero,
		Currency:    "USD",
	}))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultChannel, msg.Channel)

	var got events.TransactionCompleted
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, "op-7", got.OperationID)
	assert.Equal(t, "222", got.ToAccount)
	assert.Equal(t, "500", got.Amount.String())
}

func TestPublisher_PublishFailsWhenServerIsGone(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	err := NewPublisher(rdb).Publish(context.Background(), DefaultChannel, map[string]string{"a": "b"})
	assert.Error(t, err)
}
