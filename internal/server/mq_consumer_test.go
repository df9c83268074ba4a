package server

import (
	"context"
	"encoding/json"
	"testing"

	"order-service/internal/biz"
	"order-service/internal/conf"

	"github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMQConsumerDisabled(t *testing.T) {
	s := NewMQConsumerServer(&conf.Bootstrap{Data: &conf.Data{}}, nil, testLogger)
	assert.NoError(t, s.Start(context.Background()))
	assert.NoError(t, s.Stop(context.Background()))
}

func TestMQConsumerHandler(t *testing.T) {
	stack := newTestStack(t)
	s := &MQConsumerServer{notifier: stack.notifier, log: NewMQConsumerServer(&conf.Bootstrap{}, nil, testLogger).log}

	event, err := json.Marshal(&biz.NotificationEvent{ID: "e1", Kind: biz.NotifyStatusChanged, OrderNumber: "KSUNKNOWN"})
	require.NoError(t, err)

	t.Run("malformed body is dropped", func(t *testing.T) {
		res, err := s.handler(context.Background(), &primitive.MessageExt{Message: primitive.Message{Body: []byte("{")}})
		require.NoError(t, err)
		assert.Equal(t, consumer.ConsumeSuccess, res)
	})

	t.Run("unknown order is acknowledged", func(t *testing.T) {
		res, err := s.handler(context.Background(), &primitive.MessageExt{Message: primitive.Message{Body: event}})
		require.NoError(t, err)
		assert.Equal(t, consumer.ConsumeSuccess, res)
	})

	t.Run("storage failure is retried", func(t *testing.T) {
		sqlDB, err := stack.db.DB()
		require.NoError(t, err)
		require.NoError(t, sqlDB.Close())

		res, err := s.handler(context.Background(), &primitive.MessageExt{Message: primitive.Message{Body: event}})
		require.NoError(t, err)
		assert.Equal(t, consumer.ConsumeRetryLater, res)
	})
}
