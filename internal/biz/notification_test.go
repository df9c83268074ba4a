package biz

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierPublishesToQueue(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t)
	queue := &fakeQueue{}
	n := NewNotifier(env.repo, env.dispatcher, queue, env.conf, log.NewStdLogger(io.Discard))

	n.Notify(context.Background(), NotifyPaymentConfirmed, o)
	require.Len(t, queue.events, 1)
	assert.Equal(t, NotifyPaymentConfirmed, queue.events[0].Kind)
	assert.Equal(t, o.OrderNumber, queue.events[0].OrderNumber)
	assert.NotEmpty(t, queue.events[0].ID)
	assert.NotContains(t, env.dispatcher.invoices, o.OrderNumber, "queued events are dispatched by the consumer")

	require.NoError(t, n.Handle(context.Background(), queue.events[0]))
	assert.Contains(t, env.dispatcher.invoices, o.OrderNumber)
	assert.Contains(t, env.dispatcher.adminNotices, o.OrderNumber)
}

func TestNotifierFallsBackWhenPublishFails(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t)
	queue := &fakeQueue{err: errors.New("broker unavailable")}
	n := NewNotifier(env.repo, env.dispatcher, queue, env.conf, log.NewStdLogger(io.Discard))

	n.Notify(context.Background(), NotifyStatusChanged, &Order{OrderNumber: o.OrderNumber, Status: StatusPaid, Customer: o.Customer})
	assert.Contains(t, env.dispatcher.statusUpdates, o.OrderNumber+":paid")
}

func TestNotifierHandleUnknownOrder(t *testing.T) {
	env := newTestEnv(t)
	n := NewNotifier(env.repo, env.dispatcher, nil, env.conf, log.NewStdLogger(io.Discard))
	assert.NoError(t, n.Handle(context.Background(), &NotificationEvent{Kind: NotifyOrderPlaced, OrderNumber: "KSNOPE"}))
	assert.Empty(t, env.dispatcher.adminNotices)
}

func TestNotifierRenderFailureStillNotifiesAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.dispatcher.failRender = true
	o := env.createOrder(t)
	env.rec.notifier.Notify(context.Background(), NotifyPaymentSubmitted, o)
	assert.NotContains(t, env.dispatcher.invoices, o.OrderNumber)
	assert.Equal(t, 2, countOf(env.dispatcher.adminNotices, o.OrderNumber))
}

func countOf(list []string, v string) int {
	n := 0
	for _, s := range list {
		if s == v {
			n++
		}
	}
	return n
}
