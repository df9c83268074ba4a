package data

import (
	"context"
	"encoding/json"

	"order-service/internal/biz"

	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"
)

// notificationQueue 通知事件生产端（RocketMQ）
type notificationQueue struct {
	data *Data
	log  *log.Helper
}

// NewNotificationQueue 创建通知队列；未启用 RocketMQ 时返回 nil，通知在进程内发送
func NewNotificationQueue(data *Data, logger log.Logger) biz.NotificationQueue {
	if data.mq == nil {
		return nil
	}
	return &notificationQueue{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// Publish 同步发送通知事件，以订单号作为消息 key
func (q *notificationQueue) Publish(ctx context.Context, event *biz.NotificationEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := primitive.NewMessage(q.data.topic, body)
	msg.WithKeys([]string{event.OrderNumber})
	msg.WithTag(string(event.Kind))

	res, err := q.data.mq.SendSync(ctx, msg)
	if err != nil {
		return err
	}
	q.log.Debugf("notification published: order_number=%s, kind=%s, msg_id=%s", event.OrderNumber, event.Kind, res.MsgID)
	return nil
}
