package server

import (
	"context"
	"encoding/json"

	"order-service/internal/biz"
	"order-service/internal/conf"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"
)

// MQConsumerServer 消费通知事件，投递发票与邮件
type MQConsumerServer struct {
	c        rocketmq.PushConsumer
	notifier *biz.Notifier
	conf     *conf.Rocketmq
	log      *log.Helper
	enabled  bool
}

// NewMQConsumerServer 创建 RocketMQ 消费者，未启用时 Start/Stop 为空操作
func NewMQConsumerServer(c *conf.Bootstrap, notifier *biz.Notifier, logger log.Logger) *MQConsumerServer {
	helper := log.NewHelper(logger)
	if c.Data == nil || c.Data.Rocketmq == nil || !c.Data.Rocketmq.Enabled {
		return &MQConsumerServer{log: helper, enabled: false}
	}
	mq := c.Data.Rocketmq

	r, err := rocketmq.NewPushConsumer(
		consumer.WithNsResolver(primitive.NewPassthroughResolver(mq.NameServers)),
		consumer.WithGroupName(mq.GroupName),
		consumer.WithRetry(int(mq.RetryTimes)),
		consumer.WithConsumeMessageBatchMaxSize(1),
	)
	if err != nil {
		helper.Errorf("init notification consumer failed, notifications will only be sent in process: %v", err)
		return &MQConsumerServer{log: helper, enabled: false}
	}

	return &MQConsumerServer{
		c:        r,
		notifier: notifier,
		conf:     mq,
		log:      helper,
		enabled:  true,
	}
}

// Start 订阅通知主题
func (s *MQConsumerServer) Start(ctx context.Context) error {
	if !s.enabled || s.c == nil {
		s.log.Infof("MQConsumerServer is disabled, skipping startup")
		return nil
	}

	s.log.Infof("Starting MQConsumerServer, topic: %s", s.conf.Topic)
	if err := s.c.Subscribe(s.conf.Topic, consumer.MessageSelector{}, s.handler); err != nil {
		// 消费者不可用时通知仍会在进程内发送，不阻止启动
		s.log.Errorf("Failed to subscribe to topic %s: %v", s.conf.Topic, err)
		return nil
	}
	if err := s.c.Start(); err != nil {
		s.log.Errorf("Failed to start RocketMQ consumer: %v", err)
		return nil
	}
	return nil
}

// Stop 停止消费
func (s *MQConsumerServer) Stop(ctx context.Context) error {
	if !s.enabled || s.c == nil {
		return nil
	}
	s.log.Info("Stopping MQConsumerServer")
	return s.c.Shutdown()
}

func (s *MQConsumerServer) handler(ctx context.Context, msgs ...*primitive.MessageExt) (consumer.ConsumeResult, error) {
	for _, msg := range msgs {
		var event biz.NotificationEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			s.log.Errorf("Unmarshal notification failed, dropping: %v, body: %s", err, string(msg.Body))
			continue
		}
		if err := s.notifier.Handle(ctx, &event); err != nil {
			s.log.Errorf("Handle notification failed: order_number=%s, kind=%s, error=%v", event.OrderNumber, event.Kind, err)
			return consumer.ConsumeRetryLater, nil
		}
	}
	return consumer.ConsumeSuccess, nil
}
