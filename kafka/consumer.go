package kafka

import (
	"context"
	"errors"
	"log"

	"github.com/IBM/sarama"
)

// LessonConsumer 课程事件的消费端：一个消费组盯一个事件 topic，
// 每条消息交给 LessonEventHandler 建房。处理失败不提交位点，等重投
type LessonConsumer struct {
	group   sarama.ConsumerGroup
	topic   string
	handler *LessonEventHandler
}

func NewLessonConsumer(brokers []string, groupID, topic string,
	config *sarama.Config, handler *LessonEventHandler) (*LessonConsumer, error) {
	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}
	return &LessonConsumer{
		group:   group,
		topic:   topic,
		handler: handler,
	}, nil
}

func (c *LessonConsumer) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (c *LessonConsumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (c *LessonConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if err := c.handler.Handle(session.Context(), message); err != nil {
			// 建房是幂等的，留着位点等下次重投即可
			log.Printf("Lesson event at offset %d failed, will be redelivered: %v", message.Offset, err)
			continue
		}
		session.MarkMessage(message, "")
	}
	return nil
}

// Start 消费循环，rebalance 后自动重进，ctx 取消后退出
func (c *LessonConsumer) Start(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.group.Consume(ctx, []string{c.topic}, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			log.Printf("Lesson consumer session ended: %v", err)
		}
	}
}

func (c *LessonConsumer) Close() error {
	return c.group.Close()
}
