package kafka

import (
	"github.com/IBM/sarama"
)

// EventInterceptor 给所有事件补上来源头
type EventInterceptor struct{}

func (i *EventInterceptor) OnSend(msg *sarama.ProducerMessage) {
	msg.Headers = append(msg.Headers, sarama.RecordHeader{
		Key:   []byte("event-source"),
		Value: []byte("driveadmin"),
	})
}

func NewEventInterceptor() *EventInterceptor {
	return &EventInterceptor{}
}
