package kafka

import (
	"encoding/json"
	"log"

	"github.com/IBM/sarama"
)

// Producer 把课程事件发到固定的事件 topic
// 同步发送：等 broker 确认后才返回，失败要不要吞由调用方决定
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewProducer(brokers []string, topic string, config *sarama.Config) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}
	return &Producer{producer: producer, topic: topic}, nil
}

// PublishLessonEvent 发布一条课程事件，分区键取配对键，同一配对的事件保序
func (p *Producer) PublishLessonEvent(event LessonEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(RoomEventKey(event)),
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		return err
	}

	log.Printf("Lesson event %d published to partition %d at offset %d", event.LessonID, partition, offset)
	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
