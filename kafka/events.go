package kafka

import (
	"fmt"
	"log"
	"time"
)

// LessonEventBus 课程事件的发布口
// 有 Kafka 时走 producer 经事件 topic；没配 Kafka 时降级为进程内异步分发。
// 两种模式下发布都是 fire-and-forget：失败只记日志，绝不影响课程创建本身
type LessonEventBus struct {
	producer *Producer
	handler  *LessonEventHandler
}

func NewLessonEventBus(producer *Producer, handler *LessonEventHandler) *LessonEventBus {
	if producer == nil {
		log.Println("Kafka unavailable, lesson events will be dispatched in-process")
	}
	return &LessonEventBus{
		producer: producer,
		handler:  handler,
	}
}

// PublishLessonCreated 发布课程创建事件
func (b *LessonEventBus) PublishLessonCreated(lessonID, staffID, customerID uint) {
	event := LessonEvent{
		LessonID:   lessonID,
		StaffID:    staffID,
		CustomerID: customerID,
		Timestamp:  time.Now().Unix(),
	}

	if b.producer == nil {
		go func() {
			if err := b.handler.HandleEvent(event); err != nil {
				log.Printf("In-process lesson event failed: %v", err)
			}
		}()
		return
	}

	if err := b.producer.PublishLessonEvent(event); err != nil {
		log.Printf("Failed to publish lesson event %d: %v", lessonID, err)
	}
}

// RoomEventKey 以配对为分区键，同一配对的事件保序
func RoomEventKey(event LessonEvent) string {
	return fmt.Sprintf("%d:%d", event.StaffID, event.CustomerID)
}
