package kafka

import (
	"context"
	"encoding/json"
	"log"

	"github.com/The-Morpho/drivingSchool-sub000/services"

	"github.com/IBM/sarama"
)

// LessonEvent 课程创建事件，聊天侧据此为配对补建房间
type LessonEvent struct {
	LessonID   uint  `json:"lesson_id"`
	StaffID    uint  `json:"staff_id"`
	CustomerID uint  `json:"customer_id"`
	Timestamp  int64 `json:"timestamp"`
}

// LessonEventHandler 消费 lesson.created，调用房间目录的幂等建房
type LessonEventHandler struct {
	rooms    *services.ChatRoomService
	accounts *services.AccountService
}

func NewLessonEventHandler(rooms *services.ChatRoomService, accounts *services.AccountService) *LessonEventHandler {
	return &LessonEventHandler{rooms: rooms, accounts: accounts}
}

func (h *LessonEventHandler) Handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	var event LessonEvent

	if err := json.Unmarshal(message.Value, &event); err != nil {
		log.Printf("Failed to unmarshal lesson event: %v", err)
		return err
	}

	return h.HandleEvent(event)
}

// HandleEvent 事件处理主体，进程内分发（无 Kafka 时）直接走这里
func (h *LessonEventHandler) HandleEvent(event LessonEvent) error {
	staffUsername, err := h.accounts.UsernameForStaff(event.StaffID)
	if err != nil {
		log.Printf("Lesson event %d: staff %d has no account: %v", event.LessonID, event.StaffID, err)
		return err
	}
	customerUsername, err := h.accounts.UsernameForCustomer(event.CustomerID)
	if err != nil {
		log.Printf("Lesson event %d: customer %d has no account: %v", event.LessonID, event.CustomerID, err)
		return err
	}

	if _, err := h.rooms.CreateOrGetRoom(staffUsername, customerUsername); err != nil {
		log.Printf("Lesson event %d: create room failed: %v", event.LessonID, err)
		return err
	}
	return nil
}
