package handlers

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// 每个房间一个频道，订阅端用通配符一次订到全部
const brokerChannelPrefix = "chat:room:"
const brokerChannelPattern = brokerChannelPrefix + "*"

// BrokerEnvelope Redis 上跨实例转发的事件封皮
// Origin 是发布实例的标识：自己发布的事件绕回来时要丢弃，本地早已直投过
type BrokerEnvelope struct {
	Origin  string                 `json:"origin"`
	Event   string                 `json:"event"`
	RoomID  string                 `json:"room_id"`
	Payload map[string]interface{} `json:"payload"`
}

// ChatBroker 跨进程消息转发，尽力而为
// rdb 为 nil 时降级为单进程模式：只有本地直投，没有跨实例转发
type ChatBroker struct {
	rdb    *redis.Client
	hub    *ChatHub
	origin string
}

func NewChatBroker(rdb *redis.Client, hub *ChatHub) *ChatBroker {
	if rdb == nil {
		log.Println("Redis unavailable, chat fan-out degraded to single-process mode")
	}
	return &ChatBroker{
		rdb:    rdb,
		hub:    hub,
		origin: uuid.New().String(),
	}
}

// Publish 把事件发到房间频道，失败只记日志：消息已落库，本地投递不受影响
func (b *ChatBroker) Publish(roomID, event string, payload map[string]interface{}) {
	if b.rdb == nil {
		return
	}
	envelope := BrokerEnvelope{
		Origin:  b.origin,
		Event:   event,
		RoomID:  roomID,
		Payload: payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		log.Printf("Failed to marshal broker envelope: %v", err)
		return
	}
	if err := b.rdb.Publish(context.Background(), brokerChannelPrefix+roomID, data).Err(); err != nil {
		log.Printf("Failed to publish to room channel %s: %v", roomID, err)
	}
}

// Run 通配订阅所有房间频道，把别的实例发布的事件转投给本地订阅者
// ctx 取消后退出
func (b *ChatBroker) Run(ctx context.Context) {
	if b.rdb == nil {
		return
	}
	pubsub := b.rdb.PSubscribe(ctx, brokerChannelPattern)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.deliver(msg)
		}
	}
}

func (b *ChatBroker) deliver(msg *redis.Message) {
	var envelope BrokerEnvelope
	if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
		log.Printf("Failed to decode broker envelope: %v", err)
		return
	}
	if envelope.Origin == b.origin {
		return
	}
	roomID := envelope.RoomID
	if roomID == "" {
		// 兜底：从频道名恢复房间号
		roomID = strings.TrimPrefix(msg.Channel, brokerChannelPrefix)
	}
	b.hub.Broadcast(roomID, map[string]interface{}{
		"event":   envelope.Event,
		"payload": envelope.Payload,
	}, nil)
}
