package handlers

import (
	"log"
	"sync"
)

// ChatHub 本进程内的订阅表：房间 -> 已订阅的会话
// 一个会话可以同时订阅多个房间，跨进程投递由 ChatBroker 负责
type ChatHub struct {
	mu    sync.RWMutex
	rooms map[string]map[*ChatSession]bool
}

func NewChatHub() *ChatHub {
	return &ChatHub{
		rooms: make(map[string]map[*ChatSession]bool),
	}
}

func (h *ChatHub) Subscribe(roomID string, session *ChatSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*ChatSession]bool)
	}
	h.rooms[roomID][session] = true
}

func (h *ChatHub) Unsubscribe(roomID string, session *ChatSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sessions, ok := h.rooms[roomID]; ok {
		delete(sessions, session)
		if len(sessions) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// RemoveSession 会话断开时从所有房间摘除
func (h *ChatHub) RemoveSession(session *ChatSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for roomID, sessions := range h.rooms {
		delete(sessions, session)
		if len(sessions) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Broadcast 把事件推给房间内所有本地会话，except 不为 nil 时跳过该会话
// 会话发送缓冲打满视为掉线，直接断开，不阻塞房间广播
func (h *ChatHub) Broadcast(roomID string, data map[string]interface{}, except *ChatSession) {
	h.mu.RLock()
	sessions := make([]*ChatSession, 0, len(h.rooms[roomID]))
	for session := range h.rooms[roomID] {
		sessions = append(sessions, session)
	}
	h.mu.RUnlock()

	for _, session := range sessions {
		if session == except {
			continue
		}
		select {
		case session.Send <- data:
		default:
			log.Printf("Session %s send buffer full, disconnecting", session.ID)
			session.cancel()
		}
	}
}

// Subscribed 会话是否订阅了该房间
func (h *ChatHub) Subscribed(roomID string, session *ChatSession) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[roomID][session]
}
