package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/The-Morpho/drivingSchool-sub000/limiter"
	"github.com/The-Morpho/drivingSchool-sub000/models"
	"github.com/The-Morpho/drivingSchool-sub000/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// 发消息限流：每账号每 10 秒 30 条
const (
	sendLimit  = 30
	sendWindow = 10 * time.Second
)

// ChatSession 一条活跃连接的全部状态，断开即消失，重连要重新握手
type ChatSession struct {
	ID       string
	Username string
	Role     models.Role
	Conn     *websocket.Conn
	Send     chan map[string]interface{} // 发送队列（缓冲256条）

	mu            sync.Mutex
	authenticated bool

	ctx    context.Context
	cancel context.CancelFunc
}

// Authenticated 握手是否已完成
func (s *ChatSession) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

func (s *ChatSession) setIdentity(username string, role models.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Username = username
	s.Role = role
	s.authenticated = true
}

// ChatWebSocketHandler 聊天网关：连接级状态机 + 事件分发
type ChatWebSocketHandler struct {
	rooms    *services.ChatRoomService
	messages *services.ChatMessageService
	hub      *ChatHub
	broker   *ChatBroker
	limiter  *limiter.Manager
}

func NewChatWebSocketHandler(rooms *services.ChatRoomService, messages *services.ChatMessageService,
	hub *ChatHub, broker *ChatBroker, limiterManager *limiter.Manager) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{
		rooms:    rooms,
		messages: messages,
		hub:      hub,
		broker:   broker,
		limiter:  limiterManager,
	}
}

func (h *ChatWebSocketHandler) HandleWebSocket(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	session := &ChatSession{
		ID:     uuid.New().String(),
		Conn:   ws,
		Send:   make(chan map[string]interface{}, 256),
		ctx:    ctx,
		cancel: cancel,
	}

	go h.writePump(session)
	h.readPump(session)

	return nil
}

// 读取客户端事件
func (h *ChatWebSocketHandler) readPump(session *ChatSession) {
	defer func() {
		session.cancel()
		h.hub.RemoveSession(session)
		session.Conn.Close()
	}()

	session.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	session.Conn.SetPongHandler(func(string) error {
		session.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg struct {
			Event   string                 `json:"event"`
			Payload map[string]interface{} `json:"payload"`
		}
		err := session.Conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		h.handleEvent(session, msg.Event, msg.Payload)
	}
}

// 向客户端写事件
func (h *ChatWebSocketHandler) writePump(session *ChatSession) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		session.Conn.Close()
	}()

	for {
		select {
		case <-session.ctx.Done():
			return

		case message, ok := <-session.Send:
			session.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				session.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := session.Conn.WriteJSON(message); err != nil {
				log.Printf("WriteJSON error: %v", err)
				return
			}

		case <-ticker.C:
			session.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := session.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// emit 入队不阻塞，队列满按掉线处理
func (h *ChatWebSocketHandler) emit(session *ChatSession, event string, payload map[string]interface{}) {
	select {
	case session.Send <- map[string]interface{}{"event": event, "payload": payload}:
	default:
		log.Printf("Session %s send buffer full, disconnecting", session.ID)
		session.cancel()
	}
}

func (h *ChatWebSocketHandler) emitError(session *ChatSession, message string) {
	h.emit(session, "error", map[string]interface{}{"message": message})
}

// 事件分发
// 任何处理失败都收敛为 error 事件，连接保持打开，存储层错误不许穿透到这里以上
func (h *ChatWebSocketHandler) handleEvent(session *ChatSession, event string, payload map[string]interface{}) {
	switch event {
	case "authenticate":
		h.handleAuthenticate(session, payload)
	case "send_message":
		h.handleSendMessage(session, payload)
	case "mark_read":
		h.handleMarkRead(session, payload)
	case "typing":
		h.handleTyping(session, payload)
	default:
		h.emitError(session, "unknown event")
	}
}

func (h *ChatWebSocketHandler) handleAuthenticate(session *ChatSession, payload map[string]interface{}) {
	// 每条连接只握手一次，换身份必须重连，否则旧身份的订阅会跟着新身份走
	if session.Authenticated() {
		h.emit(session, "authenticated", map[string]interface{}{
			"success": false,
			"error":   "already authenticated",
		})
		return
	}

	username, _ := payload["username"].(string)
	roleStr, _ := payload["role"].(string)
	if username == "" || roleStr == "" {
		h.emit(session, "authenticated", map[string]interface{}{
			"success": false,
			"error":   "username and role are required",
		})
		return
	}

	// 凭证校验在外层认证系统，这里只登记身份
	role := models.NormalizeRole(roleStr)
	session.setIdentity(username, role)

	h.emit(session, "authenticated", map[string]interface{}{
		"success":  true,
		"username": username,
		"role":     string(role),
	})

	h.joinRooms(session, username, role)
}

// joinRooms 按角色加载该账号的房间，订阅并回发快照
// 未识别角色不加入任何房间，但握手本身算成功
func (h *ChatWebSocketHandler) joinRooms(session *ChatSession, username string, role models.Role) {
	var side models.Side
	switch {
	case role.IsStaff():
		side = models.SideStaff
	case role.IsCustomer():
		side = models.SideCustomer
	default:
		h.emit(session, "rooms_joined", map[string]interface{}{
			"rooms": []map[string]interface{}{},
		})
		return
	}

	rooms, err := h.rooms.ListRoomsForParticipant(username, side)
	if err != nil {
		log.Printf("Failed to load rooms for %s: %v", username, err)
		h.emitError(session, "failed to load rooms")
		return
	}

	snapshot := make([]map[string]interface{}, 0, len(rooms))
	for i := range rooms {
		room := &rooms[i]
		h.hub.Subscribe(room.RoomID, session)

		counterpartName := room.CustomerName
		counterpartUsername := room.CustomerUsername
		if side == models.SideCustomer {
			counterpartName = room.StaffName
			counterpartUsername = room.StaffUsername
		}
		snapshot = append(snapshot, map[string]interface{}{
			"room_id":              room.RoomID,
			"counterpart_name":     counterpartName,
			"counterpart_username": counterpartUsername,
			"last_message":         room.LastMessage,
			"last_message_at":      room.LastMessageAt,
			"unread_count":         room.UnreadFor(side),
		})
	}

	h.emit(session, "rooms_joined", map[string]interface{}{"rooms": snapshot})
}

func (h *ChatWebSocketHandler) handleSendMessage(session *ChatSession, payload map[string]interface{}) {
	if !session.Authenticated() {
		h.emitError(session, "not authenticated")
		return
	}
	roomID, _ := payload["room_id"].(string)
	body, _ := payload["message"].(string)
	if roomID == "" {
		h.emitError(session, "room_id is required")
		return
	}

	allowed, err := h.limiter.Allow(session.ctx, "chat:send:"+session.Username, sendLimit, sendWindow)
	if err != nil {
		// 限流依赖故障时放行
		log.Printf("Send rate limit check failed: %v", err)
	} else if !allowed {
		h.emitError(session, "too many messages, slow down")
		return
	}

	// 每次发送都重查房间：房间可能在快照之后由课程创建等旁路建出来
	room, err := h.rooms.GetRoom(roomID)
	if err != nil {
		if errors.Is(err, services.ErrRoomNotFound) {
			h.emitError(session, "room not found")
		} else {
			log.Printf("Send to room %s: lookup failed: %v", roomID, err)
			h.emitError(session, "failed to send message")
		}
		return
	}

	// 只有房间的两名成员能发言，管理员角色只读
	side, ok := room.SideOf(session.Username)
	if !ok {
		log.Printf("Send denied: %s is not a participant of %s", session.Username, roomID)
		h.emitError(session, "access denied")
		return
	}

	senderName := room.StaffName
	if side == models.SideCustomer {
		senderName = room.CustomerName
	}

	msg, err := h.messages.Append(roomID, session.Username, senderName, session.Role, body)
	if err != nil {
		if errors.Is(err, services.ErrEmptyMessage) {
			h.emitError(session, "message is empty")
		} else {
			log.Printf("Send to room %s: append failed: %v", roomID, err)
			h.emitError(session, "failed to send message")
		}
		return
	}

	if err := h.rooms.RecordIncomingMessage(roomID, side, msg.Message, msg.CreatedAt); err != nil {
		// 消息已落库，计数没跟上；只能记日志，投递继续
		log.Printf("Send to room %s: counter update failed: %v", roomID, err)
	}

	envelope := map[string]interface{}{
		"_id":             msg.ID,
		"room_id":         msg.RoomID,
		"sender_username": msg.SenderUsername,
		"sender_name":     msg.SenderName,
		"sender_role":     msg.SenderRole,
		"message":         msg.Message,
		"created_at":      msg.CreatedAt,
	}

	// 房间可能是在本次连接之后才旁路建出来的，发送成功即补订阅，保证发送方收到回显
	if !h.hub.Subscribed(roomID, session) {
		h.hub.Subscribe(roomID, session)
	}

	// 先跨实例（尽力而为），再本地直投；发送方也收回显，以服务端的 id/时间戳为准
	h.broker.Publish(roomID, "new_message", envelope)
	h.hub.Broadcast(roomID, map[string]interface{}{
		"event":   "new_message",
		"payload": envelope,
	}, nil)
}

func (h *ChatWebSocketHandler) handleMarkRead(session *ChatSession, payload map[string]interface{}) {
	if !session.Authenticated() {
		h.emitError(session, "not authenticated")
		return
	}
	roomID, _ := payload["room_id"].(string)
	if roomID == "" {
		return
	}

	room, err := h.rooms.GetRoom(roomID)
	if err != nil {
		// 房间不存在按静默处理
		if !errors.Is(err, services.ErrRoomNotFound) {
			log.Printf("Mark read %s: lookup failed: %v", roomID, err)
		}
		return
	}
	side, ok := room.SideOf(session.Username)
	if !ok {
		return
	}

	if err := h.rooms.MarkRead(roomID, side); err != nil {
		log.Printf("Mark read %s: counter reset failed: %v", roomID, err)
		h.emitError(session, "failed to mark read")
		return
	}
	if err := h.messages.MarkRoomReadForViewer(roomID, session.Username); err != nil {
		log.Printf("Mark read %s: read sweep failed: %v", roomID, err)
		h.emitError(session, "failed to mark read")
	}
}

// 输入提示只在本实例内转发，不落库也不跨实例
func (h *ChatWebSocketHandler) handleTyping(session *ChatSession, payload map[string]interface{}) {
	if !session.Authenticated() {
		return
	}
	roomID, _ := payload["room_id"].(string)
	isTyping, _ := payload["isTyping"].(bool)
	if roomID == "" || !h.hub.Subscribed(roomID, session) {
		return
	}

	h.hub.Broadcast(roomID, map[string]interface{}{
		"event": "user_typing",
		"payload": map[string]interface{}{
			"username": session.Username,
			"isTyping": isTyping,
		},
	}, session)
}
