package handlers

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/The-Morpho/drivingSchool-sub000/limiter"
	"github.com/The-Morpho/drivingSchool-sub000/models"
	"github.com/The-Morpho/drivingSchool-sub000/services"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq int

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	testDBSeq++
	dsn := fmt.Sprintf("file:handlertest%d?mode=memory&cache=shared", testDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := models.AutoMigrateAll(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func seedPair(t *testing.T, db *gorm.DB, staffUsername, staffName, customerUsername, customerName string) {
	t.Helper()
	staff := models.Staff{Name: staffName}
	if err := db.Create(&staff).Error; err != nil {
		t.Fatalf("seed staff: %v", err)
	}
	customer := models.Customer{Name: customerName}
	if err := db.Create(&customer).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	if err := db.Create(&models.User{Username: staffUsername, Role: "staff", StaffID: &staff.ID}).Error; err != nil {
		t.Fatalf("seed staff user: %v", err)
	}
	if err := db.Create(&models.User{Username: customerUsername, Role: "customer", CustomerID: &customer.ID}).Error; err != nil {
		t.Fatalf("seed customer user: %v", err)
	}
}

type testGateway struct {
	db       *gorm.DB
	rooms    *services.ChatRoomService
	messages *services.ChatMessageService
	hub      *ChatHub
	server   *httptest.Server
}

// newTestGateway 起一个网关实例，Redis 置空即降级的单进程模式
func newTestGateway(t *testing.T) *testGateway {
	t.Helper()
	db := newTestDB(t)
	accounts := services.NewAccountService(db)
	rooms := services.NewChatRoomService(db, accounts)
	messages := services.NewChatMessageService(db)
	hub := NewChatHub()
	broker := NewChatBroker(nil, hub)
	lim := limiter.NewManager(nil, &limiter.FixedWindowStrategy{})
	handler := NewChatWebSocketHandler(rooms, messages, hub, broker, lim)

	e := echo.New()
	e.GET("/chat/ws", handler.HandleWebSocket)
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)

	return &testGateway{db: db, rooms: rooms, messages: messages, hub: hub, server: server}
}

type wsEvent struct {
	Event   string                 `json:"event"`
	Payload map[string]interface{} `json:"payload"`
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func (g *testGateway) dial(t *testing.T) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(g.server.URL, "http") + "/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(event string, payload map[string]interface{}) {
	c.t.Helper()
	if err := c.conn.WriteJSON(map[string]interface{}{"event": event, "payload": payload}); err != nil {
		c.t.Fatalf("send %s: %v", event, err)
	}
}

// expect 读取下一个事件并校验类型
func (c *wsClient) expect(event string) wsEvent {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev wsEvent
	if err := c.conn.ReadJSON(&ev); err != nil {
		c.t.Fatalf("waiting for %s: %v", event, err)
	}
	if ev.Event != event {
		c.t.Fatalf("got event %q (payload %v), want %q", ev.Event, ev.Payload, event)
	}
	return ev
}

// expectSilence 一段时间内不应有任何事件
func (c *wsClient) expectSilence(d time.Duration) {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(d))
	var ev wsEvent
	if err := c.conn.ReadJSON(&ev); err == nil {
		c.t.Fatalf("unexpected event %q: %v", ev.Event, ev.Payload)
	}
}

// authenticate 完成握手并吃掉 authenticated + rooms_joined 两个回包
func (c *wsClient) authenticate(username, role string) wsEvent {
	c.t.Helper()
	c.send("authenticate", map[string]interface{}{"username": username, "role": role})
	ack := c.expect("authenticated")
	if success, _ := ack.Payload["success"].(bool); !success {
		c.t.Fatalf("authenticate failed: %v", ack.Payload)
	}
	return c.expect("rooms_joined")
}

func payloadRooms(t *testing.T, ev wsEvent) []map[string]interface{} {
	t.Helper()
	raw, err := json.Marshal(ev.Payload["rooms"])
	if err != nil {
		t.Fatal(err)
	}
	var rooms []map[string]interface{}
	if err := json.Unmarshal(raw, &rooms); err != nil {
		t.Fatalf("rooms payload: %v", err)
	}
	return rooms
}
