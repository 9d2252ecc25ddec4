package services

import (
	"errors"
	"testing"
	"time"

	"github.com/The-Morpho/drivingSchool-sub000/models"
)

// 幂等建房：同一配对两次调用返回同一个房间，库里只有一行
func TestCreateOrGetRoomIdempotent(t *testing.T) {
	db := newTestDB(t)
	seedPair(t, db, "alice", "Alice Chen", "bob", "Bob Wang")
	rooms := newRoomService(t, db)

	first, err := rooms.CreateOrGetRoom("alice", "bob")
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if first.RoomID != "alice_bob" {
		t.Errorf("room id = %q, want alice_bob", first.RoomID)
	}
	if first.StaffName != "Alice Chen" || first.CustomerName != "Bob Wang" {
		t.Errorf("display names not denormalized: %q / %q", first.StaffName, first.CustomerName)
	}

	// 第二次调用前把计数弄脏，验证不会被覆盖
	if err := rooms.RecordIncomingMessage("alice_bob", models.SideStaff, "hi", time.Now()); err != nil {
		t.Fatalf("record message: %v", err)
	}

	second, err := rooms.CreateOrGetRoom("alice", "bob")
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if second.RoomID != first.RoomID {
		t.Errorf("second call returned different room: %q", second.RoomID)
	}
	if second.CustomerUnread != 1 {
		t.Errorf("existing room counters overwritten: customer unread = %d, want 1", second.CustomerUnread)
	}

	var count int64
	db.Model(&models.ChatRoom{}).Count(&count)
	if count != 1 {
		t.Errorf("room count = %d, want 1", count)
	}
}

func TestCreateOrGetRoomUnknownAccount(t *testing.T) {
	db := newTestDB(t)
	seedPair(t, db, "alice", "Alice Chen", "bob", "Bob Wang")
	rooms := newRoomService(t, db)

	if _, err := rooms.CreateOrGetRoom("alice", "nobody"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("missing customer: err = %v, want ErrAccountNotFound", err)
	}
	if _, err := rooms.CreateOrGetRoom("nobody", "bob"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("missing staff: err = %v, want ErrAccountNotFound", err)
	}
	// 两个账号但侧别不对
	if _, err := rooms.CreateOrGetRoom("bob", "alice"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("swapped sides: err = %v, want ErrProfileNotFound", err)
	}
}

// 未读记账：A 连发 N 条，B 侧未读等于 N；B 清零不影响 A 侧
func TestUnreadAccounting(t *testing.T) {
	db := newTestDB(t)
	seedPair(t, db, "alice", "Alice Chen", "bob", "Bob Wang")
	rooms := newRoomService(t, db)

	room, err := rooms.CreateOrGetRoom("alice", "bob")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	const n = 5
	for i := 0; i < n; i++ {
		if err := rooms.RecordIncomingMessage(room.RoomID, models.SideStaff, "msg", time.Now()); err != nil {
			t.Fatalf("record message %d: %v", i, err)
		}
	}
	// 学员也回了一条，给教练侧加一
	if err := rooms.RecordIncomingMessage(room.RoomID, models.SideCustomer, "reply", time.Now()); err != nil {
		t.Fatalf("record reply: %v", err)
	}

	got, err := rooms.GetRoom(room.RoomID)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if got.CustomerUnread != n {
		t.Errorf("customer unread = %d, want %d", got.CustomerUnread, n)
	}
	if got.StaffUnread != 1 {
		t.Errorf("staff unread = %d, want 1", got.StaffUnread)
	}
	if got.LastMessage != "reply" {
		t.Errorf("last message = %q, want reply", got.LastMessage)
	}

	if err := rooms.MarkRead(room.RoomID, models.SideCustomer); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	got, _ = rooms.GetRoom(room.RoomID)
	if got.CustomerUnread != 0 {
		t.Errorf("customer unread after mark read = %d, want 0", got.CustomerUnread)
	}
	if got.StaffUnread != 1 {
		t.Errorf("staff unread touched by customer mark read: %d, want 1", got.StaffUnread)
	}

	// 幂等
	if err := rooms.MarkRead(room.RoomID, models.SideCustomer); err != nil {
		t.Fatalf("second mark read: %v", err)
	}
}

func TestRecordIncomingMessageRoomMissing(t *testing.T) {
	db := newTestDB(t)
	rooms := newRoomService(t, db)

	err := rooms.RecordIncomingMessage("no_such_room", models.SideStaff, "hi", time.Now())
	if !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("err = %v, want ErrRoomNotFound", err)
	}
}

// 列表排序：最近消息优先，没聊过的排最后
func TestListRoomsForParticipantOrdering(t *testing.T) {
	db := newTestDB(t)
	seedPair(t, db, "alice", "Alice Chen", "bob", "Bob Wang")
	seedPair(t, db, "carol", "Carol Li", "dave", "Dave Liu")
	rooms := newRoomService(t, db)

	r1, err := rooms.CreateOrGetRoom("alice", "bob")
	if err != nil {
		t.Fatalf("create r1: %v", err)
	}
	if _, err := rooms.CreateOrGetRoom("carol", "dave"); err != nil {
		t.Fatalf("create r2: %v", err)
	}

	// alice_bob 聊过，carol_dave 没聊过
	if err := rooms.RecordIncomingMessage(r1.RoomID, models.SideCustomer, "newest", time.Now()); err != nil {
		t.Fatalf("record: %v", err)
	}

	list, err := rooms.ListRoomsForParticipant("bob", models.SideCustomer)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("bob rooms = %d, want 1", len(list))
	}

	staffList, err := rooms.ListRoomsForParticipant("alice", models.SideStaff)
	if err != nil {
		t.Fatalf("list staff: %v", err)
	}
	if len(staffList) != 1 || staffList[0].RoomID != "alice_bob" {
		t.Fatalf("alice rooms unexpected: %+v", staffList)
	}

	all, err := rooms.ListAllRooms()
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all rooms = %d, want 2", len(all))
	}
	// 有最近消息的 alice_bob 排在没聊过的前面
	if all[0].RoomID != "alice_bob" {
		t.Errorf("ordering: first = %q, want alice_bob", all[0].RoomID)
	}
}

// 删房级联删消息；重建是全新房间，不带旧历史
func TestDeleteRoomCascadesAndRecreateIsFresh(t *testing.T) {
	db := newTestDB(t)
	seedPair(t, db, "alice", "Alice Chen", "bob", "Bob Wang")
	rooms := newRoomService(t, db)
	messages := NewChatMessageService(db)

	room, err := rooms.CreateOrGetRoom("alice", "bob")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := messages.Append(room.RoomID, "alice", "Alice Chen", models.RoleStaff, "hello"); err != nil {
			t.Fatalf("append: %v", err)
		}
		if err := rooms.RecordIncomingMessage(room.RoomID, models.SideStaff, "hello", time.Now()); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	if err := rooms.DeleteRoom(room.RoomID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := rooms.GetRoom(room.RoomID); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("room still present after delete: %v", err)
	}
	var msgCount int64
	db.Model(&models.ChatMessage{}).Where("room_id = ?", room.RoomID).Count(&msgCount)
	if msgCount != 0 {
		t.Errorf("messages left after delete = %d, want 0", msgCount)
	}

	if err := rooms.DeleteRoom(room.RoomID); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("second delete: err = %v, want ErrRoomNotFound", err)
	}

	recreated, err := rooms.CreateOrGetRoom("alice", "bob")
	if err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if recreated.CustomerUnread != 0 || recreated.StaffUnread != 0 || recreated.LastMessage != "" {
		t.Errorf("recreated room carries old state: %+v", recreated)
	}
	page, err := messages.Page(recreated.RoomID, 50, 0)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(page.Messages) != 0 {
		t.Errorf("recreated room resurrected %d messages", len(page.Messages))
	}
}

// 按课程关系补建房间
func TestSyncRoomsFromLessons(t *testing.T) {
	db := newTestDB(t)
	seedPair(t, db, "alice", "Alice Chen", "bob", "Bob Wang")
	rooms := newRoomService(t, db)

	var staffUser, customerUser models.User
	db.Where("username = ?", "alice").First(&staffUser)
	db.Where("username = ?", "bob").First(&customerUser)

	// 同一配对两节课，只应建一个房间；无账号的配对计入 failed
	for i := 0; i < 2; i++ {
		lesson := models.Lesson{StaffID: *staffUser.StaffID, CustomerID: *customerUser.CustomerID, ScheduleAt: time.Now()}
		if err := db.Create(&lesson).Error; err != nil {
			t.Fatalf("seed lesson: %v", err)
		}
	}
	orphan := models.Lesson{StaffID: 999, CustomerID: 999, ScheduleAt: time.Now()}
	if err := db.Create(&orphan).Error; err != nil {
		t.Fatalf("seed orphan lesson: %v", err)
	}

	synced, failed, err := rooms.SyncRoomsFromLessons()
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if synced != 1 {
		t.Errorf("synced = %d, want 1", synced)
	}
	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
	if _, err := rooms.GetRoom("alice_bob"); err != nil {
		t.Errorf("room not created by sync: %v", err)
	}
}
