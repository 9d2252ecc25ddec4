package services

import (
	"errors"
	"time"

	"github.com/The-Morpho/drivingSchool-sub000/models"

	"gorm.io/gorm"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrAccessDenied = errors.New("access denied")
)

// 房间列表里 last_message 的最大长度（字符）
const previewLimit = 120

// ChatRoomService 房间目录：建房、按侧列表、未读计数、级联删除
type ChatRoomService struct {
	db       *gorm.DB
	accounts *AccountService
}

func NewChatRoomService(db *gorm.DB, accounts *AccountService) *ChatRoomService {
	return &ChatRoomService{db: db, accounts: accounts}
}

// RoomKey 复合房间键：staff账号_customer账号
func RoomKey(staffUsername, customerUsername string) string {
	return staffUsername + "_" + customerUsername
}

// CreateOrGetRoom 幂等建房：已存在则原样返回，不覆盖任何字段
// 并发同时建房由主键唯一约束兜底，撞键的一方转为读取
func (s *ChatRoomService) CreateOrGetRoom(staffUsername, customerUsername string) (*models.ChatRoom, error) {
	roomID := RoomKey(staffUsername, customerUsername)

	var existing models.ChatRoom
	err := s.db.Where("room_id = ?", roomID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	staff, err := s.accounts.ResolveAccount(staffUsername)
	if err != nil {
		return nil, err
	}
	customer, err := s.accounts.ResolveAccount(customerUsername)
	if err != nil {
		return nil, err
	}
	// 两个账号必须各自解析到对应侧的档案
	if !staff.Role.IsStaff() || staff.StaffID == 0 {
		return nil, ErrProfileNotFound
	}
	if !customer.Role.IsCustomer() || customer.CustomerID == 0 {
		return nil, ErrProfileNotFound
	}

	room := models.ChatRoom{
		RoomID:           roomID,
		StaffID:          staff.StaffID,
		CustomerID:       customer.CustomerID,
		StaffUsername:    staff.Username,
		CustomerUsername: customer.Username,
		StaffName:        staff.DisplayName,
		CustomerName:     customer.DisplayName,
	}
	if err := s.db.Create(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// 输在并发建房里，改读对方刚插入的行
			if err := s.db.Where("room_id = ?", roomID).First(&existing).Error; err != nil {
				return nil, err
			}
			return &existing, nil
		}
		return nil, err
	}
	return &room, nil
}

// GetRoom 按复合键取房间
func (s *ChatRoomService) GetRoom(roomID string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	if err := s.db.Where("room_id = ?", roomID).First(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

// ListRoomsForParticipant 某账号作为指定侧参与的所有房间，最近消息优先，没聊过的排最后
func (s *ChatRoomService) ListRoomsForParticipant(username string, side models.Side) ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom
	column := "staff_username"
	if side == models.SideCustomer {
		column = "customer_username"
	}
	err := s.db.Where(column+" = ?", username).
		Order("last_message_at DESC NULLS LAST").
		Order("created_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

// ListAllRooms 管理端全量房间列表
func (s *ChatRoomService) ListAllRooms() ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom
	err := s.db.Order("last_message_at DESC NULLS LAST").
		Order("created_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

// RecordIncomingMessage 新消息入账：刷新预览、给发送方对侧加未读
// 与消息落库是两步操作，不在同一事务里；mark-read 是绝对清零，偏差不会累积
func (s *ChatRoomService) RecordIncomingMessage(roomID string, senderSide models.Side, preview string, at time.Time) error {
	if runes := []rune(preview); len(runes) > previewLimit {
		preview = string(runes[:previewLimit])
	}
	counter := "customer_unread"
	if senderSide.Opposite() == models.SideStaff {
		counter = "staff_unread"
	}
	result := s.db.Model(&models.ChatRoom{}).
		Where("room_id = ?", roomID).
		Updates(map[string]interface{}{
			"last_message":    preview,
			"last_message_at": at,
			counter:           gorm.Expr(counter+" + ?", 1),
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// MarkRead 清零指定侧的未读数，幂等
func (s *ChatRoomService) MarkRead(roomID string, side models.Side) error {
	counter := "staff_unread"
	if side == models.SideCustomer {
		counter = "customer_unread"
	}
	return s.db.Model(&models.ChatRoom{}).
		Where("room_id = ?", roomID).
		Updates(map[string]interface{}{
			counter:      0,
			"updated_at": time.Now(),
		}).Error
}

// DeleteRoom 删房并级联删消息，同一事务
func (s *ChatRoomService) DeleteRoom(roomID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var room models.ChatRoom
		if err := tx.Where("room_id = ?", roomID).First(&room).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoomNotFound
			}
			return err
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&models.ChatMessage{}).Error; err != nil {
			return err
		}
		return tx.Delete(&room).Error
	})
}

// SyncRoomsFromLessons 按既有课程关系补建房间，返回本次处理的配对数
// 单对失败只记数不中断，属于管理端的修复操作
func (s *ChatRoomService) SyncRoomsFromLessons() (synced int, failed int, err error) {
	type pair struct {
		StaffID    uint
		CustomerID uint
	}
	var pairs []pair
	err = s.db.Model(&models.Lesson{}).
		Distinct("staff_id", "customer_id").
		Find(&pairs).Error
	if err != nil {
		return 0, 0, err
	}

	for _, p := range pairs {
		staffUsername, uerr := s.accounts.UsernameForStaff(p.StaffID)
		if uerr != nil {
			failed++
			continue
		}
		customerUsername, uerr := s.accounts.UsernameForCustomer(p.CustomerID)
		if uerr != nil {
			failed++
			continue
		}
		if _, cerr := s.CreateOrGetRoom(staffUsername, customerUsername); cerr != nil {
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}
