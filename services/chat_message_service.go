package services

import (
	"errors"
	"strings"
	"time"

	"github.com/The-Morpho/drivingSchool-sub000/models"

	"gorm.io/gorm"
)

var ErrEmptyMessage = errors.New("message body is empty")

// MessagePage 一页历史消息，已按时间正序排好
// HasMore 只表示“这一页是满的、后面可能还有”，不是精确计数
type MessagePage struct {
	Messages []models.ChatMessage `json:"messages"`
	HasMore  bool                 `json:"has_more"`
}

// ChatMessageService 消息存储：追加、分页、已读扫描、整房删除
type ChatMessageService struct {
	db *gorm.DB
}

func NewChatMessageService(db *gorm.DB) *ChatMessageService {
	return &ChatMessageService{db: db}
}

// Append 落一条消息，时间戳由服务端赋值，空白内容拒绝
func (s *ChatMessageService) Append(roomID, senderUsername, senderName string, senderRole models.Role, body string) (*models.ChatMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyMessage
	}
	msg := models.ChatMessage{
		RoomID:         roomID,
		SenderUsername: senderUsername,
		SenderName:     senderName,
		SenderRole:     string(senderRole),
		Message:        body,
		Read:           false,
		CreatedAt:      time.Now(),
	}
	if err := s.db.Create(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// Page 取 offset 之前最新的 limit 条，再反转成时间正序给前端
func (s *ChatMessageService) Page(roomID string, limit, offset int) (*MessagePage, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	// 多取一条探测后面还有没有，避免“最后一页刚好取满”误报
	var messages []models.ChatMessage
	err := s.db.Where("room_id = ?", roomID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit + 1).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}
	// 倒序取出，这里翻回时间正序
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return &MessagePage{
		Messages: messages,
		HasMore:  hasMore,
	}, nil
}

// MarkRoomReadForViewer 把房间里非本人发送的未读消息批量置为已读，幂等
func (s *ChatMessageService) MarkRoomReadForViewer(roomID, viewerUsername string) error {
	return s.db.Model(&models.ChatMessage{}).
		Where("room_id = ? AND sender_username <> ? AND read = ?", roomID, viewerUsername, false).
		Update("read", true).Error
}

// DeleteAllForRoom 删除房间全部消息，删房时调用
func (s *ChatMessageService) DeleteAllForRoom(roomID string) error {
	return s.db.Where("room_id = ?", roomID).Delete(&models.ChatMessage{}).Error
}

// CountForRoom 房间消息总数（管理端用）
func (s *ChatMessageService) CountForRoom(roomID string) (int64, error) {
	var count int64
	err := s.db.Model(&models.ChatMessage{}).Where("room_id = ?", roomID).Count(&count).Error
	return count, err
}
