package models

import "time"

// ChatMessage 一条聊天消息，落库后不可修改，只有 Read 会被已读扫描翻转
// 排序按 CreatedAt，时间相同时按自增 ID（即插入顺序）
type ChatMessage struct {
	ID             uint      `json:"_id" gorm:"primaryKey"`
	RoomID         string    `json:"room_id" gorm:"index"`
	SenderUsername string    `json:"sender_username" gorm:"index"`
	SenderName     string    `json:"sender_name"`
	SenderRole     string    `json:"sender_role"`
	Message        string    `json:"message" gorm:"type:text"`
	Read           bool      `json:"read" gorm:"default:false"`
	CreatedAt      time.Time `json:"created_at"`
}
