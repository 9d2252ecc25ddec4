package models

import "time"

// ChatRoom 一个教练↔学员的固定会话
// RoomID 由两个账号名拼成（staff_customer），账号名唯一则 RoomID 唯一；
// 主键即复合键，并发重复建房由唯一约束兜底
type ChatRoom struct {
	RoomID           string     `json:"room_id" gorm:"primaryKey"`
	StaffID          uint       `json:"staff_id" gorm:"index"`
	CustomerID       uint       `json:"customer_id" gorm:"index"`
	StaffUsername    string     `json:"staff_username" gorm:"index"`
	CustomerUsername string     `json:"customer_username" gorm:"index"`
	StaffName        string     `json:"staff_name"` // 冗余存显示名，渲染列表不回表
	CustomerName     string     `json:"customer_name"`
	LastMessage      string     `json:"last_message"`
	LastMessageAt    *time.Time `json:"last_message_at"`
	StaffUnread      int        `json:"staff_unread" gorm:"default:0"`
	CustomerUnread   int        `json:"customer_unread" gorm:"default:0"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// UnreadFor 指定侧的未读数
func (r *ChatRoom) UnreadFor(side Side) int {
	if side == SideStaff {
		return r.StaffUnread
	}
	return r.CustomerUnread
}

// SideOf 账号在该房间中的侧别，非成员返回 false
func (r *ChatRoom) SideOf(username string) (Side, bool) {
	switch username {
	case r.StaffUsername:
		return SideStaff, true
	case r.CustomerUsername:
		return SideCustomer, true
	default:
		return "", false
	}
}
