package models

import "time"

// Lesson 课程记录，同时是教练↔学员关系的来源：
// 创建课程会触发 lesson.created 事件，由聊天侧据此建房
type Lesson struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	StaffID    uint      `json:"staff_id" gorm:"index"`
	CustomerID uint      `json:"customer_id" gorm:"index"`
	ScheduleAt time.Time `json:"schedule_at"`
	Duration   int       `json:"duration"`                          // 分钟
	Status     string    `json:"status" gorm:"default:'scheduled'"` // scheduled, done, cancelled
	Note       string    `json:"note"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
