package models

import "time"

// User 登录账号，通过 StaffID / CustomerID 关联到档案
type User struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Username   string    `json:"username" gorm:"uniqueIndex"`
	Password   string    `json:"-"`    // bcrypt hash
	Role       string    `json:"role"` // staff, customer, admin...，读取时经 NormalizeRole
	StaffID    *uint     `json:"staff_id,omitempty" gorm:"index"`
	CustomerID *uint     `json:"customer_id,omitempty" gorm:"index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type AuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	User        User   `json:"user"`
}
