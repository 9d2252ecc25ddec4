package models

import "strings"

// Role 系统内统一的角色类型
// 边界处（JWT 用户、websocket authenticate 事件）用 NormalizeRole 归一化一次，
// 内部只传 Role，不再做字符串比较
type Role string

const (
	RoleStaff    Role = "staff"    // 教练侧
	RoleCustomer Role = "customer" // 学员侧
	RoleObserver Role = "observer" // 管理员，只读旁观
	RoleUnknown  Role = ""
)

// NormalizeRole 大小写不敏感地把外部角色字符串映射到封闭枚举
func NormalizeRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "staff", "instructor", "teacher":
		return RoleStaff
	case "customer", "student":
		return RoleCustomer
	case "admin", "superadmin", "manager", "observer":
		return RoleObserver
	default:
		return RoleUnknown
	}
}

func (r Role) IsStaff() bool    { return r == RoleStaff }
func (r Role) IsCustomer() bool { return r == RoleCustomer }
func (r Role) IsObserver() bool { return r == RoleObserver }

// Side 房间的参与方（未读计数、已读操作都以它为维度）
type Side string

const (
	SideStaff    Side = "staff"
	SideCustomer Side = "customer"
)

// Opposite 返回对侧，新消息给对侧加未读
func (s Side) Opposite() Side {
	if s == SideStaff {
		return SideCustomer
	}
	return SideStaff
}
