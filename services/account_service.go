package services

import (
	"errors"

	"github.com/The-Morpho/drivingSchool-sub000/models"

	"gorm.io/gorm"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrProfileNotFound = errors.New("profile not found")
)

// AccountProfile 账号解析结果：角色 + 关联档案的显示名
type AccountProfile struct {
	Username    string
	Role        models.Role
	StaffID     uint
	CustomerID  uint
	DisplayName string
}

// AccountService 聊天核心依赖的账号/档案解析
type AccountService struct {
	db *gorm.DB
}

func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{db: db}
}

// ResolveAccount 账号名 -> 角色与档案显示名
func (s *AccountService) ResolveAccount(username string) (*AccountProfile, error) {
	var user models.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	profile := &AccountProfile{
		Username: user.Username,
		Role:     models.NormalizeRole(user.Role),
	}

	switch {
	case profile.Role.IsStaff() && user.StaffID != nil:
		var staff models.Staff
		if err := s.db.First(&staff, *user.StaffID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrProfileNotFound
			}
			return nil, err
		}
		profile.StaffID = staff.ID
		profile.DisplayName = staff.Name
	case profile.Role.IsCustomer() && user.CustomerID != nil:
		var customer models.Customer
		if err := s.db.First(&customer, *user.CustomerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrProfileNotFound
			}
			return nil, err
		}
		profile.CustomerID = customer.ID
		profile.DisplayName = customer.Name
	default:
		// 管理员等无档案角色，显示名退回账号名
		profile.DisplayName = user.Username
	}

	return profile, nil
}

// UsernameForStaff 教练档案 ID -> 登录账号名
func (s *AccountService) UsernameForStaff(staffID uint) (string, error) {
	var user models.User
	if err := s.db.Where("staff_id = ?", staffID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrAccountNotFound
		}
		return "", err
	}
	return user.Username, nil
}

// UsernameForCustomer 学员档案 ID -> 登录账号名
func (s *AccountService) UsernameForCustomer(customerID uint) (string, error) {
	var user models.User
	if err := s.db.Where("customer_id = ?", customerID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrAccountNotFound
		}
		return "", err
	}
	return user.Username, nil
}
