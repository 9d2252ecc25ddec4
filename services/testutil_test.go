package services

import (
	"fmt"
	"testing"

	"github.com/The-Morpho/drivingSchool-sub000/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq int

// newTestDB 每个测试一个独立的内存库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	testDBSeq++
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", testDBSeq)
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

// seedPair 建一对教练/学员账号和档案，返回账号名
func seedPair(t *testing.T, db *gorm.DB, staffUsername, staffName, customerUsername, customerName string) (string, string) {
	t.Helper()
	staff := models.Staff{Name: staffName}
	if err := db.Create(&staff).Error; err != nil {
		t.Fatalf("seed staff: %v", err)
	}
	customer := models.Customer{Name: customerName}
	if err := db.Create(&customer).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	staffUser := models.User{Username: staffUsername, Role: "staff", StaffID: &staff.ID}
	if err := db.Create(&staffUser).Error; err != nil {
		t.Fatalf("seed staff user: %v", err)
	}
	customerUser := models.User{Username: customerUsername, Role: "customer", CustomerID: &customer.ID}
	if err := db.Create(&customerUser).Error; err != nil {
		t.Fatalf("seed customer user: %v", err)
	}
	return staffUsername, customerUsername
}

func newRoomService(t *testing.T, db *gorm.DB) *ChatRoomService {
	t.Helper()
	return NewChatRoomService(db, NewAccountService(db))
}
