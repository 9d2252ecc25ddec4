package models

import "gorm.io/gorm"

func AutoMigrateAll(db *gorm.DB) error {
	err := db.AutoMigrate(
		&User{},
		&Staff{},
		&Customer{},
		&Lesson{},
		&ChatRoom{},
		&ChatMessage{},
	)
	if err != nil {
		return err
	}
	return nil
}
