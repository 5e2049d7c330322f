package database

import (
	"context"

	"gorm.io/gorm"
)

// inserts a single crash record into the database
func AddCrashRecord(ctx context.Context, db *gorm.DB, record *CrashRecord) error {
	if record == nil {
		return nil
	}
	return db.WithContext(ctx).Create(record).Error
}
