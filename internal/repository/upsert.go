package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// createOrUpdate inserts record. If a row with the same natural key already
// exists the insert fails with gorm.ErrDuplicatedKey; that row is then read
// back and updated instead. created reports which branch was taken.
func createOrUpdate[T any](ctx context.Context, db *gorm.DB, record *T, key map[string]interface{}, updates map[string]interface{}) (result *T, created bool, err error) {
	err = db.WithContext(ctx).Create(record).Error
	if err == nil {
		return record, true, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, false, err
	}

	var existing T
	if err := db.WithContext(ctx).Where(key).First(&existing).Error; err != nil {
		return nil, false, err
	}
	if len(updates) > 0 {
		if err := db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
			return nil, false, err
		}
		if err := db.WithContext(ctx).Where(key).First(&existing).Error; err != nil {
			return nil, false, err
		}
	}
	return &existing, false, nil
}
