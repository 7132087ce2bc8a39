package model

import (
	"time"

	"gorm.io/datatypes"
)

// KVEntry is one row of the MySQL-backed key-value store.
type KVEntry struct {
	Key       string         `gorm:"column:kv_key;type:varchar(191);primaryKey" json:"key"`
	Value     datatypes.JSON `gorm:"column:value;type:json;not null" json:"value"`
	ExpiresAt *time.Time     `gorm:"column:expires_at;index" json:"expires_at,omitempty"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (KVEntry) TableName() string {
	return "kv_entries"
}

// Expired reports whether the entry has passed its expiry at now.
func (e *KVEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}
