package models

import "time"

// CacheEntry is a key/value row in the device-local sqlite cache.
type CacheEntry struct {
	Key       string    `gorm:"column:cache_key;type:text;primaryKey"`
	Value     string    `gorm:"column:value;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
