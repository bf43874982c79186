package models

import (
	"time"

	"gorm.io/datatypes"
)

// ProgressDocument is the persistence row for one serialized ledger. One
// row per storage key; the payload is the full UserProgress JSON.
type ProgressDocument struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	StorageKey string         `gorm:"size:128;uniqueIndex;not null" json:"storage_key"`
	Payload    datatypes.JSON `gorm:"type:json;not null" json:"payload"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
