package models

import (
	"time"
)

type ArchivedMessage struct {
	ID          string    `json:"id" gorm:"type:varchar(64);primaryKey"`
	SessionID   string    `json:"session_id" gorm:"type:varchar(255);not null;index"`
	UserAddress string    `json:"user_address" gorm:"type:varchar(255);not null;index"`
	Role        string    `json:"role" gorm:"type:varchar(50);not null"`
	Content     string    `json:"content" gorm:"type:text;not null"`
	Timestamp   time.Time `json:"timestamp" gorm:"not null"`
}
