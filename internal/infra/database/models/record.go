package models

import (
	"time"
)

type Memory struct {
	ID        string    `json:"id" gorm:"primaryKey;type:text"`
	UserID    string    `json:"userId" gorm:"type:text;not null;index"`
	Name      string    `json:"name" gorm:"type:text"`
	Message   string    `json:"message" gorm:"type:text;not null"`
	MediaType string    `json:"mediaType" gorm:"type:text;not null;default:'none'"`
	MediaURL  string    `json:"mediaUrl" gorm:"type:text"`
	CDate     time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp();index"`
}

type Condolence struct {
	ID       string    `json:"id" gorm:"primaryKey;type:text"`
	UserID   string    `json:"userId" gorm:"type:text;not null;index"`
	UserName string    `json:"userName" gorm:"type:text"`
	Text     string    `json:"text" gorm:"type:text;not null"`
	Relation string    `json:"relation" gorm:"type:text"`
	CDate    time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp();index"`
}

// IdempotencyKey remembers which record a client submission produced, so a
// retried create returns the original record instead of a duplicate.
type IdempotencyKey struct {
	UserID     string    `json:"userId" gorm:"primaryKey;type:text"`
	Collection string    `json:"collection" gorm:"primaryKey;type:text"`
	Key        string    `json:"key" gorm:"primaryKey;type:text"`
	RecordID   string    `json:"recordId" gorm:"type:text;not null"`
	ExpiresAt  time.Time `json:"expiresAt" gorm:"type:timestamp with time zone;not null;index"`
	CDate      time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}
