package models

import (
	"time"
)

type User struct {
	ID            string    `json:"id" gorm:"primaryKey;type:text"`
	Email         string    `json:"email" gorm:"type:text;not null;uniqueIndex"`
	Name          string    `json:"name" gorm:"type:text"`
	PasswordHash  string    `json:"-" gorm:"type:text;not null"`
	EmailVerified bool      `json:"emailVerified" gorm:"type:boolean;not null;default:false"`
	IsAdmin       bool      `json:"isAdmin" gorm:"type:boolean;not null;default:false"`
	CDate         time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
	MDate         time.Time `json:"mdate" gorm:"autoUpdateTime"`
}
