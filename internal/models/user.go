package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID           uint   `gorm:"primaryKey"`
	UserID       string `gorm:"type:uuid;uniqueIndex"`
	Username     string `gorm:"size:100;uniqueIndex"`
	Email        string `gorm:"size:255;uniqueIndex"`
	PasswordHash string `gorm:"size:255"`
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Labs []Lab `gorm:"many2many:user_lab_association;foreignKey:ID;joinForeignKey:UserID;References:LabID;joinReferences:LabID"`
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.UserID == "" {
		u.UserID = uuid.NewString()
	}
	return nil
}
