package model

import (
	"time"
)

type UserRole string

const (
	Educator UserRole = "educator"
	Admin    UserRole = "admin"
)

// swagger:model User
type User struct {
	BaseModel
	Name         string    `gorm:"size:100;not null" json:"name"`
	Email        string    `gorm:"size:100;unique;not null" json:"email"`
	Password     string    `gorm:"size:100;not null" json:"-"`
	Role         UserRole  `gorm:"type:enum('educator','admin');default:'educator'" json:"role"`
	Organization string    `gorm:"size:255" json:"organization"`
	JobTitle     string    `gorm:"size:100" json:"jobTitle"`
	Language     string    `gorm:"size:10;default:'en'" json:"language"`
	LastLogin    time.Time `gorm:"default:CURRENT_TIMESTAMP(3)" json:"lastLogin"`
}

func (User) TableName() string {
	return "users"
}
