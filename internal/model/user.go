package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a staff member who unlocks a device with a numeric PIN.
// Role: "admin" | "manager" | "technician"
type User struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"not null"`
	// PinCode is compared by exact value; uniqueness is checked on creation only.
	PinCode  string `gorm:"column:pin_code;type:varchar(8);not null;index"`
	Role     string `gorm:"type:varchar(20);not null;default:'technician'"`
	Timezone string `gorm:"type:varchar(64);not null;default:'America/Los_Angeles'"`
	// Shift window shown on the dashboard, HH:MM in Timezone
	SessionStartTime string `gorm:"type:varchar(5);not null;default:'09:00'"`
	SessionEndTime   string `gorm:"type:varchar(5);not null;default:'19:00'"`
	Active           bool   `gorm:"not null;default:true"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
