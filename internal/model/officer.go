package model

import "time"

// Officer is a security officer (satpam). Identity is issued upstream; the
// row only mirrors what the service needs.
type Officer struct {
	ID            string    `gorm:"primaryKey;size:64" json:"id"`
	Name          string    `gorm:"size:128;not null" json:"name"`
	Email         string    `gorm:"size:256;uniqueIndex;not null" json:"email"`
	IsVoiceActive bool      `gorm:"not null;default:false" json:"isVoiceActive"`
	CreatedAt     time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt     time.Time `gorm:"not null" json:"updatedAt"`
}

func (Officer) TableName() string { return "user" }

// RoleGuard is the default role of a train assignment.
const RoleGuard = "satpam"

// TrainAssignment links an officer to a train. At most one assignment per
// officer is active; the store enforces that, not the schema.
type TrainAssignment struct {
	OfficerID    string     `gorm:"column:user_id;primaryKey;size:64" json:"userId"`
	TrainID      string     `gorm:"column:krl_id;primaryKey;size:32" json:"krlId"`
	IsActive     bool       `gorm:"not null;default:false" json:"isActive"`
	Role         string     `gorm:"size:32;not null;default:satpam" json:"role"`
	AssignedFrom *time.Time `json:"assignedFrom,omitempty"`
	CreatedAt    time.Time  `gorm:"not null" json:"createdAt"`

	// Associations
	Officer *Officer `gorm:"foreignKey:OfficerID;constraint:OnDelete:CASCADE" json:"-"`
	Train   *Train   `gorm:"foreignKey:TrainID;constraint:OnDelete:CASCADE" json:"krl,omitempty"`
}

func (TrainAssignment) TableName() string { return "user_krl" }
