package model

import "time"

// PushSubscription holds the information for an officer's browser push subscription.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey" json:"endpoint"`
	P256DH    string    `gorm:"column:p256dh;not null" json:"p256dh"`
	Auth      string    `gorm:"not null" json:"auth"`
	OfficerID string    `gorm:"column:user_id;size:64;index;not null" json:"userId"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`

	// Associations
	Officer *Officer `gorm:"foreignKey:OfficerID;constraint:OnDelete:CASCADE" json:"-"`
}
