package model

import "time"

// Train represents a KRL train consist.
type Train struct {
	ID        string    `gorm:"primaryKey;size:32" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`

	// Associations
	Carriages []Carriage `gorm:"foreignKey:TrainID" json:"gerbong,omitempty"`
}

func (Train) TableName() string { return "krl" }

// Carriage is one car of a train, the unit of occupancy and incident observation.
type Carriage struct {
	ID               string         `gorm:"primaryKey;size:32" json:"id"`
	Name             string         `gorm:"size:128;not null" json:"name"`
	TrainID          string         `gorm:"column:krl_id;size:32;index;not null" json:"krlId"`
	HasActiveCase    bool           `gorm:"column:ada_kasus;not null;default:false" json:"adaKasus"`
	PassengerCount   int            `gorm:"column:total_penumpang;not null;default:0" json:"totalPenumpang"`
	OccupancyLabel   OccupancyLabel `gorm:"column:status_kepadatan;size:16" json:"statusKepadatan"`
	SceneDescription string         `gorm:"column:deskripsi" json:"deskripsi"`
	CreatedAt        time.Time      `gorm:"not null" json:"createdAt"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updatedAt"`

	// Associations
	Train *Train `gorm:"foreignKey:TrainID;constraint:OnDelete:CASCADE" json:"krl,omitempty"`
}

func (Carriage) TableName() string { return "gerbong" }
