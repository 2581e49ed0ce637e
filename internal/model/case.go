package model

import (
	"time"

	"gorm.io/datatypes"
)

// Case is an actionable incident or occupancy alert tied to a carriage.
type Case struct {
	ID                       string                      `gorm:"primaryKey;size:32" json:"id"`
	Name                     string                      `gorm:"not null" json:"name"`
	Description              string                      `gorm:"not null" json:"description"`
	Status                   CaseStatus                  `gorm:"size:20;not null;default:belum_ditangani;index" json:"status"`
	CaseType                 CaseType                    `gorm:"size:20;not null;default:lainnya" json:"caseType"`
	Source                   Source                      `gorm:"size:16;not null;default:ml" json:"source"`
	OccupancyLabel           OccupancyLabel              `gorm:"size:16" json:"occupancyLabel,omitempty"`
	OccupancyValue           *int                        `json:"occupancyValue,omitempty"`
	Images                   datatypes.JSONSlice[string] `json:"images,omitempty"`
	SupplementaryDescription string                      `gorm:"column:deskripsi_kasus" json:"deskripsiKasus,omitempty"`
	ResolutionNotes          string                      `json:"resolutionNotes,omitempty"`
	ReportedAt               time.Time                   `gorm:"not null;index" json:"reportedAt"`
	AcknowledgedAt           *time.Time                  `json:"acknowledgedAt"`
	ArrivedAt                *time.Time                  `json:"arrivedAt"`
	ResolvedAt               *time.Time                  `json:"resolvedAt"`
	CarriageID               string                      `gorm:"column:gerbong_id;size:32;index;not null" json:"gerbongId"`
	HandlerID                *string                     `gorm:"size:64;index" json:"handlerId"`
	ReporterID               *string                     `gorm:"size:64" json:"reporterId,omitempty"`
	CreatedAt                time.Time                   `gorm:"not null" json:"createdAt"`
	UpdatedAt                time.Time                   `gorm:"not null" json:"updatedAt"`

	// Associations
	Carriage *Carriage `gorm:"foreignKey:CarriageID;constraint:OnDelete:CASCADE" json:"gerbong,omitempty"`
	Handler  *Officer  `gorm:"foreignKey:HandlerID;constraint:OnDelete:SET NULL" json:"handler,omitempty"`
}

func (Case) TableName() string { return "kasus" }

// IsOpen reports whether the case still needs attention.
func (c Case) IsOpen() bool {
	return c.Status != StatusResolved
}
