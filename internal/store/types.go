package store

import (
	"time"

	"krl-safety-backend/internal/model"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is an offset pagination request. Number is 1-based.
type Page struct {
	Number int
	Size   int
}

// Normalize clamps the page size to [1, MaxPageSize] and the number to >= 1.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	switch {
	case p.Size <= 0:
		p.Size = DefaultPageSize
	case p.Size > MaxPageSize:
		p.Size = MaxPageSize
	}
	return p
}

func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Number - 1) * p.Size
}

// CaseFilter narrows a case listing. Zero values mean "no constraint",
// except IncludeResolved: when false, resolved cases are never returned.
type CaseFilter struct {
	Statuses        []model.CaseStatus
	CaseTypes       []model.CaseType
	CarriageID      string
	TrainID         string
	OfficerID       string
	ReportedAfter   *time.Time
	IncludeResolved bool
	Search          string
}

// CaseList is one page of cases plus the unpaginated total.
type CaseList struct {
	Items []model.Case
	Total int64
}

// StatusUpdate describes one atomic lifecycle write. From lists the states the
// row must currently be in. Timestamps are applied with set-once semantics.
type StatusUpdate struct {
	From            []model.CaseStatus
	To              model.CaseStatus
	HandlerID       *string
	AcknowledgedAt  *time.Time
	ArrivedAt       *time.Time
	ResolvedAt      *time.Time
	ResolutionNotes *string
}

// CarriageUpdate holds the mutable carriage fields; nil leaves a field alone.
type CarriageUpdate struct {
	PassengerCount   *int
	OccupancyLabel   *model.OccupancyLabel
	SceneDescription *string
}

type CarriageFilter struct {
	TrainID   string
	OfficerID string
}

// Carriage health labels shown on dashboards.
const (
	HealthClear      = "tak ada masalah"
	HealthPending    = "pending"
	HealthInProgress = "on progress"
	HealthCompleted  = "completed"
)

// CaseCounts tallies a carriage's cases by status.
type CaseCounts struct {
	Total      int64 `json:"totalKasus"`
	Unhandled  int64 `json:"belum"`
	InProgress int64 `json:"proses"`
	Resolved   int64 `json:"selesai"`
}

func (c *CaseCounts) add(status model.CaseStatus, n int64) {
	c.Total += n
	switch status {
	case model.StatusUnhandled:
		c.Unhandled += n
	case model.StatusInProgress:
		c.InProgress += n
	case model.StatusResolved:
		c.Resolved += n
	}
}

// Health derives the carriage health label from its case counts.
func (c CaseCounts) Health() string {
	switch {
	case c.Total == 0:
		return HealthClear
	case c.Unhandled > 0:
		return HealthPending
	case c.InProgress > 0:
		return HealthInProgress
	default:
		return HealthCompleted
	}
}

// CarriageDetail is a carriage with its case tallies.
type CarriageDetail struct {
	model.Carriage
	Counts CaseCounts `json:"counts"`
	Health string     `json:"health"`
}

type CarriageList struct {
	Items []CarriageDetail
	Total int64
}

// TrainSummary aggregates carriage health for one train.
type TrainSummary struct {
	TrainID            string           `json:"krlId"`
	TrainName          string           `json:"krlName"`
	TotalCarriages     int              `json:"totalGerbong"`
	NormalCarriages    int              `json:"normalGerbong"`
	ProblemCarriages   int              `json:"problematicGerbong"`
	CompletedCarriages int              `json:"completedGerbong"`
	Carriages          []CarriageDetail `json:"gerbong"`
}

// SeedData provisions trains, carriages and officers.
type SeedData struct {
	Trains   []SeedTrain   `yaml:"trains"`
	Officers []SeedOfficer `yaml:"officers"`
}

type SeedTrain struct {
	ID        string         `yaml:"id"`
	Name      string         `yaml:"name"`
	Carriages []SeedCarriage `yaml:"carriages"`
}

type SeedCarriage struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type SeedOfficer struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Email       string   `yaml:"email"`
	Voice       bool     `yaml:"voice"`
	Trains      []string `yaml:"trains"`
	ActiveTrain string   `yaml:"active_train"`
}
