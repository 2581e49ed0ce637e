package events

import (
	"context"
	"time"

	"krl-safety-backend/internal/model"
)

// CaseEvent is the wire form of a newly reported case.
type CaseEvent struct {
	ID             string               `json:"id"`
	Name           string               `json:"name"`
	Description    string               `json:"description"`
	Status         model.CaseStatus     `json:"status"`
	CaseType       model.CaseType       `json:"caseType"`
	Source         model.Source         `json:"source"`
	OccupancyLabel model.OccupancyLabel `json:"occupancyLabel,omitempty"`
	CarriageID     string               `json:"gerbongId"`
	CarriageName   string               `json:"gerbongName,omitempty"`
	ReportedAt     time.Time            `json:"reportedAt"`
}

// Batch holds the cases found by one poll, newest first.
type Batch struct {
	Cases []CaseEvent
}

// Notifier delivers batches of cases reported after since until ctx is done.
// The returned channel is closed when the subscription ends.
type Notifier interface {
	Subscribe(ctx context.Context, since time.Time) <-chan Batch
}

// FromCase converts a stored case. The carriage name is filled when the
// carriage was preloaded.
func FromCase(c model.Case) CaseEvent {
	ev := CaseEvent{
		ID:             c.ID,
		Name:           c.Name,
		Description:    c.Description,
		Status:         c.Status,
		CaseType:       c.CaseType,
		Source:         c.Source,
		OccupancyLabel: c.OccupancyLabel,
		CarriageID:     c.CarriageID,
		ReportedAt:     c.ReportedAt,
	}
	if c.Carriage != nil {
		ev.CarriageName = c.Carriage.Name
	}
	return ev
}
