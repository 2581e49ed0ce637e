package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"krl-safety-backend/internal/apperr"
	"krl-safety-backend/internal/logging"
	"krl-safety-backend/internal/metrics"
	"krl-safety-backend/internal/model"
	"krl-safety-backend/internal/store"
)

const (
	ActionNone         = "none"
	ActionUpdateStatus = "update_status"

	MessageNoCommand = "Tidak ada perintah valid di suara"
)

// VoiceOutcome is the result of a spoken or explicit voice intake.
type VoiceOutcome struct {
	Action  string      `json:"action"`
	Message string      `json:"message"`
	Updated *model.Case `json:"updated,omitempty"`
}

// ManualCase is a case reported by an officer or passenger instead of the detector.
type ManualCase struct {
	CarriageID  string         `json:"gerbongId"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	CaseType    model.CaseType `json:"caseType"`
	Source      model.Source   `json:"source"`
	Images      []string       `json:"images"`
	ReporterID  string         `json:"-"`
}

// Dispatcher receives newly created cases.
type Dispatcher interface {
	Dispatch(c model.Case)
}

// Manager moves cases through belum_ditangani, proses and selesai. Every
// write recomputes the carriage flag in the same transaction.
type Manager struct {
	store      store.Store
	dispatcher Dispatcher
	metrics    *metrics.Metrics
	now        func() time.Time
	log        *zap.Logger
}

func NewManager(s store.Store, dispatcher Dispatcher, m *metrics.Metrics, log *zap.Logger) *Manager {
	return &Manager{
		store:      s,
		dispatcher: dispatcher,
		metrics:    m,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log.Named("lifecycle"),
	}
}

// Claim assigns the officer as handler and moves the case to proses.
// A later claim by another officer replaces the handler.
func (m *Manager) Claim(ctx context.Context, caseID, officerID string) (model.Case, error) {
	now := m.now()
	return m.transition(ctx, caseID, store.StatusUpdate{
		From:           []model.CaseStatus{model.StatusUnhandled, model.StatusInProgress},
		To:             model.StatusInProgress,
		HandlerID:      &officerID,
		AcknowledgedAt: &now,
	})
}

// Arrive records that the handling officer reached the carriage.
func (m *Manager) Arrive(ctx context.Context, caseID, officerID string) (model.Case, error) {
	now := m.now()
	c, err := m.transition(ctx, caseID, store.StatusUpdate{
		From:      []model.CaseStatus{model.StatusInProgress},
		To:        model.StatusInProgress,
		ArrivedAt: &now,
	})
	if err == nil {
		logging.For(ctx, m.log).Info("officer arrived", zap.String("case_id", caseID), zap.String("officer_id", officerID))
	}
	return c, err
}

// Resolve closes the case. Resolving straight from belum_ditangani also
// stamps the acknowledgement.
func (m *Manager) Resolve(ctx context.Context, caseID, officerID, notes string) (model.Case, error) {
	now := m.now()
	upd := store.StatusUpdate{
		From:           []model.CaseStatus{model.StatusUnhandled, model.StatusInProgress},
		To:             model.StatusResolved,
		HandlerID:      &officerID,
		AcknowledgedAt: &now,
		ResolvedAt:     &now,
	}
	if notes = strings.TrimSpace(notes); notes != "" {
		upd.ResolutionNotes = &notes
	}
	return m.transition(ctx, caseID, upd)
}

// UpdateStatus routes an explicit target status to Claim or Resolve.
func (m *Manager) UpdateStatus(ctx context.Context, caseID, officerID string, status model.CaseStatus, notes string) (model.Case, error) {
	switch status {
	case model.StatusInProgress:
		return m.Claim(ctx, caseID, officerID)
	case model.StatusResolved:
		return m.Resolve(ctx, caseID, officerID, notes)
	case model.StatusUnhandled:
		return model.Case{}, fmt.Errorf("kasus %q cannot move back to %s: %w", caseID, status, apperr.ErrInvalidTransition)
	default:
		return model.Case{}, apperr.Validation("status", fmt.Sprintf("unknown status %q", status))
	}
}

// TransitionByVoiceCommand applies the command spoken in phrase, if any.
func (m *Manager) TransitionByVoiceCommand(ctx context.Context, caseID, officerID, phrase string) (VoiceOutcome, error) {
	cmd := ParseCommand(phrase)
	if cmd == CommandNone {
		return VoiceOutcome{Action: ActionNone, Message: MessageNoCommand}, nil
	}
	return m.ApplyVoiceStatus(ctx, caseID, officerID, cmd.Status())
}

// ApplyVoiceStatus moves the case to status and returns a spoken confirmation.
func (m *Manager) ApplyVoiceStatus(ctx context.Context, caseID, officerID string, status model.CaseStatus) (VoiceOutcome, error) {
	if status != model.StatusInProgress && status != model.StatusResolved {
		return VoiceOutcome{}, apperr.Validation("status", "must be proses or selesai")
	}

	updated, err := m.UpdateStatus(ctx, caseID, officerID, status, "")
	if err != nil {
		return VoiceOutcome{}, err
	}

	return VoiceOutcome{
		Action:  ActionUpdateStatus,
		Message: m.confirmation(ctx, updated, officerID),
		Updated: &updated,
	}, nil
}

func (m *Manager) confirmation(ctx context.Context, c model.Case, officerID string) string {
	officerName := officerID
	if o, err := m.store.GetOfficer(ctx, officerID); err == nil && o.Name != "" {
		officerName = o.Name
	}
	carriageName := c.CarriageID
	if c.Carriage != nil && c.Carriage.Name != "" {
		carriageName = c.Carriage.Name
	}

	if c.Status == model.StatusResolved {
		return fmt.Sprintf("Kasus di %s telah diselesaikan oleh %s.", carriageName, officerName)
	}
	return fmt.Sprintf("Kasus di %s sedang ditangani oleh %s.", carriageName, officerName)
}

// Remove deletes a case and recomputes its carriage's flag.
func (m *Manager) Remove(ctx context.Context, caseID string) (model.Case, error) {
	var removed model.Case
	err := m.store.Transaction(ctx, func(tx store.Store) error {
		c, err := tx.DeleteCase(ctx, caseID)
		if err != nil {
			return err
		}
		removed = c
		_, err = tx.RecomputeCarriageStatus(ctx, c.CarriageID)
		return err
	})
	if err != nil {
		return model.Case{}, err
	}
	logging.For(ctx, m.log).Info("case removed", zap.String("case_id", caseID), zap.String("gerbong_id", removed.CarriageID))
	return removed, nil
}

// Create opens a case reported by a person.
func (m *Manager) Create(ctx context.Context, in ManualCase) (model.Case, error) {
	in.Name = strings.TrimSpace(in.Name)
	if strings.TrimSpace(in.CarriageID) == "" {
		return model.Case{}, apperr.Validation("gerbongId", "is required")
	}
	if in.Name == "" {
		return model.Case{}, apperr.Validation("name", "is required")
	}
	if in.CaseType == "" {
		in.CaseType = model.CaseTypeOther
	}
	if !in.CaseType.Valid() {
		return model.Case{}, apperr.Validation("caseType", fmt.Sprintf("unknown case type %q", in.CaseType))
	}
	if in.Source == "" {
		in.Source = model.SourceManual
	}
	if in.Source != model.SourceManual && in.Source != model.SourceReporter {
		return model.Case{}, apperr.Validation("source", "must be manual or reporter")
	}

	c := model.Case{
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		Status:      model.StatusUnhandled,
		CaseType:    in.CaseType,
		Source:      in.Source,
		CarriageID:  in.CarriageID,
		Images:      in.Images,
	}
	if in.ReporterID != "" {
		reporter := in.ReporterID
		c.ReporterID = &reporter
	}

	err := m.store.Transaction(ctx, func(tx store.Store) error {
		if _, err := tx.GetCarriage(ctx, in.CarriageID); err != nil {
			return err
		}
		if err := tx.CreateCase(ctx, &c); err != nil {
			return err
		}
		_, err := tx.RecomputeCarriageStatus(ctx, in.CarriageID)
		return err
	})
	if err != nil {
		return model.Case{}, err
	}

	m.metrics.CaseCreated(string(c.Source))
	if m.dispatcher != nil {
		m.dispatcher.Dispatch(c)
	}
	logging.For(ctx, m.log).Info("case created",
		zap.String("case_id", c.ID),
		zap.String("gerbong_id", c.CarriageID),
		zap.String("case_type", string(c.CaseType)),
	)
	return m.store.GetCase(ctx, c.ID)
}

func (m *Manager) transition(ctx context.Context, caseID string, upd store.StatusUpdate) (model.Case, error) {
	var updated model.Case
	err := m.store.Transaction(ctx, func(tx store.Store) error {
		c, err := tx.UpdateCaseStatus(ctx, caseID, upd)
		if err != nil {
			return err
		}
		if _, err := tx.RecomputeCarriageStatus(ctx, c.CarriageID); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return model.Case{}, err
	}

	m.metrics.Transition(string(upd.To))
	logging.For(ctx, m.log).Info("case status updated",
		zap.String("case_id", caseID),
		zap.String("status", string(updated.Status)),
	)
	return m.refresh(ctx, updated), nil
}

// refresh reloads the case so the carriage flag reflects the commit.
func (m *Manager) refresh(ctx context.Context, c model.Case) model.Case {
	fresh, err := m.store.GetCase(ctx, c.ID)
	if err != nil {
		return c
	}
	return fresh
}
