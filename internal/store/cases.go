package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"krl-safety-backend/internal/apperr"
	"krl-safety-backend/internal/model"
)

// CreateCase inserts a case. It assigns an id and report time when unset.
func (s *gormStore) CreateCase(ctx context.Context, c *model.Case) error {
	if c.ID == "" {
		c.ID = model.NewID()
	}
	if c.ReportedAt.IsZero() {
		c.ReportedAt = s.now()
	}
	if c.Status == "" {
		c.Status = model.StatusUnhandled
	}
	if c.CaseType == "" {
		c.CaseType = model.CaseTypeOther
	}
	if c.Source == "" {
		c.Source = model.SourceManual
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(c).Error; err != nil {
		return fmt.Errorf("failed to create case: %w", err)
	}
	return nil
}

// GetCase loads a case with its carriage, train and handler.
func (s *gormStore) GetCase(ctx context.Context, id string) (model.Case, error) {
	var c model.Case
	err := s.db.WithContext(ctx).
		Preload("Carriage.Train").
		Preload("Handler").
		First(&c, "id = ?", id).Error
	if err != nil {
		return model.Case{}, notFoundOr(err, "kasus", id)
	}
	return c, nil
}

func caseFilterScope(f CaseFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(f.Statuses) > 0 {
			db = db.Where("status IN ?", f.Statuses)
		}
		if !f.IncludeResolved {
			db = db.Where("status <> ?", model.StatusResolved)
		}
		if len(f.CaseTypes) > 0 {
			db = db.Where("case_type IN ?", f.CaseTypes)
		}
		if f.CarriageID != "" {
			db = db.Where("gerbong_id = ?", f.CarriageID)
		}
		if f.TrainID != "" {
			db = db.Where("gerbong_id IN (?)",
				db.Session(&gorm.Session{NewDB: true}).Model(&model.Carriage{}).Select("id").Where("krl_id = ?", f.TrainID))
		}
		if f.OfficerID != "" {
			db = db.Where("gerbong_id IN (?)",
				db.Session(&gorm.Session{NewDB: true}).Table("gerbong").
					Select("gerbong.id").
					Joins("JOIN user_krl ON user_krl.krl_id = gerbong.krl_id").
					Where("user_krl.user_id = ?", f.OfficerID))
		}
		if f.ReportedAfter != nil {
			db = db.Where("reported_at > ?", *f.ReportedAfter)
		}
		if search := strings.ToLower(strings.TrimSpace(f.Search)); search != "" {
			like := "%" + search + "%"
			db = db.Where("(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)", like, like)
		}
		return db
	}
}

// ListCases returns one page of cases, newest first, and the total match count.
func (s *gormStore) ListCases(ctx context.Context, f CaseFilter, p Page) (CaseList, error) {
	p = p.Normalize()

	var total int64
	if err := s.db.WithContext(ctx).Model(&model.Case{}).Scopes(caseFilterScope(f)).Count(&total).Error; err != nil {
		return CaseList{}, fmt.Errorf("failed to count cases: %w", err)
	}

	items := make([]model.Case, 0, p.Size)
	err := s.db.WithContext(ctx).
		Scopes(caseFilterScope(f)).
		Preload("Carriage.Train").
		Preload("Handler").
		Order("reported_at DESC").Order("id DESC").
		Limit(p.Size).Offset(p.Offset()).
		Find(&items).Error
	if err != nil {
		return CaseList{}, fmt.Errorf("failed to list cases: %w", err)
	}
	return CaseList{Items: items, Total: total}, nil
}

// UpdateCaseStatus applies a guarded lifecycle write in one UPDATE statement.
// Lifecycle timestamps keep their first value.
func (s *gormStore) UpdateCaseStatus(ctx context.Context, id string, upd StatusUpdate) (model.Case, error) {
	if !upd.To.Valid() {
		return model.Case{}, apperr.Validation("status", fmt.Sprintf("unknown status %q", upd.To))
	}

	updates := map[string]interface{}{
		"status":     upd.To,
		"updated_at": s.now(),
	}
	if upd.HandlerID != nil {
		updates["handler_id"] = *upd.HandlerID
	}
	if upd.AcknowledgedAt != nil {
		updates["acknowledged_at"] = gorm.Expr("COALESCE(acknowledged_at, ?)", *upd.AcknowledgedAt)
	}
	if upd.ArrivedAt != nil {
		updates["arrived_at"] = gorm.Expr("COALESCE(arrived_at, ?)", *upd.ArrivedAt)
	}
	if upd.ResolvedAt != nil {
		updates["resolved_at"] = gorm.Expr("COALESCE(resolved_at, ?)", *upd.ResolvedAt)
	}
	if upd.ResolutionNotes != nil {
		updates["resolution_notes"] = *upd.ResolutionNotes
	}

	q := s.db.WithContext(ctx).Model(&model.Case{}).Where("id = ?", id)
	if len(upd.From) > 0 {
		q = q.Where("status IN ?", upd.From)
	}
	res := q.UpdateColumns(updates)
	if res.Error != nil {
		return model.Case{}, fmt.Errorf("failed to update case %q: %w", id, res.Error)
	}

	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&model.Case{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return model.Case{}, fmt.Errorf("failed to check case %q: %w", id, err)
		}
		if count == 0 {
			return model.Case{}, apperr.NotFound("kasus", id)
		}
		return model.Case{}, fmt.Errorf("kasus %q cannot move to %s: %w", id, upd.To, ErrInvalidTransition)
	}

	return s.GetCase(ctx, id)
}

// DeleteCase removes a case permanently and returns what was removed.
func (s *gormStore) DeleteCase(ctx context.Context, id string) (model.Case, error) {
	var removed model.Case
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&removed, "id = ?", id).Error; err != nil {
			return notFoundOr(err, "kasus", id)
		}
		return tx.Delete(&model.Case{}, "id = ?", id).Error
	})
	if err != nil {
		return model.Case{}, err
	}
	return removed, nil
}

// CasesReportedSince returns cases reported at or after since, oldest first,
// skipping ids already seen by the caller.
func (s *gormStore) CasesReportedSince(ctx context.Context, since time.Time, exclude []string, limit int) ([]model.Case, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	q := s.db.WithContext(ctx).
		Preload("Carriage").
		Where("reported_at >= ?", since)
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}

	var cases []model.Case
	if err := q.Order("reported_at ASC").Order("id ASC").Limit(limit).Find(&cases).Error; err != nil {
		return nil, fmt.Errorf("failed to query cases since %s: %w", since.Format(time.RFC3339), err)
	}
	return cases, nil
}
