package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"krl-safety-backend/internal/apperr"
	"krl-safety-backend/internal/model"
)

// Seed upserts trains, carriages, officers and their assignments. Running it
// twice with the same data is a no-op apart from names being refreshed.
func (s *gormStore) Seed(ctx context.Context, data SeedData) error {
	for _, t := range data.Trains {
		if t.ID == "" {
			return apperr.Validation("trains.id", "is required")
		}
		for _, c := range t.Carriages {
			if c.ID == "" {
				return apperr.Validation("trains.carriages.id", fmt.Sprintf("is required for train %q", t.ID))
			}
		}
	}
	for _, o := range data.Officers {
		if o.ID == "" || o.Email == "" {
			return apperr.Validation("officers", "id and email are required")
		}
	}

	now := s.now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range data.Trains {
			train := model.Train{ID: t.ID, Name: t.Name, CreatedAt: now, UpdatedAt: now}
			if err := upsertByID(tx, &train, "name", "updated_at"); err != nil {
				return fmt.Errorf("seed train %q: %w", t.ID, err)
			}
			for _, c := range t.Carriages {
				carriage := model.Carriage{ID: c.ID, Name: c.Name, TrainID: t.ID, CreatedAt: now, UpdatedAt: now}
				if err := upsertByID(tx, &carriage, "name", "krl_id", "updated_at"); err != nil {
					return fmt.Errorf("seed carriage %q: %w", c.ID, err)
				}
			}
		}

		for _, o := range data.Officers {
			officer := model.Officer{
				ID:            o.ID,
				Name:          o.Name,
				Email:         o.Email,
				IsVoiceActive: o.Voice,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := upsertByID(tx, &officer, "name", "email", "is_voice_active", "updated_at"); err != nil {
				return fmt.Errorf("seed officer %q: %w", o.ID, err)
			}

			for _, trainID := range o.Trains {
				a := model.TrainAssignment{
					OfficerID: o.ID,
					TrainID:   trainID,
					IsActive:  trainID == o.ActiveTrain,
					Role:      model.RoleGuard,
					CreatedAt: now,
				}
				if a.IsActive {
					a.AssignedFrom = &now
				}
				err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "user_id"}, {Name: "krl_id"}},
					DoUpdates: clause.AssignmentColumns([]string{"is_active", "assigned_from"}),
				}).Create(&a).Error
				if err != nil {
					return fmt.Errorf("seed assignment %s/%s: %w", o.ID, trainID, err)
				}
			}
		}
		return nil
	})
}

func upsertByID(tx *gorm.DB, value interface{}, columns ...string) error {
	return tx.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(value).Error
}
