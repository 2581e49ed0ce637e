package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"krl-safety-backend/internal/apperr"
	"krl-safety-backend/internal/model"
)

func (s *gormStore) GetOfficer(ctx context.Context, id string) (model.Officer, error) {
	var o model.Officer
	if err := s.db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		return model.Officer{}, notFoundOr(err, "user", id)
	}
	return o, nil
}

func (s *gormStore) UpdateVoicePreference(ctx context.Context, officerID string, active bool) (model.Officer, error) {
	res := s.db.WithContext(ctx).
		Model(&model.Officer{}).
		Where("id = ?", officerID).
		UpdateColumns(map[string]interface{}{"is_voice_active": active, "updated_at": s.now()})
	if res.Error != nil {
		return model.Officer{}, fmt.Errorf("failed to update voice preference: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.Officer{}, apperr.NotFound("user", officerID)
	}
	return s.GetOfficer(ctx, officerID)
}

// SelectTrain makes trainID the officer's only active assignment, creating
// the assignment when the officer was never linked to that train.
func (s *gormStore) SelectTrain(ctx context.Context, officerID, trainID string) (model.TrainAssignment, error) {
	var assignment model.TrainAssignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var train model.Train
		if err := tx.Select("id").First(&train, "id = ?", trainID).Error; err != nil {
			return notFoundOr(err, "krl", trainID)
		}

		if err := tx.Model(&model.TrainAssignment{}).
			Where("user_id = ?", officerID).
			UpdateColumn("is_active", false).Error; err != nil {
			return fmt.Errorf("failed to deactivate assignments: %w", err)
		}

		now := s.now()
		res := tx.Model(&model.TrainAssignment{}).
			Where("user_id = ? AND krl_id = ?", officerID, trainID).
			UpdateColumns(map[string]interface{}{"is_active": true, "assigned_from": now})
		if res.Error != nil {
			return fmt.Errorf("failed to activate assignment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			assignment = model.TrainAssignment{
				OfficerID:    officerID,
				TrainID:      trainID,
				IsActive:     true,
				Role:         model.RoleGuard,
				AssignedFrom: &now,
				CreatedAt:    now,
			}
			if err := tx.Omit(clause.Associations).Create(&assignment).Error; err != nil {
				return fmt.Errorf("failed to create assignment: %w", err)
			}
			return nil
		}
		return tx.First(&assignment, "user_id = ? AND krl_id = ?", officerID, trainID).Error
	})
	if err != nil {
		return model.TrainAssignment{}, err
	}
	return assignment, nil
}

// ActiveTrain returns the officer's active assignment, or nil when none is active.
func (s *gormStore) ActiveTrain(ctx context.Context, officerID string) (*model.TrainAssignment, error) {
	var a model.TrainAssignment
	err := s.db.WithContext(ctx).
		Preload("Train").
		Where("user_id = ? AND is_active = ?", officerID, true).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active train: %w", err)
	}
	return &a, nil
}
