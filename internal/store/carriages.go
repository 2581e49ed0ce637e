package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"krl-safety-backend/internal/apperr"
	"krl-safety-backend/internal/model"
)

type statusCountRow struct {
	CarriageID string `gorm:"column:gerbong_id"`
	Status     model.CaseStatus
	N          int64
}

// caseCounts aggregates case status counts for the given carriages in one query.
func (s *gormStore) caseCounts(ctx context.Context, carriageIDs []string) (map[string]CaseCounts, error) {
	out := make(map[string]CaseCounts, len(carriageIDs))
	if len(carriageIDs) == 0 {
		return out, nil
	}

	var rows []statusCountRow
	err := s.db.WithContext(ctx).
		Model(&model.Case{}).
		Select("gerbong_id, status, COUNT(*) AS n").
		Where("gerbong_id IN ?", carriageIDs).
		Group("gerbong_id, status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate case counts: %w", err)
	}

	for _, r := range rows {
		c := out[r.CarriageID]
		c.add(r.Status, r.N)
		out[r.CarriageID] = c
	}
	return out, nil
}

func detailFor(c model.Carriage, counts CaseCounts) CarriageDetail {
	return CarriageDetail{Carriage: c, Counts: counts, Health: counts.Health()}
}

// GetCarriage loads a carriage with its train and case tallies.
func (s *gormStore) GetCarriage(ctx context.Context, id string) (CarriageDetail, error) {
	var c model.Carriage
	if err := s.db.WithContext(ctx).Preload("Train").First(&c, "id = ?", id).Error; err != nil {
		return CarriageDetail{}, notFoundOr(err, "gerbong", id)
	}
	counts, err := s.caseCounts(ctx, []string{c.ID})
	if err != nil {
		return CarriageDetail{}, err
	}
	return detailFor(c, counts[c.ID]), nil
}

func carriageFilterScope(f CarriageFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.TrainID != "" {
			db = db.Where("krl_id = ?", f.TrainID)
		}
		if f.OfficerID != "" {
			db = db.Where("krl_id IN (?)",
				db.Session(&gorm.Session{NewDB: true}).Model(&model.TrainAssignment{}).
					Select("krl_id").Where("user_id = ?", f.OfficerID))
		}
		return db
	}
}

func (s *gormStore) ListCarriages(ctx context.Context, f CarriageFilter, p Page) (CarriageList, error) {
	p = p.Normalize()

	var total int64
	if err := s.db.WithContext(ctx).Model(&model.Carriage{}).Scopes(carriageFilterScope(f)).Count(&total).Error; err != nil {
		return CarriageList{}, fmt.Errorf("failed to count carriages: %w", err)
	}

	var carriages []model.Carriage
	err := s.db.WithContext(ctx).
		Scopes(carriageFilterScope(f)).
		Preload("Train").
		Order("krl_id").Order("name").
		Limit(p.Size).Offset(p.Offset()).
		Find(&carriages).Error
	if err != nil {
		return CarriageList{}, fmt.Errorf("failed to list carriages: %w", err)
	}

	ids := make([]string, len(carriages))
	for i, c := range carriages {
		ids[i] = c.ID
	}
	counts, err := s.caseCounts(ctx, ids)
	if err != nil {
		return CarriageList{}, err
	}

	items := make([]CarriageDetail, 0, len(carriages))
	for _, c := range carriages {
		items = append(items, detailFor(c, counts[c.ID]))
	}
	return CarriageList{Items: items, Total: total}, nil
}

// UpdateCarriage writes the non-nil fields of upd.
func (s *gormStore) UpdateCarriage(ctx context.Context, id string, upd CarriageUpdate) (model.Carriage, error) {
	updates := map[string]interface{}{"updated_at": s.now()}
	if upd.PassengerCount != nil {
		updates["total_penumpang"] = *upd.PassengerCount
	}
	if upd.OccupancyLabel != nil {
		updates["status_kepadatan"] = *upd.OccupancyLabel
	}
	if upd.SceneDescription != nil {
		updates["deskripsi"] = *upd.SceneDescription
	}

	res := s.db.WithContext(ctx).Model(&model.Carriage{}).Where("id = ?", id).UpdateColumns(updates)
	if res.Error != nil {
		return model.Carriage{}, fmt.Errorf("failed to update carriage %q: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return model.Carriage{}, apperr.NotFound("gerbong", id)
	}

	var c model.Carriage
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return model.Carriage{}, notFoundOr(err, "gerbong", id)
	}
	return c, nil
}

// RecomputeCarriageStatus sets ada_kasus from whether the carriage has any
// unresolved case, and returns the new value.
func (s *gormStore) RecomputeCarriageStatus(ctx context.Context, carriageID string) (bool, error) {
	var open int64
	err := s.db.WithContext(ctx).
		Model(&model.Case{}).
		Where("gerbong_id = ? AND status <> ?", carriageID, model.StatusResolved).
		Count(&open).Error
	if err != nil {
		return false, fmt.Errorf("failed to count open cases for carriage %q: %w", carriageID, err)
	}

	active := open > 0
	res := s.db.WithContext(ctx).
		Model(&model.Carriage{}).
		Where("id = ?", carriageID).
		UpdateColumns(map[string]interface{}{"ada_kasus": active, "updated_at": s.now()})
	if res.Error != nil {
		return false, fmt.Errorf("failed to update carriage %q: %w", carriageID, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, apperr.NotFound("gerbong", carriageID)
	}
	return active, nil
}

// ListTrains returns every train with its carriages.
func (s *gormStore) ListTrains(ctx context.Context) ([]model.Train, error) {
	var trains []model.Train
	err := s.db.WithContext(ctx).
		Preload("Carriages", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).
		Order("name").
		Find(&trains).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list trains: %w", err)
	}
	return trains, nil
}

// TrainSummaries aggregates carriage health per train. With an officer id only
// the trains assigned to that officer are included.
func (s *gormStore) TrainSummaries(ctx context.Context, officerID string) ([]TrainSummary, error) {
	q := s.db.WithContext(ctx).
		Preload("Carriages", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).
		Order("name")
	if officerID != "" {
		q = q.Where("id IN (?)",
			s.db.WithContext(ctx).Model(&model.TrainAssignment{}).Select("krl_id").Where("user_id = ?", officerID))
	}

	var trains []model.Train
	if err := q.Find(&trains).Error; err != nil {
		return nil, fmt.Errorf("failed to load trains: %w", err)
	}

	var ids []string
	for _, t := range trains {
		for _, c := range t.Carriages {
			ids = append(ids, c.ID)
		}
	}
	counts, err := s.caseCounts(ctx, ids)
	if err != nil {
		return nil, err
	}

	summaries := make([]TrainSummary, 0, len(trains))
	for _, t := range trains {
		sum := TrainSummary{
			TrainID:        t.ID,
			TrainName:      t.Name,
			TotalCarriages: len(t.Carriages),
			Carriages:      make([]CarriageDetail, 0, len(t.Carriages)),
		}
		for _, c := range t.Carriages {
			d := detailFor(c, counts[c.ID])
			if c.HasActiveCase {
				sum.ProblemCarriages++
			} else {
				sum.NormalCarriages++
			}
			if d.Health == HealthCompleted {
				sum.CompletedCarriages++
			}
			sum.Carriages = append(sum.Carriages, d)
		}
		summaries = append(summaries, sum)
	}
	return summaries, nil
}
