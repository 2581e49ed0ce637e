package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"krl-safety-backend/internal/apperr"
	"krl-safety-backend/internal/model"
)

// ErrNotFound and ErrInvalidTransition are returned (wrapped) by store operations.
var (
	ErrNotFound          = apperr.ErrNotFound
	ErrInvalidTransition = apperr.ErrInvalidTransition
)

// Store defines the interface for all database operations.
type Store interface {
	CreateCase(ctx context.Context, c *model.Case) error
	GetCase(ctx context.Context, id string) (model.Case, error)
	ListCases(ctx context.Context, f CaseFilter, p Page) (CaseList, error)
	UpdateCaseStatus(ctx context.Context, id string, upd StatusUpdate) (model.Case, error)
	DeleteCase(ctx context.Context, id string) (model.Case, error)
	CasesReportedSince(ctx context.Context, since time.Time, exclude []string, limit int) ([]model.Case, error)

	GetCarriage(ctx context.Context, id string) (CarriageDetail, error)
	ListCarriages(ctx context.Context, f CarriageFilter, p Page) (CarriageList, error)
	UpdateCarriage(ctx context.Context, id string, upd CarriageUpdate) (model.Carriage, error)
	RecomputeCarriageStatus(ctx context.Context, carriageID string) (bool, error)

	ListTrains(ctx context.Context) ([]model.Train, error)
	TrainSummaries(ctx context.Context, officerID string) ([]TrainSummary, error)

	GetOfficer(ctx context.Context, id string) (model.Officer, error)
	UpdateVoicePreference(ctx context.Context, officerID string, active bool) (model.Officer, error)
	SelectTrain(ctx context.Context, officerID, trainID string) (model.TrainAssignment, error)
	ActiveTrain(ctx context.Context, officerID string) (*model.TrainAssignment, error)

	UpsertSubscription(ctx context.Context, sub model.PushSubscription) error
	GetSubscription(ctx context.Context, officerID, endpoint string) (model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, officerID, endpoint string) error
	DeleteSubscriptionByEndpoint(ctx context.Context, endpoint string) error
	SubscriptionsForTrain(ctx context.Context, trainID string) ([]model.PushSubscription, error)

	Seed(ctx context.Context, data SeedData) error
	Transaction(ctx context.Context, fn func(Store) error) error
	Ping(ctx context.Context) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db, now: utcNow}
}

func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Transaction runs fn against a store bound to a single database transaction.
func (s *gormStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx, now: s.now})
	})
}

func (s *gormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func notFoundOr(err error, entity, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(entity, id)
	}
	return fmt.Errorf("failed to load %s %q: %w", entity, id, err)
}
