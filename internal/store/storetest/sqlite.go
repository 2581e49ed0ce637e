// Package storetest opens throwaway SQLite-backed stores for tests.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"krl-safety-backend/internal/db"
	"krl-safety-backend/internal/store"
)

// New returns a migrated in-memory store that is closed when t finishes.
func New(t testing.TB) (store.Store, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gormDB))
	return store.NewGormStore(gormDB), gormDB
}

// Fixture is the default data set: two trains, three carriages, two officers.
var Fixture = store.SeedData{
	Trains: []store.SeedTrain{
		{ID: "krl1", Name: "KRL Bogor 1", Carriages: []store.SeedCarriage{
			{ID: "g1", Name: "Gerbong 1"},
			{ID: "g2", Name: "Gerbong 2"},
		}},
		{ID: "krl2", Name: "KRL Bekasi 2", Carriages: []store.SeedCarriage{
			{ID: "g3", Name: "Gerbong 3"},
		}},
	},
	Officers: []store.SeedOfficer{
		{ID: "u1", Name: "Budi", Email: "budi@example.com", Trains: []string{"krl1"}, ActiveTrain: "krl1"},
		{ID: "u2", Name: "Sari", Email: "sari@example.com", Trains: []string{"krl1", "krl2"}, ActiveTrain: "krl2"},
	},
}

// Seeded returns a store loaded with Fixture.
func Seeded(t testing.TB) (store.Store, *gorm.DB) {
	t.Helper()
	s, gormDB := New(t)
	require.NoError(t, s.Seed(context.Background(), Fixture))
	return s, gormDB
}
