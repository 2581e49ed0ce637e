package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krl-safety-backend/internal/apperr"
	"krl-safety-backend/internal/model"
	"krl-safety-backend/internal/store"
	"krl-safety-backend/internal/store/storetest"
)

func createCase(t *testing.T, s store.Store, carriageID string, status model.CaseStatus, caseType model.CaseType, reportedAt time.Time) model.Case {
	t.Helper()
	c := model.Case{
		Name:        "kasus " + string(caseType),
		Description: "deskripsi " + string(caseType),
		Status:      status,
		CaseType:    caseType,
		Source:      model.SourceManual,
		CarriageID:  carriageID,
		ReportedAt:  reportedAt,
	}
	require.NoError(t, s.CreateCase(context.Background(), &c))
	return c
}

func TestCreateAndGetCase(t *testing.T) {
	s, _ := storetest.Seeded(t)
	ctx := context.Background()

	value := 140
	c := model.Case{
		Name:           "Kepadatan High Density - 140 penumpang",
		Description:    "penuh",
		CaseType:       model.CaseTypeCrowding,
		Source:         model.SourceML,
		OccupancyLabel: model.OccupancyDense,
		OccupancyValue: &value,
		Images:         []string{"https://cdn.example.com/a.jpg"},
		CarriageID:     "g1",
	}
	require.NoError(t, s.CreateCase(ctx, &c))
	assert.NotEmpty(t, c.ID)
	assert.False(t, c.ReportedAt.IsZero())
	assert.Equal(t, model.StatusUnhandled, c.Status)

	got, err := s.GetCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OccupancyDense, got.OccupancyLabel)
	require.NotNil(t, got.OccupancyValue)
	assert.Equal(t, 140, *got.OccupancyValue)
	assert.Equal(t, model.CaseTypeCrowding, got.CaseType)
	assert.Equal(t, []string{"https://cdn.example.com/a.jpg"}, []string(got.Images))
	require.NotNil(t, got.Carriage)
	assert.Equal(t, "Gerbong 1", got.Carriage.Name)
	require.NotNil(t, got.Carriage.Train)
	assert.Equal(t, "krl1", got.Carriage.Train.ID)
	assert.Nil(t, got.Handler)

	_, err = s.GetCase(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListCases(t *testing.T) {
	s, _ := storetest.Seeded(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	c1 := createCase(t, s, "g1", model.StatusUnhandled, model.CaseTypeCrowding, base)
	c2 := createCase(t, s, "g1", model.StatusInProgress, model.CaseTypeTheft, base.Add(time.Minute))
	c3 := createCase(t, s, "g2", model.StatusResolved, model.CaseTypeHarassment, base.Add(2*time.Minute))
	c4 := createCase(t, s, "g3", model.StatusUnhandled, model.CaseTypeEmergency, base.Add(3*time.Minute))
	// same instant as c4; ids break the tie
	c5 := createCase(t, s, "g3", model.StatusUnhandled, model.CaseTypeOther, base.Add(3*time.Minute))

	ids := func(list store.CaseList) []string {
		out := make([]string, len(list.Items))
		for i, c := range list.Items {
			out[i] = c.ID
		}
		return out
	}

	t.Run("default excludes resolved, newest first", func(t *testing.T) {
		list, err := s.ListCases(ctx, store.CaseFilter{}, store.Page{})
		require.NoError(t, err)
		assert.Equal(t, int64(4), list.Total)
		assert.Equal(t, []string{c5.ID, c4.ID, c2.ID, c1.ID}, ids(list))
		for _, c := range list.Items {
			assert.NotEqual(t, model.StatusResolved, c.Status)
		}
	})

	t.Run("include resolved", func(t *testing.T) {
		list, err := s.ListCases(ctx, store.CaseFilter{IncludeResolved: true}, store.Page{})
		require.NoError(t, err)
		assert.Equal(t, int64(5), list.Total)
		assert.Contains(t, ids(list), c3.ID)
	})

	t.Run("case type set membership", func(t *testing.T) {
		list, err := s.ListCases(ctx, store.CaseFilter{
			IncludeResolved: true,
			CaseTypes:       []model.CaseType{model.CaseTypeTheft, model.CaseTypeHarassment},
		}, store.Page{})
		require.NoError(t, err)
		assert.Equal(t, []string{c3.ID, c2.ID}, ids(list))
	})

	t.Run("status filter", func(t *testing.T) {
		list, err := s.ListCases(ctx, store.CaseFilter{Statuses: []model.CaseStatus{model.StatusUnhandled}}, store.Page{})
		require.NoError(t, err)
		assert.Equal(t, []string{c5.ID, c4.ID, c1.ID}, ids(list))
	})

	t.Run("officer train membership", func(t *testing.T) {
		list, err := s.ListCases(ctx, store.CaseFilter{OfficerID: "u1", IncludeResolved: true}, store.Page{})
		require.NoError(t, err)
		assert.Equal(t, []string{c3.ID, c2.ID, c1.ID}, ids(list))
	})

	t.Run("train and carriage", func(t *testing.T) {
		list, err := s.ListCases(ctx, store.CaseFilter{TrainID: "krl2"}, store.Page{})
		require.NoError(t, err)
		assert.Equal(t, []string{c5.ID, c4.ID}, ids(list))

		list, err = s.ListCases(ctx, store.CaseFilter{CarriageID: "g1"}, store.Page{})
		require.NoError(t, err)
		assert.Equal(t, []string{c2.ID, c1.ID}, ids(list))
	})

	t.Run("reported strictly after", func(t *testing.T) {
		since := base.Add(time.Minute)
		list, err := s.ListCases(ctx, store.CaseFilter{ReportedAfter: &since}, store.Page{})
		require.NoError(t, err)
		assert.Equal(t, []string{c5.ID, c4.ID}, ids(list), "c2 at exactly since is excluded")

		before := since.Add(-time.Nanosecond)
		list, err = s.ListCases(ctx, store.CaseFilter{ReportedAfter: &before}, store.Page{})
		require.NoError(t, err)
		assert.Equal(t, []string{c5.ID, c4.ID, c2.ID}, ids(list))
	})

	t.Run("pagination keeps the total", func(t *testing.T) {
		list, err := s.ListCases(ctx, store.CaseFilter{IncludeResolved: true}, store.Page{Number: 2, Size: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(5), list.Total)
		assert.Equal(t, []string{c3.ID, c2.ID}, ids(list))
	})

	t.Run("search", func(t *testing.T) {
		list, err := s.ListCases(ctx, store.CaseFilter{Search: "DARURAT"}, store.Page{})
		require.NoError(t, err)
		assert.Equal(t, []string{c4.ID}, ids(list))
	})
}

func TestUpdateCaseStatus_TimestampsSetOnce(t *testing.T) {
	s, _ := storetest.Seeded(t)
	ctx := context.Background()
	c := createCase(t, s, "g1", model.StatusUnhandled, model.CaseTypeTheft, time.Now().UTC())

	first := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	second := first.Add(10 * time.Minute)
	u1, u2 := "u1", "u2"
	from := []model.CaseStatus{model.StatusUnhandled, model.StatusInProgress}

	got, err := s.UpdateCaseStatus(ctx, c.ID, store.StatusUpdate{From: from, To: model.StatusInProgress, HandlerID: &u1, AcknowledgedAt: &first})
	require.NoError(t, err)
	require.NotNil(t, got.AcknowledgedAt)
	assert.True(t, first.Equal(*got.AcknowledgedAt))

	got, err = s.UpdateCaseStatus(ctx, c.ID, store.StatusUpdate{From: from, To: model.StatusInProgress, HandlerID: &u2, AcknowledgedAt: &second})
	require.NoError(t, err)
	assert.True(t, first.Equal(*got.AcknowledgedAt), "acknowledgedAt keeps its first value")
	require.NotNil(t, got.HandlerID)
	assert.Equal(t, "u2", *got.HandlerID, "handler is last write wins")
	require.NotNil(t, got.Handler)
	assert.Equal(t, "Sari", got.Handler.Name)

	_, err = s.UpdateCaseStatus(ctx, c.ID, store.StatusUpdate{From: from, To: model.StatusResolved, ResolvedAt: &second})
	require.NoError(t, err)

	_, err = s.UpdateCaseStatus(ctx, c.ID, store.StatusUpdate{From: from, To: model.StatusInProgress, AcknowledgedAt: &second})
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	_, err = s.UpdateCaseStatus(ctx, "nope", store.StatusUpdate{From: from, To: model.StatusInProgress})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRecomputeCarriageStatus(t *testing.T) {
	s, _ := storetest.Seeded(t)
	ctx := context.Background()

	active, err := s.RecomputeCarriageStatus(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, active)

	c := createCase(t, s, "g1", model.StatusUnhandled, model.CaseTypeTheft, time.Now().UTC())
	active, err = s.RecomputeCarriageStatus(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, active)

	now := time.Now().UTC()
	_, err = s.UpdateCaseStatus(ctx, c.ID, store.StatusUpdate{To: model.StatusResolved, ResolvedAt: &now})
	require.NoError(t, err)
	active, err = s.RecomputeCarriageStatus(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, active)

	detail, err := s.GetCarriage(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, detail.HasActiveCase)
	assert.Equal(t, store.HealthCompleted, detail.Health)

	_, err = s.RecomputeCarriageStatus(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateCarriage(t *testing.T) {
	s, _ := storetest.Seeded(t)
	ctx := context.Background()

	count := 88
	label := model.OccupancyModerate
	desc := "cukup ramai"
	got, err := s.UpdateCarriage(ctx, "g2", store.CarriageUpdate{PassengerCount: &count, OccupancyLabel: &label, SceneDescription: &desc})
	require.NoError(t, err)
	assert.Equal(t, 88, got.PassengerCount)
	assert.Equal(t, model.OccupancyModerate, got.OccupancyLabel)
	assert.Equal(t, "cukup ramai", got.SceneDescription)

	_, err = s.UpdateCarriage(ctx, "missing", store.CarriageUpdate{PassengerCount: &count})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCasesReportedSince(t *testing.T) {
	s, _ := storetest.Seeded(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	createCase(t, s, "g1", model.StatusUnhandled, model.CaseTypeTheft, base.Add(-time.Minute))
	c2 := createCase(t, s, "g1", model.StatusUnhandled, model.CaseTypeTheft, base)
	c3 := createCase(t, s, "g2", model.StatusResolved, model.CaseTypeOther, base.Add(time.Second))

	got, err := s.CasesReportedSince(ctx, base, nil, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, c2.ID, got[0].ID)
	assert.Equal(t, c3.ID, got[1].ID)
	require.NotNil(t, got[1].Carriage)
	assert.Equal(t, "Gerbong 2", got[1].Carriage.Name)

	got, err = s.CasesReportedSince(ctx, base, []string{c2.ID}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, c3.ID, got[0].ID)
}

func TestDeleteCase(t *testing.T) {
	s, _ := storetest.Seeded(t)
	ctx := context.Background()
	c := createCase(t, s, "g1", model.StatusUnhandled, model.CaseTypeTheft, time.Now().UTC())

	removed, err := s.DeleteCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "g1", removed.CarriageID)

	_, err = s.GetCase(ctx, c.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = s.DeleteCase(ctx, c.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSelectTrain_SingleActiveAssignment(t *testing.T) {
	s, gormDB := storetest.Seeded(t)
	ctx := context.Background()

	active, err := s.ActiveTrain(ctx, "u2")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "krl2", active.TrainID)

	a, err := s.SelectTrain(ctx, "u2", "krl1")
	require.NoError(t, err)
	assert.True(t, a.IsActive)
	assert.NotNil(t, a.AssignedFrom)

	// u1 was never assigned to krl2; selecting it creates the row
	a, err = s.SelectTrain(ctx, "u1", "krl2")
	require.NoError(t, err)
	assert.Equal(t, model.RoleGuard, a.Role)

	for _, officer := range []string{"u1", "u2"} {
		var n int64
		require.NoError(t, gormDB.Model(&model.TrainAssignment{}).Where("user_id = ? AND is_active = ?", officer, true).Count(&n).Error)
		assert.Equal(t, int64(1), n, "officer %s", officer)
	}

	active, err = s.ActiveTrain(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "krl2", active.TrainID)

	_, err = s.SelectTrain(ctx, "u1", "krl9")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSubscriptions(t *testing.T) {
	s, _ := storetest.Seeded(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertSubscription(ctx, model.PushSubscription{Endpoint: "https://push/1", P256DH: "k1", Auth: "a1", OfficerID: "u1"}))
	require.NoError(t, s.UpsertSubscription(ctx, model.PushSubscription{Endpoint: "https://push/2", P256DH: "k2", Auth: "a2", OfficerID: "u2"}))
	require.NoError(t, s.UpsertSubscription(ctx, model.PushSubscription{Endpoint: "https://push/1", P256DH: "k1b", Auth: "a1b", OfficerID: "u1"}))

	sub, err := s.GetSubscription(ctx, "u1", "https://push/1")
	require.NoError(t, err)
	assert.Equal(t, "k1b", sub.P256DH)

	subs, err := s.SubscriptionsForTrain(ctx, "krl1")
	require.NoError(t, err)
	require.Len(t, subs, 1, "u2 is assigned to krl1 but not actively")
	assert.Equal(t, "https://push/1", subs[0].Endpoint)

	assert.ErrorIs(t, s.DeleteSubscription(ctx, "u2", "https://push/1"), apperr.ErrNotFound)
	require.NoError(t, s.DeleteSubscription(ctx, "u1", "https://push/1"))
	require.NoError(t, s.DeleteSubscriptionByEndpoint(ctx, "https://push/2"))

	subs, err = s.SubscriptionsForTrain(ctx, "krl2")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestTrainSummaries(t *testing.T) {
	s, _ := storetest.Seeded(t)
	ctx := context.Background()

	createCase(t, s, "g1", model.StatusUnhandled, model.CaseTypeTheft, time.Now().UTC())
	_, err := s.RecomputeCarriageStatus(ctx, "g1")
	require.NoError(t, err)
	createCase(t, s, "g2", model.StatusResolved, model.CaseTypeTheft, time.Now().UTC())

	all, err := s.TrainSummaries(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	byID := map[string]store.TrainSummary{}
	for _, sum := range all {
		byID[sum.TrainID] = sum
	}
	krl1 := byID["krl1"]
	assert.Equal(t, 2, krl1.TotalCarriages)
	assert.Equal(t, 1, krl1.ProblemCarriages)
	assert.Equal(t, 1, krl1.NormalCarriages)
	assert.Equal(t, 1, krl1.CompletedCarriages)
	assert.Equal(t, store.HealthPending, krl1.Carriages[0].Health)

	mine, err := s.TrainSummaries(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "krl1", mine[0].TrainID)
}

func TestOfficerVoicePreference(t *testing.T) {
	s, _ := storetest.Seeded(t)
	ctx := context.Background()

	o, err := s.UpdateVoicePreference(ctx, "u1", true)
	require.NoError(t, err)
	assert.True(t, o.IsVoiceActive)

	_, err = s.UpdateVoicePreference(ctx, "ghost", true)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTransactionRollsBack(t *testing.T) {
	s, _ := storetest.Seeded(t)
	ctx := context.Background()

	err := s.Transaction(ctx, func(tx store.Store) error {
		c := model.Case{Name: "x", Description: "x", CarriageID: "g1"}
		if err := tx.CreateCase(ctx, &c); err != nil {
			return err
		}
		_, err := tx.RecomputeCarriageStatus(ctx, "missing")
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	list, err := s.ListCases(ctx, store.CaseFilter{IncludeResolved: true}, store.Page{})
	require.NoError(t, err)
	assert.Zero(t, list.Total)
}
