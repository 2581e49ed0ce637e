package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"krl-safety-backend/internal/apperr"
	"krl-safety-backend/internal/model"
	"krl-safety-backend/internal/parse"
	"krl-safety-backend/internal/store"
	"krl-safety-backend/internal/store/storetest"
	"krl-safety-backend/internal/vision"
)

type fakeDescriber struct {
	text   string
	err    error
	calls  int
	images []parse.ImageRef
}

func (f *fakeDescriber) Describe(ctx context.Context, image parse.ImageRef) (string, error) {
	f.calls++
	f.images = append(f.images, image)
	return f.text, f.err
}

type slowDescriber struct{}

func (slowDescriber) Describe(ctx context.Context, image parse.ImageRef) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type recordingDispatcher struct {
	cases []model.Case
}

func (r *recordingDispatcher) Dispatch(c model.Case) {
	r.cases = append(r.cases, c)
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		name       string
		tier       parse.Tier
		confidence float64
		expected   Decision
	}{
		{name: "Low never opens a case", tier: parse.TierLow, confidence: 0.99, expected: Decision{Label: model.OccupancyLoose}},
		{name: "Medium above threshold", tier: parse.TierMedium, confidence: 0.71, expected: Decision{Label: model.OccupancyModerate, CreateCase: true, CaseType: model.CaseTypeCrowding}},
		{name: "Medium at threshold", tier: parse.TierMedium, confidence: 0.70, expected: Decision{Label: model.OccupancyModerate, CaseType: model.CaseTypeCrowding}},
		{name: "Medium below threshold", tier: parse.TierMedium, confidence: 0.2, expected: Decision{Label: model.OccupancyModerate, CaseType: model.CaseTypeCrowding}},
		{name: "High always opens a case", tier: parse.TierHigh, confidence: 0, expected: Decision{Label: model.OccupancyDense, CreateCase: true, CaseType: model.CaseTypeCrowding}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Classify(tc.tier, tc.confidence))
		})
	}
}

func TestService_IngestHighDensityCreatesCase(t *testing.T) {
	s, _ := storetest.Seeded(t)
	describer := &fakeDescriber{text: "Gerbong sangat padat."}
	dispatcher := &recordingDispatcher{}
	svc := NewService(s, describer, zap.NewNop(), WithDispatcher(dispatcher))
	ctx := context.Background()

	res, err := svc.Ingest(ctx, Detection{
		CarriageID:      "g1",
		MaxHumanCount:   140,
		ConfidenceScore: 0.9,
		CrowdnessLevel:  "High Density",
		ImageURL:        "https://cdn.example.com/frame.jpg",
	})
	require.NoError(t, err)

	assert.True(t, res.CarriageUpdated)
	assert.True(t, res.CaseCreated)
	assert.NotEmpty(t, res.CaseID)
	assert.Equal(t, model.OccupancyDense, res.OccupancyLevel)
	require.NotNil(t, res.AIAnalysis)
	assert.Equal(t, "Gerbong sangat padat.", *res.AIAnalysis)
	assert.Equal(t, 1, describer.calls)
	assert.True(t, describer.images[0].Remote)

	carriage, err := s.GetCarriage(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, carriage.HasActiveCase)
	assert.Equal(t, 140, carriage.PassengerCount)
	assert.Equal(t, model.OccupancyDense, carriage.OccupancyLabel)
	assert.Equal(t, "Gerbong sangat padat.", carriage.SceneDescription)

	c, err := s.GetCase(ctx, res.CaseID)
	require.NoError(t, err)
	assert.Equal(t, "Kepadatan High Density - 140 penumpang", c.Name)
	assert.Equal(t, model.StatusUnhandled, c.Status)
	assert.Equal(t, model.SourceML, c.Source)
	assert.Equal(t, model.CaseTypeCrowding, c.CaseType)
	assert.Equal(t, model.OccupancyDense, c.OccupancyLabel)
	require.NotNil(t, c.OccupancyValue)
	assert.Equal(t, 140, *c.OccupancyValue)
	assert.Equal(t, "Gerbong sangat padat.", c.Description)
	assert.Equal(t, "Gerbong sangat padat.", c.SupplementaryDescription)
	assert.Equal(t, []string{"https://cdn.example.com/frame.jpg"}, []string(c.Images))

	require.Len(t, dispatcher.cases, 1)
	assert.Equal(t, res.CaseID, dispatcher.cases[0].ID)
}

func TestService_IngestLowDensityOnlyUpdatesCarriage(t *testing.T) {
	s, _ := storetest.Seeded(t)
	describer := &fakeDescriber{}
	dispatcher := &recordingDispatcher{}
	svc := NewService(s, describer, zap.NewNop(), WithDispatcher(dispatcher))
	ctx := context.Background()

	res, err := svc.Ingest(ctx, Detection{CarriageID: "g2", MaxHumanCount: 12, ConfidenceScore: 0.95, CrowdnessLevel: "Low Density"})
	require.NoError(t, err)

	assert.True(t, res.CarriageUpdated)
	assert.False(t, res.CaseCreated)
	assert.Empty(t, res.CaseID)
	assert.Equal(t, model.OccupancyLoose, res.OccupancyLevel)
	assert.Nil(t, res.AIAnalysis)
	assert.Zero(t, describer.calls)
	assert.Empty(t, dispatcher.cases)

	carriage, err := s.GetCarriage(ctx, "g2")
	require.NoError(t, err)
	assert.False(t, carriage.HasActiveCase)
	assert.Equal(t, 12, carriage.PassengerCount)
	assert.Equal(t, model.OccupancyLoose, carriage.OccupancyLabel)
}

func TestService_IngestLowDensityKeepsOpenCaseFlag(t *testing.T) {
	s, _ := storetest.Seeded(t)
	svc := NewService(s, &fakeDescriber{}, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Ingest(ctx, Detection{CarriageID: "g1", MaxHumanCount: 150, ConfidenceScore: 0.9, CrowdnessLevel: "High Density"})
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, Detection{CarriageID: "g1", MaxHumanCount: 10, ConfidenceScore: 0.9, CrowdnessLevel: "Low Density"})
	require.NoError(t, err)

	carriage, err := s.GetCarriage(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, carriage.HasActiveCase)
	assert.Equal(t, model.OccupancyLoose, carriage.OccupancyLabel)
}

func TestService_IngestMediumThreshold(t *testing.T) {
	s, _ := storetest.Seeded(t)
	svc := NewService(s, &fakeDescriber{}, zap.NewNop())
	ctx := context.Background()

	res, err := svc.Ingest(ctx, Detection{CarriageID: "g1", MaxHumanCount: 60, ConfidenceScore: 0.70, CrowdnessLevel: "Medium Density"})
	require.NoError(t, err)
	assert.False(t, res.CaseCreated)
	assert.Equal(t, model.OccupancyModerate, res.OccupancyLevel)

	res, err = svc.Ingest(ctx, Detection{CarriageID: "g1", MaxHumanCount: 60, ConfidenceScore: 0.71, CrowdnessLevel: "Medium Density"})
	require.NoError(t, err)
	assert.True(t, res.CaseCreated)

	c, err := s.GetCase(ctx, res.CaseID)
	require.NoError(t, err)
	assert.Equal(t, "Kepadatan Medium Density - 60 penumpang", c.Name)
}

func TestService_IngestVisionFailureUsesFallback(t *testing.T) {
	s, _ := storetest.Seeded(t)
	describer := &fakeDescriber{err: errors.New("upstream 500")}
	svc := NewService(s, describer, zap.NewNop())

	res, err := svc.Ingest(context.Background(), Detection{
		CarriageID:      "g1",
		MaxHumanCount:   100,
		ConfidenceScore: 0.8,
		CrowdnessLevel:  "High Density",
		Image:           "aGVsbG8=",
	})
	require.NoError(t, err)
	require.NotNil(t, res.AIAnalysis)
	assert.Equal(t, vision.FallbackFailed, *res.AIAnalysis)
	assert.Equal(t, "data:image/jpeg;base64,aGVsbG8=", describer.images[0].URL)

	c, err := s.GetCase(context.Background(), res.CaseID)
	require.NoError(t, err)
	assert.Equal(t, vision.FallbackFailed, c.Description)
	assert.Empty(t, c.Images)
}

func TestService_IngestVisionTimeout(t *testing.T) {
	s, _ := storetest.Seeded(t)
	svc := NewService(s, slowDescriber{}, zap.NewNop(), WithVisionTimeout(20*time.Millisecond))

	res, err := svc.Ingest(context.Background(), Detection{
		CarriageID:     "g1",
		CrowdnessLevel: "Low Density",
		ImageURL:       "https://cdn.example.com/frame.jpg",
	})
	require.NoError(t, err)
	require.NotNil(t, res.AIAnalysis)
	assert.Equal(t, vision.FallbackFailed, *res.AIAnalysis)
}

func TestService_IngestUnknownCarriage(t *testing.T) {
	s, _ := storetest.Seeded(t)
	describer := &fakeDescriber{text: "x"}
	svc := NewService(s, describer, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Ingest(ctx, Detection{CarriageID: "nope", MaxHumanCount: 140, ConfidenceScore: 0.9, CrowdnessLevel: "High Density", ImageURL: "https://cdn.example.com/a.jpg"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Zero(t, describer.calls)

	list, err := s.ListCases(ctx, store.CaseFilter{IncludeResolved: true}, store.Page{})
	require.NoError(t, err)
	assert.Zero(t, list.Total)
}

func TestService_IngestValidation(t *testing.T) {
	s, _ := storetest.Seeded(t)
	svc := NewService(s, &fakeDescriber{}, zap.NewNop())

	testCases := []struct {
		name  string
		in    Detection
		field string
	}{
		{name: "Missing carriage", in: Detection{CrowdnessLevel: "High Density"}, field: "gerbong_id"},
		{name: "Missing level", in: Detection{CarriageID: "g1"}, field: "crowdness_level"},
		{name: "Unknown level", in: Detection{CarriageID: "g1", CrowdnessLevel: "Extreme"}, field: "crowdness_level"},
		{name: "Confidence out of range", in: Detection{CarriageID: "g1", CrowdnessLevel: "Low Density", ConfidenceScore: 1.5}, field: "confidence_score"},
		{name: "Negative count", in: Detection{CarriageID: "g1", CrowdnessLevel: "Low Density", MaxHumanCount: -1}, field: "max_human_count"},
		{name: "Bad image", in: Detection{CarriageID: "g1", CrowdnessLevel: "Low Density", Image: "!!!"}, field: "image"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Ingest(context.Background(), tc.in)
			require.ErrorIs(t, err, apperr.ErrValidation)
			vErr, ok := apperr.AsValidation(err)
			require.True(t, ok)
			assert.Equal(t, tc.field, vErr.Field)
		})
	}
}
