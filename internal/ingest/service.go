package ingest

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"krl-safety-backend/internal/apperr"
	"krl-safety-backend/internal/logging"
	"krl-safety-backend/internal/metrics"
	"krl-safety-backend/internal/model"
	"krl-safety-backend/internal/parse"
	"krl-safety-backend/internal/store"
	"krl-safety-backend/internal/vision"
)

// Detection is the payload posted by the crowd detector.
type Detection struct {
	CarriageID      string       `json:"gerbong_id"`
	MaxHumanCount   int          `json:"max_human_count"`
	ConfidenceScore float64      `json:"confidence_score"`
	CrowdnessLevel  string       `json:"crowdness_level"`
	Image           string       `json:"image,omitempty"`
	ImageURL        string       `json:"image_url,omitempty"`
	Performance     *Performance `json:"performance,omitempty"`
}

// Performance carries the detector's own timing figures. Logged only.
type Performance struct {
	FPS            float64 `json:"fps"`
	ProcessingTime float64 `json:"processing_time"`
}

// Result reports what an ingestion did.
type Result struct {
	CarriageUpdated bool                 `json:"gerbong_updated"`
	CaseCreated     bool                 `json:"case_created"`
	CaseID          string               `json:"case_id,omitempty"`
	OccupancyLevel  model.OccupancyLabel `json:"occupancy_level"`
	AIAnalysis      *string              `json:"ai_analysis"`
}

// Dispatcher receives newly created cases after commit.
type Dispatcher interface {
	Dispatch(c model.Case)
}

// Service turns detector readings into carriage updates and crowding cases.
type Service struct {
	store         store.Store
	vision        vision.Describer
	dispatcher    Dispatcher
	metrics       *metrics.Metrics
	visionTimeout time.Duration
	log           *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithVisionTimeout(d time.Duration) Option {
	return func(s *Service) { s.visionTimeout = d }
}

func NewService(st store.Store, describer vision.Describer, log *zap.Logger, opts ...Option) *Service {
	if describer == nil {
		describer = vision.Unavailable{}
	}
	s := &Service{
		store:         st,
		vision:        describer,
		visionTimeout: 20 * time.Second,
		log:           log.Named("ingest"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type validated struct {
	tier  parse.Tier
	image parse.ImageRef
}

func validate(d Detection) (validated, error) {
	if strings.TrimSpace(d.CarriageID) == "" {
		return validated{}, apperr.Validation("gerbong_id", "is required")
	}
	if strings.TrimSpace(d.CrowdnessLevel) == "" {
		return validated{}, apperr.Validation("crowdness_level", "is required")
	}
	tier, err := parse.DensityTier(d.CrowdnessLevel)
	if err != nil {
		return validated{}, apperr.Validation("crowdness_level", err.Error())
	}
	if math.IsNaN(d.ConfidenceScore) || d.ConfidenceScore < 0 || d.ConfidenceScore > 1 {
		return validated{}, apperr.Validation("confidence_score", "must be between 0 and 1")
	}
	if d.MaxHumanCount < 0 {
		return validated{}, apperr.Validation("max_human_count", "must not be negative")
	}
	image, err := parse.Image(d.Image, d.ImageURL)
	if err != nil {
		return validated{}, apperr.Validation("image", err.Error())
	}
	return validated{tier: tier, image: image}, nil
}

// Ingest validates a detection, updates its carriage and opens a crowding
// case when the reading calls for one.
func (s *Service) Ingest(ctx context.Context, d Detection) (Result, error) {
	log := logging.For(ctx, s.log).With(
		zap.String("gerbong_id", d.CarriageID),
		zap.String("crowdness_level", d.CrowdnessLevel),
	)

	in, err := validate(d)
	if err != nil {
		s.metrics.Ingest(metrics.IngestRejected)
		return Result{}, err
	}

	if _, err := s.store.GetCarriage(ctx, d.CarriageID); err != nil {
		s.metrics.Ingest(metrics.IngestRejected)
		return Result{}, err
	}

	if d.Performance != nil {
		log.Debug("detector performance",
			zap.Float64("fps", d.Performance.FPS),
			zap.Float64("processing_time", d.Performance.ProcessingTime),
		)
	}

	var analysis *string
	if !in.image.Empty() {
		text := s.describe(ctx, log, in.image)
		analysis = &text
	}

	decision := Classify(in.tier, d.ConfidenceScore)
	scene := ""
	if analysis != nil {
		scene = *analysis
	}

	var created *model.Case
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		count := d.MaxHumanCount
		label := decision.Label
		if _, err := tx.UpdateCarriage(ctx, d.CarriageID, store.CarriageUpdate{
			PassengerCount:   &count,
			OccupancyLabel:   &label,
			SceneDescription: &scene,
		}); err != nil {
			return err
		}

		if decision.CreateCase {
			c := newCrowdingCase(d, in, decision, scene)
			if err := tx.CreateCase(ctx, &c); err != nil {
				return err
			}
			created = &c
		}

		_, err := tx.RecomputeCarriageStatus(ctx, d.CarriageID)
		return err
	})
	if err != nil {
		s.metrics.Ingest(metrics.IngestFailed)
		return Result{}, fmt.Errorf("failed to apply detection for gerbong %q: %w", d.CarriageID, err)
	}

	res := Result{
		CarriageUpdated: true,
		OccupancyLevel:  decision.Label,
		AIAnalysis:      analysis,
	}
	if created != nil {
		res.CaseCreated = true
		res.CaseID = created.ID
		s.metrics.Ingest(metrics.IngestCase)
		s.metrics.CaseCreated(string(model.SourceML))
		if s.dispatcher != nil {
			s.dispatcher.Dispatch(*created)
		}
		log.Info("crowding case created", zap.String("case_id", created.ID), zap.Int("max_human_count", d.MaxHumanCount))
	} else {
		s.metrics.Ingest(metrics.IngestUpdated)
		log.Debug("carriage occupancy updated", zap.String("occupancy", string(decision.Label)))
	}
	return res, nil
}

// describe never fails; any vision error becomes the fixed fallback text.
func (s *Service) describe(ctx context.Context, log *zap.Logger, image parse.ImageRef) string {
	vctx, cancel := context.WithTimeout(ctx, s.visionTimeout)
	defer cancel()

	text, err := s.vision.Describe(vctx, image)
	if err != nil {
		s.metrics.VisionFailure()
		log.Warn("scene description failed, using fallback", zap.Error(err))
		return vision.FallbackFailed
	}
	return text
}

func newCrowdingCase(d Detection, in validated, decision Decision, scene string) model.Case {
	count := d.MaxHumanCount
	c := model.Case{
		Name:                     fmt.Sprintf("Kepadatan %s - %d penumpang", in.tier.Label(), d.MaxHumanCount),
		Description:              scene,
		SupplementaryDescription: scene,
		Status:                   model.StatusUnhandled,
		CaseType:                 decision.CaseType,
		Source:                   model.SourceML,
		OccupancyLabel:           decision.Label,
		OccupancyValue:           &count,
		CarriageID:               d.CarriageID,
	}
	if in.image.Remote {
		c.Images = []string{in.image.URL}
	}
	return c
}
