package ingest

import (
	"krl-safety-backend/internal/model"
	"krl-safety-backend/internal/parse"
)

// MediumConfidenceThreshold is the confidence a medium reading must exceed
// to open a case.
const MediumConfidenceThreshold = 0.70

// Decision is the outcome of classifying one detection.
type Decision struct {
	Label      model.OccupancyLabel
	CreateCase bool
	CaseType   model.CaseType
}

// Classify maps a density tier and detector confidence to an occupancy label
// and whether a crowding case should be opened.
func Classify(tier parse.Tier, confidence float64) Decision {
	switch tier {
	case parse.TierHigh:
		return Decision{Label: model.OccupancyDense, CreateCase: true, CaseType: model.CaseTypeCrowding}
	case parse.TierMedium:
		return Decision{
			Label:      model.OccupancyModerate,
			CreateCase: confidence > MediumConfidenceThreshold,
			CaseType:   model.CaseTypeCrowding,
		}
	default:
		return Decision{Label: model.OccupancyLoose}
	}
}
