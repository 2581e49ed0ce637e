package model

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// CaseStatus is the lifecycle state of a case.
type CaseStatus string

const (
	StatusUnhandled  CaseStatus = "belum_ditangani"
	StatusInProgress CaseStatus = "proses"
	StatusResolved   CaseStatus = "selesai"
)

func (s CaseStatus) Valid() bool {
	switch s {
	case StatusUnhandled, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// CaseType is the closed set of incident categories.
type CaseType string

const (
	CaseTypeHarassment  CaseType = "pelecehan"
	CaseTypePriority    CaseType = "prioritas"
	CaseTypeTheft       CaseType = "pencopetan"
	CaseTypeSecurity    CaseType = "keamanan"
	CaseTypeDisturbance CaseType = "keributan"
	CaseTypeEmergency   CaseType = "darurat"
	CaseTypeOther       CaseType = "lainnya"
	CaseTypeCrowding    CaseType = "kepadatan"
)

func (t CaseType) Valid() bool {
	switch t {
	case CaseTypeHarassment, CaseTypePriority, CaseTypeTheft, CaseTypeSecurity,
		CaseTypeDisturbance, CaseTypeEmergency, CaseTypeOther, CaseTypeCrowding:
		return true
	}
	return false
}

// OccupancyLabel is the three-level occupancy vocabulary stored on carriages and cases.
type OccupancyLabel string

const (
	OccupancyLoose    OccupancyLabel = "longgar"
	OccupancyModerate OccupancyLabel = "sedang"
	OccupancyDense    OccupancyLabel = "padat"
)

func (l OccupancyLabel) Valid() bool {
	switch l {
	case OccupancyLoose, OccupancyModerate, OccupancyDense:
		return true
	}
	return false
}

// Source records who reported a case.
type Source string

const (
	SourceML       Source = "ml"
	SourceManual   Source = "manual"
	SourceReporter Source = "reporter"
	SourceSensor   Source = "sensor"
)

func (s Source) Valid() bool {
	switch s {
	case SourceML, SourceManual, SourceReporter, SourceSensor:
		return true
	}
	return false
}

// ParseCaseTypes splits a comma separated list, dropping blanks.
func ParseCaseTypes(raw string) []CaseType {
	var out []CaseType
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, CaseType(part))
		}
	}
	return out
}

// NewID returns a new time-ordered identifier.
func NewID() string {
	return strings.ToLower(ulid.Make().String())
}
