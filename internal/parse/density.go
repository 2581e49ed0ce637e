package parse

import (
	"fmt"
	"regexp"
	"strings"
)

// Tier is the coarse crowd level reported by the detector.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Label returns the detector's wire spelling, e.g. "High Density".
func (t Tier) Label() string {
	if t == "" {
		return ""
	}
	return strings.ToUpper(string(t[:1])) + string(t[1:]) + " Density"
}

var tierRe = regexp.MustCompile(`(?i)^\s*(low|medium|high)(?:[\s_-]*density)?\s*$`)

// DensityTier parses "Low Density", "medium", "HIGH_DENSITY" and similar.
func DensityTier(raw string) (Tier, error) {
	m := tierRe.FindStringSubmatch(raw)
	if m == nil {
		return "", fmt.Errorf("unknown crowdness level: %q", raw)
	}
	return Tier(strings.ToLower(m[1])), nil
}
