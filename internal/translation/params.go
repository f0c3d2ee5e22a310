package translation

import "strings"

// Quality tiers accepted in CallParams.
const (
	QualityFast     = "fast"
	QualityStandard = "standard"
	QualityHigh     = "high"
)

// FactoryParams is the superset accepted by Factory.Get.
type FactoryParams struct {
	Model      string
	Device     string
	BatchSize  int
	SourceLang string
	TargetLang string
	Quality    string
}

// BuildParams identify a backend instance. The struct is comparable and used
// as part of the cache key.
type BuildParams struct {
	Model     string
	Device    string
	BatchSize int
}

// CallParams route a single Translate call.
type CallParams struct {
	SourceLang string
	TargetLang string
	Quality    string
}

// Split separates construction parameters from call parameters.
func (p FactoryParams) Split() (BuildParams, CallParams) {
	build := BuildParams{
		Model:     strings.TrimSpace(p.Model),
		Device:    strings.ToLower(strings.TrimSpace(p.Device)),
		BatchSize: p.BatchSize,
	}
	if build.BatchSize <= 0 {
		build.BatchSize = 1
	}
	call := CallParams{
		SourceLang: strings.ToLower(strings.TrimSpace(p.SourceLang)),
		TargetLang: strings.ToLower(strings.TrimSpace(p.TargetLang)),
		Quality:    strings.ToLower(strings.TrimSpace(p.Quality)),
	}
	if call.Quality == "" {
		call.Quality = QualityStandard
	}
	return build, call
}
