// Package recommend implements the online recommendation path: mode
// resolution (C13), candidate scoring (C15), MMR diversification (C16), and
// the composing Recommender (C17).
package recommend

import "fmt"

// Algorithm is one of the three ranking strategies a mode can resolve to.
type Algorithm string

const (
	AlgorithmVectorOnly       Algorithm = "vector_only"
	AlgorithmVectorRanked     Algorithm = "vector_ranked"
	AlgorithmVectorRankedMMR  Algorithm = "vector_ranked_mmr"
)

// Mode is a user-facing recommendation preset.
type Mode string

const (
	ModePopular  Mode = "popular"
	ModeBalanced Mode = "balanced"
	ModeDiverse  Mode = "diverse"
)

const (
	nIn  = 50
	nOut = 20
)

// Params is the resolved weight/algorithm configuration for one request
// (Resolved Params, §3).
type Params struct {
	Mode       Mode
	Algorithm  Algorithm
	K          int
	WVec       float64
	WPop       float64
	WRev       float64
	MMRLambda  float64
	NIn        int
	NOut       int
	ResolvedBy string
}

var modeDefaults = map[Mode]Params{
	ModePopular:  {Mode: ModePopular, Algorithm: AlgorithmVectorRankedMMR, K: 120, WVec: 0.25, WPop: 0.55, WRev: 0.20, MMRLambda: 0.85},
	ModeBalanced: {Mode: ModeBalanced, Algorithm: AlgorithmVectorRankedMMR, K: 120, WVec: 0.60, WPop: 0.20, WRev: 0.20, MMRLambda: 0.55},
	ModeDiverse:  {Mode: ModeDiverse, Algorithm: AlgorithmVectorRankedMMR, K: 220, WVec: 0.65, WPop: 0.15, WRev: 0.20, MMRLambda: 0.25},
}

var validOverride = map[Algorithm]bool{
	AlgorithmVectorOnly:      true,
	AlgorithmVectorRanked:    true,
	AlgorithmVectorRankedMMR: true,
}

// InvalidArgumentError marks a request-level validation failure the HTTP
// layer maps to 400 (§7: "C17 surfaces InvalidArgument as 400").
type InvalidArgumentError struct{ msg string }

func (e *InvalidArgumentError) Error() string { return e.msg }

func invalidArg(format string, args ...any) error {
	return &InvalidArgumentError{msg: fmt.Sprintf(format, args...)}
}

// SetModeDefault overrides one mode's resolved Params (used to apply an
// operator-supplied modes.yaml at startup). ResolveMode always resets
// NIn/NOut/ResolvedBy, and replaces Algorithm only when an override is
// given; every other field is used as passed here.
func SetModeDefault(mode Mode, p Params) {
	modeDefaults[mode] = p
}

// ResolveMode maps mode and an optional algorithm override to concrete
// Params (C13). override == "" means no override.
func ResolveMode(mode Mode, override Algorithm) (Params, error) {
	defaults, ok := modeDefaults[mode]
	if !ok {
		return Params{}, invalidArg("recommend: unknown mode %q", mode)
	}
	p := defaults
	p.NIn, p.NOut = nIn, nOut
	p.ResolvedBy = "mode"

	if override != "" {
		if !validOverride[override] {
			return Params{}, invalidArg("recommend: unknown algorithm override %q", override)
		}
		p.Algorithm = override
		p.ResolvedBy = "admin_override"
	}
	return p, nil
}
