package types

import "strings"

// BasicInfo is the device identity fetched at construction time.
type BasicInfo struct {
	Model       string  `json:"model"`
	Serial      string  `json:"serial"`
	Description string  `json:"description"`
	Location    string  `json:"location"`
	SWVersion   float64 `json:"sw_version"`
}

// ModelParams fixes the per-model layout: phase count, counter counts and
// tariff block count. A TimeBlockCount of zero means the model has no
// time-block registers at all.
type ModelParams struct {
	Phases                int
	NonResettableCounters int
	ResettableCounters    int
	TimeBlockCount        int
	Gateway               bool
}

// modelParams is the static per-model parameter table, keyed by model name
// prefix. Read-only after load.
var modelParams = map[string]ModelParams{
	"IE38": {Phases: 3, NonResettableCounters: 4, ResettableCounters: 16, TimeBlockCount: 5},
	"IE35": {Phases: 3, NonResettableCounters: 4, ResettableCounters: 16},
	"IE14": {Phases: 1, NonResettableCounters: 4, ResettableCounters: 8},
	"SG":   {Gateway: true},
}

// ParamsForModel resolves the parameter table entry for a model name using
// longest-prefix matching, so "IE38-W1" resolves to the IE38 entry. The
// second return value reports whether the model is known.
func ParamsForModel(model string) (ModelParams, bool) {
	var (
		best    string
		params  ModelParams
		matched bool
	)
	for prefix, p := range modelParams {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
			params = p
			matched = true
		}
	}
	return params, matched
}
