package harness

import (
	"encoding/json"
	"math"
)

// Outcome records the comparison result for one camera position. Values
// are final once created; the runner appends them in position order.
type Outcome struct {
	MapName    string  `json:"map_name"`
	Position   string  `json:"position"`
	Similarity float64 `json:"ssim"`
	MSE        float64 `json:"mse"` // math.Inf(1) when image shapes differ
	Passed     bool    `json:"passed"`
	Threshold  float64 `json:"threshold"`
}

// MarshalJSON encodes the infinite MSE sentinel as null; IEEE infinities
// have no JSON representation.
func (o Outcome) MarshalJSON() ([]byte, error) {
	type alias Outcome
	if !math.IsInf(o.MSE, 1) {
		return json.Marshal(alias(o))
	}
	return json.Marshal(struct {
		alias
		MSE *float64 `json:"mse"`
	}{alias: alias(o), MSE: nil})
}
