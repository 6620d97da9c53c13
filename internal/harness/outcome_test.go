package harness

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func TestOutcomeJSONFiniteMSE(t *testing.T) {
	o := Outcome{MapName: "de_test", Position: "spawn", Similarity: 0.97, MSE: 12.5, Passed: true, Threshold: 0.95}

	raw, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(raw)
	for _, want := range []string{`"map_name":"de_test"`, `"position":"spawn"`, `"ssim":0.97`, `"mse":12.5`, `"passed":true`} {
		if !strings.Contains(s, want) {
			t.Errorf("JSON %s missing %q", s, want)
		}
	}
}

func TestOutcomeJSONInfiniteMSE(t *testing.T) {
	o := Outcome{Position: "mid", MSE: math.Inf(1)}

	raw, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("marshal with infinite MSE: %v", err)
	}
	if !strings.Contains(string(raw), `"mse":null`) {
		t.Errorf("JSON %s should encode infinite MSE as null", raw)
	}
}
