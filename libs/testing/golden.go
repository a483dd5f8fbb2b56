// Package testing provides shared test helpers: clocks, fixtures, and a
// determinism harness for the reproducibility property in §8.5 (identical
// seed/input must yield byte-identical backtest output).
package testing

import (
	"encoding/json"
	"testing"
)

// AssertDeterministic calls fn twice and asserts that the JSON representation
// of each result is identical. Used against backtest.Engine.Run output to
// check that two runs sharing a seed produce byte-identical results, rather
// than spot-checking individual fields by hand.
func AssertDeterministic(t testing.TB, fn func() any) {
	t.Helper()
	a := fn()
	b := fn()

	aJSON, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("AssertDeterministic: marshal first result: %v", err)
	}
	bJSON, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("AssertDeterministic: marshal second result: %v", err)
	}

	if string(aJSON) != string(bJSON) {
		t.Errorf("AssertDeterministic: results differ\nfirst:  %s\nsecond: %s", aJSON, bJSON)
	}
}
