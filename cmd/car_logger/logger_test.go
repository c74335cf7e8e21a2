package main

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFlattenStatus(t *testing.T) {
	var status interface{}
	if err := json.Unmarshal([]byte(`{
		"Drive": {"Preset": "fast", "Magnitude": 255, "Left": -255, "Right": 255},
		"Simulator": {"X": 1.5, "Y": 0, "Heading": 90}
	}`), &status); err != nil {
		t.Fatal(err)
	}
	fields := make(map[string]interface{})
	flattenStatus(fields, status, "")
	want := map[string]interface{}{
		"Drive.Preset":      "fast",
		"Drive.Magnitude":   255.0,
		"Drive.Left":        -255.0,
		"Drive.Right":       255.0,
		"Simulator.X":       1.5,
		"Simulator.Y":       0.0,
		"Simulator.Heading": 90.0,
	}
	if diff := cmp.Diff(fields, want); diff != "" {
		t.Errorf("unexpected fields: got(-)/want(+):\n%s", diff)
	}
}

func TestFlattenArray(t *testing.T) {
	fields := make(map[string]interface{})
	flattenStatus(fields, map[string]interface{}{"a": []interface{}{true, nil}}, "")
	if diff := cmp.Diff(fields, map[string]interface{}{"a.0": true}); diff != "" {
		t.Errorf("unexpected fields: got(-)/want(+):\n%s", diff)
	}
}
