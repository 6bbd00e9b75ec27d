package session

import (
	"encoding/json"
	"testing"
)

func TestStepText(t *testing.T) {
	tests := []struct {
		step Step
		name string
	}{
		{StepLoggedOut, "logged_out"},
		{StepCatalogue, "catalogue"},
		{StepIdentify, "identify"},
		{StepCheckout, "checkout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.step)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if string(data) != `"`+tt.name+`"` {
				t.Errorf("expected %q, got %s", tt.name, data)
			}

			var got Step
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if got != tt.step {
				t.Errorf("expected %v, got %v", tt.step, got)
			}
		})
	}
}

func TestStepUnknown(t *testing.T) {
	var s Step
	if err := s.UnmarshalText([]byte("payment")); err == nil {
		t.Error("expected error for unknown step")
	}
	if Step(7).String() != "step(7)" {
		t.Errorf("unexpected name %s", Step(7))
	}
}
