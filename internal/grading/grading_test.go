package grading

import (
	"testing"
)

func TestGrade(t *testing.T) {
	tests := []struct {
		name          string
		score         int
		expectedLabel string
		expectedColor string
	}{
		{"Far Above Top Tier", 300, LabelExcellent, ColorBlue},
		{"Top Tier Lower Bound", 76, LabelExcellent, ColorBlue},
		{"Second Tier Upper Bound", 75, LabelGood, ColorYellow},
		{"Second Tier Lower Bound", 60, LabelGood, ColorYellow},
		{"Third Tier Upper Bound", 59, LabelPoor, ColorBlack},
		{"Third Tier Lower Bound", 30, LabelPoor, ColorBlack},
		{"Failed Upper Bound", 29, LabelFailed, ColorRed},
		{"Zero Score", 0, LabelFailed, ColorRed},
		{"Negative Score", -3, LabelFailed, ColorRed},
		{"Nine Points", 9, LabelFailed, ColorRed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Grade(tt.score)
			if result.Label != tt.expectedLabel {
				t.Errorf("Score %d: expected label %q, got %q", tt.score, tt.expectedLabel, result.Label)
			}
			if result.Color != tt.expectedColor {
				t.Errorf("Score %d: expected color %q, got %q", tt.score, tt.expectedColor, result.Color)
			}
		})
	}
}

func TestGrade_Deterministic(t *testing.T) {
	for score := -10; score <= 120; score++ {
		first := Grade(score)
		second := Grade(score)
		if first != second {
			t.Fatalf("Score %d graded differently: %+v vs %+v", score, first, second)
		}
		if first.Label == "" || first.Color == "" {
			t.Fatalf("Score %d produced an empty grade: %+v", score, first)
		}
	}
}

func TestGrade_NoThirdTier(t *testing.T) {
	for score := 0; score <= 100; score++ {
		if Grade(score).Label == "3" {
			t.Fatalf("Score %d produced a \"3\" grade", score)
		}
	}
}
