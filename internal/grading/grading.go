package grading

// Grade labels. There is intentionally no "3" tier.
const (
	LabelExcellent = "5"
	LabelGood      = "4"
	LabelPoor      = "2"
	LabelFailed    = "You failed the test"
)

// Display colors paired with each label.
const (
	ColorBlue   = "blue"
	ColorYellow = "yellow"
	ColorBlack  = "black"
	ColorRed    = "red"
)

// Result is the grade label and display color for a score.
type Result struct {
	Label string `json:"grade"`
	Color string `json:"grade_color"`
}

// Grade maps a raw score to its label and color. Thresholds are evaluated
// from the highest down and the first match wins.
func Grade(score int) Result {
	switch {
	case score >= 76:
		return Result{Label: LabelExcellent, Color: ColorBlue}
	case score >= 60:
		return Result{Label: LabelGood, Color: ColorYellow}
	case score >= 30:
		return Result{Label: LabelPoor, Color: ColorBlack}
	default:
		return Result{Label: LabelFailed, Color: ColorRed}
	}
}

// Labels lists every label Grade can produce, best first.
func Labels() []string {
	return []string{LabelExcellent, LabelGood, LabelPoor, LabelFailed}
}
