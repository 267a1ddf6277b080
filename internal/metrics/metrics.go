package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Submission outcomes.
const (
	OutcomeScored           = "scored"
	OutcomeNotAvailable     = "not_available"
	OutcomeAlreadySubmitted = "already_submitted"
	OutcomeNoQuestions      = "no_questions"
)

var (
	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "test_portal",
		Name:      "submissions_total",
		Help:      "Test submissions by outcome.",
	}, []string{"outcome"})

	SubmissionScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "test_portal",
		Name:      "submission_score",
		Help:      "Raw scores of accepted submissions.",
		Buckets:   []float64{0, 15, 30, 45, 60, 76, 90, 120},
	})

	QuestionsImported = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "test_portal",
		Name:      "questions_imported_total",
		Help:      "Questions created by file imports.",
	})

	ImportFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "test_portal",
		Name:      "import_failures_total",
		Help:      "Failed question imports by error kind.",
	}, []string{"kind"})

	TestsDuplicated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "test_portal",
		Name:      "tests_duplicated_total",
		Help:      "Test schedules created by duplication.",
	})
)
