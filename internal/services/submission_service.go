package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/test-portal/backend/internal/availability"
	"github.com/test-portal/backend/internal/metrics"
	"github.com/test-portal/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultPointsPerCorrect is the award for each correctly answered question.
const DefaultPointsPerCorrect = 3

// Answers maps a question id to the selected option id, both as submitted.
// Ids that do not parse or do not resolve count as unanswered.
type Answers map[string]string

type SubmissionService struct {
	db               *gorm.DB
	pointsPerCorrect int
	now              func() time.Time
}

func NewSubmissionService(db *gorm.DB, pointsPerCorrect int) *SubmissionService {
	if pointsPerCorrect <= 0 {
		pointsPerCorrect = DefaultPointsPerCorrect
	}
	return &SubmissionService{
		db:               db,
		pointsPerCorrect: pointsPerCorrect,
		now:              time.Now,
	}
}

// Prepare runs the submission preconditions without scoring: the test must
// be active, not yet taken by the student, and have questions. On success it
// returns the test with its questions and options loaded. When the student
// already has a result, that result is returned with ErrAlreadySubmitted.
func (s *SubmissionService) Prepare(ctx context.Context, studentID, testID uuid.UUID) (*models.TestSchedule, *models.TestResult, error) {
	db := s.db.WithContext(ctx)

	var test models.TestSchedule
	if err := db.First(&test, "id = ?", testID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	if test.Status(s.now()) != availability.Active {
		return nil, nil, ErrNotAvailable
	}

	existing, err := s.findResult(db, studentID, testID)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, existing, ErrAlreadySubmitted
	}

	if err := db.Preload("AnswerOptions", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("position, created_at")
	}).Where("test_schedule_id = ?", testID).Order("position, created_at").Find(&test.Questions).Error; err != nil {
		return nil, nil, err
	}
	if len(test.Questions) == 0 {
		return nil, nil, ErrNoQuestions
	}

	return &test, nil, nil
}

// Submit scores answers against the test's questions and stores the single
// result for (student, test). A concurrent submission that loses the race on
// the unique index gets the winner's result back with ErrAlreadySubmitted.
func (s *SubmissionService) Submit(ctx context.Context, studentID, testID uuid.UUID, answers Answers) (*models.TestResult, error) {
	test, existing, err := s.Prepare(ctx, studentID, testID)
	if err != nil {
		s.observe(err)
		return existing, err
	}

	result := &models.TestResult{
		StudentID:      studentID,
		TestScheduleID: testID,
		Score:          s.Score(test.Questions, answers),
	}

	db := s.db.WithContext(ctx)
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(result)
	if res.Error != nil && !errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return nil, res.Error
	}
	if res.Error != nil || res.RowsAffected == 0 {
		slog.Warn("submission lost uniqueness race", "student_id", studentID, "test_id", testID)
		winner, err := s.findResult(db, studentID, testID)
		if err != nil {
			return nil, err
		}
		s.observe(ErrAlreadySubmitted)
		return winner, ErrAlreadySubmitted
	}

	metrics.Submissions.WithLabelValues(metrics.OutcomeScored).Inc()
	metrics.SubmissionScore.Observe(float64(result.Score))
	slog.Info("test submitted", "student_id", studentID, "test_id", testID, "score", result.Score, "grade", result.Grade)
	return result, nil
}

// Score awards pointsPerCorrect for every question whose selected option
// belongs to that question and is marked correct.
func (s *SubmissionService) Score(questions []models.Question, answers Answers) int {
	score := 0
	for _, q := range questions {
		selected, ok := answers[q.ID.String()]
		if !ok || selected == "" {
			continue
		}
		optionID, err := uuid.Parse(selected)
		if err != nil {
			continue
		}
		for _, opt := range q.AnswerOptions {
			if opt.ID == optionID && opt.QuestionID == q.ID {
				if opt.IsCorrect {
					score += s.pointsPerCorrect
				}
				break
			}
		}
	}
	return score
}

func (s *SubmissionService) findResult(db *gorm.DB, studentID, testID uuid.UUID) (*models.TestResult, error) {
	var result models.TestResult
	err := db.Where("student_id = ? AND test_schedule_id = ?", studentID, testID).First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *SubmissionService) observe(err error) {
	switch {
	case errors.Is(err, ErrNotAvailable):
		metrics.Submissions.WithLabelValues(metrics.OutcomeNotAvailable).Inc()
	case errors.Is(err, ErrAlreadySubmitted):
		metrics.Submissions.WithLabelValues(metrics.OutcomeAlreadySubmitted).Inc()
	case errors.Is(err, ErrNoQuestions):
		metrics.Submissions.WithLabelValues(metrics.OutcomeNoQuestions).Inc()
	}
}
