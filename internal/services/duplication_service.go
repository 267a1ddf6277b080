package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/test-portal/backend/internal/metrics"
	"github.com/test-portal/backend/internal/models"
	"gorm.io/gorm"
)

type DuplicationService struct {
	db *gorm.DB
}

func NewDuplicationService(db *gorm.DB) *DuplicationService {
	return &DuplicationService{db: db}
}

// CopyTitle names a test copied into group.
func CopyTitle(title, group string) string {
	return fmt.Sprintf("%s (Copy - %s)", title, group)
}

// Duplicate copies every source test into every target group together with
// its questions and options. Each copy commits in its own transaction, so a
// failure leaves earlier copies in place and reports how many were created.
func (s *DuplicationService) Duplicate(ctx context.Context, testIDs, groupIDs []uuid.UUID) (int, error) {
	if len(testIDs) == 0 {
		return 0, NewValidationError("test_ids", "select at least one test")
	}
	if len(groupIDs) == 0 {
		return 0, NewValidationError("group_ids", "select at least one group")
	}

	db := s.db.WithContext(ctx)

	var sources []models.TestSchedule
	if err := db.Preload("Questions", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("position, created_at")
	}).Preload("Questions.AnswerOptions", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("position, created_at")
	}).Where("id IN ?", testIDs).Order("title").Find(&sources).Error; err != nil {
		return 0, err
	}
	if len(sources) != len(unique(testIDs)) {
		return 0, fmt.Errorf("source test: %w", ErrNotFound)
	}

	var groups []models.Group
	if err := db.Where("id IN ?", groupIDs).Order("name").Find(&groups).Error; err != nil {
		return 0, err
	}
	if len(groups) != len(unique(groupIDs)) {
		return 0, fmt.Errorf("target group: %w", ErrNotFound)
	}

	created := 0
	for i := range sources {
		for j := range groups {
			err := db.Transaction(func(tx *gorm.DB) error {
				return copyTest(tx, &sources[i], &groups[j])
			})
			if err != nil {
				slog.Error("test duplication failed", "test_id", sources[i].ID, "group_id", groups[j].ID, "created", created, "error", err)
				metrics.TestsDuplicated.Add(float64(created))
				return created, &DuplicationError{Created: created, Err: err}
			}
			created++
		}
	}

	metrics.TestsDuplicated.Add(float64(created))
	slog.Info("tests duplicated", "tests", len(sources), "groups", len(groups), "created", created)
	return created, nil
}

// copyTest clones src into group. Every level gets fresh ids; nothing is
// shared with the source subtree.
func copyTest(tx *gorm.DB, src *models.TestSchedule, group *models.Group) error {
	dst := models.TestSchedule{
		Title:        CopyTitle(src.Title, group.Name),
		GroupID:      group.ID,
		NumQuestions: src.NumQuestions,
		OpenTime:     src.OpenTime,
		CloseTime:    src.CloseTime,
	}
	if err := tx.Create(&dst).Error; err != nil {
		return err
	}

	for _, q := range src.Questions {
		copied := models.Question{
			TestScheduleID: &dst.ID,
			Position:       q.Position,
			QuestionText:   q.QuestionText,
		}
		if err := tx.Create(&copied).Error; err != nil {
			return err
		}
		if len(q.AnswerOptions) == 0 {
			continue
		}

		options := make([]models.AnswerOption, len(q.AnswerOptions))
		for k, o := range q.AnswerOptions {
			options[k] = models.AnswerOption{
				QuestionID: copied.ID,
				Position:   o.Position,
				AnswerText: o.AnswerText,
				IsCorrect:  o.IsCorrect,
			}
		}
		if err := tx.Create(&options).Error; err != nil {
			return err
		}
	}
	return nil
}

func unique(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
