package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/test-portal/backend/internal/models"
	"gorm.io/gorm"
)

// SeedService fills an empty database with demo groups, tests and questions.
type SeedService struct {
	db *gorm.DB
}

func NewSeedService(db *gorm.DB) *SeedService {
	return &SeedService{db: db}
}

type demoQuestion struct {
	text    string
	options [4]string
	correct int
}

var demoBank = []demoQuestion{
	{"What is 7 x 8?", [4]string{"54", "56", "58", "64"}, 2},
	{"Which planet is closest to the Sun?", [4]string{"Mercury", "Venus", "Earth", "Mars"}, 1},
	{"What is the capital of Uzbekistan?", [4]string{"Samarkand", "Bukhara", "Khiva", "Tashkent"}, 4},
	{"How many sides does a hexagon have?", [4]string{"5", "6", "7", "8"}, 2},
	{"Which gas do plants absorb?", [4]string{"Oxygen", "Nitrogen", "Carbon dioxide", "Helium"}, 3},
}

var demoGroups = []string{"Demo-101", "Demo-102"}

// SeedDemo creates the demo data in one transaction. Groups that already
// exist are left untouched. It returns the number of tests created.
func (s *SeedService) SeedDemo(ctx context.Context, now time.Time) (int, error) {
	created := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, name := range demoGroups {
			var existing models.Group
			err := tx.Where("name = ?", name).First(&existing).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			group := &models.Group{Name: name, Description: "Demo group", ResitGroup: i > 0}
			if err := tx.Create(group).Error; err != nil {
				return fmt.Errorf("failed to create group %s: %w", name, err)
			}

			test := &models.TestSchedule{
				Title:        fmt.Sprintf("General Knowledge %d", i+1),
				GroupID:      group.ID,
				NumQuestions: len(demoBank),
				OpenTime:     now.Add(time.Duration(i) * 24 * time.Hour).Truncate(time.Hour),
				CloseTime:    now.Add(time.Duration(i)*24*time.Hour + 48*time.Hour).Truncate(time.Hour),
			}
			if err := tx.Create(test).Error; err != nil {
				return fmt.Errorf("failed to create test for %s: %w", name, err)
			}

			for pos, dq := range demoBank {
				q := &models.Question{TestScheduleID: &test.ID, Position: pos + 1, QuestionText: dq.text}
				for n, text := range dq.options {
					q.AnswerOptions = append(q.AnswerOptions, models.AnswerOption{
						Position:   n + 1,
						AnswerText: text,
						IsCorrect:  dq.correct == n+1,
					})
				}
				if err := tx.Create(q).Error; err != nil {
					return fmt.Errorf("failed to create question: %w", err)
				}
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}
