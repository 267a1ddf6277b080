package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/test-portal/backend/internal/models"
	"gorm.io/gorm"
)

var studentSeq int

var fixedNow = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

func clock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func createGroup(t *testing.T, db *gorm.DB, name string) *models.Group {
	t.Helper()
	g := &models.Group{Name: name}
	if err := db.Create(g).Error; err != nil {
		t.Fatalf("create group: %v", err)
	}
	return g
}

func createTest(t *testing.T, db *gorm.DB, groupID uuid.UUID, title string, open, close time.Time) *models.TestSchedule {
	t.Helper()
	ts := &models.TestSchedule{Title: title, GroupID: groupID, OpenTime: open, CloseTime: close}
	if err := db.Create(ts).Error; err != nil {
		t.Fatalf("create test: %v", err)
	}
	return ts
}

// activeTest is open for an hour either side of fixedNow.
func activeTest(t *testing.T, db *gorm.DB, groupID uuid.UUID, title string) *models.TestSchedule {
	return createTest(t, db, groupID, title, fixedNow.Add(-time.Hour), fixedNow.Add(time.Hour))
}

// createQuestion adds a four-option question whose correct option is the
// 1-based index correct; zero leaves every option incorrect.
func createQuestion(t *testing.T, db *gorm.DB, testID uuid.UUID, position, correct int) *models.Question {
	t.Helper()
	q := &models.Question{
		TestScheduleID: &testID,
		Position:       position,
		QuestionText:   fmt.Sprintf("Question %d", position),
	}
	for i := 1; i <= 4; i++ {
		q.AnswerOptions = append(q.AnswerOptions, models.AnswerOption{
			Position:   i,
			AnswerText: fmt.Sprintf("Option %d", i),
			IsCorrect:  i == correct,
		})
	}
	if err := db.Create(q).Error; err != nil {
		t.Fatalf("create question: %v", err)
	}
	return q
}

func createStudent(t *testing.T, db *gorm.DB, username string, groupID *uuid.UUID) *models.Student {
	t.Helper()
	studentSeq++
	s := &models.Student{
		Username:       username,
		PasswordHash:   "x",
		FullName:       "Student " + username,
		PassportNumber: fmt.Sprintf("AB%07d", studentSeq),
		PhoneNumber:    fmt.Sprintf("+998%09d", studentSeq),
		GroupID:        groupID,
	}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("create student: %v", err)
	}
	return s
}

func correctOption(q *models.Question) models.AnswerOption {
	for _, o := range q.AnswerOptions {
		if o.IsCorrect {
			return o
		}
	}
	return models.AnswerOption{}
}

func wrongOption(q *models.Question) models.AnswerOption {
	for _, o := range q.AnswerOptions {
		if !o.IsCorrect {
			return o
		}
	}
	return models.AnswerOption{}
}

func count(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := db.Session(&gorm.Session{}).Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
