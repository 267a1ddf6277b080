package services

import (
	"testing"

	"github.com/test-portal/backend/internal/database/databasetest"
	"github.com/test-portal/backend/internal/models"
)

func TestPurgeOrphanQuestions(t *testing.T) {
	db := databasetest.New(t)
	group := createGroup(t, db, "Cleanup")
	test := activeTest(t, db, group.ID, "Kept")
	kept := createQuestion(t, db, test.ID, 1, 1)

	orphan := &models.Question{Position: 1, QuestionText: "Left behind"}
	orphan.AnswerOptions = []models.AnswerOption{
		{Position: 1, AnswerText: "a", IsCorrect: true},
		{Position: 2, AnswerText: "b"},
	}
	if err := db.Create(orphan).Error; err != nil {
		t.Fatalf("create orphan: %v", err)
	}

	questions, options, err := PurgeOrphanQuestions(db)
	if err != nil {
		t.Fatalf("PurgeOrphanQuestions failed: %v", err)
	}
	if questions != 1 || options != 2 {
		t.Errorf("Expected 1 question and 2 options removed, got %d and %d", questions, options)
	}
	if got := count(t, db, &models.Question{}, "id = ?", kept.ID); got != 1 {
		t.Errorf("Expected scheduled question to survive, got %d", got)
	}
	if got := count(t, db, &models.AnswerOption{}, "question_id = ?", kept.ID); got != 4 {
		t.Errorf("Expected 4 options of the kept question, got %d", got)
	}

	questions, _, err = PurgeOrphanQuestions(db)
	if err != nil || questions != 0 {
		t.Errorf("Expected nothing on second run, got %d, %v", questions, err)
	}
}
