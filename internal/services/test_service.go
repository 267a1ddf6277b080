package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/test-portal/backend/internal/availability"
	"github.com/test-portal/backend/internal/models"
	"gorm.io/gorm"
)

// TestService manages test schedules and their questions, and lists tests
// from a student's point of view.
type TestService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewTestService(db *gorm.DB) *TestService {
	return &TestService{db: db, now: time.Now}
}

// StudentTest is one entry of a student's test list.
type StudentTest struct {
	Test     models.TestSchedule `json:"test"`
	Status   availability.Status `json:"status"`
	HasTaken bool                `json:"has_taken"`
	ResultID *uuid.UUID          `json:"result_id"`
}

// ListForStudent returns the tests of the student's group that have not
// closed yet, by open time. Students without a group get an empty list.
func (s *TestService) ListForStudent(ctx context.Context, studentID uuid.UUID) ([]StudentTest, error) {
	db := s.db.WithContext(ctx)

	var student models.Student
	if err := db.First(&student, "id = ?", studentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if student.GroupID == nil {
		return []StudentTest{}, nil
	}

	now := s.now()
	var tests []models.TestSchedule
	if err := db.Where("group_id = ? AND close_time >= ?", *student.GroupID, now).
		Order("open_time").Find(&tests).Error; err != nil {
		return nil, err
	}

	list := make([]StudentTest, len(tests))
	if len(tests) == 0 {
		return list, nil
	}

	ids := make([]uuid.UUID, len(tests))
	for i, t := range tests {
		ids[i] = t.ID
	}
	var results []models.TestResult
	if err := db.Select("id", "test_schedule_id").
		Where("student_id = ? AND test_schedule_id IN ?", studentID, ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	taken := make(map[uuid.UUID]uuid.UUID, len(results))
	for _, r := range results {
		taken[r.TestScheduleID] = r.ID
	}

	for i, t := range tests {
		list[i] = StudentTest{Test: t, Status: t.Status(now)}
		if id, ok := taken[t.ID]; ok {
			resultID := id
			list[i].HasTaken = true
			list[i].ResultID = &resultID
		}
	}
	return list, nil
}

// OptionView is an answer option as shown to a student taking a test.
type OptionView struct {
	ID         uuid.UUID `json:"id"`
	AnswerText string    `json:"answer_text"`
}

type QuestionView struct {
	ID           uuid.UUID    `json:"id"`
	QuestionText string       `json:"question_text"`
	Options      []OptionView `json:"options"`
}

type TakeView struct {
	TestID    uuid.UUID      `json:"test_id"`
	Title     string         `json:"title"`
	CloseTime time.Time      `json:"close_time"`
	Questions []QuestionView `json:"questions"`
}

// NewTakeView strips correctness flags from a prepared test.
func NewTakeView(test *models.TestSchedule) *TakeView {
	view := &TakeView{
		TestID:    test.ID,
		Title:     test.Title,
		CloseTime: test.CloseTime,
		Questions: make([]QuestionView, len(test.Questions)),
	}
	for i, q := range test.Questions {
		qv := QuestionView{ID: q.ID, QuestionText: q.QuestionText, Options: make([]OptionView, len(q.AnswerOptions))}
		for j, o := range q.AnswerOptions {
			qv.Options[j] = OptionView{ID: o.ID, AnswerText: o.AnswerText}
		}
		view.Questions[i] = qv
	}
	return view
}

// Result returns a student's own result. Results of other students are
// reported as not found.
func (s *TestService) Result(ctx context.Context, studentID, resultID uuid.UUID) (*models.TestResult, error) {
	var result models.TestResult
	err := s.db.WithContext(ctx).Preload("TestSchedule").
		Where("id = ? AND student_id = ?", resultID, studentID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

type ScheduleView struct {
	models.TestSchedule
	Status availability.Status `json:"status"`
}

// ListSchedules returns schedules newest open time first, optionally for
// one group.
func (s *TestService) ListSchedules(ctx context.Context, groupID *uuid.UUID) ([]ScheduleView, error) {
	q := s.db.WithContext(ctx).Preload("Group").Order("open_time DESC")
	if groupID != nil {
		q = q.Where("group_id = ?", *groupID)
	}
	var tests []models.TestSchedule
	if err := q.Find(&tests).Error; err != nil {
		return nil, err
	}

	now := s.now()
	views := make([]ScheduleView, len(tests))
	for i, t := range tests {
		views[i] = ScheduleView{TestSchedule: t, Status: t.Status(now)}
	}
	return views, nil
}

// GetSchedule loads a schedule with its questions and options, correctness
// flags included.
func (s *TestService) GetSchedule(ctx context.Context, id uuid.UUID) (*ScheduleView, error) {
	var test models.TestSchedule
	err := s.db.WithContext(ctx).Preload("Group").
		Preload("Questions", func(tx *gorm.DB) *gorm.DB { return tx.Order("position, created_at") }).
		Preload("Questions.AnswerOptions", func(tx *gorm.DB) *gorm.DB { return tx.Order("position, created_at") }).
		First(&test, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ScheduleView{TestSchedule: test, Status: test.Status(s.now())}, nil
}

type ScheduleInput struct {
	Title        string    `json:"title" validate:"required,max=255"`
	GroupID      string    `json:"group_id" validate:"required,uuid"`
	NumQuestions *int      `json:"num_questions" validate:"omitempty,min=0"`
	OpenTime     time.Time `json:"open_time" validate:"required"`
	CloseTime    time.Time `json:"close_time" validate:"required,gtfield=OpenTime"`
}

// DefaultNumQuestions is the target count of a new schedule until questions
// are added.
const DefaultNumQuestions = 20

func (s *TestService) CreateSchedule(ctx context.Context, in ScheduleInput) (*models.TestSchedule, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	groupID, err := s.groupExists(ctx, in.GroupID)
	if err != nil {
		return nil, err
	}

	test := &models.TestSchedule{
		Title:        in.Title,
		GroupID:      groupID,
		NumQuestions: DefaultNumQuestions,
		OpenTime:     in.OpenTime,
		CloseTime:    in.CloseTime,
	}
	if in.NumQuestions != nil {
		test.NumQuestions = *in.NumQuestions
	}
	if err := s.db.WithContext(ctx).Create(test).Error; err != nil {
		return nil, err
	}
	return test, nil
}

func (s *TestService) UpdateSchedule(ctx context.Context, id uuid.UUID, in ScheduleInput) (*models.TestSchedule, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	groupID, err := s.groupExists(ctx, in.GroupID)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var test models.TestSchedule
	if err := db.First(&test, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	test.Title = in.Title
	test.GroupID = groupID
	test.OpenTime = in.OpenTime
	test.CloseTime = in.CloseTime
	if in.NumQuestions != nil {
		test.NumQuestions = *in.NumQuestions
	}
	if err := db.Save(&test).Error; err != nil {
		return nil, err
	}
	return &test, nil
}

// DeleteSchedule removes a schedule with its questions, options and results.
func (s *TestService) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Unscoped().Where("id = ?", id).Delete(&models.TestSchedule{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return deleteScheduleChildren(tx, []uuid.UUID{id})
	})
}

func deleteScheduleChildren(tx *gorm.DB, testIDs []uuid.UUID) error {
	questionIDs := tx.Unscoped().Model(&models.Question{}).Select("id").Where("test_schedule_id IN ?", testIDs)
	if err := tx.Unscoped().Where("question_id IN (?)", questionIDs).Delete(&models.AnswerOption{}).Error; err != nil {
		return err
	}
	if err := tx.Unscoped().Where("test_schedule_id IN ?", testIDs).Delete(&models.Question{}).Error; err != nil {
		return err
	}
	return tx.Where("test_schedule_id IN ?", testIDs).Delete(&models.TestResult{}).Error
}

func (s *TestService) groupExists(ctx context.Context, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, NewValidationError("group_id", "must be a valid id")
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Group{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return uuid.Nil, err
	}
	if n == 0 {
		return uuid.Nil, NewValidationError("group_id", "unknown group")
	}
	return id, nil
}

type OptionInput struct {
	AnswerText string `json:"answer_text" validate:"required,max=500"`
	IsCorrect  bool   `json:"is_correct"`
}

type QuestionInput struct {
	QuestionText string        `json:"question_text" validate:"required"`
	Options      []OptionInput `json:"options" validate:"required,min=2,max=6,dive"`
}

// CreateQuestion appends a question to the test and syncs its question count.
func (s *TestService) CreateQuestion(ctx context.Context, testID uuid.UUID, in QuestionInput) (*models.Question, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	var question *models.Question
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.TestSchedule{}).Where("id = ?", testID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}

		var position int
		if err := tx.Model(&models.Question{}).Where("test_schedule_id = ?", testID).
			Select("COALESCE(MAX(position), 0)").Scan(&position).Error; err != nil {
			return err
		}

		question = &models.Question{
			TestScheduleID: &testID,
			Position:       position + 1,
			QuestionText:   strings.TrimSpace(in.QuestionText),
			AnswerOptions:  optionModels(in.Options),
		}
		if err := tx.Create(question).Error; err != nil {
			return err
		}
		return syncQuestionCount(tx, testID)
	})
	if err != nil {
		return nil, err
	}
	return question, nil
}

// UpdateQuestion replaces the question text and its options.
func (s *TestService) UpdateQuestion(ctx context.Context, questionID uuid.UUID, in QuestionInput) (*models.Question, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	var question models.Question
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&question, "id = ?", questionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Unscoped().Where("question_id = ?", question.ID).Delete(&models.AnswerOption{}).Error; err != nil {
			return err
		}

		question.QuestionText = strings.TrimSpace(in.QuestionText)
		if err := tx.Model(&question).Update("question_text", question.QuestionText).Error; err != nil {
			return err
		}

		question.AnswerOptions = optionModels(in.Options)
		for i := range question.AnswerOptions {
			question.AnswerOptions[i].QuestionID = question.ID
		}
		return tx.Create(&question.AnswerOptions).Error
	})
	if err != nil {
		return nil, err
	}
	return &question, nil
}

// DeleteQuestion removes a question and its options and syncs the count.
func (s *TestService) DeleteQuestion(ctx context.Context, questionID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var question models.Question
		if err := tx.First(&question, "id = ?", questionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Unscoped().Where("question_id = ?", question.ID).Delete(&models.AnswerOption{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Delete(&question).Error; err != nil {
			return err
		}
		if question.TestScheduleID == nil {
			return nil
		}
		return syncQuestionCount(tx, *question.TestScheduleID)
	})
}

func optionModels(in []OptionInput) []models.AnswerOption {
	out := make([]models.AnswerOption, len(in))
	for i, o := range in {
		out[i] = models.AnswerOption{
			Position:   i + 1,
			AnswerText: strings.TrimSpace(o.AnswerText),
			IsCorrect:  o.IsCorrect,
		}
	}
	return out
}
