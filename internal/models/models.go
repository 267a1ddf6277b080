package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/test-portal/backend/internal/availability"
	"github.com/test-portal/backend/internal/grading"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Roles carried in access tokens.
const (
	RoleAdmin   = "admin"
	RoleStaff   = "staff"
	RoleStudent = "student"
)

// Base model with UUID
type BaseModel struct {
	ID        uuid.UUID      `gorm:"type:char(36);primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Group is a cohort of students sharing test assignments
type Group struct {
	BaseModel
	Name          string         `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Description   string         `gorm:"type:text" json:"description"`
	ResitGroup    bool           `gorm:"not null" json:"resit_group"`
	TestSchedules []TestSchedule `gorm:"foreignKey:GroupID" json:"test_schedules,omitempty"`
}

// TableName avoids GROUPS, a reserved word on MySQL 8.
func (Group) TableName() string {
	return "student_groups"
}

// TestSchedule is a test bound to a group and an open/close window.
// NumQuestions is the recorded target count, kept in sync with Questions
// by the authoring, import and duplication paths.
type TestSchedule struct {
	BaseModel
	Title        string     `gorm:"type:varchar(255);not null" json:"title"`
	GroupID      uuid.UUID  `gorm:"type:char(36);not null;index" json:"group_id"`
	NumQuestions int        `gorm:"not null" json:"num_questions"`
	OpenTime     time.Time  `gorm:"not null;index" json:"open_time"`
	CloseTime    time.Time  `gorm:"not null" json:"close_time"`
	Group        *Group     `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	Questions    []Question `gorm:"foreignKey:TestScheduleID" json:"questions,omitempty"`
}

func (t *TestSchedule) Status(now time.Time) availability.Status {
	return availability.Of(t.OpenTime, t.CloseTime, now)
}

// Question belongs to one test schedule. TestScheduleID is nullable so a
// question can exist briefly without a parent; cmd/cleanup purges those.
type Question struct {
	BaseModel
	TestScheduleID *uuid.UUID     `gorm:"type:char(36);index" json:"test_schedule_id"`
	Position       int            `gorm:"not null" json:"position"`
	QuestionText   string         `gorm:"type:text;not null" json:"question_text"`
	AnswerOptions  []AnswerOption `gorm:"foreignKey:QuestionID" json:"answer_options,omitempty"`
}

// AnswerOption is one selectable choice for a question
type AnswerOption struct {
	BaseModel
	QuestionID uuid.UUID `gorm:"type:char(36);not null;index" json:"question_id"`
	Position   int       `gorm:"not null" json:"position"`
	AnswerText string    `gorm:"type:varchar(500);not null" json:"answer_text"`
	IsCorrect  bool      `gorm:"not null" json:"is_correct"`
}

// Student is a portal user who takes tests
type Student struct {
	BaseModel
	Username        string     `gorm:"type:varchar(150);uniqueIndex;not null" json:"username"`
	PasswordHash    string     `gorm:"type:varchar(255);not null" json:"-"`
	FullName        string     `gorm:"type:varchar(255);not null" json:"full_name"`
	PassportNumber  string     `gorm:"type:varchar(9);uniqueIndex;not null" json:"passport_number"`
	PhoneNumber     string     `gorm:"type:varchar(13);uniqueIndex;not null" json:"phone_number"`
	Address         string     `gorm:"type:varchar(255)" json:"address"`
	ProfileImageURL string     `gorm:"type:varchar(500)" json:"profile_image_url"`
	GroupID         *uuid.UUID `gorm:"type:char(36);index" json:"group_id"`
	Group           *Group     `gorm:"foreignKey:GroupID" json:"group,omitempty"`
}

// TestResult is the outcome of one student's single submission to one test.
// The unique index on (student_id, test_schedule_id) is what makes a second
// concurrent submission fail.
type TestResult struct {
	ID             uuid.UUID     `gorm:"type:char(36);primaryKey" json:"id"`
	StudentID      uuid.UUID     `gorm:"type:char(36);not null;uniqueIndex:idx_result_student_test" json:"student_id"`
	TestScheduleID uuid.UUID     `gorm:"type:char(36);not null;uniqueIndex:idx_result_student_test;index" json:"test_schedule_id"`
	Score          int           `gorm:"not null" json:"score"`
	Grade          string        `gorm:"type:varchar(50)" json:"grade"`
	GradeColor     string        `gorm:"type:varchar(20)" json:"grade_color"`
	CompletionTime time.Time     `gorm:"autoCreateTime;index" json:"completion_time"`
	Student        *Student      `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	TestSchedule   *TestSchedule `gorm:"foreignKey:TestScheduleID" json:"test,omitempty"`
}

// BeforeCreate derives the grade from the score; results are never graded
// anywhere else.
func (r *TestResult) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	g := grading.Grade(r.Score)
	r.Grade = g.Label
	r.GradeColor = g.Color
	return nil
}

// User represents staff accounts (admin/staff)
type User struct {
	BaseModel
	Email        string            `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string            `gorm:"type:varchar(255);not null" json:"-"`
	Role         string            `gorm:"type:varchar(20);not null" json:"role"`
	FullName     string            `gorm:"type:varchar(255);not null" json:"full_name"`
	IsActive     bool              `gorm:"default:true" json:"is_active"`
	Meta         datatypes.JSONMap `json:"meta"`
}

// AuditLog tracks staff batch operations and deletions
type AuditLog struct {
	ID           uuid.UUID         `gorm:"type:char(36);primaryKey" json:"id"`
	ActorUserID  uuid.UUID         `gorm:"type:char(36);index" json:"actor_user_id"`
	Action       string            `gorm:"type:varchar(50);not null" json:"action"`
	ResourceType string            `gorm:"type:varchar(50);not null;index" json:"resource_type"`
	ResourceID   uuid.UUID         `gorm:"type:char(36);index" json:"resource_id"`
	Before       datatypes.JSONMap `json:"before"`
	After        datatypes.JSONMap `json:"after"`
	Timestamp    time.Time         `gorm:"autoCreateTime;index" json:"timestamp"`
	IP           string            `gorm:"type:varchar(45)" json:"ip"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// RefreshToken stores refresh tokens for revocation. Principal tells which
// table SubjectID points into.
type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	SubjectID uuid.UUID `gorm:"type:char(36);not null;index" json:"subject_id"`
	Principal string    `gorm:"type:varchar(20);not null" json:"principal"`
	Token     string    `gorm:"type:varchar(500);uniqueIndex;not null" json:"token"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	Revoked   bool      `gorm:"default:false;index" json:"revoked"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (r *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
