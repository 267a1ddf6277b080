package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/test-portal/backend/internal/models"
	"gorm.io/gorm"
)

// Unassigned is shown for students without a group.
const Unassigned = "Unassigned"

type PasswordHasher interface {
	HashPassword(password string) (string, error)
}

type StudentService struct {
	db     *gorm.DB
	hasher PasswordHasher
}

func NewStudentService(db *gorm.DB, hasher PasswordHasher) *StudentService {
	return &StudentService{db: db, hasher: hasher}
}

type RegisterStudentInput struct {
	Username        string `json:"username" validate:"required,min=3,max=150"`
	Password        string `json:"password" validate:"required,min=8,max=128"`
	FullName        string `json:"full_name" validate:"required,max=255"`
	PassportNumber  string `json:"passport_number" validate:"required,passport"`
	PhoneNumber     string `json:"phone_number" validate:"required,phone"`
	Address         string `json:"address" validate:"required,max=255"`
	GroupID         string `json:"group_id" validate:"required,uuid"`
	ProfileImageURL string `json:"profile_image_url" validate:"omitempty,url,max=500"`
}

// Register creates a student account. Field problems, including taken
// usernames, passports and phone numbers, come back as a *ValidationError.
func (s *StudentService) Register(ctx context.Context, in RegisterStudentInput) (*models.Student, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.FullName = strings.TrimSpace(in.FullName)
	in.PassportNumber = strings.TrimSpace(in.PassportNumber)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)

	if err := validateStruct(in); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)

	groupID := uuid.MustParse(in.GroupID)
	var group models.Group
	if err := db.First(&group, "id = ?", groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewValidationError("group_id", "unknown group")
		}
		return nil, err
	}

	taken := &ValidationError{Fields: map[string]string{}}
	for column, value := range map[string]string{
		"username":        in.Username,
		"passport_number": in.PassportNumber,
		"phone_number":    in.PhoneNumber,
	} {
		var n int64
		if err := db.Unscoped().Model(&models.Student{}).Where(column+" = ?", value).Count(&n).Error; err != nil {
			return nil, err
		}
		if n > 0 {
			taken.Fields[column] = "is already registered"
		}
	}
	if len(taken.Fields) > 0 {
		return nil, taken
	}

	hash, err := s.hasher.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	student := &models.Student{
		Username:        in.Username,
		PasswordHash:    hash,
		FullName:        in.FullName,
		PassportNumber:  in.PassportNumber,
		PhoneNumber:     in.PhoneNumber,
		Address:         in.Address,
		ProfileImageURL: in.ProfileImageURL,
		GroupID:         &groupID,
	}
	if err := db.Create(student).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, NewValidationError("username", "is already registered")
		}
		return nil, err
	}
	student.Group = &group

	slog.Info("student registered", "student_id", student.ID, "group_id", groupID)
	return student, nil
}

type StudentProfile struct {
	Student   *models.Student     `json:"student"`
	GroupName string              `json:"group_name"`
	Results   []models.TestResult `json:"results"`
}

// Profile returns the student with their results, newest first.
func (s *StudentService) Profile(ctx context.Context, studentID uuid.UUID) (*StudentProfile, error) {
	student, err := s.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}

	var results []models.TestResult
	if err := s.db.WithContext(ctx).Preload("TestSchedule").
		Where("student_id = ?", studentID).
		Order("completion_time DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}

	profile := &StudentProfile{Student: student, GroupName: Unassigned, Results: results}
	if student.Group != nil {
		profile.GroupName = student.Group.Name
	}
	return profile, nil
}

func (s *StudentService) Get(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	var student models.Student
	if err := s.db.WithContext(ctx).Preload("Group").First(&student, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &student, nil
}

type StudentFilter struct {
	GroupID *uuid.UUID
	Search  string
}

// List returns students ordered by full name.
func (s *StudentService) List(ctx context.Context, f StudentFilter) ([]models.Student, error) {
	q := s.db.WithContext(ctx).Preload("Group").Order("full_name")
	if f.GroupID != nil {
		q = q.Where("group_id = ?", *f.GroupID)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(full_name) LIKE ? OR LOWER(username) LIKE ? OR passport_number LIKE ?", like, like, "%"+strings.ToUpper(term)+"%")
	}

	var students []models.Student
	if err := q.Find(&students).Error; err != nil {
		return nil, err
	}
	return students, nil
}
