package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/test-portal/backend/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// StaffService manages admin and staff accounts.
type StaffService struct {
	db   *gorm.DB
	auth *AuthService
}

func NewStaffService(db *gorm.DB, auth *AuthService) *StaffService {
	return &StaffService{db: db, auth: auth}
}

type StaffInput struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"required,max=255"`
	Role     string `json:"role" validate:"required,oneof=admin staff"`
	Password string `json:"password" validate:"omitempty,min=8"`
}

// DefaultStaffPassword is used when an account is created without one. The
// account is flagged to change it.
const DefaultStaffPassword = "Staff@12345"

// Create adds a staff account. Without a password the default one is set and
// recorded in Meta so the user can be told.
func (s *StaffService) Create(ctx context.Context, in StaffInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	meta := datatypes.JSONMap{}
	password := in.Password
	if password == "" {
		password = DefaultStaffPassword
		meta["default_password"] = password
		meta["must_change_password"] = true
	}

	user := &models.User{
		Email:    in.Email,
		Role:     in.Role,
		FullName: in.FullName,
		IsActive: true,
		Meta:     meta,
	}
	if err := s.auth.CreateUser(ctx, user, password); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, NewValidationError("email", "is already registered")
		}
		return nil, fmt.Errorf("failed to create staff user: %w", err)
	}
	return user, nil
}

func (s *StaffService) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("full_name").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	return users, nil
}

// UpdateRole changes a staff member's role.
func (s *StaffService) UpdateRole(ctx context.Context, userID uuid.UUID, role string) error {
	if role != models.RoleAdmin && role != models.RoleStaff {
		return NewValidationError("role", fmt.Sprintf("invalid role: %s", role))
	}
	return s.update(ctx, userID, "role", role)
}

// SetActive enables or disables login for a staff member.
func (s *StaffService) SetActive(ctx context.Context, userID uuid.UUID, active bool) error {
	return s.update(ctx, userID, "is_active", active)
}

func (s *StaffService) update(ctx context.Context, userID uuid.UUID, column string, value interface{}) error {
	db := s.db.WithContext(ctx)
	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := db.Model(&user).Update(column, value).Error; err != nil {
		return fmt.Errorf("failed to update user %s: %w", column, err)
	}
	return nil
}
