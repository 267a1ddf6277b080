package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/test-portal/backend/internal/models"
	"gorm.io/gorm"
)

type GroupService struct {
	db *gorm.DB
}

func NewGroupService(db *gorm.DB) *GroupService {
	return &GroupService{db: db}
}

type GroupInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
	ResitGroup  bool   `json:"resit_group"`
}

func (s *GroupService) List(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	if err := s.db.WithContext(ctx).Order("name").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *GroupService) Create(ctx context.Context, in GroupInput) (*models.Group, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	group := &models.Group{Name: in.Name, Description: in.Description, ResitGroup: in.ResitGroup}
	if err := s.db.WithContext(ctx).Create(group).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, NewValidationError("name", "is already taken")
		}
		return nil, err
	}
	return group, nil
}

func (s *GroupService) Update(ctx context.Context, id uuid.UUID, in GroupInput) (*models.Group, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var group models.Group
	if err := db.First(&group, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	group.Name = in.Name
	group.Description = in.Description
	group.ResitGroup = in.ResitGroup
	if err := db.Save(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, NewValidationError("name", "is already taken")
		}
		return nil, err
	}
	return &group, nil
}

// Delete removes the group and every test scheduled for it. Students of the
// group are left without a group.
func (s *GroupService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var testIDs []uuid.UUID
		if err := tx.Unscoped().Model(&models.TestSchedule{}).Where("group_id = ?", id).Pluck("id", &testIDs).Error; err != nil {
			return err
		}
		if len(testIDs) > 0 {
			if err := deleteScheduleChildren(tx, testIDs); err != nil {
				return err
			}
			if err := tx.Unscoped().Where("id IN ?", testIDs).Delete(&models.TestSchedule{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(&models.Student{}).Where("group_id = ?", id).Update("group_id", nil).Error; err != nil {
			return err
		}

		res := tx.Unscoped().Where("id = ?", id).Delete(&models.Group{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
