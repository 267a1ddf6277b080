package services

import (
	"github.com/google/uuid"
	"github.com/test-portal/backend/internal/models"
	"gorm.io/gorm"
)

// PurgeOrphanQuestions hard-deletes questions with no test schedule and
// their options. It returns how many of each were removed.
func PurgeOrphanQuestions(db *gorm.DB) (questions, options int64, err error) {
	err = db.Transaction(func(tx *gorm.DB) error {
		var ids []uuid.UUID
		if err := tx.Unscoped().Model(&models.Question{}).Where("test_schedule_id IS NULL").Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		res := tx.Unscoped().Where("question_id IN ?", ids).Delete(&models.AnswerOption{})
		if res.Error != nil {
			return res.Error
		}
		options = res.RowsAffected

		res = tx.Unscoped().Where("id IN ?", ids).Delete(&models.Question{})
		if res.Error != nil {
			return res.Error
		}
		questions = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return questions, options, nil
}
