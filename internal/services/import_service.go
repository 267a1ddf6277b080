package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/test-portal/backend/internal/config"
	"github.com/test-portal/backend/internal/metrics"
	"github.com/test-portal/backend/internal/models"
	"github.com/test-portal/backend/internal/tabular"
	"gorm.io/gorm"
)

// Import file columns.
const (
	ColumnQuestionText  = "Question Text"
	ColumnCorrectOption = "Correct Option Number"
	OptionsPerRow       = 4
	maxAnswerTextLength = 500
)

// RequiredColumns lists the header every import file must carry.
var RequiredColumns = []string{
	ColumnQuestionText,
	optionColumn(1), optionColumn(2), optionColumn(3), optionColumn(4),
	ColumnCorrectOption,
}

func optionColumn(n int) string {
	return fmt.Sprintf("Option %d", n)
}

type ImportService struct {
	db   *gorm.DB
	mode string
}

func NewImportService(db *gorm.DB, mode string) *ImportService {
	if mode != config.ImportAtomic {
		mode = config.ImportBestEffort
	}
	return &ImportService{db: db, mode: mode}
}

func (s *ImportService) Mode() string {
	return s.mode
}

// importRow is one parsed data row. Correct is 1-based; values outside
// 1..4 leave every option incorrect.
type importRow struct {
	line     int
	question string
	options  [OptionsPerRow]string
	correct  int
	numeric  bool
}

// Import reads questions from the named file and appends them to the test.
// It returns the number of questions created.
//
// The suffix decides the format and is checked before parsing. A missing
// column fails the import before anything is written. Row failures leave
// earlier rows committed in best_effort mode and nothing committed in
// atomic mode; either way the returned *RowError reports the count that
// stayed. The test's recorded question count is synchronised afterwards.
func (s *ImportService) Import(ctx context.Context, testID uuid.UUID, fileName string, r io.Reader) (int, error) {
	n, err := s.importFile(ctx, testID, fileName, r)
	if err != nil {
		metrics.ImportFailures.WithLabelValues(KindOf(err)).Inc()
		slog.Warn("question import failed", "test_id", testID, "file", fileName, "mode", s.mode, "error", err)
	}
	if n > 0 {
		metrics.QuestionsImported.Add(float64(n))
	}
	return n, err
}

func (s *ImportService) importFile(ctx context.Context, testID uuid.UUID, fileName string, r io.Reader) (int, error) {
	db := s.db.WithContext(ctx)

	var test models.TestSchedule
	if err := db.First(&test, "id = ?", testID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}

	format, err := tabular.FormatFromName(fileName)
	if err != nil {
		return 0, err
	}

	table, err := tabular.Parse(format, r)
	if err != nil {
		return 0, &ProcessingError{Err: err}
	}

	if missing := table.Missing(RequiredColumns...); len(missing) > 0 {
		return 0, &MissingColumnsError{Columns: missing}
	}

	rows := make([]importRow, len(table.Rows))
	for i := range table.Rows {
		rows[i] = readRow(table, i)
	}

	var position int
	if err := db.Model(&models.Question{}).
		Where("test_schedule_id = ?", testID).
		Select("COALESCE(MAX(position), 0)").
		Scan(&position).Error; err != nil {
		return 0, err
	}

	if s.mode == config.ImportAtomic {
		return s.importAtomic(db, &test, rows, position)
	}
	return s.importBestEffort(db, &test, rows, position)
}

func (s *ImportService) importAtomic(db *gorm.DB, test *models.TestSchedule, rows []importRow, position int) (int, error) {
	var failed *RowError
	err := db.Transaction(func(tx *gorm.DB) error {
		for i, row := range rows {
			if err := createImportedQuestion(tx, test.ID, row, position+i+1); err != nil {
				failed = &RowError{Row: row.line, Err: err}
				return failed
			}
		}
		return syncQuestionCount(tx, test.ID)
	})
	if failed != nil {
		return 0, failed
	}
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *ImportService) importBestEffort(db *gorm.DB, test *models.TestSchedule, rows []importRow, position int) (int, error) {
	imported := 0
	for i, row := range rows {
		err := db.Transaction(func(tx *gorm.DB) error {
			return createImportedQuestion(tx, test.ID, row, position+i+1)
		})
		if err != nil {
			if syncErr := syncQuestionCount(db, test.ID); syncErr != nil {
				slog.Error("sync question count", "test_id", test.ID, "error", syncErr)
			}
			return imported, &RowError{Row: row.line, Imported: imported, Err: err}
		}
		imported++
	}

	if err := syncQuestionCount(db, test.ID); err != nil {
		return imported, err
	}
	return imported, nil
}

func readRow(table *tabular.Table, i int) importRow {
	row := importRow{
		line:     i + 2,
		question: table.Value(i, ColumnQuestionText),
	}
	for n := 1; n <= OptionsPerRow; n++ {
		row.options[n-1] = table.Value(i, optionColumn(n))
	}
	row.correct, row.numeric = parseOptionNumber(table.Value(i, ColumnCorrectOption))
	return row
}

// parseOptionNumber accepts integers and the float rendering spreadsheets
// give numeric cells ("2.0"), truncating the fraction. NaN, infinities and
// values outside the int32 range are not numbers here.
func parseOptionNumber(v string) (int, bool) {
	if n, err := strconv.Atoi(v); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || f >= math.MaxInt32+1 || f <= math.MinInt32-1 {
		return 0, false
	}
	return int(f), true
}

func createImportedQuestion(tx *gorm.DB, testID uuid.UUID, row importRow, position int) error {
	if !row.numeric {
		return errors.New("correct option number is not a number")
	}
	if strings.TrimSpace(row.question) == "" {
		return errors.New("question text is empty")
	}
	for i, text := range row.options {
		if utf8.RuneCountInString(text) > maxAnswerTextLength {
			return fmt.Errorf("option %d is longer than %d characters", i+1, maxAnswerTextLength)
		}
	}

	question := models.Question{
		TestScheduleID: &testID,
		Position:       position,
		QuestionText:   row.question,
	}
	if err := tx.Create(&question).Error; err != nil {
		return err
	}

	options := make([]models.AnswerOption, OptionsPerRow)
	for i, text := range row.options {
		options[i] = models.AnswerOption{
			QuestionID: question.ID,
			Position:   i + 1,
			AnswerText: text,
			IsCorrect:  row.correct == i+1,
		}
	}
	return tx.Create(&options).Error
}

// syncQuestionCount stores the true number of questions on the test.
func syncQuestionCount(db *gorm.DB, testID uuid.UUID) error {
	var n int64
	if err := db.Model(&models.Question{}).Where("test_schedule_id = ?", testID).Count(&n).Error; err != nil {
		return err
	}
	return db.Model(&models.TestSchedule{}).Where("id = ?", testID).Update("num_questions", n).Error
}
