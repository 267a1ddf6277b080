package services

import (
	"bytes"
	"context"
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/test-portal/backend/internal/config"
	"github.com/test-portal/backend/internal/database/databasetest"
	"github.com/test-portal/backend/internal/models"
	"github.com/test-portal/backend/internal/tabular"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const importHeader = "Question Text,Option 1,Option 2,Option 3,Option 4,Correct Option Number\n"

func newImportFixture(t *testing.T, mode string) (*ImportService, *gorm.DB, *models.TestSchedule) {
	t.Helper()
	db := databasetest.New(t)
	group := createGroup(t, db, "CS-101")
	test := activeTest(t, db, group.ID, "Algebra")
	return NewImportService(db, mode), db, test
}

func loadQuestions(t *testing.T, db *gorm.DB, testID uuid.UUID) []models.Question {
	t.Helper()
	var qs []models.Question
	err := db.Preload("AnswerOptions", func(tx *gorm.DB) *gorm.DB { return tx.Order("position") }).
		Where("test_schedule_id = ?", testID).Order("position").Find(&qs).Error
	if err != nil {
		t.Fatalf("load questions: %v", err)
	}
	return qs
}

func recordedCount(t *testing.T, db *gorm.DB, testID uuid.UUID) int {
	t.Helper()
	var ts models.TestSchedule
	if err := db.First(&ts, "id = ?", testID).Error; err != nil {
		t.Fatalf("load test: %v", err)
	}
	return ts.NumQuestions
}

func TestImportCSV(t *testing.T) {
	svc, db, test := newImportFixture(t, config.ImportBestEffort)

	data := importHeader +
		"What is 2+2?,3,4,5,6,2\n" +
		"Capital of Uzbekistan?,Tashkent,Samarkand,Bukhara,Khiva,1\n" +
		"\"Largest planet, by mass?\",Mars,Venus,Earth,Jupiter,4\n"

	n, err := svc.Import(context.Background(), test.ID, "bank.csv", strings.NewReader(data))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("Expected 3 questions imported, got %d", n)
	}

	qs := loadQuestions(t, db, test.ID)
	if len(qs) != 3 {
		t.Fatalf("Expected 3 questions, got %d", len(qs))
	}
	if got := count(t, db, &models.AnswerOption{}, ""); got != 12 {
		t.Errorf("Expected 12 options, got %d", got)
	}

	wantCorrect := []int{2, 1, 4}
	for i, q := range qs {
		if len(q.AnswerOptions) != 4 {
			t.Fatalf("Question %d: expected 4 options, got %d", i, len(q.AnswerOptions))
		}
		var correct []int
		for _, o := range q.AnswerOptions {
			if o.IsCorrect {
				correct = append(correct, o.Position)
			}
		}
		if !reflect.DeepEqual(correct, []int{wantCorrect[i]}) {
			t.Errorf("Question %d: expected correct position %d, got %v", i, wantCorrect[i], correct)
		}
	}
	if qs[2].QuestionText != "Largest planet, by mass?" {
		t.Errorf("Unexpected question text %q", qs[2].QuestionText)
	}
	if got := recordedCount(t, db, test.ID); got != 3 {
		t.Errorf("Expected recorded count 3, got %d", got)
	}
}

func TestImportXLSX(t *testing.T) {
	svc, db, test := newImportFixture(t, config.ImportBestEffort)
	createQuestion(t, db, test.ID, 1, 1)

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"Question Text", "Option 1", "Option 2", "Option 3", "Option 4", "Correct Option Number"},
		{"Speed of light?", "c", "g", "h", "e", 1},
		{"Boiling point of water?", "90", "100", "110", "120", 2.0},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	n, err := svc.Import(context.Background(), test.ID, "Bank.XLSX", &buf)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("Expected 2, got %d", n)
	}

	qs := loadQuestions(t, db, test.ID)
	if len(qs) != 3 {
		t.Fatalf("Expected existing question plus 2 imported, got %d", len(qs))
	}
	if qs[1].Position != 2 || qs[2].Position != 3 {
		t.Errorf("Expected imported questions to follow existing ones, got positions %d, %d", qs[1].Position, qs[2].Position)
	}
	if !qs[2].AnswerOptions[1].IsCorrect {
		t.Errorf("Expected option 2 correct for float cell value")
	}
	if got := recordedCount(t, db, test.ID); got != 3 {
		t.Errorf("Expected recorded count 3, got %d", got)
	}
}

func TestImportXLS(t *testing.T) {
	svc, db, test := newImportFixture(t, config.ImportAtomic)

	f, err := os.Open("../tabular/testdata/questions.xls")
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer f.Close()

	n, err := svc.Import(context.Background(), test.ID, "bank.xls", f)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("Expected 3 questions imported, got %d", n)
	}

	wantCorrect := []int{2, 1, 4}
	for i, q := range loadQuestions(t, db, test.ID) {
		var correct []int
		for _, o := range q.AnswerOptions {
			if o.IsCorrect {
				correct = append(correct, o.Position)
			}
		}
		if !reflect.DeepEqual(correct, []int{wantCorrect[i]}) {
			t.Errorf("Question %d: expected correct position %d, got %v", i, wantCorrect[i], correct)
		}
	}
}

func TestImportMissingColumns(t *testing.T) {
	svc, db, test := newImportFixture(t, config.ImportBestEffort)

	data := "Question Text,Option 1,Option 2,Option 4,Correct Option Number\n" +
		"What is 2+2?,3,4,6,2\n"

	n, err := svc.Import(context.Background(), test.ID, "bank.csv", strings.NewReader(data))
	var missing *MissingColumnsError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected MissingColumnsError, got %v", err)
	}
	if !reflect.DeepEqual(missing.Columns, []string{"Option 3"}) {
		t.Errorf("Expected [Option 3], got %v", missing.Columns)
	}
	if err.Error() != "missing columns: Option 3" {
		t.Errorf("Unexpected message %q", err.Error())
	}
	if KindOf(err) != KindSchemaMismatch {
		t.Errorf("Expected kind %s, got %s", KindSchemaMismatch, KindOf(err))
	}
	if n != 0 {
		t.Errorf("Expected 0, got %d", n)
	}
	if got := count(t, db, &models.Question{}, ""); got != 0 {
		t.Errorf("Expected no questions, got %d", got)
	}
	if got := count(t, db, &models.AnswerOption{}, ""); got != 0 {
		t.Errorf("Expected no options, got %d", got)
	}
}

func TestImportRejectsUnsupportedFormat(t *testing.T) {
	svc, db, test := newImportFixture(t, config.ImportBestEffort)

	_, err := svc.Import(context.Background(), test.ID, "bank.txt", strings.NewReader(importHeader+"q,a,b,c,d,1\n"))
	if !errors.Is(err, tabular.ErrUnsupportedFormat) {
		t.Fatalf("Expected ErrUnsupportedFormat, got %v", err)
	}
	if KindOf(err) != KindValidation {
		t.Errorf("Expected kind %s, got %s", KindValidation, KindOf(err))
	}
	if got := count(t, db, &models.Question{}, ""); got != 0 {
		t.Errorf("Expected no questions, got %d", got)
	}
}

func TestImportUnreadableFile(t *testing.T) {
	svc, _, test := newImportFixture(t, config.ImportBestEffort)

	_, err := svc.Import(context.Background(), test.ID, "bank.xlsx", strings.NewReader("plain text"))
	var procErr *ProcessingError
	if !errors.As(err, &procErr) {
		t.Fatalf("Expected ProcessingError, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "processing error: ") {
		t.Errorf("Unexpected message %q", err.Error())
	}
}

func TestImportOutOfRangeCorrectOption(t *testing.T) {
	svc, db, test := newImportFixture(t, config.ImportBestEffort)

	data := importHeader + "Trick question?,a,b,c,d,7\n"
	n, err := svc.Import(context.Background(), test.ID, "bank.csv", strings.NewReader(data))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("Expected the row to be accepted, got %d", n)
	}
	if got := count(t, db, &models.AnswerOption{}, "is_correct = ?", true); got != 0 {
		t.Errorf("Expected no correct options, got %d", got)
	}
	if got := count(t, db, &models.AnswerOption{}, ""); got != 4 {
		t.Errorf("Expected 4 options, got %d", got)
	}
}

func TestImportRowFailure(t *testing.T) {
	data := importHeader +
		"First?,a,b,c,d,1\n" +
		"Second?,a,b,c,d,2\n" +
		"Third?,a,b,c,d,three\n" +
		"Fourth?,a,b,c,d,4\n"

	tests := []struct {
		name          string
		mode          string
		wantImported  int
		wantQuestions int64
		wantRecorded  int
	}{
		{"Best Effort Keeps Earlier Rows", config.ImportBestEffort, 2, 2, 2},
		{"Atomic Rolls Back", config.ImportAtomic, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, db, test := newImportFixture(t, tt.mode)

			n, err := svc.Import(context.Background(), test.ID, "bank.csv", strings.NewReader(data))
			var rowErr *RowError
			if !errors.As(err, &rowErr) {
				t.Fatalf("Expected RowError, got %v", err)
			}
			if KindOf(err) != KindRowProcessing {
				t.Errorf("Expected kind %s, got %s", KindRowProcessing, KindOf(err))
			}
			if rowErr.Row != 4 {
				t.Errorf("Expected failure on line 4, got %d", rowErr.Row)
			}
			if n != tt.wantImported || rowErr.Imported != tt.wantImported {
				t.Errorf("Expected %d imported, got %d (error reports %d)", tt.wantImported, n, rowErr.Imported)
			}
			if got := count(t, db, &models.Question{}, ""); got != tt.wantQuestions {
				t.Errorf("Expected %d questions, got %d", tt.wantQuestions, got)
			}
			if got := count(t, db, &models.AnswerOption{}, ""); got != tt.wantQuestions*4 {
				t.Errorf("Expected %d options, got %d", tt.wantQuestions*4, got)
			}
			if got := recordedCount(t, db, test.ID); got != tt.wantRecorded {
				t.Errorf("Expected recorded count %d, got %d", tt.wantRecorded, got)
			}
		})
	}
}

func TestImportNonFiniteCorrectOption(t *testing.T) {
	for _, v := range []string{"NaN", "inf", "-Inf", "1e20"} {
		t.Run(v, func(t *testing.T) {
			svc, db, test := newImportFixture(t, config.ImportBestEffort)

			data := importHeader + "Overflow?,a,b,c,d," + v + "\n"
			n, err := svc.Import(context.Background(), test.ID, "bank.csv", strings.NewReader(data))
			var rowErr *RowError
			if !errors.As(err, &rowErr) {
				t.Fatalf("Expected RowError, got %v", err)
			}
			if rowErr.Row != 2 || n != 0 {
				t.Errorf("Expected failure on line 2 with nothing imported, got line %d and %d", rowErr.Row, n)
			}
			if got := count(t, db, &models.Question{}, ""); got != 0 {
				t.Errorf("Expected no questions, got %d", got)
			}
		})
	}
}

func TestImportUnknownTest(t *testing.T) {
	svc, _, _ := newImportFixture(t, config.ImportBestEffort)

	_, err := svc.Import(context.Background(), uuid.New(), "bank.csv", strings.NewReader(importHeader))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestParseOptionNumber(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"2", 2, true},
		{"4.0", 4, true},
		{"0", 0, true},
		{"-1", -1, true},
		{"2.7", 2, true},
		{"NaN", 0, false},
		{"inf", 0, false},
		{"-Inf", 0, false},
		{"1e20", 0, false},
		{"-1e20", 0, false},
		{"", 0, false},
		{"two", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseOptionNumber(tt.in)
			if got != tt.want || ok != tt.ok {
				t.Errorf("parseOptionNumber(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}
