package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/test-portal/backend/internal/models"
	"github.com/test-portal/backend/internal/report"
	"gorm.io/gorm"
)

// Report titles.
const (
	TitleAllResults      = "Test Results"
	TitleResultsByTest   = "Test Results Report"
	TitleSelectedResults = "Selected Test Results"
)

// ReportService lists results for staff and builds export documents.
type ReportService struct {
	db  *gorm.DB
	loc *time.Location
}

func NewReportService(db *gorm.DB, loc *time.Location) *ReportService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportService{db: db, loc: loc}
}

type ResultFilter struct {
	TestID  *uuid.UUID
	GroupID *uuid.UUID
	Grade   string
	Search  string
}

func (s *ReportService) results(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.TestResult{}).
		Joins("JOIN students ON students.id = test_results.student_id AND students.deleted_at IS NULL").
		Joins("JOIN test_schedules ON test_schedules.id = test_results.test_schedule_id AND test_schedules.deleted_at IS NULL").
		Joins("LEFT JOIN student_groups ON student_groups.id = students.group_id").
		Preload("Student.Group").
		Preload("TestSchedule")
}

// List returns results newest first, narrowed by the filter. Search matches
// the student's full name or the test title.
func (s *ReportService) List(ctx context.Context, f ResultFilter) ([]models.TestResult, error) {
	q := s.results(ctx).Order("test_results.completion_time DESC")
	if f.TestID != nil {
		q = q.Where("test_results.test_schedule_id = ?", *f.TestID)
	}
	if f.GroupID != nil {
		q = q.Where("students.group_id = ?", *f.GroupID)
	}
	if f.Grade != "" {
		q = q.Where("test_results.grade = ?", f.Grade)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(students.full_name) LIKE ? OR LOWER(test_schedules.title) LIKE ?", like, like)
	}

	var results []models.TestResult
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// AllResults orders every result by group name, student name and test title.
func (s *ReportService) AllResults(ctx context.Context) (report.Document, error) {
	var results []models.TestResult
	if err := s.results(ctx).
		Order("student_groups.name").
		Order("students.full_name").
		Order("test_schedules.title").
		Find(&results).Error; err != nil {
		return report.Document{}, err
	}
	return s.document(TitleAllResults, report.Section{Rows: rows(results)}), nil
}

// ByTests builds one section per test in the order given, each ordered by
// student name. Tests without results still get a section.
func (s *ReportService) ByTests(ctx context.Context, testIDs []uuid.UUID) (report.Document, error) {
	if len(testIDs) == 0 {
		return report.Document{}, NewValidationError("test_ids", "select at least one test")
	}

	db := s.db.WithContext(ctx)
	var tests []models.TestSchedule
	if err := db.Preload("Group").Where("id IN ?", testIDs).Find(&tests).Error; err != nil {
		return report.Document{}, err
	}
	byID := make(map[uuid.UUID]models.TestSchedule, len(tests))
	for _, t := range tests {
		byID[t.ID] = t
	}

	sections := make([]report.Section, 0, len(testIDs))
	seen := make(map[uuid.UUID]bool, len(testIDs))
	for _, id := range testIDs {
		test, ok := byID[id]
		if !ok {
			return report.Document{}, fmt.Errorf("test %s: %w", id, ErrNotFound)
		}
		if seen[id] {
			continue
		}
		seen[id] = true

		var results []models.TestResult
		if err := s.results(ctx).
			Where("test_results.test_schedule_id = ?", id).
			Order("students.full_name").
			Find(&results).Error; err != nil {
			return report.Document{}, err
		}

		group := report.NoGroup
		if test.Group != nil {
			group = test.Group.Name
		}
		sections = append(sections, report.Section{
			Heading: fmt.Sprintf("Test: %s (%s)", test.Title, group),
			Rows:    rows(results),
		})
	}
	return s.document(TitleResultsByTest, sections...), nil
}

// Selected lists the given results in the order given.
func (s *ReportService) Selected(ctx context.Context, resultIDs []uuid.UUID) (report.Document, error) {
	if len(resultIDs) == 0 {
		return report.Document{}, NewValidationError("result_ids", "select at least one result")
	}

	var results []models.TestResult
	if err := s.results(ctx).Where("test_results.id IN ?", resultIDs).Find(&results).Error; err != nil {
		return report.Document{}, err
	}
	byID := make(map[uuid.UUID]models.TestResult, len(results))
	for _, r := range results {
		byID[r.ID] = r
	}

	ordered := make([]models.TestResult, 0, len(resultIDs))
	for _, id := range resultIDs {
		r, ok := byID[id]
		if !ok {
			return report.Document{}, fmt.Errorf("result %s: %w", id, ErrNotFound)
		}
		ordered = append(ordered, r)
	}
	return s.document(TitleSelectedResults, report.Section{Rows: rows(ordered)}), nil
}

func (s *ReportService) document(title string, sections ...report.Section) report.Document {
	return report.Document{Title: title, Sections: sections, Location: s.loc}
}

// Row converts a result with its student, group and test loaded.
func Row(r models.TestResult) report.Row {
	row := report.Row{
		Score:       r.Score,
		Grade:       r.Grade,
		CompletedAt: r.CompletionTime,
	}
	if r.Student != nil {
		row.StudentName = r.Student.FullName
		row.Passport = r.Student.PassportNumber
		row.Phone = r.Student.PhoneNumber
		if r.Student.Group != nil {
			row.Group = r.Student.Group.Name
		}
	}
	if r.TestSchedule != nil {
		row.TestTitle = r.TestSchedule.Title
	}
	return row
}

func rows(results []models.TestResult) []report.Row {
	out := make([]report.Row, len(results))
	for i, r := range results {
		out[i] = Row(r)
	}
	return out
}
