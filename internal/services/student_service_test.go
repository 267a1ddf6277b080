package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/test-portal/backend/internal/database/databasetest"
	"github.com/test-portal/backend/internal/models"
)

type plainHasher struct{}

func (plainHasher) HashPassword(password string) (string, error) {
	return "hashed:" + password, nil
}

func validRegistration(groupID uuid.UUID) RegisterStudentInput {
	return RegisterStudentInput{
		Username:       "aziz",
		Password:       "s3cret-pass",
		FullName:       "Aziz Karimov",
		PassportNumber: "AA1234567",
		PhoneNumber:    "+998901234567",
		Address:        "Tashkent",
		GroupID:        groupID.String(),
	}
}

func TestRegisterStudent(t *testing.T) {
	db := databasetest.New(t)
	group := createGroup(t, db, "CS-101")
	svc := NewStudentService(db, plainHasher{})

	student, err := svc.Register(context.Background(), validRegistration(group.ID))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if student.PasswordHash != "hashed:s3cret-pass" {
		t.Errorf("Expected password to be hashed, got %q", student.PasswordHash)
	}
	if student.GroupID == nil || *student.GroupID != group.ID {
		t.Errorf("Expected group %s, got %v", group.ID, student.GroupID)
	}
}

func TestRegisterStudentValidation(t *testing.T) {
	db := databasetest.New(t)
	group := createGroup(t, db, "CS-101")
	svc := NewStudentService(db, plainHasher{})

	tests := []struct {
		name   string
		modify func(*RegisterStudentInput)
		field  string
	}{
		{"Lowercase Passport", func(in *RegisterStudentInput) { in.PassportNumber = "aa1234567" }, "passport_number"},
		{"Short Passport", func(in *RegisterStudentInput) { in.PassportNumber = "AA123456" }, "passport_number"},
		{"Foreign Phone", func(in *RegisterStudentInput) { in.PhoneNumber = "+79011234567" }, "phone_number"},
		{"Short Phone", func(in *RegisterStudentInput) { in.PhoneNumber = "+99890123456" }, "phone_number"},
		{"Short Password", func(in *RegisterStudentInput) { in.Password = "short" }, "password"},
		{"Missing Group", func(in *RegisterStudentInput) { in.GroupID = "" }, "group_id"},
		{"Unknown Group", func(in *RegisterStudentInput) { in.GroupID = uuid.NewString() }, "group_id"},
		{"Missing Full Name", func(in *RegisterStudentInput) { in.FullName = "  " }, "full_name"},
		{"Bad Image URL", func(in *RegisterStudentInput) { in.ProfileImageURL = "not a url" }, "profile_image_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validRegistration(group.ID)
			tt.modify(&in)

			_, err := svc.Register(context.Background(), in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if _, ok := verr.Fields[tt.field]; !ok {
				t.Errorf("Expected message for %s, got %v", tt.field, verr.Fields)
			}
			if KindOf(err) != KindValidation {
				t.Errorf("Expected kind %s, got %s", KindValidation, KindOf(err))
			}
		})
	}

	if n := count(t, db, &models.Student{}, ""); n != 0 {
		t.Errorf("Expected no students stored, got %d", n)
	}
}

func TestRegisterStudentUniqueness(t *testing.T) {
	db := databasetest.New(t)
	group := createGroup(t, db, "CS-101")
	svc := NewStudentService(db, plainHasher{})
	ctx := context.Background()

	if _, err := svc.Register(ctx, validRegistration(group.ID)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	in := validRegistration(group.ID)
	in.Username = "someone-else"
	_, err := svc.Register(ctx, in)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	for _, field := range []string{"passport_number", "phone_number"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Errorf("Expected %s to be reported as taken, got %v", field, verr.Fields)
		}
	}
	if _, ok := verr.Fields["username"]; ok {
		t.Errorf("Username is free and should not be reported")
	}
}

func TestStudentProfile(t *testing.T) {
	db := databasetest.New(t)
	group := createGroup(t, db, "CS-101")
	first := activeTest(t, db, group.ID, "Algebra")
	second := activeTest(t, db, group.ID, "Geometry")
	student := createStudent(t, db, "aziz", &group.ID)
	loner := createStudent(t, db, "loner", nil)

	older := &models.TestResult{StudentID: student.ID, TestScheduleID: first.ID, Score: 30, CompletionTime: fixedNow.Add(-time.Hour)}
	newer := &models.TestResult{StudentID: student.ID, TestScheduleID: second.ID, Score: 60, CompletionTime: fixedNow}
	for _, r := range []*models.TestResult{older, newer} {
		if err := db.Create(r).Error; err != nil {
			t.Fatalf("create result: %v", err)
		}
	}

	svc := NewStudentService(db, plainHasher{})
	profile, err := svc.Profile(context.Background(), student.ID)
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if profile.GroupName != "CS-101" {
		t.Errorf("Expected group CS-101, got %q", profile.GroupName)
	}
	if len(profile.Results) != 2 || profile.Results[0].ID != newer.ID {
		t.Fatalf("Expected newest result first, got %+v", profile.Results)
	}
	if profile.Results[0].TestSchedule == nil || profile.Results[0].TestSchedule.Title != "Geometry" {
		t.Errorf("Expected test to be loaded")
	}

	lonerProfile, err := svc.Profile(context.Background(), loner.ID)
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if lonerProfile.GroupName != Unassigned {
		t.Errorf("Expected %q, got %q", Unassigned, lonerProfile.GroupName)
	}

	if _, err := svc.Profile(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestListStudents(t *testing.T) {
	db := databasetest.New(t)
	a := createGroup(t, db, "CS-101")
	b := createGroup(t, db, "CS-102")
	createStudent(t, db, "zed", &a.ID)
	createStudent(t, db, "amir", &a.ID)
	createStudent(t, db, "bobur", &b.ID)

	svc := NewStudentService(db, plainHasher{})

	inA, err := svc.List(context.Background(), StudentFilter{GroupID: &a.ID})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(inA) != 2 || inA[0].Username != "amir" {
		t.Errorf("Expected two students of CS-101 ordered by name, got %+v", inA)
	}

	found, err := svc.List(context.Background(), StudentFilter{Search: "BOB"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(found) != 1 || found[0].Username != "bobur" {
		t.Errorf("Expected search to find bobur, got %+v", found)
	}
}
