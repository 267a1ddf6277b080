package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/test-portal/backend/internal/config"
	"github.com/test-portal/backend/internal/database/databasetest"
	"github.com/test-portal/backend/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:        "test-secret",
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: time.Hour,
		},
		Argon2: config.Argon2Config{
			Memory:      1024,
			Iterations:  1,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   32,
		},
	}
}

func TestStaffLogin(t *testing.T) {
	db := databasetest.New(t)
	svc := NewAuthService(db, testConfig())
	ctx := context.Background()

	user := &models.User{Email: "admin@portal.uz", Role: models.RoleAdmin, FullName: "Admin", IsActive: true}
	if err := svc.CreateUser(ctx, user, "correct-horse"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"Valid", "admin@portal.uz", "correct-horse", nil},
		{"Email Case Insensitive", "ADMIN@portal.uz", "correct-horse", nil},
		{"Wrong Password", "admin@portal.uz", "nope", ErrInvalidCredentials},
		{"Unknown Email", "who@portal.uz", "correct-horse", ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, _, err := svc.Login(ctx, tt.email, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr != nil {
				return
			}
			claims, err := svc.VerifyToken(tokens.AccessToken)
			if err != nil {
				t.Fatalf("VerifyToken failed: %v", err)
			}
			if claims.SubjectID != user.ID || claims.Role != models.RoleAdmin || claims.Principal != PrincipalStaff {
				t.Errorf("Unexpected claims %+v", claims)
			}
		})
	}

	t.Run("Inactive", func(t *testing.T) {
		if err := db.Model(user).Update("is_active", false).Error; err != nil {
			t.Fatalf("deactivate: %v", err)
		}
		if _, _, err := svc.Login(ctx, "admin@portal.uz", "correct-horse"); !errors.Is(err, ErrUserNotActive) {
			t.Errorf("Expected ErrUserNotActive, got %v", err)
		}
	})
}

func TestStudentLoginAndRefresh(t *testing.T) {
	db := databasetest.New(t)
	svc := NewAuthService(db, testConfig())
	ctx := context.Background()
	group := createGroup(t, db, "CS-101")

	students := NewStudentService(db, svc)
	in := validRegistration(group.ID)
	student, err := students.Register(ctx, in)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	tokens, _, err := svc.StudentLogin(ctx, in.Username, in.Password)
	if err != nil {
		t.Fatalf("StudentLogin failed: %v", err)
	}
	claims, err := svc.VerifyToken(tokens.AccessToken)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}
	if claims.SubjectID != student.ID || claims.Role != models.RoleStudent {
		t.Errorf("Unexpected claims %+v", claims)
	}

	if _, err := svc.VerifyToken(tokens.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Refresh token must not pass as an access token, got %v", err)
	}

	refreshed, err := svc.RefreshTokens(ctx, tokens.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshTokens failed: %v", err)
	}
	if refreshed.RefreshToken == tokens.RefreshToken {
		t.Errorf("Expected a new refresh token")
	}
	if _, err := svc.RefreshTokens(ctx, tokens.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("Expected reused refresh token to be revoked, got %v", err)
	}

	if err := svc.RevokeToken(ctx, refreshed.RefreshToken); err != nil {
		t.Fatalf("RevokeToken failed: %v", err)
	}
	if _, err := svc.RefreshTokens(ctx, refreshed.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("Expected logged out token to be revoked, got %v", err)
	}

	if _, _, err := svc.StudentLogin(ctx, in.Username, "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials, got %v", err)
	}
}

func TestConcurrentRefreshSucceedsOnce(t *testing.T) {
	db := databasetest.New(t)
	svc := NewAuthService(db, testConfig())
	ctx := context.Background()
	group := createGroup(t, db, "CS-101")

	in := validRegistration(group.ID)
	if _, err := NewStudentService(db, svc).Register(ctx, in); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	tokens, _, err := svc.StudentLogin(ctx, in.Username, in.Password)
	if err != nil {
		t.Fatalf("StudentLogin failed: %v", err)
	}

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.RefreshTokens(ctx, tokens.RefreshToken)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case !errors.Is(err, ErrTokenRevoked):
			t.Errorf("Expected ErrTokenRevoked, got %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("Expected exactly 1 successful refresh, got %d", succeeded)
	}
}
