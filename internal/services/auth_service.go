package services

import (
	"context"
	"errors"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/test-portal/backend/internal/config"
	"github.com/test-portal/backend/internal/models"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotActive      = errors.New("user not active")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenRevoked       = errors.New("token revoked")
)

// Principals a token can be issued to.
const (
	PrincipalStaff   = "staff"
	PrincipalStudent = "student"
)

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

type AuthService struct {
	db     *gorm.DB
	cfg    *config.Config
	params *argon2id.Params
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type Claims struct {
	SubjectID uuid.UUID `json:"sub_id"`
	Principal string    `json:"principal"`
	Role      string    `json:"role"`
	Login     string    `json:"login"`
	TokenType string    `json:"typ"`
	jwt.RegisteredClaims
}

// account is what a token is minted for.
type account struct {
	id        uuid.UUID
	principal string
	role      string
	login     string
}

func staffAccount(u *models.User) account {
	return account{id: u.ID, principal: PrincipalStaff, role: u.Role, login: u.Email}
}

func studentAccount(s *models.Student) account {
	return account{id: s.ID, principal: PrincipalStudent, role: models.RoleStudent, login: s.Username}
}

func NewAuthService(db *gorm.DB, cfg *config.Config) *AuthService {
	params := &argon2id.Params{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}

	return &AuthService{
		db:     db,
		cfg:    cfg,
		params: params,
	}
}

func (s *AuthService) HashPassword(password string) (string, error) {
	return argon2id.CreateHash(password, s.params)
}

func (s *AuthService) VerifyPassword(hash, password string) (bool, error) {
	return argon2id.ComparePasswordAndHash(password, hash)
}

// Login authenticates a staff member by email.
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, *models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if !user.IsActive {
		return nil, nil, ErrUserNotActive
	}

	match, err := s.VerifyPassword(user.PasswordHash, password)
	if err != nil || !match {
		return nil, nil, ErrInvalidCredentials
	}

	tokens, err := s.issue(ctx, staffAccount(&user))
	if err != nil {
		return nil, nil, err
	}

	return tokens, &user, nil
}

// StudentLogin authenticates a student by username.
func (s *AuthService) StudentLogin(ctx context.Context, username, password string) (*TokenPair, *models.Student, error) {
	var student models.Student
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&student).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	match, err := s.VerifyPassword(student.PasswordHash, password)
	if err != nil || !match {
		return nil, nil, ErrInvalidCredentials
	}

	tokens, err := s.issue(ctx, studentAccount(&student))
	if err != nil {
		return nil, nil, err
	}

	return tokens, &student, nil
}

func (s *AuthService) IssueForStudent(ctx context.Context, student *models.Student) (*TokenPair, error) {
	return s.issue(ctx, studentAccount(student))
}

func (s *AuthService) sign(acct account, typ string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		SubjectID: acct.id,
		Principal: acct.principal,
		Role:      acct.role,
		Login:     acct.login,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   acct.id.String(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWT.Secret))
}

func (s *AuthService) issue(ctx context.Context, acct account) (*TokenPair, error) {
	accessToken, err := s.sign(acct, tokenAccess, s.cfg.JWT.AccessExpiry)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.sign(acct, tokenRefresh, s.cfg.JWT.RefreshExpiry)
	if err != nil {
		return nil, err
	}

	// Store refresh token
	rt := &models.RefreshToken{
		SubjectID: acct.id,
		Principal: acct.principal,
		Token:     refreshToken,
		ExpiresAt: time.Now().Add(s.cfg.JWT.RefreshExpiry),
	}
	if err := s.db.WithContext(ctx).Create(rt).Error; err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.cfg.JWT.AccessExpiry.Seconds()),
	}, nil
}

func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.verify(refreshToken, tokenRefresh)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)

	var rt models.RefreshToken
	if err := db.Where("token = ?", refreshToken).First(&rt).Error; err != nil {
		return nil, ErrInvalidToken
	}

	if rt.Revoked || time.Now().After(rt.ExpiresAt) {
		return nil, ErrTokenRevoked
	}

	var acct account
	switch rt.Principal {
	case PrincipalStudent:
		var student models.Student
		if err := db.First(&student, "id = ?", claims.SubjectID).Error; err != nil {
			return nil, ErrInvalidToken
		}
		acct = studentAccount(&student)
	default:
		var user models.User
		if err := db.First(&user, "id = ?", claims.SubjectID).Error; err != nil {
			return nil, ErrInvalidToken
		}
		if !user.IsActive {
			return nil, ErrUserNotActive
		}
		acct = staffAccount(&user)
	}

	// Revoke old token. Only one of two concurrent refreshes flips it.
	res := db.Model(&models.RefreshToken{}).Where("id = ? AND revoked = ?", rt.ID, false).Update("revoked", true)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != 1 {
		return nil, ErrTokenRevoked
	}

	return s.issue(ctx, acct)
}

// VerifyToken validates an access token.
func (s *AuthService) VerifyToken(tokenString string) (*Claims, error) {
	return s.verify(tokenString, tokenAccess)
}

func (s *AuthService) verify(tokenString, typ string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.cfg.JWT.Secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.TokenType == typ {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

func (s *AuthService) RevokeToken(ctx context.Context, refreshToken string) error {
	return s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token = ?", refreshToken).
		Update("revoked", true).Error
}

func (s *AuthService) CreateUser(ctx context.Context, user *models.User, password string) error {
	hash, err := s.HashPassword(password)
	if err != nil {
		return err
	}

	user.PasswordHash = hash
	return s.db.WithContext(ctx).Create(user).Error
}
