package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/yolan2/tandonia/config"
	"github.com/yolan2/tandonia/models"
	"github.com/yolan2/tandonia/utils"
)

type AuthService struct {
	b *config.Backends
}

func NewAuthService(b *config.Backends) *AuthService {
	return &AuthService{b: b}
}

type AuthResult struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	Token    string `json:"token"`
}

// Register creates a user and returns a session token. When the managed
// backend is configured its auth service owns the accounts; otherwise users
// live in the local users table with bcrypt hashes and HS256 tokens.
func (s *AuthService) Register(ctx context.Context, email, password, fullName string) (*AuthResult, error) {
	if s.b.HasSupabase() {
		session, err := s.b.Supa.Auth().SignUp(ctx, email, password, map[string]interface{}{
			"full_name": fullName,
		})
		if err != nil {
			return nil, fmt.Errorf("sign up: %w", err)
		}
		result := &AuthResult{Email: email, FullName: fullName, Token: session.AccessToken}
		if session.User != nil {
			result.UserID = session.User.ID
		}
		return result, nil
	}

	if !s.b.HasDB() {
		return nil, ErrUnavailable
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := models.User{Email: email, Password: hashed, FullName: fullName}
	if err := s.b.DB.WithContext(ctx).Create(&user).Error; err != nil {
		markIfConnDown(s.b, err)
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "UNIQUE") {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	token, err := utils.GenerateJWT(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		UserID:   strconv.FormatUint(uint64(user.ID), 10),
		Email:    user.Email,
		FullName: user.FullName,
		Token:    token,
	}, nil
}

// Login verifies credentials and returns a fresh token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	if s.b.HasSupabase() {
		session, err := s.b.Supa.Auth().SignInWithPassword(ctx, email, password)
		if err != nil {
			return nil, ErrInvalidCredentials
		}
		result := &AuthResult{Email: email, Token: session.AccessToken}
		if session.User != nil {
			result.UserID = session.User.ID
		}
		return result, nil
	}

	if !s.b.HasDB() {
		return nil, ErrUnavailable
	}

	var user models.User
	err := s.b.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		markIfConnDown(s.b, err)
		return nil, err
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return nil, ErrInvalidCredentials
	}

	token, err := utils.GenerateJWT(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		UserID:   strconv.FormatUint(uint64(user.ID), 10),
		Email:    user.Email,
		FullName: user.FullName,
		Token:    token,
	}, nil
}
