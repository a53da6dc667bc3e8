package services

import (
	"context"
	"testing"
	"time"

	"github.com/dtorrez/rentora-api/internal/config"
	"github.com/dtorrez/rentora-api/internal/models"
	"github.com/dtorrez/rentora-api/internal/repository"
	"github.com/stretchr/testify/assert"
)

type mockUserRepo struct {
	repository.UserRepository
	mockFindByEmail func(ctx context.Context, email string) (*models.User, error)
	mockFindByID    func(ctx context.Context, id uint) (*models.User, error)
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.mockFindByEmail(ctx, email)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id uint) (*models.User, error) {
	return m.mockFindByID(ctx, id)
}

func authTestConfig() *config.Config {
	return &config.Config{
		JWTSecret:          "test-secret",
		JWTExpirationHours: 24,
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	mockRepo := &mockUserRepo{}
	mockRTRepo := &mockRefreshTokenRepo{}
	service := NewAuthService(mockRepo, mockRTRepo, authTestConfig())

	hash, err := HashPassword("secret123")
	assert.NoError(t, err)

	mockRepo.mockFindByEmail = func(ctx context.Context, email string) (*models.User, error) {
		return &models.User{
			ID:                5,
			OrgID:             1,
			Email:             email,
			FullName:          "Laura Mejía",
			Role:              models.RoleTenant,
			Status:            models.StatusActive,
			EncryptedPassword: hash,
		}, nil
	}
	var storedToken *models.RefreshToken
	mockRTRepo.mockCreate = func(ctx context.Context, rt *models.RefreshToken) error {
		storedToken = rt
		return nil
	}

	result, err := service.Login(context.Background(), "laura@example.com", "secret123")

	assert.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, uint(5), result.User.ID)
	if assert.NotNil(t, storedToken) {
		assert.Equal(t, uint(5), storedToken.UserID)
		assert.Equal(t, result.RefreshToken, storedToken.Token)
		assert.NotNil(t, storedToken.ExpiresAt)
	}
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	mockRepo := &mockUserRepo{}
	service := NewAuthService(mockRepo, nil, authTestConfig())

	hash, _ := HashPassword("secret123")
	mockRepo.mockFindByEmail = func(ctx context.Context, email string) (*models.User, error) {
		return &models.User{
			Email:             email,
			Status:            models.StatusActive,
			EncryptedPassword: hash,
		}, nil
	}

	result, err := service.Login(context.Background(), "laura@example.com", "not-the-password")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorContains(t, err, "credenciales inválidas")
}

func TestAuthService_Login_InactiveUser(t *testing.T) {
	mockRepo := &mockUserRepo{}
	service := NewAuthService(mockRepo, nil, authTestConfig())

	mockRepo.mockFindByEmail = func(ctx context.Context, email string) (*models.User, error) {
		return &models.User{
			Email:  email,
			Status: models.StatusInactive,
		}, nil
	}

	result, err := service.Login(context.Background(), "inactive@example.com", "password")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorContains(t, err, "cuenta inactiva o suspendida")
}

func TestAuthService_RefreshToken_InactiveUser(t *testing.T) {
	mockRepo := &mockUserRepo{}
	mockRTRepo := &mockRefreshTokenRepo{}
	service := NewAuthService(mockRepo, mockRTRepo, authTestConfig())

	mockRTRepo.mockFindByToken = func(ctx context.Context, token string) (*models.RefreshToken, error) {
		return &models.RefreshToken{UserID: 1}, nil
	}
	mockRepo.mockFindByID = func(ctx context.Context, id uint) (*models.User, error) {
		return &models.User{
			ID:     id,
			Status: models.StatusInactive,
		}, nil
	}

	result, err := service.RefreshToken(context.Background(), "token")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorContains(t, err, "cuenta inactiva o suspendida")
}

func TestAuthService_RefreshToken_ExpiredTokenIsDiscarded(t *testing.T) {
	mockRTRepo := &mockRefreshTokenRepo{}
	service := NewAuthService(nil, mockRTRepo, authTestConfig())

	past := time.Now().Add(-time.Hour)
	mockRTRepo.mockFindByToken = func(ctx context.Context, token string) (*models.RefreshToken, error) {
		return &models.RefreshToken{UserID: 1, Token: token, ExpiresAt: &past}, nil
	}
	var deleted string
	mockRTRepo.mockDelete = func(ctx context.Context, token string) error {
		deleted = token
		return nil
	}

	result, err := service.RefreshToken(context.Background(), "stale-token")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorContains(t, err, "token expirado")
	assert.Equal(t, "stale-token", deleted, "expired token should be removed")
}

func TestAuthService_RefreshToken_RotatesToken(t *testing.T) {
	mockRepo := &mockUserRepo{}
	mockRTRepo := &mockRefreshTokenRepo{}
	service := NewAuthService(mockRepo, mockRTRepo, authTestConfig())

	future := time.Now().Add(time.Hour)
	mockRTRepo.mockFindByToken = func(ctx context.Context, token string) (*models.RefreshToken, error) {
		return &models.RefreshToken{UserID: 5, Token: token, ExpiresAt: &future}, nil
	}
	mockRepo.mockFindByID = func(ctx context.Context, id uint) (*models.User, error) {
		return &models.User{ID: id, Role: models.RoleTenant, Status: models.StatusActive}, nil
	}
	var deleted string
	mockRTRepo.mockDelete = func(ctx context.Context, token string) error {
		deleted = token
		return nil
	}

	result, err := service.RefreshToken(context.Background(), "old-token")

	assert.NoError(t, err)
	assert.Equal(t, "old-token", deleted, "old token is single use")
	assert.NotEmpty(t, result.RefreshToken)
	assert.NotEqual(t, "old-token", result.RefreshToken)
}

func TestAuthService_LogoutAll_DropsEverySession(t *testing.T) {
	mockRTRepo := &mockRefreshTokenRepo{}
	service := NewAuthService(nil, mockRTRepo, authTestConfig())

	var droppedUser uint
	mockRTRepo.mockDeleteByUser = func(ctx context.Context, userID uint) error {
		droppedUser = userID
		return nil
	}

	err := service.LogoutAll(context.Background(), 5)

	assert.NoError(t, err)
	assert.Equal(t, uint(5), droppedUser)
}

func TestAuthService_CleanupExpiredTokens(t *testing.T) {
	mockRTRepo := &mockRefreshTokenRepo{}
	service := NewAuthService(nil, mockRTRepo, authTestConfig())

	called := false
	mockRTRepo.mockDeleteExpired = func(ctx context.Context) (int64, error) {
		called = true
		return 3, nil
	}

	err := service.CleanupExpiredTokens(context.Background())

	assert.NoError(t, err)
	assert.True(t, called)
}

type mockRefreshTokenRepo struct {
	repository.RefreshTokenRepository
	mockFindByToken   func(ctx context.Context, token string) (*models.RefreshToken, error)
	mockCreate        func(ctx context.Context, rt *models.RefreshToken) error
	mockDelete        func(ctx context.Context, token string) error
	mockDeleteByUser  func(ctx context.Context, userID uint) error
	mockDeleteExpired func(ctx context.Context) (int64, error)
}

func (m *mockRefreshTokenRepo) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	return m.mockFindByToken(ctx, token)
}

func (m *mockRefreshTokenRepo) Create(ctx context.Context, rt *models.RefreshToken) error {
	if m.mockCreate != nil {
		return m.mockCreate(ctx, rt)
	}
	return nil
}

func (m *mockRefreshTokenRepo) Delete(ctx context.Context, token string) error {
	if m.mockDelete != nil {
		return m.mockDelete(ctx, token)
	}
	return nil
}

func (m *mockRefreshTokenRepo) DeleteByUser(ctx context.Context, userID uint) error {
	if m.mockDeleteByUser != nil {
		return m.mockDeleteByUser(ctx, userID)
	}
	return nil
}

func (m *mockRefreshTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	if m.mockDeleteExpired != nil {
		return m.mockDeleteExpired(ctx)
	}
	return 0, nil
}
