package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/genodch/pilltrack/internal/models"
	apperrors "github.com/genodch/pilltrack/pkg/errors"
)

// UserService reads user rows owned by the onboarding flow. The engine never
// writes users.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// Get loads a single user by id.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("user service: user id is required")
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	return &user, nil
}

// ActivePillTakers returns every active pill taker with a reminder time set,
// the working set of the daily obligation generator.
func (s *UserService) ActivePillTakers(ctx context.Context) ([]models.User, error) {
	ctx = ensureContext(ctx)

	var users []models.User
	if err := s.db.WithContext(ctx).
		Where("role = ? AND active = ? AND reminder_time <> ''", models.RolePillTaker, true).
		Order("id").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("user service: list pill takers: %w", err)
	}
	return users, nil
}
