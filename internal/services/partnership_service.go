package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/genodch/pilltrack/internal/models"
)

// PartnershipService provides read-only access to partnerships. The invite
// flow that creates and activates them lives outside the engine.
type PartnershipService struct {
	db *gorm.DB
}

// NewPartnershipService constructs a PartnershipService.
func NewPartnershipService(db *gorm.DB) (*PartnershipService, error) {
	if db == nil {
		return nil, errors.New("partnership service: db is required")
	}
	return &PartnershipService{db: db}, nil
}

// ActivePartnerFor returns the active partnership for the supplied pill
// taker, or nil when none exists. At most one active partnership is expected
// per pill taker; if data violates that the oldest row wins.
func (s *PartnershipService) ActivePartnerFor(ctx context.Context, pillTakerID string) (*models.Partnership, error) {
	ctx = ensureContext(ctx)

	pillTakerID = strings.TrimSpace(pillTakerID)
	if pillTakerID == "" {
		return nil, errors.New("partnership service: pill taker id is required")
	}

	var partnership models.Partnership
	err := s.db.WithContext(ctx).
		Where("pill_taker_id = ? AND status = ?", pillTakerID, models.PartnershipActive).
		Order("created_at").
		First(&partnership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("partnership service: load partnership: %w", err)
	}
	return &partnership, nil
}
