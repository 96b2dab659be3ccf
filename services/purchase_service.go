package services

import (
	"context"

	"github.com/sahilchouksey/course-storefront/model"
	"gorm.io/gorm"
)

// PurchaseService reads a user's library.
type PurchaseService struct {
	db *gorm.DB
}

func NewPurchaseService(db *gorm.DB) *PurchaseService {
	return &PurchaseService{db: db}
}

// ListForUser returns the completed purchases of userID with their courses.
func (s *PurchaseService) ListForUser(ctx context.Context, userID uint) ([]model.Purchase, error) {
	var purchases []model.Purchase
	err := s.db.WithContext(ctx).
		Preload("Course").
		Where("user_id = ? AND status = ?", userID, model.PurchaseStatusCompleted).
		Order("created_at DESC").
		Find(&purchases).Error
	return purchases, err
}
