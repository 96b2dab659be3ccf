package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sahilchouksey/course-storefront/model"
	"github.com/sahilchouksey/course-storefront/utils/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReviewService stores ratings. Only buyers with a completed purchase may review.
type ReviewService struct {
	db *gorm.DB
}

func NewReviewService(db *gorm.DB) *ReviewService {
	return &ReviewService{db: db}
}

// MinReviewCommentLength is the shortest review text accepted, in characters.
const MinReviewCommentLength = 10

// Create stores the caller's review of a course. A buyer reviews a course once;
// deleting the review allows a new one.
func (s *ReviewService) Create(ctx context.Context, userID, courseID uint, rating int, comment string) (*model.Review, error) {
	comment = strings.TrimSpace(comment)
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", apperror.ErrValidation)
	}
	if utf8.RuneCountInString(comment) < MinReviewCommentLength {
		return nil, fmt.Errorf("%w: comment must be at least %d characters", apperror.ErrValidation, MinReviewCommentLength)
	}

	db := s.db.WithContext(ctx)

	var count int64
	err := db.Model(&model.Purchase{}).
		Where("user_id = ? AND course_id = ? AND status = ?", userID, courseID, model.PurchaseStatusCompleted).
		Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("review of course %d without a completed purchase: %w", courseID, apperror.ErrForbidden)
	}

	review := model.Review{
		UserID:   userID,
		CourseID: courseID,
		Rating:   rating,
		Comment:  comment,
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&review)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("review of course %d: %w", courseID, apperror.ErrAlreadyExists)
	}
	return &review, nil
}

// ListForCourse returns the reviews of a course, newest first.
func (s *ReviewService) ListForCourse(ctx context.Context, courseID uint) ([]model.Review, error) {
	var reviews []model.Review
	err := s.db.WithContext(ctx).Where("course_id = ?", courseID).Order("created_at DESC").Find(&reviews).Error
	return reviews, err
}

// Delete removes the caller's own review.
func (s *ReviewService) Delete(ctx context.Context, userID, courseID uint) error {
	res := s.db.WithContext(ctx).Where("user_id = ? AND course_id = ?", userID, courseID).Delete(&model.Review{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("review of course %d: %w", courseID, apperror.ErrNotFound)
	}
	return nil
}
