package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sahilchouksey/course-storefront/model"
	"github.com/sahilchouksey/course-storefront/services/storage"
	"github.com/sahilchouksey/course-storefront/utils/apperror"
	"gorm.io/gorm"
)

const maxDownloadNameLength = 100

var (
	downloadNameStrip  = regexp.MustCompile(`[^a-zA-Z0-9\s-]`)
	downloadNameSpaces = regexp.MustCompile(`\s+`)
	downloadNameDashes = regexp.MustCompile(`-{2,}`)
)

// DownloadFilename turns a course title into a safe archive name ending in .zip.
func DownloadFilename(title string) string {
	name := downloadNameStrip.ReplaceAllString(title, "")
	name = downloadNameSpaces.ReplaceAllString(strings.TrimSpace(name), "-")
	name = downloadNameDashes.ReplaceAllString(name, "-")
	if len(name) > maxDownloadNameLength {
		name = name[:maxDownloadNameLength]
	}
	name = strings.Trim(name, "-")
	if name == "" {
		name = "course"
	}
	return name + ".zip"
}

// DownloadRequest asks for a link on behalf of an authenticated user.
type DownloadRequest struct {
	UserID    uint
	CourseID  uint
	IPAddress string
}

// DownloadLink is a time limited URL for the course archive.
type DownloadLink struct {
	DownloadURL string    `json:"downloadUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// DownloadService issues signed archive links to entitled users and audits each one.
type DownloadService struct {
	db    *gorm.DB
	store storage.Store
	ttl   time.Duration
	now   func() time.Time
}

func NewDownloadService(db *gorm.DB, store storage.Store, ttl time.Duration) *DownloadService {
	return &DownloadService{db: db, store: store, ttl: ttl, now: utcNow}
}

// Issue signs a link valid for the configured lifetime.
func (s *DownloadService) Issue(ctx context.Context, req DownloadRequest) (*DownloadLink, error) {
	return s.IssueWithTTL(ctx, req, s.ttl)
}

// IssueWithTTL checks entitlement, signs the archive URL and records a
// Download row. Nothing is recorded when any step fails.
func (s *DownloadService) IssueWithTTL(ctx context.Context, req DownloadRequest, ttl time.Duration) (*DownloadLink, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: link lifetime must be positive", apperror.ErrValidation)
	}

	db := s.db.WithContext(ctx)

	var purchase model.Purchase
	err := db.Where("user_id = ? AND course_id = ? AND status = ?", req.UserID, req.CourseID, model.PurchaseStatusCompleted).
		First(&purchase).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("course %d: %w", req.CourseID, apperror.ErrNotEntitled)
	}
	if err != nil {
		return nil, err
	}

	var course model.Course
	err = db.First(&course, req.CourseID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("course %d: %w", req.CourseID, apperror.ErrCourseNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !course.HasFile() {
		return nil, fmt.Errorf("course %d: %w", course.ID, apperror.ErrFileUnavailable)
	}

	issuedAt := s.now()
	url, err := s.store.SignedURL(course.S3FileKey, ttl, DownloadFilename(course.Title))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrUpstream, err)
	}

	ip := req.IPAddress
	if ip == "" {
		ip = "unknown"
	}

	record := model.Download{
		UserID:    req.UserID,
		CourseID:  course.ID,
		URL:       url,
		IPAddress: ip,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(ttl),
	}
	if err := db.Create(&record).Error; err != nil {
		return nil, fmt.Errorf("record download: %w", err)
	}

	return &DownloadLink{DownloadURL: url, ExpiresAt: record.ExpiresAt}, nil
}

// History lists the links issued to a user, newest first.
func (s *DownloadService) History(ctx context.Context, userID uint, limit int) ([]model.Download, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var downloads []model.Download
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("issued_at DESC").
		Limit(limit).
		Find(&downloads).Error
	return downloads, err
}
