package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/sahilchouksey/course-storefront/model"
	"github.com/sahilchouksey/course-storefront/services/storage"
	"github.com/sahilchouksey/course-storefront/utils/apperror"
	"gorm.io/gorm"
)

const (
	catalogCacheKey = "catalog:courses:active"
	catalogCacheTTL = 5 * time.Minute
	uploadURLTTL    = 30 * time.Minute
)

// CatalogCache is the subset of the Redis cache used for the public catalog.
type CatalogCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CourseInput creates a course.
type CourseInput struct {
	Title         string
	Description   string
	Price         float64
	OriginalPrice *float64
	Active        bool
}

// CourseUpdate changes only the non-nil fields. FileKey attaches an archive
// that was uploaded through a presigned URL.
type CourseUpdate struct {
	Title         *string
	Description   *string
	Price         *float64
	OriginalPrice *float64
	Active        *bool
	FileKey       *string
	FileSize      *int64
	MimeType      *string
}

// CourseFile is an archive streamed through the API.
type CourseFile struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// PresignedUpload tells an admin client where to PUT an archive.
type PresignedUpload struct {
	UploadURL string    `json:"uploadUrl"`
	FileKey   string    `json:"fileKey"`
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CourseService manages the catalog and the archives behind it.
type CourseService struct {
	db    *gorm.DB
	store storage.Store
	cache CatalogCache
	now   func() time.Time
}

// NewCourseService builds the service. cache may be nil.
func NewCourseService(db *gorm.DB, store storage.Store, cache CatalogCache) *CourseService {
	return &CourseService{db: db, store: store, cache: cache, now: utcNow}
}

// ListActive returns the public catalog, served from cache when possible.
func (s *CourseService) ListActive(ctx context.Context) ([]model.Course, error) {
	var courses []model.Course
	if s.cache != nil {
		if err := s.cache.GetJSON(ctx, catalogCacheKey, &courses); err == nil {
			return courses, nil
		}
	}

	if err := s.db.WithContext(ctx).Where("active = ?", true).Order("created_at DESC").Find(&courses).Error; err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, catalogCacheKey, courses, catalogCacheTTL); err != nil {
			log.Printf("[CATALOG] Failed to cache course list: %v", err)
		}
	}
	return courses, nil
}

// ListAll returns every course including drafts, for admins.
func (s *CourseService) ListAll(ctx context.Context) ([]model.Course, error) {
	var courses []model.Course
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&courses).Error
	return courses, err
}

// Get loads a course. Inactive courses are hidden unless includeInactive is set.
func (s *CourseService) Get(ctx context.Context, id uint, includeInactive bool) (*model.Course, error) {
	q := s.db.WithContext(ctx).Preload("Reviews", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at DESC")
	})
	if !includeInactive {
		q = q.Where("active = ?", true)
	}

	var course model.Course
	err := q.First(&course, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("course %d: %w", id, apperror.ErrCourseNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// Create stores a course and, when file is given, uploads its archive first.
func (s *CourseService) Create(ctx context.Context, in CourseInput, file *CourseFile) (*model.Course, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", apperror.ErrValidation)
	}
	if in.Price <= 0 {
		return nil, fmt.Errorf("%w: price must be greater than zero", apperror.ErrValidation)
	}

	course := &model.Course{
		Title:         in.Title,
		Description:   in.Description,
		Price:         in.Price,
		OriginalPrice: in.OriginalPrice,
		Active:        in.Active,
	}

	if file != nil {
		if err := s.upload(ctx, course, file); err != nil {
			return nil, err
		}
	}

	if err := s.db.WithContext(ctx).Create(course).Error; err != nil {
		// Do not leave an orphaned archive behind
		if course.HasFile() {
			s.store.Delete(ctx, course.S3FileKey)
		}
		return nil, err
	}

	s.invalidate(ctx)
	return course, nil
}

// Update applies changes. A new archive replaces the old one, which is
// deleted only after the database points at the new key.
func (s *CourseService) Update(ctx context.Context, id uint, in CourseUpdate, file *CourseFile) (*model.Course, error) {
	course, err := s.Get(ctx, id, true)
	if err != nil {
		return nil, err
	}
	course.Reviews = nil
	oldKey := course.S3FileKey

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", apperror.ErrValidation)
		}
		course.Title = title
	}
	if in.Description != nil {
		course.Description = *in.Description
	}
	if in.Price != nil {
		if *in.Price <= 0 {
			return nil, fmt.Errorf("%w: price must be greater than zero", apperror.ErrValidation)
		}
		course.Price = *in.Price
	}
	if in.OriginalPrice != nil {
		course.OriginalPrice = in.OriginalPrice
	}
	if in.Active != nil {
		course.Active = *in.Active
	}

	switch {
	case file != nil:
		if err := s.upload(ctx, course, file); err != nil {
			return nil, err
		}
	case in.FileKey != nil:
		if !strings.HasPrefix(*in.FileKey, storage.KeyPrefix+"/") {
			return nil, fmt.Errorf("%w: file key must live under %s/", apperror.ErrValidation, storage.KeyPrefix)
		}
		course.S3FileKey = *in.FileKey
		course.S3BucketName = s.store.Bucket()
		if in.FileSize != nil {
			course.FileSize = *in.FileSize
		}
		if in.MimeType != nil {
			course.MimeType = *in.MimeType
		}
	}

	if err := s.db.WithContext(ctx).Save(course).Error; err != nil {
		if course.S3FileKey != oldKey {
			s.store.Delete(ctx, course.S3FileKey)
		}
		return nil, err
	}

	if oldKey != "" && oldKey != course.S3FileKey {
		s.store.Delete(ctx, oldKey)
	}

	s.invalidate(ctx)
	return course, nil
}

// Delete removes a course with its purchases, downloads and reviews in one
// transaction, then makes a best effort to delete its archive.
func (s *CourseService) Delete(ctx context.Context, id uint) error {
	var course model.Course
	err := s.db.WithContext(ctx).First(&course, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("course %d: %w", id, apperror.ErrCourseNotFound)
	}
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("course_id = ?", id).Delete(&model.Download{}).Error; err != nil {
			return err
		}
		if err := tx.Where("course_id = ?", id).Delete(&model.Purchase{}).Error; err != nil {
			return err
		}
		if err := tx.Where("course_id = ?", id).Delete(&model.Review{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Course{}, id).Error
	})
	if err != nil {
		return fmt.Errorf("delete course %d: %w", id, err)
	}

	if course.HasFile() {
		s.store.Delete(ctx, course.S3FileKey)
	}

	s.invalidate(ctx)
	log.Printf("[CATALOG] Deleted course %d (%s)", id, course.Title)
	return nil
}

// PresignUpload reserves a key and returns a URL the admin client can PUT to.
func (s *CourseService) PresignUpload(ctx context.Context, filename, contentType string) (*PresignedUpload, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, fmt.Errorf("%w: filename is required", apperror.ErrValidation)
	}
	if contentType == "" {
		contentType = storage.ContentType(filename)
	}

	now := s.now()
	key := storage.GenerateKey(filename, now)
	url, err := s.store.PresignedUpload(key, contentType, uploadURLTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrUpstream, err)
	}

	return &PresignedUpload{
		UploadURL: url,
		FileKey:   key,
		Method:    "PUT",
		ExpiresAt: now.Add(uploadURLTTL),
	}, nil
}

func (s *CourseService) upload(ctx context.Context, course *model.Course, file *CourseFile) error {
	contentType := file.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = storage.ContentType(file.Name)
	}

	key := storage.GenerateKey(file.Name, s.now())
	if err := s.store.Upload(ctx, key, file.Body, contentType); err != nil {
		return fmt.Errorf("%w: %v", apperror.ErrUpstream, err)
	}

	course.S3FileKey = key
	course.S3BucketName = s.store.Bucket()
	course.FileSize = file.Size
	course.MimeType = contentType
	return nil
}

func (s *CourseService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, catalogCacheKey); err != nil {
		log.Printf("[CATALOG] Failed to invalidate course cache: %v", err)
	}
}
