package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sahilchouksey/course-storefront/model"
	"github.com/sahilchouksey/course-storefront/services/storage"
	"github.com/sahilchouksey/course-storefront/utils/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryCache is a CatalogCache that only remembers whether something is cached.
type memoryCache struct {
	data    map[string]interface{}
	deletes int
}

func (m *memoryCache) GetJSON(_ context.Context, key string, dest interface{}) error {
	v, ok := m.data[key]
	if !ok {
		return errors.New("miss")
	}
	*(dest.(*[]model.Course)) = v.([]model.Course)
	return nil
}

func (m *memoryCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memoryCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	m.deletes++
	return nil
}

func newCourseService(f *fixture, cache CatalogCache) *CourseService {
	svc := NewCourseService(f.db, f.store, cache)
	svc.now = func() time.Time { return time.Unix(1700000000, 0).UTC() }
	return svc
}

func archive(name, body string) *CourseFile {
	return &CourseFile{Name: name, ContentType: "application/octet-stream", Size: int64(len(body)), Body: strings.NewReader(body)}
}

func TestCourses_CreateWithFile(t *testing.T) {
	f := newFixture(t)
	svc := newCourseService(f, nil)

	course, err := svc.Create(f.ctx, CourseInput{Title: " Go ", Price: 49, Active: true}, archive("go course.zip", "zipdata"))
	require.NoError(t, err)
	assert.Equal(t, "Go", course.Title)
	assert.Equal(t, "courses/1700000000-go-course.zip", course.S3FileKey)
	assert.Equal(t, "test-bucket", course.S3BucketName)
	assert.Equal(t, "application/zip", course.MimeType)
	assert.EqualValues(t, 7, course.FileSize)
	assert.Equal(t, []byte("zipdata"), f.store.Objects[course.S3FileKey])
}

func TestCourses_CreateValidation(t *testing.T) {
	f := newFixture(t)
	svc := newCourseService(f, nil)

	_, err := svc.Create(f.ctx, CourseInput{Title: "  ", Price: 10}, nil)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.Create(f.ctx, CourseInput{Title: "Free", Price: 0}, nil)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	f.store.UploadErr = errors.New("s3 down")
	_, err = svc.Create(f.ctx, CourseInput{Title: "Go", Price: 10}, archive("go.zip", "x"))
	assert.ErrorIs(t, err, apperror.ErrUpstream)
	assert.EqualValues(t, 0, countRows(t, f.db, &model.Course{}))
}

func TestCourses_UpdateReplacesFile(t *testing.T) {
	f := newFixture(t)
	svc := newCourseService(f, nil)

	course, err := svc.Create(f.ctx, CourseInput{Title: "Go", Price: 49, Active: true}, archive("v1.zip", "one"))
	require.NoError(t, err)
	oldKey := course.S3FileKey

	price := 59.0
	updated, err := svc.Update(f.ctx, course.ID, CourseUpdate{Price: &price}, archive("v2.zip", "two"))
	require.NoError(t, err)
	assert.InDelta(t, 59.0, updated.Price, 0.001)
	assert.NotEqual(t, oldKey, updated.S3FileKey)

	assert.Equal(t, []string{oldKey}, f.store.Deleted)
	assert.NotContains(t, f.store.Objects, oldKey)
	assert.Contains(t, f.store.Objects, updated.S3FileKey)
}

func TestCourses_FailedReplacementKeepsOldFile(t *testing.T) {
	f := newFixture(t)
	svc := newCourseService(f, nil)

	course, err := svc.Create(f.ctx, CourseInput{Title: "Go", Price: 49, Active: true}, archive("v1.zip", "one"))
	require.NoError(t, err)
	oldKey := course.S3FileKey

	f.store.UploadErr = errors.New("s3 down")
	_, err = svc.Update(f.ctx, course.ID, CourseUpdate{}, archive("v2.zip", "two"))
	assert.ErrorIs(t, err, apperror.ErrUpstream)

	assert.Empty(t, f.store.Deleted)
	assert.Contains(t, f.store.Objects, oldKey)

	var stored model.Course
	require.NoError(t, f.db.First(&stored, course.ID).Error)
	assert.Equal(t, oldKey, stored.S3FileKey)
}

func TestCourses_UpdateAttachesPresignedKey(t *testing.T) {
	f := newFixture(t)
	svc := newCourseService(f, nil)
	course := f.createCourse(t, "Go", 10, false)

	upload, err := svc.PresignUpload(f.ctx, "big course.zip", "")
	require.NoError(t, err)
	assert.Equal(t, "PUT", upload.Method)
	assert.True(t, strings.HasPrefix(upload.FileKey, storage.KeyPrefix+"/"))
	assert.Contains(t, upload.UploadURL, upload.FileKey)

	size := int64(5 << 30)
	updated, err := svc.Update(f.ctx, course.ID, CourseUpdate{FileKey: &upload.FileKey, FileSize: &size}, nil)
	require.NoError(t, err)
	assert.Equal(t, upload.FileKey, updated.S3FileKey)
	assert.Equal(t, size, updated.FileSize)
	assert.True(t, updated.HasFile())

	outside := "elsewhere/file.zip"
	_, err = svc.Update(f.ctx, course.ID, CourseUpdate{FileKey: &outside}, nil)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.PresignUpload(f.ctx, " ", "")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestCourses_DeleteCascades(t *testing.T) {
	f := newFixture(t)
	svc := newCourseService(f, nil)
	course := f.createCourse(t, "Go", 10, true)
	keep := f.createCourse(t, "Rust", 10, true)
	user := f.createUser(t, "owner@example.com", true)

	f.grantPurchase(t, user.ID, course.ID, model.PurchaseStatusCompleted)
	f.grantPurchase(t, user.ID, keep.ID, model.PurchaseStatusCompleted)
	_, err := f.downloads.Issue(f.ctx, DownloadRequest{UserID: user.ID, CourseID: course.ID})
	require.NoError(t, err)
	require.NoError(t, f.db.Create(&model.Review{UserID: user.ID, CourseID: course.ID, Rating: 5}).Error)

	require.NoError(t, svc.Delete(f.ctx, course.ID))

	assert.EqualValues(t, 1, countRows(t, f.db, &model.Course{}))
	assert.EqualValues(t, 1, countRows(t, f.db, &model.Purchase{}))
	assert.EqualValues(t, 0, countRows(t, f.db, &model.Download{}))
	assert.EqualValues(t, 0, countRows(t, f.db, &model.Review{}))
	assert.Equal(t, []string{course.S3FileKey}, f.store.Deleted)

	err = svc.Delete(f.ctx, course.ID)
	assert.ErrorIs(t, err, apperror.ErrCourseNotFound)
}

func TestCourses_CatalogHidesDraftsAndUsesCache(t *testing.T) {
	f := newFixture(t)
	cache := &memoryCache{data: map[string]interface{}{}}
	svc := newCourseService(f, cache)

	_, err := svc.Create(f.ctx, CourseInput{Title: "Live", Price: 10, Active: true}, nil)
	require.NoError(t, err)
	draft, err := svc.Create(f.ctx, CourseInput{Title: "Draft", Price: 10}, nil)
	require.NoError(t, err)

	listed, err := svc.ListActive(f.ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "Live", listed[0].Title)
	assert.Contains(t, cache.data, catalogCacheKey)

	_, err = svc.Get(f.ctx, draft.ID, false)
	assert.ErrorIs(t, err, apperror.ErrCourseNotFound)
	got, err := svc.Get(f.ctx, draft.ID, true)
	require.NoError(t, err)
	assert.Equal(t, "Draft", got.Title)

	// Publishing the draft invalidates the cached catalog
	active := true
	_, err = svc.Update(f.ctx, draft.ID, CourseUpdate{Active: &active}, nil)
	require.NoError(t, err)
	assert.NotContains(t, cache.data, catalogCacheKey)

	listed, err = svc.ListActive(f.ctx)
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	all, err := svc.ListAll(f.ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
