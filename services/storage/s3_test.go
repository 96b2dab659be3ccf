package storage

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *S3Store {
	t.Helper()
	store, err := NewS3Store(S3Config{
		AccessKey: "AKIDEXAMPLE",
		SecretKey: "secret",
		Bucket:    "course-archives",
		Region:    "us-east-1",
		Endpoint:  "http://localhost:9000",
	})
	require.NoError(t, err)
	return store
}

func TestGenerateKey(t *testing.T) {
	now := time.Unix(1700000000, 0)
	assert.Equal(t, "courses/1700000000-Web-Pentest-v2.zip", GenerateKey("Web Pentest v2.zip", now))
	assert.Equal(t, "courses/1700000000-passwd", GenerateKey("../../etc/passwd", now))
	assert.Equal(t, "courses/1700000000-archive.zip", GenerateKey("???", now))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/zip", ContentType("bundle.ZIP"))
	assert.Equal(t, "application/octet-stream", ContentType("bundle"))
}

func TestSignedURLCarriesExpiryAndFilename(t *testing.T) {
	store := newTestStore(t)

	raw, err := store.SignedURL("courses/1-a.zip", 24*time.Hour, "Web-Pentest.zip")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "86400", q.Get("X-Amz-Expires"))
	assert.Equal(t, `attachment; filename="Web-Pentest.zip"`, q.Get("response-content-disposition"))
	assert.True(t, strings.HasSuffix(u.Path, "/course-archives/courses/1-a.zip"))
}

func TestSignedURLRejectsNonPositiveTTL(t *testing.T) {
	store := newTestStore(t)

	_, err := store.SignedURL("courses/1-a.zip", 0, "")
	assert.ErrorIs(t, err, ErrInvalidTTL)

	_, err = store.PresignedUpload("courses/1-a.zip", "application/zip", -time.Second)
	assert.ErrorIs(t, err, ErrInvalidTTL)
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	_, err := NewS3Store(S3Config{Region: "us-east-1"})
	assert.Error(t, err)
}
