package download

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-storefront/model"
	"github.com/sahilchouksey/course-storefront/services"
	"github.com/sahilchouksey/course-storefront/utils/auth"
	"github.com/sahilchouksey/course-storefront/utils/middleware"
	"github.com/sahilchouksey/course-storefront/utils/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*fiber.App, *gorm.DB, *auth.JWTManager) {
	t.Helper()
	db := testutil.NewTestDB(t)
	jwt := testutil.NewJWTManager()

	h := NewDownloadHandler(services.NewDownloadService(db, testutil.NewFakeStore(), 24*time.Hour))
	authMiddleware := middleware.NewAuthMiddleware(jwt, db)

	app := fiber.New()
	downloads := app.Group("/downloads", authMiddleware.Required())
	downloads.Get("/", h.History)
	downloads.Get("/generate/:courseId", h.Generate)
	return app, db, jwt
}

func TestGenerate(t *testing.T) {
	app, db, jwt := setup(t)

	user := &model.User{Email: "buyer@example.com", Role: model.RoleUser}
	require.NoError(t, db.Create(user).Error)
	owned := &model.Course{Title: "Owned", Price: 10, Active: true, S3FileKey: "courses/1-owned.zip"}
	other := &model.Course{Title: "Other", Price: 10, Active: true, S3FileKey: "courses/1-other.zip"}
	require.NoError(t, db.Create(owned).Error)
	require.NoError(t, db.Create(other).Error)
	require.NoError(t, db.Create(&model.Purchase{UserID: user.ID, CourseID: owned.ID, Status: model.PurchaseStatusCompleted, Amount: 10, Currency: "usd"}).Error)

	token := testutil.AccessToken(t, jwt, user)
	path := func(id uint) string { return "/downloads/generate/" + strconv.FormatUint(uint64(id), 10) }

	status, _ := testutil.Do(t, app, testutil.Request{Method: http.MethodGet, Path: path(owned.ID)})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, res := testutil.Do(t, app, testutil.Request{Method: http.MethodGet, Path: path(other.ID), Token: token})
	assert.Equal(t, http.StatusForbidden, status)
	require.NotNil(t, res.Error)
	assert.Equal(t, "NOT_PURCHASED", res.Error.Code)

	status, _ = testutil.Do(t, app, testutil.Request{Method: http.MethodGet, Path: "/downloads/generate/abc", Token: token})
	assert.Equal(t, http.StatusBadRequest, status)

	status, res = testutil.Do(t, app, testutil.Request{
		Method:  http.MethodGet,
		Path:    path(owned.ID),
		Token:   token,
		Headers: map[string]string{"X-Forwarded-For": "198.51.100.4, 10.0.0.1"},
	})
	require.Equal(t, http.StatusOK, status)

	var link services.DownloadLink
	testutil.DecodeData(t, res, &link)
	assert.Contains(t, link.DownloadURL, "courses/1-owned.zip")
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), link.ExpiresAt, time.Minute)

	var row model.Download
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, "198.51.100.4", row.IPAddress)

	status, res = testutil.Do(t, app, testutil.Request{Method: http.MethodGet, Path: "/downloads", Token: token})
	require.Equal(t, http.StatusOK, status)
	var history []model.Download
	testutil.DecodeData(t, res, &history)
	assert.Len(t, history, 1)
}

func TestGenerate_OversizedForwardedForIsStoredTruncated(t *testing.T) {
	app, db, jwt := setup(t)
	user := &model.User{Email: "buyer@example.com", Role: model.RoleUser}
	require.NoError(t, db.Create(user).Error)
	course := &model.Course{Title: "Owned", Price: 10, Active: true, S3FileKey: "courses/1-owned.zip"}
	require.NoError(t, db.Create(course).Error)
	require.NoError(t, db.Create(&model.Purchase{UserID: user.ID, CourseID: course.ID, Status: model.PurchaseStatusCompleted, Amount: 10, Currency: "usd"}).Error)

	status, _ := testutil.Do(t, app, testutil.Request{
		Method:  http.MethodGet,
		Path:    "/downloads/generate/" + strconv.FormatUint(uint64(course.ID), 10),
		Token:   testutil.AccessToken(t, jwt, user),
		Headers: map[string]string{"X-Forwarded-For": strings.Repeat("f", 300)},
	})
	require.Equal(t, http.StatusOK, status)

	var row model.Download
	require.NoError(t, db.First(&row).Error)
	assert.Len(t, row.IPAddress, 64)
}

func TestGenerate_RevokedToken(t *testing.T) {
	app, db, jwt := setup(t)
	user := &model.User{Email: "buyer@example.com", Role: model.RoleUser}
	require.NoError(t, db.Create(user).Error)
	token := testutil.AccessToken(t, jwt, user)

	// Bumping the token version signs the user out everywhere
	require.NoError(t, auth.NewBlacklistService(db).RevokeAllUserTokens(context.Background(), user.ID))

	status, _ := testutil.Do(t, app, testutil.Request{Method: http.MethodGet, Path: "/downloads", Token: token})
	assert.Equal(t, http.StatusUnauthorized, status)
}
