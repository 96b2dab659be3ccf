package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-storefront/model"
	"github.com/sahilchouksey/course-storefront/utils/auth"
	"github.com/sahilchouksey/course-storefront/utils/response"
	"github.com/stretchr/testify/require"
)

const JWTSecret = "test-jwt-secret"

// NewJWTManager returns a manager signing with JWTSecret.
func NewJWTManager() *auth.JWTManager {
	return auth.NewJWTManager(auth.JWTConfig{Secret: JWTSecret, Issuer: "course-storefront"})
}

// AccessToken mints a bearer token for user.
func AccessToken(t *testing.T, m *auth.JWTManager, user *model.User) string {
	t.Helper()
	pair, err := m.IssuePair(auth.Subject{
		UserID:       user.ID,
		Email:        user.Email,
		Role:         user.Role,
		TokenVersion: user.TokenVersion,
	})
	require.NoError(t, err)
	return pair.AccessToken
}

// Request is a test HTTP call against a fiber app.
type Request struct {
	Method  string
	Path    string
	Body    interface{}
	Raw     []byte
	Token   string
	Headers map[string]string
}

// Do runs req and decodes the standard response envelope.
func Do(t *testing.T, app *fiber.App, req Request) (int, response.Response) {
	t.Helper()

	var body io.Reader
	switch {
	case req.Raw != nil:
		body = bytes.NewReader(req.Raw)
	case req.Body != nil:
		b, err := json.Marshal(req.Body)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}

	r := httptest.NewRequest(req.Method, req.Path, body)
	if body != nil {
		r.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if req.Token != "" {
		r.Header.Set(fiber.HeaderAuthorization, "Bearer "+req.Token)
	}
	for k, v := range req.Headers {
		r.Header.Set(k, v)
	}

	resp, err := app.Test(r, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out response.Response
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && resp.StatusCode != http.StatusNoContent {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

// DecodeData re-encodes the envelope's data into dest.
func DecodeData(t *testing.T, res response.Response, dest interface{}) {
	t.Helper()
	b, err := json.Marshal(res.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, dest))
}
