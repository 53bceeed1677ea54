package auth_test

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-authgate"
)

func TestNewErrorHandler(t *testing.T) {
	h := auth.NewErrorHandler(nil)

	app := newTestServer(t, func(r router.Router[*fiber.App]) {
		r.Get("/rich", func(c router.Context) error {
			return h(c, auth.ErrForbidden)
		})
		r.Get("/uncoded", func(c router.Context) error {
			return h(c, goerrors.New("widget missing", goerrors.CategoryNotFound))
		})
		r.Get("/plain", func(c router.Context) error {
			return h(c, assert.AnError)
		})
	})

	tests := []struct {
		path    string
		status  int
		label   string
		code    string
		message string
	}{
		{"/rich", http.StatusForbidden, "fail", auth.TextCodeForbidden, auth.ErrForbidden.Message},
		{"/uncoded", http.StatusNotFound, "fail", "", "widget missing"},
		{"/plain", http.StatusInternalServerError, "error", auth.TextCodeInternalServerError, "something went very wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			res := send(t, app, app.request(t, http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, res.status, res.raw)
			assert.Equal(t, tt.label, res.body.Status)
			assert.Equal(t, tt.message, res.body.Message)
			if tt.code != "" {
				assert.Equal(t, tt.code, res.body.Code)
			}
			assert.NotContains(t, res.raw, assert.AnError.Error())
		})
	}
}

func TestProtectedRoute_RequireRoles(t *testing.T) {
	env := newTestEnv(t)
	signed := env.signup(t, "Ana", "ana@example.com", "pass1234")

	app := newTestServer(t, func(r router.Router[*fiber.App]) {
		r.Get("/admin", func(c router.Context) error {
			return c.SendString("welcome")
		}, auth.ProtectedRoute(nil, env.gate.Gate(), auth.RequireRoles(auth.RoleAdmin)))

		r.Get("/whoami", func(c router.Context) error {
			user, err := auth.CurrentUser(c)
			if err != nil {
				return err
			}
			session, err := auth.CurrentSession(c)
			if err != nil {
				return err
			}
			local, _ := c.Locals(auth.LocalsUserKey).(*auth.User)
			return c.JSON(http.StatusOK, map[string]any{
				"status": "success",
				"data": map[string]any{"user": map[string]any{
					"email":   user.Email,
					"session": session.UserID,
					"local":   local != nil && local.ID == user.ID,
				}},
			})
		}, auth.ProtectedRoute(nil, env.gate.Gate()))
	})

	req := app.request(t, http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signed.Session.Value)
	res := send(t, app, req)
	assert.Equal(t, http.StatusForbidden, res.status)
	assert.Equal(t, auth.TextCodeForbidden, res.body.Code)

	req = app.request(t, http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signed.Session.Value)
	res = send(t, app, req)
	require.Equal(t, http.StatusOK, res.status, res.raw)
	assert.Equal(t, "ana@example.com", res.body.Data.User["email"])
	assert.Equal(t, signed.User.ID.String(), res.body.Data.User["session"])
	assert.Equal(t, true, res.body.Data.User["local"])
}

func TestProtectedRoute_RequireMinRole(t *testing.T) {
	env := newTestEnv(t)
	signed := env.signup(t, "Ana", "ana@example.com", "pass1234")

	app := newTestServer(t, func(r router.Router[*fiber.App]) {
		ok := func(c router.Context) error {
			return c.JSON(http.StatusOK, map[string]any{"status": "success"})
		}
		r.Get("/staff", ok, auth.ProtectedRoute(nil, env.gate.Gate(), auth.RequireMinRole(auth.RoleStandard)))
		r.Get("/owners", ok, auth.ProtectedRoute(nil, env.gate.Gate(), auth.RequireMinRole(auth.RoleOwner)))
	})

	req := app.request(t, http.MethodGet, "/staff", nil)
	req.Header.Set("Authorization", "Bearer "+signed.Session.Value)
	assert.Equal(t, http.StatusOK, send(t, app, req).status)

	req = app.request(t, http.MethodGet, "/owners", nil)
	req.Header.Set("Authorization", "Bearer "+signed.Session.Value)
	res := send(t, app, req)
	assert.Equal(t, http.StatusForbidden, res.status)
	assert.Equal(t, auth.TextCodeForbidden, res.body.Code)
}
