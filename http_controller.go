package auth

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

type AuthControllerRoutes struct {
	Signup         string
	Login          string
	Logout         string
	ForgotPassword string
	ResetPassword  string
	UpdatePassword string
	Me             string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Routes       *AuthControllerRoutes
	ErrorHandler ErrorHandler
	// ResetURL builds the link mailed on /forgotpassword. When nil the
	// link points back at this controller's reset route.
	ResetURL func(c router.Context, token string) string

	auther *Auther
	gate   *AccessGate
	cfg    Config
}

type AuthControllerOption func(*AuthController) *AuthController

// WithControllerLogger sets the controller logger
func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(a *AuthController) *AuthController {
		if logger != nil {
			a.Logger = logger
		}
		return a
	}
}

// WithControllerDebug dumps request payloads, without passwords
func WithControllerDebug(debug bool) AuthControllerOption {
	return func(a *AuthController) *AuthController {
		a.Debug = debug
		return a
	}
}

// WithControllerRoutes overrides the route paths
func WithControllerRoutes(routes *AuthControllerRoutes) AuthControllerOption {
	return func(a *AuthController) *AuthController {
		if routes != nil {
			a.Routes = routes
		}
		return a
	}
}

// WithControllerErrorHandler overrides how failed requests are rendered
func WithControllerErrorHandler(handler ErrorHandler) AuthControllerOption {
	return func(a *AuthController) *AuthController {
		if handler != nil {
			a.ErrorHandler = handler
		}
		return a
	}
}

// WithResetURL overrides how reset links are built
func WithResetURL(fn func(c router.Context, token string) string) AuthControllerOption {
	return func(a *AuthController) *AuthController {
		a.ResetURL = fn
		return a
	}
}

func NewAuthController(auther *Auther, gate *AccessGate, cfg Config, opts ...AuthControllerOption) *AuthController {
	if auther == nil {
		panic("Missing Auther in auth controller...")
	}

	if gate == nil {
		panic("Missing AccessGate in auth controller...")
	}

	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Signup:         "/signup",
			Login:          "/login",
			Logout:         "/logout",
			ForgotPassword: "/forgotpassword",
			ResetPassword:  "/resetpassword",
			UpdatePassword: "/updatepassword",
			Me:             "/me",
		},
		auther: auther,
		gate:   gate,
		cfg:    cfg,
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = NewErrorHandler(c.Logger)
	}

	return c
}

// RegisterAuthRoutes mounts the auth routes on app and returns the controller
func RegisterAuthRoutes[T any](app router.Router[T], auther *Auther, gate *AccessGate, cfg Config, opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(auther, gate, cfg, opts...)

	protected := ProtectedRoute(controller.ErrorHandler, gate.Gate())

	app.Post(controller.Routes.Signup, controller.Signup).
		SetName("auth.signup")
	app.Post(controller.Routes.Login, controller.Login).
		SetName("auth.login")
	app.Get(controller.Routes.Logout, controller.Logout).
		SetName("auth.logout")

	app.Post(controller.Routes.ForgotPassword, controller.ForgotPassword).
		SetName("auth.forgot_password")
	app.Patch(fmt.Sprintf("%s/:token", controller.Routes.ResetPassword), controller.ResetPassword).
		SetName("auth.reset_password")

	app.Patch(controller.Routes.UpdatePassword, controller.UpdatePassword, protected).
		SetName("auth.update_password")
	app.Get(controller.Routes.Me, controller.Me, protected).
		SetName("auth.me")

	return controller
}

type SignupPayload struct {
	Name            string `json:"name" form:"name"`
	Email           string `json:"email" form:"email"`
	Role            string `json:"role" form:"role"`
	Password        string `json:"password" form:"password"`
	PasswordConfirm string `json:"password_confirm" form:"password_confirm"`
}

type LoginPayload struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// ForgotPasswordPayload holds the email a reset link is sent to
type ForgotPasswordPayload struct {
	Email string `json:"email" form:"email"`
}

// Validate will validate the payload
func (r ForgotPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

type ResetPasswordPayload struct {
	Password        string `json:"password" form:"password"`
	PasswordConfirm string `json:"password_confirm" form:"password_confirm"`
}

type UpdatePasswordPayload struct {
	PasswordCurrent string `json:"password_current" form:"password_current"`
	Password        string `json:"password" form:"password"`
	PasswordConfirm string `json:"password_confirm" form:"password_confirm"`
}

// Validate will validate the payload. The new password is checked by
// the password rule.
func (r UpdatePasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PasswordCurrent, validation.Required),
	)
}

func (a *AuthController) Signup(c router.Context) error {
	payload := new(SignupPayload)
	if err := a.bind(c, payload); err != nil {
		return a.ErrorHandler(c, err)
	}

	a.dump("SIGNUP", map[string]string{"name": payload.Name, "email": payload.Email, "role": payload.Role})

	res, err := a.auther.Signup(c.Context(), SignupRequest{
		Name:            payload.Name,
		Email:           payload.Email,
		Role:            payload.Role,
		Password:        payload.Password,
		PasswordConfirm: payload.PasswordConfirm,
	})
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return a.sendSession(c, http.StatusCreated, res)
}

func (a *AuthController) Login(c router.Context) error {
	payload := new(LoginPayload)
	if err := a.bind(c, payload); err != nil {
		return a.ErrorHandler(c, err)
	}

	a.dump("LOGIN", map[string]string{"email": payload.Email})

	res, err := a.auther.Login(c.Context(), payload.Email, payload.Password)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return a.sendSession(c, http.StatusOK, res)
}

func (a *AuthController) Logout(c router.Context) error {
	clearSessionCookie(c, a.cfg)
	return c.JSON(http.StatusOK, Envelope{Status: "success"})
}

func (a *AuthController) ForgotPassword(c router.Context) error {
	payload := new(ForgotPasswordPayload)
	if err := a.bind(c, payload); err != nil {
		return a.ErrorHandler(c, err)
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(c, validationError(err))
	}

	resetURL := func(token string) string {
		if a.ResetURL != nil {
			return a.ResetURL(c, token)
		}
		return a.defaultResetURL(c, token)
	}

	if err := a.auther.RequestPasswordReset(c.Context(), payload.Email, resetURL); err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(http.StatusOK, Envelope{
		Status:  "success",
		Message: "Token sent to email!",
	})
}

func (a *AuthController) ResetPassword(c router.Context) error {
	payload := new(ResetPasswordPayload)
	if err := a.bind(c, payload); err != nil {
		return a.ErrorHandler(c, err)
	}

	token, err := url.PathUnescape(c.Param("token"))
	if err != nil {
		return a.ErrorHandler(c, ErrInvalidResetToken)
	}

	res, err := a.auther.ResetPassword(c.Context(), token, payload.Password, payload.PasswordConfirm)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return a.sendSession(c, http.StatusOK, res)
}

func (a *AuthController) UpdatePassword(c router.Context) error {
	user, err := CurrentUser(c)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	payload := new(UpdatePasswordPayload)
	if err := a.bind(c, payload); err != nil {
		return a.ErrorHandler(c, err)
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(c, validationError(err))
	}

	res, err := a.auther.UpdatePassword(
		c.Context(),
		user,
		payload.PasswordCurrent,
		payload.Password,
		payload.PasswordConfirm,
	)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return a.sendSession(c, http.StatusOK, res)
}

func (a *AuthController) Me(c router.Context) error {
	user, err := CurrentUser(c)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(http.StatusOK, Envelope{
		Status: "success",
		Data:   map[string]any{"user": user},
	})
}

func (a *AuthController) sendSession(c router.Context, status int, res *AuthResult) error {
	setSessionCookie(c, a.cfg, res.Session)
	return c.JSON(status, Envelope{
		Status: "success",
		Token:  res.Session.Value,
		Data:   map[string]any{"user": res.User},
	})
}

func (a *AuthController) bind(c router.Context, payload any) error {
	if err := c.Bind(payload); err != nil {
		a.Logger.Info("failed to parse request body", "path", c.Path(), "error", err)
		return newError(ErrValidation, err, map[string]any{
			"fields": map[string]string{"body": "could not parse request body"},
		})
	}
	return nil
}

// defaultResetURL points at the reset route mounted next to the current
// forgot password route, keeping any group prefix. Without a Host header
// the link is relative.
func (a *AuthController) defaultResetURL(c router.Context, token string) string {
	prefix := strings.TrimSuffix(c.Path(), a.Routes.ForgotPassword)
	link := prefix + a.Routes.ResetPassword + "/" + url.PathEscape(token)

	host := c.Header("Host")
	if host == "" {
		return link
	}

	scheme := "http"
	if a.cfg.GetSecureCookie() || strings.EqualFold(c.Header("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + host + link
}

func (a *AuthController) dump(label string, v any) {
	if !a.Debug {
		return
	}
	fmt.Println("======= AUTH " + label + " ======")
	fmt.Println(print.MaybePrettyJSON(v))
	fmt.Println("=========================")
}
