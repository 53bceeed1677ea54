// Package bearer extracts raw session tokens from requests using a
// lookup expression such as "header:Authorization,cookie:jwt".
package bearer

import (
	"errors"
	"net/http"
	"strings"

	"github.com/goliatone/go-router"
)

const (
	// DefaultTokenLookup reads the Authorization header then the jwt cookie
	DefaultTokenLookup = "header:Authorization,cookie:jwt"
	// DefaultAuthScheme is the scheme expected in the Authorization header
	DefaultAuthScheme = "Bearer"
	// LoggedOutValue replaces the session cookie on logout. Cookie
	// extractors treat it as absent.
	LoggedOutValue = "loggedout"
)

// ErrMissingOrMalformed is returned when no extractor found a token
var ErrMissingOrMalformed = errors.New("missing or malformed JWT")

// Source is the read side of a request. FromRouter and FromRequest adapt
// router and net/http requests.
type Source interface {
	Header(key string) string
	Cookies(key string, defaultValue ...string) string
	Query(key string, defaultValue string) string
	Param(key string, defaultValue ...string) string
}

// Extractor pulls a raw token out of a Source
type Extractor func(src Source) (string, error)

// Extract runs extractors in order and returns the first token found
func Extract(src Source, extractors []Extractor) (string, error) {
	if src == nil {
		return "", ErrMissingOrMalformed
	}

	err := ErrMissingOrMalformed
	for _, extractor := range extractors {
		var raw string
		raw, err = extractor(src)
		if raw != "" && err == nil {
			return raw, nil
		}
	}

	return "", err
}

// Extractors parses a lookup expression into extractors.
// Supported sources are header, query, param and cookie.
func Extractors(tokenLookup string, authSchemes ...string) []Extractor {
	if strings.TrimSpace(tokenLookup) == "" {
		tokenLookup = DefaultTokenLookup
	}

	authScheme := DefaultAuthScheme
	if len(authSchemes) > 0 {
		authScheme = strings.TrimSpace(authSchemes[0])
	}

	extractors := make([]Extractor, 0)

	// header:Authorization,cookie:jwt,query:auth_token,param:token
	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}

		source, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if name == "" {
			continue
		}

		switch source {
		case "header":
			extractors = append(extractors, fromHeader(name, authScheme))
		case "query":
			extractors = append(extractors, fromQuery(name))
		case "param":
			extractors = append(extractors, fromParam(name))
		case "cookie":
			extractors = append(extractors, fromCookie(name))
		}
	}

	return extractors
}

// fromHeader extracts a token from a header. When authScheme is set the
// header must be "<scheme> <token>".
func fromHeader(header string, authScheme string) Extractor {
	return func(src Source) (string, error) {
		value := strings.TrimSpace(src.Header(header))
		if value == "" {
			return "", ErrMissingOrMalformed
		}

		if authScheme == "" {
			return value, nil
		}

		l := len(authScheme)
		if len(value) > l+1 && strings.EqualFold(value[:l], authScheme) && value[l] == ' ' {
			if token := strings.TrimSpace(value[l:]); token != "" {
				return token, nil
			}
		}
		return "", ErrMissingOrMalformed
	}
}

func fromQuery(param string) Extractor {
	return func(src Source) (string, error) {
		token := src.Query(param, "")
		if token == "" {
			return "", ErrMissingOrMalformed
		}
		return token, nil
	}
}

func fromParam(param string) Extractor {
	return func(src Source) (string, error) {
		token := src.Param(param)
		if token == "" {
			return "", ErrMissingOrMalformed
		}
		return token, nil
	}
}

func fromCookie(name string) Extractor {
	return func(src Source) (string, error) {
		token := src.Cookies(name)
		if token == "" || token == LoggedOutValue {
			return "", ErrMissingOrMalformed
		}
		return token, nil
	}
}

// RouterSource adapts a router.Context to Source
type RouterSource struct {
	Ctx router.Context
}

// FromRouter wraps c
func FromRouter(c router.Context) RouterSource {
	return RouterSource{Ctx: c}
}

func (s RouterSource) Header(key string) string {
	return s.Ctx.Header(key)
}

func (s RouterSource) Cookies(key string, defaultValue ...string) string {
	return s.Ctx.Cookies(key, defaultValue...)
}

func (s RouterSource) Query(key string, defaultValue string) string {
	return s.Ctx.Query(key, defaultValue)
}

func (s RouterSource) Param(key string, defaultValue ...string) string {
	return s.Ctx.Param(key, defaultValue...)
}

// RequestSource adapts a *http.Request to Source. Param always reports
// the default since net/http has no route parameters.
type RequestSource struct {
	Request *http.Request
}

// FromRequest wraps r
func FromRequest(r *http.Request) RequestSource {
	return RequestSource{Request: r}
}

func (s RequestSource) Header(key string) string {
	return s.Request.Header.Get(key)
}

func (s RequestSource) Cookies(key string, defaultValue ...string) string {
	if c, err := s.Request.Cookie(key); err == nil && c.Value != "" {
		return c.Value
	}
	return first(defaultValue)
}

func (s RequestSource) Query(key string, defaultValue string) string {
	if v := s.Request.URL.Query().Get(key); v != "" {
		return v
	}
	return defaultValue
}

func (s RequestSource) Param(_ string, defaultValue ...string) string {
	return first(defaultValue)
}

func first(values []string) string {
	if len(values) > 0 {
		return values[0]
	}
	return ""
}
