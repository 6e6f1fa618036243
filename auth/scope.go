package auth

import (
	"strings"

	"poshub-api/domain"
)

// ScopeError reports an authenticated caller that lacks a required capability.
// It is distinct from verification failures so the boundary can answer 403
// instead of 401.
type ScopeError struct {
	Required string
}

func (e ScopeError) Error() string {
	return "required scope: " + e.Required
}

// ScopeCheck validates that verified claims carry a capability. On success the
// claims pass through unchanged so callers can keep using the subject.
type ScopeCheck func(domain.Claims) (domain.Claims, error)

// RequireScope builds a check that demands one capability.
func RequireScope(scope string) ScopeCheck {
	return func(claims domain.Claims) (domain.Claims, error) {
		if !claims.HasScope(scope) {
			return domain.Claims{}, ScopeError{Required: scope}
		}
		return claims, nil
	}
}

// RequireAnyScope builds a check that passes when at least one of the listed
// capabilities is present.
func RequireAnyScope(scopes ...string) ScopeCheck {
	return func(claims domain.Claims) (domain.Claims, error) {
		if !claims.HasAnyScope(scopes...) {
			return domain.Claims{}, ScopeError{Required: strings.Join(scopes, ", ")}
		}
		return claims, nil
	}
}
