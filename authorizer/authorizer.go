package authorizer

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"poshub-api/auth"
	"poshub-api/domain"
	"poshub-api/secrets"
)

// ErrUnauthorized is the uniform denial returned for every failure path. The
// caller cannot distinguish a bad signature from an unreachable secret store;
// the detailed cause goes to operator logs only.
var ErrUnauthorized = errors.New("unauthorized")

const (
	// RequiredScope is the fixed capability the gateway demands.
	RequiredScope = "orders:write"

	policyVersion = "1"
	actionInvoke  = "gateway:invoke"
	effectAllow   = "Allow"
)

// Statement is one directive of a policy document.
type Statement struct {
	Action   string `json:"action"`
	Effect   string `json:"effect"`
	Resource string `json:"resource"`
}

// PolicyDocument lists the directives granted by a decision.
type PolicyDocument struct {
	Version   string      `json:"version"`
	Statement []Statement `json:"statement"`
}

// PolicyDecision is the allow decision handed back to edge infrastructure.
// The grant always names the single requested resource, never a wildcard.
type PolicyDecision struct {
	PrincipalID    string            `json:"principalId"`
	PolicyDocument PolicyDocument    `json:"policyDocument"`
	Context        map[string]string `json:"context,omitempty"`
}

// Authorizer decides, ahead of the order API, whether a raw Authorization
// header may invoke a resource.
type Authorizer struct {
	source      secrets.Source
	secretParam string
	issuer      string
	audience    string
	logger      *log.Logger
}

// New creates an Authorizer. source should be TTL-cached: the signing secret
// is re-resolved on every decision, which the cache bounds to once per TTL.
func New(source secrets.Source, secretParam, issuer, audience string, logger *log.Logger) *Authorizer {
	if source == nil {
		panic("secret source is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Authorizer{
		source:      source,
		secretParam: secretParam,
		issuer:      issuer,
		audience:    audience,
		logger:      logger,
	}
}

// Authorize resolves the signing secret, verifies the bearer credential,
// checks the orders:write capability and returns an allow decision scoped to
// resource. Every failure yields ErrUnauthorized.
func (a *Authorizer) Authorize(ctx context.Context, authorizationHeader, resource string) (PolicyDecision, error) {
	secret, err := a.source.Get(ctx, a.secretParam)
	if err != nil {
		a.logger.WithError(err).WithFields(log.Fields{"param": a.secretParam}).Error("secret resolution failed")
		return PolicyDecision{}, ErrUnauthorized
	}

	token, err := auth.BearerToken(authorizationHeader)
	if err != nil {
		a.logger.WithError(err).Warn("malformed authorization header")
		return PolicyDecision{}, ErrUnauthorized
	}

	verifier := auth.NewSharedSecretVerifier([]byte(secret), a.issuer, a.audience)
	claims, err := verifier.ClaimsFromBearer(token)
	if err != nil {
		a.logger.WithError(err).Warn("token verification failed")
		return PolicyDecision{}, ErrUnauthorized
	}

	if !claims.HasScope(RequiredScope) {
		a.logger.WithFields(log.Fields{"sub": claims.Subject}).Warn("token missing orders:write scope")
		return PolicyDecision{}, ErrUnauthorized
	}

	return allowDecision(claims, resource), nil
}

func allowDecision(claims domain.Claims, resource string) PolicyDecision {
	return PolicyDecision{
		PrincipalID: claims.Subject,
		PolicyDocument: PolicyDocument{
			Version: policyVersion,
			Statement: []Statement{{
				Action:   actionInvoke,
				Effect:   effectAllow,
				Resource: resource,
			}},
		},
		Context: map[string]string{
			"user":  claims.Subject,
			"scope": strings.Join(claims.Scopes, " "),
		},
	}
}
