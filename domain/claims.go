package domain

// Claims is the verified payload decoded from a bearer credential. Values are
// trusted only after signature, issuer and expiry checks have passed.
type Claims struct {
	Subject string
	Issuer  string
	Scopes  []string
}

// HasScope reports whether the credential carries the given capability.
func (c Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// HasAnyScope reports whether at least one of the given capabilities is present.
func (c Claims) HasAnyScope(scopes ...string) bool {
	for _, s := range scopes {
		if c.HasScope(s) {
			return true
		}
	}
	return false
}
