package auth

import "strings"

// Credential is the resolved Authorization value forwarded to upstreams.
type Credential struct {
	Header string // full header value, e.g. "Bearer abc"
}

// Resolve picks exactly one credential for the request: the Authorization
// header wins; otherwise a bare api_key form value is promoted to a bearer
// header. An empty Credential means the request carries no usable credential.
func Resolve(authorizationHeader, apiKey string) Credential {
	header := strings.TrimSpace(authorizationHeader)
	if header != "" {
		return Credential{Header: header}
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey != "" {
		return Credential{Header: "Bearer " + apiKey}
	}
	return Credential{}
}

// Valid reports whether a credential was resolved.
func (c Credential) Valid() bool {
	return c.Header != ""
}

// BearerToken returns the token portion of a bearer credential, or "" when
// the scheme is not bearer.
func (c Credential) BearerToken() string {
	const prefix = "Bearer "
	if strings.HasPrefix(c.Header, prefix) {
		return c.Header[len(prefix):]
	}
	return ""
}
