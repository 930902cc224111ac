package common

import (
	"strings"
)

// BearerToken extracts the token of an Authorization header. The scheme is
// matched case-insensitively.
func BearerToken(authHeader string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(authHeader), " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", NewErrNo(TOKEN_INVALID)
	}
	return token, nil
}

func BearerHeader(token string) string {
	return "Bearer " + token
}
