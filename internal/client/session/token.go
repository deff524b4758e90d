package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// checkTokenValidity probes the session token's exp claim before an
// immediate dispatch, turning a token the server would reject anyway into a
// local deauthorization instead of a round trip. The parse is unverified:
// signature checking is the server's job, the client only reads the claims
// it issued. Tokens that are not JWTs pass the probe.
func (s *Session) checkTokenValidity() error {
	s.mu.Lock()
	token := s.sessionID
	s.mu.Unlock()

	if token == "" {
		return nil
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		// opaque, non-JWT session token; nothing to probe
		return nil
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if time.Now().After(exp.Time) {
		s.logger.Warn("session token expired", "expired_at", exp.Time)
		s.Invalidate(ReasonDeauthorization)
		return ErrSessionInvalidated
	}
	return nil
}
