// Package linktoken derives the capability tokens embedded in public
// scheduling links. A token binds a schedule id and a client id to the
// server secret; it is recomputed and compared on every request, never
// stored.
package linktoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TokenLength is the number of hex characters kept from the digest.
const TokenLength = 32

type Service struct {
	secret []byte
	ttl    time.Duration
}

// NewService builds a token service. ttl bounds the age of timed tokens;
// zero disables expiry.
func NewService(secret string, ttl time.Duration) (*Service, error) {
	if secret == "" {
		return nil, fmt.Errorf("link token secret cannot be empty")
	}
	if ttl < 0 {
		return nil, fmt.Errorf("link token ttl cannot be negative")
	}
	return &Service{secret: []byte(secret), ttl: ttl}, nil
}

func (s *Service) digest(scheduleID, clientID, issuedAt string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(scheduleID))
	mac.Write([]byte{':'})
	mac.Write([]byte(clientID))
	if issuedAt != "" {
		mac.Write([]byte{':'})
		mac.Write([]byte(issuedAt))
	}
	return hex.EncodeToString(mac.Sum(nil))[:TokenLength]
}

// Generate derives the token for a schedule/client pair. For links that are
// not bound to a schedule yet (direct booking), scheduleID is empty.
func (s *Service) Generate(scheduleID, clientID string) string {
	return s.digest(scheduleID, clientID, "")
}

// Verify recomputes the expected token and compares in constant time.
func (s *Service) Verify(scheduleID, clientID, token string) bool {
	expected := s.Generate(scheduleID, clientID)
	return hmac.Equal([]byte(expected), []byte(token))
}

// GenerateTimed embeds the issue time in the token so the link can expire.
// The form is "<unix seconds>.<digest>".
func (s *Service) GenerateTimed(scheduleID, clientID string, issuedAt time.Time) string {
	ts := strconv.FormatInt(issuedAt.Unix(), 10)
	return ts + "." + s.digest(scheduleID, clientID, ts)
}

// VerifyTimed checks a timed token's digest and, when a ttl is configured,
// its age. Tokens claiming to be issued in the future are rejected.
func (s *Service) VerifyTimed(scheduleID, clientID, token string, now time.Time) bool {
	ts, mac, ok := strings.Cut(token, ".")
	if !ok {
		return false
	}
	issued, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}

	age := now.Sub(time.Unix(issued, 0))
	if age < 0 {
		return false
	}
	if s.ttl > 0 && age > s.ttl {
		return false
	}
	return hmac.Equal([]byte(s.digest(scheduleID, clientID, ts)), []byte(mac))
}
