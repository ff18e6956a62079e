package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"blogd/internal/domain"
)

// ResetTokenGenerator makes and checks single-purpose password-reset tokens.
//
// A token is never stored: it is an HMAC over the user id, the current
// password hash and an issuance timestamp, so changing the password
// invalidates every token issued before the change. Tokens expire after
// the configured validity window.
type ResetTokenGenerator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewResetTokenGenerator(secret string, ttl time.Duration) *ResetTokenGenerator {
	return &ResetTokenGenerator{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Make issues a token bound to the user's current state.
func (g *ResetTokenGenerator) Make(user *domain.User) string {
	ts := g.now().UTC().Unix()
	return fmt.Sprintf("%s-%s", strconv.FormatInt(ts, 36), g.sign(user, ts))
}

// Check reports whether the token was issued for the user's current state
// and is still inside the validity window.
func (g *ResetTokenGenerator) Check(user *domain.User, token string) bool {
	tsPart, sig, found := strings.Cut(token, "-")
	if !found {
		return false
	}
	ts, err := strconv.ParseInt(tsPart, 36, 64)
	if err != nil {
		return false
	}
	if !hmac.Equal([]byte(sig), []byte(g.sign(user, ts))) {
		return false
	}
	now := g.now().UTC().Unix()
	return ts <= now && now-ts <= int64(g.ttl.Seconds())
}

func (g *ResetTokenGenerator) sign(user *domain.User, ts int64) string {
	mac := hmac.New(sha256.New, g.secret)
	fmt.Fprintf(mac, "%d|%s|%d", user.ID, user.PasswordHash, ts)
	return hex.EncodeToString(mac.Sum(nil))
}

// EncodeUID wraps a user id into the opaque uid carried by reset links.
func EncodeUID(id int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(id, 10)))
}

// DecodeUID reverses EncodeUID.
func DecodeUID(uid string) (int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return 0, fmt.Errorf("decode uid: %w", err)
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("decode uid: invalid user id")
	}
	return id, nil
}
