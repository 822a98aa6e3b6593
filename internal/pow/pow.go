// Package pow implements the proof-of-work challenge and the signed
// session tokens issued for solved challenges.
package pow

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock abstracts time.Now so token expiry is testable.
type Clock interface {
	Now() time.Time
}

// Challenge is a freshly minted puzzle. It is never stored server-side:
// verification recomputes everything from the client-supplied values.
type Challenge struct {
	Prefix     string
	Difficulty int
}

// Engine generates challenges and issues/validates session tokens.
//
// Issuance is stateless: the server keeps no record of outstanding
// prefixes, so a solved (prefix, nonce) pair could be replayed. The
// 64 bits of prefix entropy make harvesting solutions impractical;
// this trade-off buys horizontal scalability with zero shared state.
type Engine struct {
	secret     []byte
	difficulty int
	ttl        time.Duration
	clock      Clock
}

// NewEngine constructs an Engine with the given signing secret,
// leading-zero difficulty target and session token TTL.
func NewEngine(secret string, difficulty int, ttl time.Duration, clock Clock) *Engine {
	return &Engine{
		secret:     []byte(secret),
		difficulty: difficulty,
		ttl:        ttl,
		clock:      clock,
	}
}

// Difficulty returns the configured leading-zero target.
func (e *Engine) Difficulty() int {
	return e.difficulty
}

// NewChallenge mints a challenge with a fresh 16-hex-char random prefix.
func (e *Engine) NewChallenge() (Challenge, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return Challenge{}, fmt.Errorf("generate challenge prefix: %w", err)
	}
	return Challenge{
		Prefix:     hex.EncodeToString(buf),
		Difficulty: e.difficulty,
	}, nil
}

// VerifySolution reports whether sha256(prefix || decimal nonce) has a hex
// digest starting with difficulty zero characters. The nonce is normalized
// to its canonical decimal form, matching what a solver iterating from 0
// would submit.
func (e *Engine) VerifySolution(prefix, nonce string, difficulty int) bool {
	if prefix == "" || nonce == "" || difficulty <= 0 {
		return false
	}
	n, err := strconv.ParseUint(nonce, 10, 64)
	if err != nil {
		return false
	}
	sum := sha256.Sum256([]byte(prefix + strconv.FormatUint(n, 10)))
	digest := hex.EncodeToString(sum[:])
	return strings.HasPrefix(digest, strings.Repeat("0", difficulty))
}

// IssueToken builds a session token bound to the source address:
// "{address}-{unix millis}.{hex hmac-sha256 of the payload}".
func (e *Engine) IssueToken(addr string) string {
	payload := addr + "-" + strconv.FormatInt(e.clock.Now().UnixMilli(), 10)
	return payload + "." + e.sign(payload)
}

// VerifyToken reports whether the token is authentic, bound to addr and
// within its TTL. Malformed tokens are a plain false, never an error.
func (e *Engine) VerifyToken(token, addr string) bool {
	if token == "" || addr == "" {
		return false
	}
	dot := strings.LastIndex(token, ".")
	if dot < 0 {
		return false
	}
	payload, sig := token[:dot], token[dot+1:]

	dash := strings.LastIndex(payload, "-")
	if dash < 0 {
		return false
	}
	tokenAddr, tsRaw := payload[:dash], payload[dash+1:]
	if tokenAddr != addr {
		return false
	}
	ts, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return false
	}
	if e.clock.Now().UnixMilli()-ts > e.ttl.Milliseconds() {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(e.sign(payload)))
}

func (e *Engine) sign(payload string) string {
	mac := hmac.New(sha256.New, e.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
