package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client's retry token on unsafe methods.
// The ops API expects one on POST /events: the same key across retries lets
// a resend of an event be recognized instead of processed twice.
const HeaderIdempotencyKey = "Idempotency-Key"

// Context keys stashing idempotency state; read them through the accessors.
const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay" // bool: a stored outcome exists for this key
	ctxKeyRateBypass = "rate.bypass" // bool: skip rate limiting for this request
)

// GetIdempotencyKey returns the validated key stashed by
// IdempotencyValidator, with ok reporting presence. Handlers read the key
// from here, not from the header.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether this request repeats an operation whose outcome
// is already recorded. The middleware only flags it; handlers decide how to
// serve the replay, typically by re-reading persisted state.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions tunes header validation. MaxLen <= 0 means 200; a nil
// Pattern means a conservative token alphabet (^[A-Za-z0-9._~\-:]+$). TTL
// is the lookup's concern, not validated here.
type IdempotencyOptions struct {
	MaxLen  int
	Pattern *regexp.Regexp
}

// IdempotencyLookup answers whether a still-valid recorded outcome exists
// for (userID, key) at now. Errors mean the lookup itself failed and must
// not block normal processing.
type IdempotencyLookup func(ctx context.Context, userID, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator validates the Idempotency-Key header when present,
// stashes it for handlers, and consults the lookup for a recorded outcome.
// A recognized replay gets the replay and rate-bypass flags so the rate
// limiter does not charge a request the engine will not re-run.
//
// Without the header the middleware is a no-op; a malformed key is a 400.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "bad_idempotency_key",
				"message": "invalid Idempotency-Key",
			})
			return
		}

		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			uid := userIDFromCtx(c)
			now := time.Now().UTC()

			if exists, _ := lookup(c.Request.Context(), uid, key, now); exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}

// userIDFromCtx reads the identity set by upstream auth middleware, falling
// back to "demo-user" so local runs without auth still get keyed lookups.
func userIDFromCtx(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "demo-user"
}
