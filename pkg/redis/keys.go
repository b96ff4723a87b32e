package redis

import "strings"

const (
	idempotencyPrefix = "idempotency"
	rateLimitPrefix   = "rate_limit"
	cachePrefix       = "cache"
)

// DefaultKeyspace prefixes every key this service writes.
const DefaultKeyspace Keyspace = "sf"

// Keyspace builds colon separated keys under a fixed namespace. Blank
// parts are dropped so optional segments never produce "a::b".
type Keyspace string

func (k Keyspace) Key(parts ...string) string {
	var b strings.Builder
	b.WriteString(string(k))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(':')
		}
		b.WriteString(part)
	}
	return b.String()
}

func (k Keyspace) IdempotencyKey(scope, id string) string {
	return k.Key(idempotencyPrefix, scope, id)
}

func (k Keyspace) RateLimitKey(scope string) string {
	return k.Key(rateLimitPrefix, scope)
}

func (k Keyspace) CacheKey(parts ...string) string {
	return k.Key(append([]string{cachePrefix}, parts...)...)
}
