// Package cache holds the byte-level response cache behind the signal API
// read endpoints. Values are fully rendered response envelopes, so a hit
// skips evaluation and marshalling entirely.
package cache

import "time"

// BytesCache stores raw bytes under string keys with a TTL. ok reports a
// live hit; a miss and an expired entry look the same to callers.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}
