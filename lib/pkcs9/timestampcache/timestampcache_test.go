package timestampcache

import (
	"crypto"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wincodesign/authenticode/lib/pkcs9"
)

func TestCacheKeyDistinguishesStrategyHashAndDigest(t *testing.T) {
	rfc := &pkcs9.Request{EncryptedDigest: []byte("digest-a"), Hash: crypto.SHA256}
	legacy := &pkcs9.Request{EncryptedDigest: []byte("digest-a"), Hash: crypto.SHA256, Legacy: true}
	otherHash := &pkcs9.Request{EncryptedDigest: []byte("digest-a"), Hash: crypto.SHA1}
	otherDigest := &pkcs9.Request{EncryptedDigest: []byte("digest-b"), Hash: crypto.SHA256}

	keys := map[string]*pkcs9.Request{
		"rfc":         rfc,
		"legacy":      legacy,
		"other-hash":  otherHash,
		"other-value": otherDigest,
	}
	seen := make(map[string]string)
	for name, req := range keys {
		k := cacheKey(req)
		for otherName, otherKey := range seen {
			assert.NotEqual(t, otherKey, k, "%s and %s collided on %s", name, otherName, k)
		}
		seen[name] = k
	}
}

func TestCacheKeyIsDeterministic(t *testing.T) {
	req := &pkcs9.Request{EncryptedDigest: []byte("same digest"), Hash: crypto.SHA256}
	assert.Equal(t, cacheKey(req), cacheKey(req))
}
