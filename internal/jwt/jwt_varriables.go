package jwt

import (
	"sync"
	"time"

	"channah-support-chat/internal/env"
)

const DefaultTokenTTL = 24 * time.Hour

var (
	settingsMu sync.RWMutex
	userSecret string
	tokenTTL   = DefaultTokenTTL
)

func init() {
	userSecret = env.Get(env.UserSecretKey)
}

// Configure replaces the signing secret and the access token lifetime. A
// non-positive ttl keeps the current lifetime.
func Configure(secret string, ttl time.Duration) {
	settingsMu.Lock()
	defer settingsMu.Unlock()
	userSecret = secret
	if ttl > 0 {
		tokenTTL = ttl
	}
}

func TokenTTL() time.Duration {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return tokenTTL
}

func secret() string {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return userSecret
}
