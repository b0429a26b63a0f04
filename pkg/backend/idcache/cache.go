// Copyright 2024-2026 Aiku AI

// Package idcache memoizes platform identifier lookups so the backend does
// not repeat network calls for identities it has already resolved.
package idcache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is the bound on each cache segment.
const DefaultSize = 1024

// DirectKey identifies a direct-message channel by its member pair.
type DirectKey struct {
	Self  string
	Other string
}

// Cache is a bounded LRU over two lookup kinds: (self, other) user pair to
// direct-channel ID, and username to user ID. Entries are treated as stable
// for the process lifetime; eviction only happens at capacity.
type Cache struct {
	direct *lru.Cache[DirectKey, string]
	users  *lru.Cache[string, string]
}

// New creates a Cache holding up to size entries per segment. Size must be
// positive; use DefaultSize unless a test needs a smaller bound.
func New(size int) (*Cache, error) {
	direct, err := lru.New[DirectKey, string](size)
	if err != nil {
		return nil, err
	}
	users, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &Cache{direct: direct, users: users}, nil
}

// DirectChannel returns the cached direct-channel ID for a user pair.
func (c *Cache) DirectChannel(self, other string) (string, bool) {
	return c.direct.Get(DirectKey{Self: self, Other: other})
}

// PutDirectChannel records the direct-channel ID for a user pair.
func (c *Cache) PutDirectChannel(self, other, channelID string) {
	c.direct.Add(DirectKey{Self: self, Other: other}, channelID)
}

// UserID returns the cached user ID for a username.
func (c *Cache) UserID(username string) (string, bool) {
	return c.users.Get(username)
}

// PutUserID records the user ID for a username.
func (c *Cache) PutUserID(username, userID string) {
	c.users.Add(username, userID)
}
