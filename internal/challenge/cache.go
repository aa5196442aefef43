package challenge

import "sync"

type progressKey struct {
	userID      string
	challengeID string
}

// cacheToken identifies the cache state a view was computed against.
type cacheToken struct {
	generation uint64
	epoch      uint64
}

// progressCache holds computed progress views until a write touches the same user and
// challenge. A view computed before an invalidation is never stored.
type progressCache struct {
	mu          sync.RWMutex
	views       map[progressKey]ProgressView
	generations map[progressKey]uint64
	epochs      map[string]uint64 // challengeID -> bumps on challenge-wide invalidation
}

func newProgressCache() *progressCache {
	return &progressCache{
		views:       make(map[progressKey]ProgressView),
		generations: make(map[progressKey]uint64),
		epochs:      make(map[string]uint64),
	}
}

// get returns a cached view, or the token to pass to put after computing one.
func (c *progressCache) get(userID, challengeID string) (ProgressView, cacheToken, bool) {
	key := progressKey{userID: userID, challengeID: challengeID}
	c.mu.RLock()
	defer c.mu.RUnlock()
	view, ok := c.views[key]
	return view, cacheToken{generation: c.generations[key], epoch: c.epochs[challengeID]}, ok
}

func (c *progressCache) put(view ProgressView, token cacheToken) {
	key := progressKey{userID: view.UserID, challengeID: view.ChallengeID}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[key] != token.generation || c.epochs[view.ChallengeID] != token.epoch {
		return
	}
	c.views[key] = view
}

func (c *progressCache) invalidate(userID, challengeID string) {
	key := progressKey{userID: userID, challengeID: challengeID}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.views, key)
	c.generations[key]++
}

// invalidateChallenge drops every participant's view of a challenge.
func (c *progressCache) invalidateChallenge(challengeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.views {
		if key.challengeID == challengeID {
			delete(c.views, key)
		}
	}
	c.epochs[challengeID]++
}
