package helpers

import lru "github.com/hashicorp/golang-lru"

// Shuffling an epoch's validators is the most expensive lookup on the
// hot path and is requested for the same (seed, active set) many times
// per epoch, so results are memoized in a small LRU.

const shufflingCacheSize = 16

type shufflingCacheKey struct {
	key         [32]byte
	activeCount uint64
}

var shufflingCache, _ = lru.New(shufflingCacheSize)

func shufflingFromCache(key [32]byte, activeCount uint64) ([][]uint64, bool) {
	item, ok := shufflingCache.Get(shufflingCacheKey{key: key, activeCount: activeCount})
	if !ok {
		return nil, false
	}
	committees, ok := item.([][]uint64)
	return committees, ok
}

func addShufflingToCache(key [32]byte, activeCount uint64, committees [][]uint64) {
	shufflingCache.Add(shufflingCacheKey{key: key, activeCount: activeCount}, committees)
}
