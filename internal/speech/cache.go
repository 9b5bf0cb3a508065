package speech

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of rendered utterances kept in memory.
const DefaultCacheSize = 50

// cacheKeyRunes bounds how much of the text goes into a cache key.
const cacheKeyRunes = 200

// AudioCache is a bounded LRU of rendered premium audio. Safe for
// concurrent use.
type AudioCache struct {
	entries *lru.Cache[string, []byte]
}

// NewAudioCache creates a cache holding at most size entries.
func NewAudioCache(size int) (*AudioCache, error) {
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &AudioCache{entries: c}, nil
}

// CacheKey is voiceID plus the first 200 characters of text.
func CacheKey(voiceID, text string) string {
	r := []rune(text)
	if len(r) > cacheKeyRunes {
		r = r[:cacheKeyRunes]
	}
	return voiceID + ":" + string(r)
}

func (c *AudioCache) Get(key string) ([]byte, bool) {
	return c.entries.Get(key)
}

// Add stores audio, evicting the least recently used entry when full.
func (c *AudioCache) Add(key string, audio []byte) {
	c.entries.Add(key, audio)
}

func (c *AudioCache) Len() int {
	return c.entries.Len()
}
