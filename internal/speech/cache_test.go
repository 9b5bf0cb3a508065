package speech

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKeyTruncatesText(t *testing.T) {
	long := strings.Repeat("अ", 250)

	key := CacheKey("henry", long)

	assert.Equal(t, "henry:"+strings.Repeat("अ", 200), key)
	assert.Equal(t, "henry:short", CacheKey("henry", "short"))
	assert.NotEqual(t, CacheKey("henry", "x"), CacheKey("george", "x"))
}

func TestAudioCacheEvictsOldest(t *testing.T) {
	c, err := NewAudioCache(DefaultCacheSize)
	require.NoError(t, err)

	for i := 0; i < DefaultCacheSize+1; i++ {
		c.Add(fmt.Sprintf("k%d", i), []byte{byte(i)})
	}

	assert.Equal(t, DefaultCacheSize, c.Len())
	_, ok := c.Get("k0")
	assert.False(t, ok)
	got, ok := c.Get(fmt.Sprintf("k%d", DefaultCacheSize))
	require.True(t, ok)
	assert.Equal(t, []byte{byte(DefaultCacheSize)}, got)
}

func TestNewAudioCacheRejectsZeroSize(t *testing.T) {
	_, err := NewAudioCache(0)
	assert.Error(t, err)
}
