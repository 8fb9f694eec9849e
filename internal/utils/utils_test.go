package utils

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheExpires(t *testing.T) {
	c, err := NewCache(2, time.Minute)
	require.NoError(t, err)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	assert.Equal(t, 1, c.Get("a"))

	now = now.Add(2 * time.Minute)
	assert.Nil(t, c.Get("a"))
}

func TestCachePurge(t *testing.T) {
	c, err := NewCache(4, time.Minute)
	require.NoError(t, err)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Purge()
	assert.Nil(t, c.Get("a"))
	assert.Nil(t, c.Get("b"))
}

func TestCacheSkipsWritesAcrossPurge(t *testing.T) {
	c, err := NewCache(4, time.Minute)
	require.NoError(t, err)

	gen := c.Generation()
	// 查询进行中时发生写操作
	c.Purge()
	assert.False(t, c.SetIfGeneration("trending", []int{1, 2}, gen))
	assert.Nil(t, c.Get("trending"))

	gen = c.Generation()
	assert.True(t, c.SetIfGeneration("trending", []int{2, 1}, gen))
	assert.Equal(t, []int{2, 1}, c.Get("trending"))
}

func TestKeyedMutexHonoursContext(t *testing.T) {
	km := NewKeyedMutex()

	unlock, err := km.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = km.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.Empty(t, km.locks)

	unlock, err = km.Lock(context.Background(), "k")
	require.NoError(t, err)
	unlock()
}

func TestKeyedMutexSerialisesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := km.Lock(ctx, "vote/post/1")
			if !assert.NoError(t, err) {
				return
			}

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, km.locks)
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	unlockA, err := km.Lock(ctx, "a")
	require.NoError(t, err)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB, err := km.Lock(ctx, "b")
		if err == nil {
			unlockB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked by lock on a")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("secret", 1234567890123, time.Hour)
	require.NoError(t, err)

	id, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, int64(1234567890123), id)

	_, err = ParseToken("other", token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := GenerateToken("secret", 1, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken("secret", expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRenderMarkdownSanitises(t *testing.T) {
	out := string(RenderMarkdown("**hi** <script>alert(1)</script> [x](https://example.com)"))

	assert.Contains(t, out, "<strong>hi</strong>")
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, `rel="nofollow noopener noreferrer"`)
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "Midterm & final notes", StripTags(" <b>Midterm</b> & final notes "))
	assert.False(t, strings.Contains(StripTags("<img src=x onerror=alert(1)>title"), "<"))
}

func TestParseID(t *testing.T) {
	id, ok := ParseID("42")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	for _, s := range []string{"", "0", "-1", "abc"} {
		_, ok := ParseID(s)
		assert.False(t, ok, s)
	}
}

func TestGetKarmaLevel(t *testing.T) {
	assert.Equal(t, "freshman", GetKarmaLevel(-5))
	assert.Equal(t, "member", GetKarmaLevel(11))
	assert.Equal(t, "legend", GetKarmaLevel(1000))
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("hunter22", hash))
	assert.False(t, CheckPasswordHash("hunter23", hash))
}

func TestIDGeneratorIsMonotonic(t *testing.T) {
	g, err := NewIDGenerator(1)
	require.NoError(t, err)

	prev := g.Next()
	for i := 0; i < 100; i++ {
		next := g.Next()
		assert.Greater(t, next, prev)
		prev = next
	}

	_, err = NewIDGenerator(4096)
	assert.Error(t, err)
}
