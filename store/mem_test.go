package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s := NewMemStore()

	_, err := s.GetUser(ctx, 123)
	assert.ErrorIs(err, ErrNotFound)

	now := time.Now().UTC()
	assert.NoError(s.TouchUser(ctx, 123, "alice", "Alice", now))
	u, err := s.GetUser(ctx, 123)
	assert.NoError(err)
	assert.Equal("alice", u.Username)
	assert.Equal(0, u.WarningCount)
	assert.Equal(now, u.LastActive)

	// missing display name gets a placeholder
	assert.NoError(s.TouchUser(ctx, 456, "", "", now))
	u, err = s.GetUser(ctx, 456)
	assert.NoError(err)
	assert.Equal("User_456", u.DisplayName)
}

func TestMemStoreWarnings(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s := NewMemStore()

	// increment creates the record if absent
	c, err := s.IncrementWarning(ctx, 123)
	assert.NoError(err)
	assert.Equal(1, c)
	c, err = s.IncrementWarning(ctx, 123)
	assert.NoError(err)
	assert.Equal(2, c)

	c, err = s.DecrementWarning(ctx, 123)
	assert.NoError(err)
	assert.Equal(1, c)
	c, err = s.DecrementWarning(ctx, 123)
	assert.NoError(err)
	assert.Equal(0, c)

	// floor at zero
	c, err = s.DecrementWarning(ctx, 123)
	assert.NoError(err)
	assert.Equal(0, c)

	// unknown user is implicitly clean, and no record is created
	c, err = s.DecrementWarning(ctx, 999)
	assert.NoError(err)
	assert.Equal(0, c)
	_, err = s.GetUser(ctx, 999)
	assert.ErrorIs(err, ErrNotFound)
}

func TestMemStoreConcurrentIncrements(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s := NewMemStore()

	var wg sync.WaitGroup
	counts := make([]int, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := s.IncrementWarning(ctx, 123)
			assert.NoError(err)
			counts[i] = c
		}(i)
	}
	wg.Wait()

	// every increment landed, and every caller saw a distinct count
	u, err := s.GetUser(ctx, 123)
	assert.NoError(err)
	assert.Equal(20, u.WarningCount)
	seen := make(map[int]bool)
	for _, c := range counts {
		assert.False(seen[c], "count %d returned twice", c)
		seen[c] = true
	}
}

func TestMemStoreKeywords(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s := NewMemStore()

	kws, err := s.ListKeywords(ctx)
	assert.NoError(err)
	assert.Empty(kws)

	s.AddKeyword("casino")
	s.AddKeyword("crypto")
	kws, err = s.ListKeywords(ctx)
	assert.NoError(err)
	assert.Equal(2, len(kws))
	assert.Equal("casino", kws[0].Term)

	s.ReplaceKeywords([]string{"spam"})
	kws, err = s.ListKeywords(ctx)
	assert.NoError(err)
	assert.Equal(1, len(kws))
	assert.Equal("spam", kws[0].Term)
}

func TestMemStoreBanned(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s := NewMemStore()

	_, err := s.IncrementWarning(ctx, 123)
	assert.NoError(err)
	assert.NoError(s.MarkBanned(ctx, 123))
	u, err := s.GetUser(ctx, 123)
	assert.NoError(err)
	assert.True(u.Banned)
}
