package repository

import (
	"context"
	"io"
	"testing"
	"time"

	"prokat/internal/config"
	"prokat/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStateRepository(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer client.Close()

	repo := NewRedisStateRepository(client, time.Hour)
	ctx := context.Background()

	t.Run("SetAndGetState", func(t *testing.T) {
		state := &models.UserState{
			UserID:      123,
			CurrentStep: "reserve:days",
			TempData:    map[string]interface{}{"answers": []string{"Dune", "alice"}},
		}

		require.NoError(t, repo.SetState(ctx, state))
		assert.True(t, s.Exists("prokat:menu_state:123"))
		assert.Equal(t, time.Hour, s.TTL("prokat:menu_state:123"))

		got, err := repo.GetState(ctx, 123)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, state.UserID, got.UserID)
		assert.Equal(t, state.CurrentStep, got.CurrentStep)
		assert.Equal(t, []string{"Dune", "alice"}, got.GetStrings("answers"))
	})

	t.Run("GetNonExistentState", func(t *testing.T) {
		got, err := repo.GetState(ctx, 999)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("CorruptState", func(t *testing.T) {
		require.NoError(t, s.Set("prokat:menu_state:321", "{not json"))
		_, err := repo.GetState(ctx, 321)
		assert.Error(t, err)
	})

	t.Run("ClearState", func(t *testing.T) {
		require.NoError(t, repo.SetState(ctx, &models.UserState{UserID: 456, CurrentStep: "menu"}))

		require.NoError(t, repo.ClearState(ctx, 456))

		got, _ := repo.GetState(ctx, 456)
		assert.Nil(t, got)
	})

	t.Run("RateLimit", func(t *testing.T) {
		userID := int64(789)
		limit := 2
		window := time.Second

		allowed, err := repo.CheckRateLimit(ctx, userID, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, userID, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		// Third request (exceeds limit)
		allowed, err = repo.CheckRateLimit(ctx, userID, limit, window)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(window + time.Millisecond)

		allowed, err = repo.CheckRateLimit(ctx, userID, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("NilClient", func(t *testing.T) {
		repo := NewRedisStateRepository(nil, time.Hour)
		_, err := repo.GetState(ctx, 123)
		assert.ErrorIs(t, err, errNilClient)
		assert.ErrorIs(t, repo.SetState(ctx, &models.UserState{}), errNilClient)
		assert.ErrorIs(t, repo.ClearState(ctx, 1), errNilClient)
		_, err = repo.CheckRateLimit(ctx, 1, 1, time.Second)
		assert.ErrorIs(t, err, errNilClient)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})
}

func TestNewStateRepository(t *testing.T) {
	logger := zerolog.New(io.Discard)
	ctx := context.Background()

	t.Run("MemoryWithoutRedis", func(t *testing.T) {
		repo, client := NewStateRepository(ctx, config.Default(), &logger)
		assert.Nil(t, client)
		assert.IsType(t, &MemoryStateRepository{}, repo)
	})

	t.Run("FailoverWithRedis", func(t *testing.T) {
		s := miniredis.RunT(t)
		cfg := config.Default()
		cfg.Redis.Address = s.Addr()

		repo, client := NewStateRepository(ctx, cfg, &logger)
		require.NotNil(t, client)
		defer Close(client)

		failover, ok := repo.(*FailoverStateRepository)
		require.True(t, ok)

		require.NoError(t, repo.SetState(ctx, &models.UserState{UserID: 5}))
		assert.True(t, s.Exists("prokat:menu_state:5"))

		s.Close()
		require.NoError(t, repo.SetState(ctx, &models.UserState{UserID: 6}))
		assert.True(t, failover.Down())

		got, err := repo.GetState(ctx, 6)
		require.NoError(t, err)
		assert.NotNil(t, got)
	})
}
