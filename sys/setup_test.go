package sys

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The database is a package global, so these tests do not run in parallel.

func openTestDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "music.db")
	require.NoError(t, InitDatabase(context.Background(), path))
	t.Cleanup(CloseDatabase)
	return path
}

func TestMusicSetupRoundTrip(t *testing.T) {
	path := openTestDatabase(t)
	ctx := context.Background()

	empty, err := GetAllMusicSetups(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	setup := MusicSetup{GuildID: 1, ChannelID: 2, TrackMessageID: 3, QueueMessageID: 4}
	require.NoError(t, SaveMusicSetup(ctx, setup))

	// The record survives a restart.
	CloseDatabase()
	require.NoError(t, InitDatabase(ctx, path))

	all, err := GetAllMusicSetups(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	got := all[0]
	assert.Equal(t, setup.ChannelID, got.ChannelID)
	assert.Equal(t, setup.TrackMessageID, got.TrackMessageID)
	assert.Equal(t, setup.QueueMessageID, got.QueueMessageID)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestMusicSetupUpsertReplaces(t *testing.T) {
	openTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, SaveMusicSetup(ctx, MusicSetup{GuildID: 1, ChannelID: 2, TrackMessageID: 3, QueueMessageID: 4}))
	require.NoError(t, SaveMusicSetup(ctx, MusicSetup{GuildID: 1, ChannelID: 20, TrackMessageID: 30, QueueMessageID: 40}))
	require.NoError(t, SaveMusicSetup(ctx, MusicSetup{GuildID: 9, ChannelID: 2, TrackMessageID: 3, QueueMessageID: 4}))

	all, err := SetupStore{}.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.EqualValues(t, 1, all[0].GuildID)
	assert.EqualValues(t, 20, all[0].ChannelID)
	assert.EqualValues(t, 30, all[0].TrackMessageID)
	assert.EqualValues(t, 40, all[0].QueueMessageID)
	assert.EqualValues(t, 9, all[1].GuildID)

	require.NoError(t, SetupStore{}.Delete(ctx, 1))
	all, err = SetupStore{}.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.EqualValues(t, 9, all[0].GuildID)
}

func TestMusicSetupRejectsIncomplete(t *testing.T) {
	openTestDatabase(t)
	ctx := context.Background()

	tests := []MusicSetup{
		{ChannelID: 2, TrackMessageID: 3, QueueMessageID: 4},
		{GuildID: 1, TrackMessageID: 3, QueueMessageID: 4},
		{GuildID: 1, ChannelID: 2, QueueMessageID: 4},
		{GuildID: 1, ChannelID: 2, TrackMessageID: 3},
	}
	for _, s := range tests {
		assert.Error(t, SaveMusicSetup(ctx, s))
	}

	all, err := GetAllMusicSetups(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMusicSetupWithoutDatabase(t *testing.T) {
	CloseDatabase()

	policy := RetryPolicy{InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, MaxElapsed: time.Second, MaxRetries: 3}
	err := saveMusicSetup(context.Background(), MusicSetup{GuildID: 1, ChannelID: 2, TrackMessageID: 3, QueueMessageID: 4}, policy)
	assert.ErrorContains(t, err, "not initialized")
}

func TestBotConfigRoundTrip(t *testing.T) {
	openTestDatabase(t)
	ctx := context.Background()

	v, err := GetBotConfig(ctx, "mode")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, SetBotConfig(ctx, "mode", "guild"))
	require.NoError(t, SetBotConfig(ctx, "mode", "global"))
	v, err = GetBotConfig(ctx, "mode")
	require.NoError(t, err)
	assert.Equal(t, "global", v)
}

func TestRetryStopsOnPermanent(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, MaxElapsed: time.Second, MaxRetries: 5}

	calls := 0
	err := Retry(context.Background(), policy, func() error {
		calls++
		if calls < 3 {
			return errors.New("busy")
		}
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	notified := 0
	err = Retry(context.Background(), policy, func() error {
		calls++
		return Permanent(errors.New("constraint failed"))
	}, func(error, time.Duration) { notified++ })
	assert.ErrorContains(t, err, "constraint failed")
	assert.Equal(t, 1, calls)
	assert.Zero(t, notified)
}
