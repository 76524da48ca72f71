package proc

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/jukebox/sys"
)

// Transport is the voice side of a player.
type Transport interface {
	// Connect joins channelID, returning early when already there.
	Connect(ctx context.Context, guildID, channelID snowflake.ID) error
	// Play streams t and calls done exactly once when the stream is exhausted or stopped.
	Play(ctx context.Context, guildID snowflake.ID, t Track, done func()) error
	// Stop ends the current stream. done of the stopped Play still fires.
	Stop(guildID snowflake.ID)
	Disconnect(ctx context.Context, guildID snowflake.ID) error
	// ChannelID is the voice channel the bot is connected to in guildID.
	ChannelID(guildID snowflake.ID) (snowflake.ID, bool)
}

// Display renders player state to chat.
type Display interface {
	// NowPlaying renders the head entry and returns the id of the message showing it.
	NowPlaying(ctx context.Context, snap Snapshot) (snowflake.ID, error)
	// Idle renders the nothing-playing view and an empty queue.
	Idle(ctx context.Context, snap Snapshot) error
	Queue(ctx context.Context, snap Snapshot) error
	// Retire disables the controls of an entry that is no longer current.
	Retire(ctx context.Context, snap Snapshot, entry QueueEntry) error
	// Attach binds a guild to its standing setup messages.
	Attach(setup sys.MusicSetup)
	Detach(guildID snowflake.ID)
}

type SetupStore interface {
	All(ctx context.Context) ([]sys.MusicSetup, error)
	Delete(ctx context.Context, guildID snowflake.ID) error
}
