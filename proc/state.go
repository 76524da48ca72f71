package proc

import (
	"errors"

	"github.com/disgoorg/snowflake/v2"
)

var (
	ErrNotInVoice   = errors.New("requester is not in a voice channel")
	ErrNotWithBot   = errors.New("requester is not in the bot's voice channel")
	ErrQueueFull    = errors.New("queue is full")
	ErrQueueEmpty   = errors.New("queue is empty")
	ErrNothingFound = errors.New("nothing found")
	ErrPlayerClosed = errors.New("player is closed")
	ErrStaleControl = errors.New("control belongs to a previous track")
	ErrConnect      = errors.New("voice connect failed")
	ErrPlayFailed   = errors.New("no track could be streamed")
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StatePlaying
	StateAdvancing
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StatePlaying:
		return "playing"
	case StateAdvancing:
		return "advancing"
	case StateDisconnecting:
		return "disconnecting"
	}
	return "unknown"
}

// Snapshot is a read-only copy of a player, taken on its loop.
type Snapshot struct {
	GuildID        snowflake.ID
	State          State
	Generation     uint64
	Current        *QueueEntry
	Pending        []QueueEntry
	Capacity       int
	VoiceChannelID snowflake.ID
	TextChannelID  snowflake.ID
}

func (s Snapshot) Len() int {
	if s.Current == nil {
		return 0
	}
	return 1 + len(s.Pending)
}

// Request asks a player to queue one or more resolved tracks.
// VoiceChannelID is the requester's channel, zero when they are not connected.
type Request struct {
	Tracks         []Track
	VoiceChannelID snowflake.ID
	TextChannelID  snowflake.ID
}

type EnqueueResult struct {
	// Position is the queue index of the first added track; 0 means it started playing.
	Position int
	Added    int
	Started  bool
}
