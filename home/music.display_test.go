package home

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/jukebox/proc"
	"github.com/leeineian/jukebox/sys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	channelID  snowflake.ID
	messageID  snowflake.ID
	components []discord.LayoutComponent
}

type fakeMessenger struct {
	mu        sync.Mutex
	nextID    snowflake.ID
	created   []sentMessage
	updated   []sentMessage
	updateErr error
}

func (f *fakeMessenger) CreateMessage(channelID snowflake.ID, mc discord.MessageCreate, _ ...rest.RequestOpt) (*discord.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.created = append(f.created, sentMessage{channelID: channelID, messageID: 1000 + f.nextID, components: mc.Components})
	return &discord.Message{ID: 1000 + f.nextID, ChannelID: channelID}, nil
}

func (f *fakeMessenger) UpdateMessage(channelID, messageID snowflake.ID, mu discord.MessageUpdate, _ ...rest.RequestOpt) (*discord.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	var comps []discord.LayoutComponent
	if mu.Components != nil {
		comps = *mu.Components
	}
	f.updated = append(f.updated, sentMessage{channelID: channelID, messageID: messageID, components: comps})
	return &discord.Message{ID: messageID, ChannelID: channelID}, nil
}

func (f *fakeMessenger) creates() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.created...)
}

func (f *fakeMessenger) updates() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.updated...)
}

var testSetup = sys.MusicSetup{GuildID: 1, ChannelID: 50, TrackMessageID: 51, QueueMessageID: 52}

func newTestDisplay(t *testing.T, timeouts ViewTimeouts) (*DiscordDisplay, *fakeMessenger) {
	t.Helper()
	m := &fakeMessenger{}
	d := NewDiscordDisplay(m, timeouts)
	t.Cleanup(d.Stop)
	return d, m
}

func allDisabled(comps []discord.LayoutComponent) bool {
	for _, b := range buttonsByLabel(comps) {
		if !b.Disabled {
			return false
		}
	}
	return true
}

func TestDisplaySetupEditsInPlace(t *testing.T) {
	t.Parallel()

	d, m := newTestDisplay(t, defaultViewTimeouts)
	d.Attach(testSetup)

	snap := playingSnapshot(4, "Song A", "Song B")
	snap.TextChannelID = 77

	id, err := d.NowPlaying(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, testSetup.TrackMessageID, id)
	assert.Empty(t, m.creates())

	ups := m.updates()
	require.Len(t, ups, 1)
	assert.Equal(t, testSetup.ChannelID, ups[0].channelID)
	assert.Equal(t, testSetup.TrackMessageID, ups[0].messageID)
	assert.Equal(t, "music:skip:4", buttonsByLabel(ups[0].components)["Skip"].CustomID)

	// Setup views never expire with the default timeouts.
	assert.Zero(t, d.expiry.pending())

	require.NoError(t, d.Queue(context.Background(), snap))
	ups = m.updates()
	require.Len(t, ups, 2)
	assert.Equal(t, testSetup.QueueMessageID, ups[1].messageID)
	assert.Contains(t, texts(ups[1].components), "Song B")

	assert.True(t, d.IsStanding(1, testSetup.TrackMessageID))
	assert.True(t, d.IsStanding(1, testSetup.QueueMessageID))
	assert.False(t, d.IsStanding(1, 999))
	assert.False(t, d.IsStanding(2, testSetup.TrackMessageID))
}

func TestDisplaySetupIdleEditsBothMessages(t *testing.T) {
	t.Parallel()

	d, m := newTestDisplay(t, defaultViewTimeouts)
	d.Attach(testSetup)

	require.NoError(t, d.Idle(context.Background(), proc.Snapshot{GuildID: 1, Capacity: 25}))

	ups := m.updates()
	require.Len(t, ups, 2)
	assert.Equal(t, testSetup.TrackMessageID, ups[0].messageID)
	assert.Contains(t, texts(ups[0].components), sys.MsgMusicIdleTitle)
	assert.True(t, buttonsByLabel(ups[0].components)["Skip"].Disabled)
	assert.False(t, buttonsByLabel(ups[0].components)["Add"].Disabled)
	assert.Equal(t, testSetup.QueueMessageID, ups[1].messageID)
	assert.Contains(t, texts(ups[1].components), sys.MsgMusicQueueEmpty)
}

func TestDisplayIdleJoinsErrors(t *testing.T) {
	t.Parallel()

	d, m := newTestDisplay(t, defaultViewTimeouts)
	d.Attach(testSetup)
	m.updateErr = errors.New("unknown message")

	err := d.Idle(context.Background(), proc.Snapshot{GuildID: 1})
	assert.ErrorContains(t, err, "unknown message")
}

func TestDisplayAdHocPostsAndRetires(t *testing.T) {
	t.Parallel()

	d, m := newTestDisplay(t, defaultViewTimeouts)

	snap := playingSnapshot(2, "Song A")
	snap.TextChannelID = 77

	id, err := d.NowPlaying(context.Background(), snap)
	require.NoError(t, err)
	require.NotZero(t, id)

	creates := m.creates()
	require.Len(t, creates, 1)
	assert.EqualValues(t, 77, creates[0].channelID)
	assert.False(t, allDisabled(creates[0].components))
	assert.Equal(t, 1, d.expiry.pending())

	// Idle and Queue have nothing to edit without a setup.
	require.NoError(t, d.Idle(context.Background(), proc.Snapshot{GuildID: 1}))
	require.NoError(t, d.Queue(context.Background(), snap))
	assert.Empty(t, m.updates())

	entry := *snap.Current
	entry.MessageID = id
	require.NoError(t, d.Retire(context.Background(), snap, entry))

	ups := m.updates()
	require.Len(t, ups, 1)
	assert.Equal(t, id, ups[0].messageID)
	assert.True(t, allDisabled(ups[0].components))
	assert.Contains(t, texts(ups[0].components), sys.MsgMusicViewFinished)
	assert.Zero(t, d.expiry.pending())

	// A second retire is a no-op.
	require.NoError(t, d.Retire(context.Background(), snap, entry))
	assert.Len(t, m.updates(), 1)
}

func TestDisplayAdHocWithoutChannel(t *testing.T) {
	t.Parallel()

	d, m := newTestDisplay(t, defaultViewTimeouts)

	id, err := d.NowPlaying(context.Background(), playingSnapshot(1, "Song A"))
	require.NoError(t, err)
	assert.Zero(t, id)
	assert.Empty(t, m.creates())
}

func TestDisplayPlaybackTimesOut(t *testing.T) {
	t.Parallel()

	d, m := newTestDisplay(t, ViewTimeouts{Playback: 20 * time.Millisecond})

	snap := playingSnapshot(1, "Song A")
	snap.TextChannelID = 77
	id, err := d.NowPlaying(context.Background(), snap)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return len(m.updates()) == 1 }, 2*time.Second, 5*time.Millisecond)

	ups := m.updates()
	require.Len(t, ups, 1)
	assert.Equal(t, id, ups[0].messageID)
	assert.True(t, allDisabled(ups[0].components))
	assert.Contains(t, texts(ups[0].components), sys.MsgMusicViewExpired)

	// The expired message is no longer retired on advance.
	entry := *snap.Current
	entry.MessageID = id
	require.NoError(t, d.Retire(context.Background(), snap, entry))
	assert.Len(t, m.updates(), 1)
}

func TestDisplayDetachFallsBackToAdHoc(t *testing.T) {
	t.Parallel()

	d, m := newTestDisplay(t, defaultViewTimeouts)
	d.Attach(testSetup)
	d.Detach(1)

	snap := playingSnapshot(1, "Song A")
	snap.TextChannelID = 77
	id, err := d.NowPlaying(context.Background(), snap)
	require.NoError(t, err)
	assert.NotEqual(t, testSetup.TrackMessageID, id)
	assert.Len(t, m.creates(), 1)
	assert.False(t, d.IsStanding(1, testSetup.TrackMessageID))
}
