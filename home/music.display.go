package home

import (
	"context"
	"errors"
	"sync"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/jukebox/proc"
	"github.com/leeineian/jukebox/sys"
)

// messenger is the slice of the REST client the display needs.
type messenger interface {
	CreateMessage(channelID snowflake.ID, messageCreate discord.MessageCreate, opts ...rest.RequestOpt) (*discord.Message, error)
	UpdateMessage(channelID snowflake.ID, messageID snowflake.ID, messageUpdate discord.MessageUpdate, opts ...rest.RequestOpt) (*discord.Message, error)
}

// postedView is an ad-hoc now-playing message still showing live controls.
type postedView struct {
	channelID snowflake.ID
	snap      proc.Snapshot
}

// DiscordDisplay renders player state into chat. Guilds with a setup get
// their two standing messages edited in place; others get a now-playing
// message per track in the channel that started playback.
type DiscordDisplay struct {
	rest     messenger
	timeouts ViewTimeouts
	expiry   *expiries

	mu     sync.Mutex
	setups map[snowflake.ID]sys.MusicSetup
	posted map[snowflake.ID]postedView
}

func NewDiscordDisplay(r messenger, timeouts ViewTimeouts) *DiscordDisplay {
	return &DiscordDisplay{
		rest:     r,
		timeouts: timeouts,
		expiry:   newExpiries(),
		setups:   make(map[snowflake.ID]sys.MusicSetup),
		posted:   make(map[snowflake.ID]postedView),
	}
}

func (d *DiscordDisplay) setup(guildID snowflake.ID) (sys.MusicSetup, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.setups[guildID]
	return s, ok
}

func (d *DiscordDisplay) Attach(setup sys.MusicSetup) {
	d.mu.Lock()
	old, had := d.setups[setup.GuildID]
	d.setups[setup.GuildID] = setup
	d.mu.Unlock()

	if had && old.TrackMessageID != setup.TrackMessageID {
		d.expiry.cancel(old.TrackMessageID)
	}
}

func (d *DiscordDisplay) Detach(guildID snowflake.ID) {
	d.mu.Lock()
	old, had := d.setups[guildID]
	delete(d.setups, guildID)
	d.mu.Unlock()

	if had {
		d.expiry.cancel(old.TrackMessageID)
	}
}

// IsStanding reports whether messageID is the guild's setup track message.
func (d *DiscordDisplay) IsStanding(guildID, messageID snowflake.ID) bool {
	s, ok := d.setup(guildID)
	return ok && (s.TrackMessageID == messageID || s.QueueMessageID == messageID)
}

// Forget drops the bookkeeping of an ad-hoc message redrawn elsewhere.
func (d *DiscordDisplay) Forget(messageID snowflake.ID) {
	d.expiry.cancel(messageID)
	d.mu.Lock()
	delete(d.posted, messageID)
	d.mu.Unlock()
}

func (d *DiscordDisplay) NowPlaying(ctx context.Context, snap proc.Snapshot) (snowflake.ID, error) {
	view := renderNowPlaying(snap, ViewEnabled)

	if s, ok := d.setup(snap.GuildID); ok {
		if err := d.edit(ctx, s.ChannelID, s.TrackMessageID, view); err != nil {
			return 0, err
		}
		d.arm(ViewSetup, s.ChannelID, s.TrackMessageID, snap)
		return s.TrackMessageID, nil
	}

	if snap.TextChannelID == 0 {
		return 0, nil
	}
	msg, err := d.rest.CreateMessage(snap.TextChannelID, discord.NewMessageCreate().
		WithIsComponentsV2(true).
		WithComponents(view...), rest.WithCtx(ctx))
	if err != nil {
		return 0, err
	}

	d.mu.Lock()
	d.posted[msg.ID] = postedView{channelID: snap.TextChannelID, snap: snap}
	d.mu.Unlock()
	d.arm(ViewPlayback, snap.TextChannelID, msg.ID, snap)
	return msg.ID, nil
}

func (d *DiscordDisplay) Idle(ctx context.Context, snap proc.Snapshot) error {
	s, ok := d.setup(snap.GuildID)
	if !ok {
		return nil
	}
	d.expiry.cancel(s.TrackMessageID)
	return errors.Join(
		d.edit(ctx, s.ChannelID, s.TrackMessageID, renderIdle(snap, ViewEnabled)),
		d.edit(ctx, s.ChannelID, s.QueueMessageID, renderQueueView(snap)),
	)
}

func (d *DiscordDisplay) Queue(ctx context.Context, snap proc.Snapshot) error {
	s, ok := d.setup(snap.GuildID)
	if !ok {
		return nil
	}
	return d.edit(ctx, s.ChannelID, s.QueueMessageID, renderQueueView(snap))
}

// Retire disables the controls of an ad-hoc message. Standing messages are
// redrawn by the next NowPlaying or Idle instead.
func (d *DiscordDisplay) Retire(ctx context.Context, _ proc.Snapshot, entry proc.QueueEntry) error {
	if entry.MessageID == 0 {
		return nil
	}
	d.expiry.cancel(entry.MessageID)

	d.mu.Lock()
	view, ok := d.posted[entry.MessageID]
	delete(d.posted, entry.MessageID)
	d.mu.Unlock()
	if !ok {
		return nil
	}

	retired := view.snap
	retired.Current = &entry
	return d.edit(ctx, view.channelID, entry.MessageID, renderNowPlaying(retired, ViewDisabled))
}

// Stop cancels every pending expiry.
func (d *DiscordDisplay) Stop() {
	d.expiry.stop()
}

func (d *DiscordDisplay) edit(ctx context.Context, channelID, messageID snowflake.ID, view []discord.LayoutComponent) error {
	_, err := d.rest.UpdateMessage(channelID, messageID, discord.NewMessageUpdate().
		WithIsComponentsV2(true).
		WithComponents(view...), rest.WithCtx(ctx))
	return err
}

// arm schedules the TimedOut redraw of a track message.
func (d *DiscordDisplay) arm(kind ViewKind, channelID, messageID snowflake.ID, snap proc.Snapshot) {
	d.expiry.schedule(messageID, d.timeouts.For(kind), func() {
		if kind == ViewPlayback {
			d.mu.Lock()
			delete(d.posted, messageID)
			d.mu.Unlock()
		}
		ctx, cancel := context.WithTimeout(sys.AppContext, commandTimeout)
		defer cancel()
		if err := d.edit(ctx, channelID, messageID, renderNowPlaying(snap, ViewTimedOut)); err != nil {
			sys.LogWarn(sys.MsgMusicExpiryFailed, messageID, err)
		}
	})
}
