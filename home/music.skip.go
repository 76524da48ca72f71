package home

import (
	"context"

	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/jukebox/sys"
)

func handleMusicSkip(event *events.ApplicationCommandInteractionCreate) {
	runPlaybackCommand(event, "skip")
}

func handleMusicStop(event *events.ApplicationCommandInteractionCreate) {
	runPlaybackCommand(event, "stop")
}

func handleMusicQueue(event *events.ApplicationCommandInteractionCreate) {
	runPlaybackCommand(event, "queue")
}

// runPlaybackCommand acknowledges /skip, /stop or /queue and answers once
// the player has applied it.
func runPlaybackCommand(event *events.ApplicationCommandInteractionCreate, action string) {
	guildID := event.GuildID()
	if guildID == nil {
		replyNotice(event, sys.ErrMusicGuildOnly)
		return
	}
	m, ok := musicState()
	if !ok {
		replyNotice(event, sys.ErrMusicNotReady)
		return
	}
	if err := event.DeferCreateMessage(true); err != nil {
		sys.LogDebug(sys.MsgMusicReplyFailed, err)
		return
	}

	ctx, cancel := context.WithTimeout(sys.AppContext, commandTimeout)
	defer cancel()

	client := event.Client()
	r := m.reply(client.Rest, event.ApplicationID(), event.Token())
	m.command(ctx, r, action, *guildID, userVoiceChannel(client.Caches, *guildID, event.User().ID))
}

// command applies a slash command. Commands carry no generation, so they
// always target the current track.
func (m *musicRuntime) command(ctx context.Context, r reply, action string, guildID, voiceChannelID snowflake.ID) {
	var (
		err  error
		done string
	)
	switch action {
	case "skip":
		err = m.service.Skip(ctx, guildID, voiceChannelID, 0)
		done = sys.MsgMusicSkipped
	case "stop":
		err = m.service.Disconnect(ctx, guildID, voiceChannelID, 0)
		done = sys.MsgMusicStopped
	case "queue":
		snap, snapErr := m.service.Snapshot(ctx, guildID)
		if snapErr == nil {
			r.edit(renderQueueListing(snap))
			return
		}
		err = snapErr
	}
	if err != nil {
		r.notice(noticeFor(err, m.capacity))
		return
	}
	r.notice(done)
}
