package home

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/jukebox/proc"
	"github.com/leeineian/jukebox/sys"
)

// setupAPI is the slice of the REST client /setup needs.
type setupAPI interface {
	UpdateChannel(channelID snowflake.ID, channelUpdate discord.ChannelUpdate, opts ...rest.RequestOpt) (discord.Channel, error)
	UpdatePermissionOverwrite(channelID snowflake.ID, overwriteID snowflake.ID, permissionOverwrite discord.PermissionOverwriteUpdate, opts ...rest.RequestOpt) error
	CreateMessage(channelID snowflake.ID, messageCreate discord.MessageCreate, opts ...rest.RequestOpt) (*discord.Message, error)
}

type setupSaver interface {
	Save(ctx context.Context, s sys.MusicSetup) error
}

// setupTarget is where /setup installs the music channel.
type setupTarget struct {
	GuildID   snowflake.ID
	ChannelID snowflake.ID
	BotID     snowflake.ID
	BotName   string
}

// handleMusicSetup turns the current channel into the guild's music channel:
// a standing track message and a standing queue message, persisted so they
// survive restarts.
func handleMusicSetup(event *events.ApplicationCommandInteractionCreate) {
	guildID := event.GuildID()
	if guildID == nil {
		replyNotice(event, sys.ErrMusicGuildOnly)
		return
	}
	member := event.Member()
	if member == nil || !member.Permissions.Has(discord.PermissionAdministrator) {
		replyNotice(event, sys.ErrMusicAdminOnly)
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

	client := event.Client()
	r := m.reply(client.Rest, event.ApplicationID(), event.Token())
	r.edit(noticeView(sys.MsgMusicSetupStarting))

	ctx, cancel := context.WithTimeout(sys.AppContext, resolveTimeout)
	defer cancel()

	target := setupTarget{
		GuildID:   *guildID,
		ChannelID: event.Channel().ID(),
		BotID:     client.ID(),
		BotName:   sys.GetProjectName(),
	}
	if self, ok := client.Caches.SelfUser(); ok {
		target.BotName = self.Username
	}

	if _, err := m.installSetup(ctx, client.Rest, m.setups, target); err != nil {
		sys.LogError(sys.MsgMusicCommandFailed, "setup", *guildID, err)
		r.notice(fmt.Sprintf(sys.ErrMusicSetupFailed, err))
		return
	}
	r.notice(sys.MsgMusicSetupDone)
}

// installSetup posts the standing messages, locks the channel to the bot,
// stores the record and draws the current state into it.
func (m *musicRuntime) installSetup(ctx context.Context, api setupAPI, store setupSaver, t setupTarget) (sys.MusicSetup, error) {
	topic := fmt.Sprintf(sys.MsgMusicSetupTopic, t.BotName)
	if _, err := api.UpdateChannel(t.ChannelID, discord.GuildTextChannelUpdate{Topic: &topic}, rest.WithCtx(ctx)); err != nil {
		sys.LogWarn(sys.MsgMusicSetupTopicErr, t.GuildID, err)
	}

	// The standing messages start idle; Attach fills them.
	idle := proc.Snapshot{GuildID: t.GuildID, State: proc.StateIdle, Capacity: m.capacity}
	trackMsg, err := api.CreateMessage(t.ChannelID, discord.NewMessageCreate().
		WithIsComponentsV2(true).
		WithComponents(renderIdle(idle, ViewEnabled)...), rest.WithCtx(ctx))
	if err != nil {
		return sys.MusicSetup{}, err
	}
	queueMsg, err := api.CreateMessage(t.ChannelID, discord.NewMessageCreate().
		WithIsComponentsV2(true).
		WithComponents(renderQueueView(idle)...), rest.WithCtx(ctx))
	if err != nil {
		return sys.MusicSetup{}, err
	}

	// Members drive the channel through its controls only. The @everyone role shares the guild id.
	send := discord.PermissionSendMessages
	if err := api.UpdatePermissionOverwrite(t.ChannelID, t.BotID, discord.MemberPermissionOverwriteUpdate{Allow: &send}, rest.WithCtx(ctx)); err != nil {
		sys.LogWarn(sys.MsgMusicSetupLockErr, t.GuildID, err)
	} else if err := api.UpdatePermissionOverwrite(t.ChannelID, t.GuildID, discord.RolePermissionOverwriteUpdate{Deny: &send}, rest.WithCtx(ctx)); err != nil {
		sys.LogWarn(sys.MsgMusicSetupLockErr, t.GuildID, err)
	}

	setup := sys.MusicSetup{
		GuildID:        t.GuildID,
		ChannelID:      t.ChannelID,
		TrackMessageID: trackMsg.ID,
		QueueMessageID: queueMsg.ID,
	}
	if err := store.Save(ctx, setup); err != nil {
		return sys.MusicSetup{}, err
	}

	if err := m.service.Attach(ctx, setup); err != nil {
		sys.LogWarn(sys.MsgMusicSetupAttachErr, t.GuildID, err)
	}
	return setup, nil
}
