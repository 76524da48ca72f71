package home

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/jukebox/proc"
	"github.com/leeineian/jukebox/sys"
)

const (
	commandTimeout  = 30 * time.Second
	resolveTimeout  = 90 * time.Second
	suggestTimeout  = 2500 * time.Millisecond
	shutdownTimeout = 10 * time.Second
)

type trackResolver interface {
	proc.Resolver
	Stop()
}

// musicRuntime is everything the handlers need once the client is ready.
type musicRuntime struct {
	service  *proc.Service
	voice    *proc.VoiceSystem
	resolver trackResolver
	display  *DiscordDisplay
	setups   setupSaver
	picks    *pickSessions
	timeouts ViewTimeouts
	capacity int

	noticeLifetime time.Duration
}

var (
	musicOnce   sync.Once
	activeMusic atomic.Pointer[musicRuntime]
)

func musicState() (*musicRuntime, bool) {
	m := activeMusic.Load()
	return m, m != nil
}

func init() {
	adminPerm := discord.PermissionAdministrator
	guildOnly := []discord.InteractionContextType{discord.InteractionContextTypeGuild}

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "play",
		Description: "Play a track from a link or search phrase",
		Contexts:    guildOnly,
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionString{
				Name:         "search",
				Description:  "A link or a search phrase",
				Required:     true,
				Autocomplete: true,
			},
		},
	}, handleMusicPlay)

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "skip",
		Description: "Skip the current track",
		Contexts:    guildOnly,
	}, handleMusicSkip)

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "stop",
		Description: "Clear the queue and leave the voice channel",
		Contexts:    guildOnly,
	}, handleMusicStop)

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "queue",
		Description: "Show the queue",
		Contexts:    guildOnly,
	}, handleMusicQueue)

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:                     "setup",
		Description:              "Turn this channel into the music channel (Admin Only)",
		DefaultMemberPermissions: omit.New(&adminPerm),
		Contexts:                 guildOnly,
	}, handleMusicSetup)

	sys.RegisterAutocompleteHandler("play", handleMusicAutocomplete)

	sys.RegisterComponentHandler(customAdd, handleMusicAdd)
	sys.RegisterComponentHandler(customSkip, handleMusicControl)
	sys.RegisterComponentHandler(customQueue, handleMusicControl)
	sys.RegisterComponentHandler(customStop, handleMusicControl)
	sys.RegisterComponentHandler(customPick, handleMusicPick)
	sys.RegisterModalHandler(customOrder, handleMusicOrder)

	sys.RegisterVoiceStateUpdateHandler(handleMusicVoiceState)

	sys.RegisterGuildJoinHandler(func(guildID snowflake.ID) {
		if m, ok := musicState(); ok {
			m.service.AddGuild(guildID)
		}
	})
	sys.RegisterGuildLeaveHandler(func(guildID snowflake.ID) {
		m, ok := musicState()
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(sys.AppContext, commandTimeout)
		defer cancel()
		if err := m.service.RemoveGuild(ctx, guildID); err != nil {
			sys.LogMusic(sys.MsgGenericError, err)
		}
	})

	sys.OnClientReady(func(ctx context.Context, client *bot.Client) {
		musicOnce.Do(func() {
			m := newMusicRuntime(client, sys.GlobalConfig)
			activeMusic.Store(m)
			sys.RegisterDaemon(sys.LogMusic, func(ctx context.Context) (bool, func(), func()) {
				return true, func() { restoreMusicViews(ctx, m) }, func() { m.shutdown() }
			})
		})
	})
}

func newMusicRuntime(client *bot.Client, cfg *sys.Config) *musicRuntime {
	capacity, results, ytdlpPath := sys.DefaultQueueCapacity, sys.DefaultSearchResults, ""
	if cfg != nil {
		capacity, results, ytdlpPath = cfg.QueueCapacity, cfg.SearchResults, cfg.YtdlpPath
	}
	timeouts := timeoutsFromConfig(cfg)

	voiceSys := proc.NewVoiceSystem(client)
	display := NewDiscordDisplay(client.Rest, timeouts)
	return &musicRuntime{
		service:        proc.NewService(capacity, voiceSys, display, sys.SetupStore{}),
		voice:          voiceSys,
		resolver:       proc.NewYTDLPResolver(ytdlpPath, results, capacity),
		display:        display,
		setups:         sys.SetupStore{},
		picks:          newPickSessions(timeouts.Search),
		timeouts:       timeouts,
		capacity:       capacity,
		noticeLifetime: noticeLifetime,
	}
}

// restoreMusicViews redraws the standing messages of every stored setup.
func restoreMusicViews(ctx context.Context, m *musicRuntime) {
	n, err := m.service.Restore(ctx)
	if err != nil {
		sys.LogError(sys.MsgGenericError, err)
	}
	sys.LogMusic(sys.MsgSetupRestored, n)
}

func (m *musicRuntime) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := m.service.Shutdown(ctx); err != nil {
		sys.LogMusic(sys.MsgGenericError, err)
	}
	m.voice.Shutdown(ctx)
	m.resolver.Stop()
	m.display.Stop()
	m.picks.Stop()
}

type voiceAction int

const (
	voiceIgnore voiceAction = iota
	voiceFollow
	voiceForcedLeave
	voiceCheckListeners
)

// classifyVoiceState decides what a voice state update means for the bot.
// current is the channel the cache holds for the bot after the update; the
// cache is written before listeners run, so a leave that is already
// superseded by a rejoin shows a channel here.
func classifyVoiceState(selfID snowflake.ID, update discord.VoiceState, current snowflake.ID) voiceAction {
	if update.UserID != selfID {
		return voiceCheckListeners
	}
	if update.ChannelID != nil {
		return voiceFollow
	}
	if current != 0 {
		return voiceIgnore
	}
	return voiceForcedLeave
}

// handleMusicVoiceState follows the bot's own voice state and leaves when
// the last listener goes.
func handleMusicVoiceState(event *events.GuildVoiceStateUpdate) {
	m, ok := musicState()
	if !ok {
		return
	}
	client := event.Client()
	selfID := client.ID()
	guildID := event.VoiceState.GuildID

	ctx, cancel := context.WithTimeout(sys.AppContext, commandTimeout)
	defer cancel()

	switch classifyVoiceState(selfID, event.VoiceState, userVoiceChannel(client.Caches, guildID, selfID)) {
	case voiceIgnore:
		sys.LogDebug(sys.MsgMusicRejoined, guildID)
	case voiceFollow:
		m.voice.Moved(guildID, *event.VoiceState.ChannelID)
	case voiceForcedLeave:
		var oldChannel snowflake.ID
		if event.OldVoiceState.ChannelID != nil {
			oldChannel = *event.OldVoiceState.ChannelID
		}
		if err := m.service.ForcedDisconnect(ctx, guildID, oldChannel); err != nil {
			sys.LogMusic(sys.MsgGenericError, err)
		}
	case voiceCheckListeners:
		botChannel, ok := m.voice.ChannelID(guildID)
		if !ok {
			return
		}
		isBot := func(userID snowflake.ID) bool {
			member, ok := client.Caches.Member(guildID, userID)
			return ok && member.User.Bot
		}
		if countListeners(client.Caches.VoiceStates(guildID), selfID, botChannel, isBot) > 0 {
			return
		}
		if err := m.service.ChannelEmptied(ctx, guildID); err != nil {
			sys.LogMusic(sys.MsgGenericError, err)
		}
	}
}

// countListeners counts the humans in channelID.
func countListeners(states iter.Seq[discord.VoiceState], selfID, channelID snowflake.ID, isBot func(snowflake.ID) bool) int {
	humans := 0
	for state := range states {
		if state.ChannelID == nil || *state.ChannelID != channelID || state.UserID == selfID {
			continue
		}
		if !isBot(state.UserID) {
			humans++
		}
	}
	return humans
}

type voiceStates interface {
	VoiceState(guildID, userID snowflake.ID) (discord.VoiceState, bool)
}

// userVoiceChannel is zero when the user is not connected.
func userVoiceChannel(states voiceStates, guildID, userID snowflake.ID) snowflake.ID {
	state, ok := states.VoiceState(guildID, userID)
	if !ok || state.ChannelID == nil {
		return 0
	}
	return *state.ChannelID
}
