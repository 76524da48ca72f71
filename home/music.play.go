package home

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/jukebox/proc"
	"github.com/leeineian/jukebox/sys"
	"github.com/samber/lo"
)

// noticeFor maps a player error to the notice shown to the user.
func noticeFor(err error, capacity int) string {
	switch {
	case errors.Is(err, proc.ErrNotInVoice):
		return sys.ErrMusicNotInVoice
	case errors.Is(err, proc.ErrNotWithBot):
		return sys.ErrMusicNotWithBot
	case errors.Is(err, proc.ErrQueueFull):
		return fmt.Sprintf(sys.ErrMusicQueueFull, capacity)
	case errors.Is(err, proc.ErrNothingFound):
		return sys.ErrMusicNothingFound
	case errors.Is(err, proc.ErrQueueEmpty):
		return sys.ErrMusicNothingToSkip
	case errors.Is(err, proc.ErrStaleControl):
		return sys.ErrMusicStaleControl
	case errors.Is(err, proc.ErrConnect):
		return sys.ErrMusicConnectFailed
	case errors.Is(err, proc.ErrPlayFailed):
		return sys.ErrMusicPlayFailed
	case errors.Is(err, proc.ErrPlayerClosed):
		return sys.ErrMusicNotReady
	}
	return sys.ErrMusicResolveFailed
}

// playRequest is one /play command or Add modal submission.
type playRequest struct {
	Token          string
	User           discord.User
	GuildID        snowflake.ID
	VoiceChannelID snowflake.ID
	TextChannelID  snowflake.ID
	Query          string
}

func handleMusicPlay(event *events.ApplicationCommandInteractionCreate) {
	startPlay(event, event.SlashCommandInteractionData().String("search"))
}

// handleMusicOrder serves the Add modal.
func handleMusicOrder(event *events.ModalSubmitInteractionCreate) {
	startPlay(event, event.Data.Text(orderQueryInput))
}

// playEvent is implemented by the interactions that can queue a track.
type playEvent interface {
	responder
	ID() snowflake.ID
	GuildID() *snowflake.ID
	User() discord.User
	Channel() discord.InteractionChannel
	DeferCreateMessage(ephemeral bool, opts ...rest.RequestOpt) error
}

func startPlay(event playEvent, query string) {
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
	user := event.User()
	if !sys.InteractionLimiter.Allow(user.ID) {
		replyNotice(event, sys.ErrMusicRateLimited)
		return
	}

	// Guards and resolution can outlast the acknowledgement window.
	if err := event.DeferCreateMessage(true); err != nil {
		sys.LogDebug(sys.MsgMusicReplyFailed, err)
		return
	}

	ctx, cancel := context.WithTimeout(sys.AppContext, resolveTimeout)
	defer cancel()

	client := event.Client()
	m.play(ctx, m.reply(client.Rest, event.ApplicationID(), event.Token()), playRequest{
		Token:          event.ID().String(),
		User:           user,
		GuildID:        *guildID,
		VoiceChannelID: userVoiceChannel(client.Caches, *guildID, user.ID),
		TextChannelID:  event.Channel().ID(),
		Query:          strings.TrimSpace(query),
	})
}

// play answers a deferred request with a queued notice, a search picker or
// the reason it was refused.
func (m *musicRuntime) play(ctx context.Context, r reply, req playRequest) {
	// Guards run before the resolver so a refused request costs nothing.
	if err := m.service.Check(ctx, req.GuildID, req.VoiceChannelID); err != nil {
		r.notice(noticeFor(err, m.capacity))
		return
	}
	if req.Query == "" {
		r.notice(sys.ErrMusicNothingFound)
		return
	}

	res, err := m.resolver.Resolve(ctx, req.Query)
	if err != nil {
		sys.LogResolver(sys.MsgResolverFailed, req.Query, err)
		r.notice(sys.ErrMusicResolveFailed)
		return
	}
	if res.Empty() {
		r.notice(sys.ErrMusicNothingFound)
		return
	}

	if res.IsSearch() {
		m.picks.Open(req.Token, pickSession{
			UserID:        req.User.ID,
			GuildID:       req.GuildID,
			TextChannelID: req.TextChannelID,
			Query:         req.Query,
			Candidates:    res.Candidates,
		})
		r.edit(renderSearch(req.Token, req.Query, res.Candidates, ViewEnabled, ""))
		m.schedulePickExpiry(r, req.Token)
		return
	}

	notice, err := m.enqueueTracks(ctx, req.GuildID, req.User, req.VoiceChannelID, req.TextChannelID, res.Tracks)
	if err != nil {
		sys.LogMusic(sys.MsgMusicCommandFailed, "play", req.GuildID, err)
		r.notice(noticeFor(err, m.capacity))
		return
	}
	r.notice(notice)
}

// enqueueTracks stamps the requester on tracks and queues them.
func (m *musicRuntime) enqueueTracks(ctx context.Context, guildID snowflake.ID, user discord.User, voiceChannelID, textChannelID snowflake.ID, tracks []proc.Track) (string, error) {
	tracks = lo.Map(tracks, func(t proc.Track, _ int) proc.Track {
		return t.WithRequester(user.ID, user.Username)
	})
	res, err := m.service.Enqueue(ctx, guildID, proc.Request{
		Tracks:         tracks,
		VoiceChannelID: voiceChannelID,
		TextChannelID:  textChannelID,
	})
	if err != nil {
		return "", err
	}
	return queuedNotice(tracks, res), nil
}

// schedulePickExpiry redraws the search view as timed out unless the
// requester picks first.
func (m *musicRuntime) schedulePickExpiry(r reply, token string) {
	after := m.timeouts.For(ViewSearch)
	if after <= 0 {
		return
	}
	time.AfterFunc(after, func() {
		s, ok := m.picks.Expire(token)
		if !ok {
			return
		}
		r.edit(renderSearch(token, s.Query, s.Candidates, ViewTimedOut, ""))
	})
}

// pickRequest is a selection made in a search picker.
type pickRequest struct {
	Token          string
	User           discord.User
	Index          int
	VoiceChannelID snowflake.ID
	// Components is the picker as the user saw it.
	Components []discord.LayoutComponent
}

func handleMusicPick(event *events.ComponentInteractionCreate) {
	c, err := parseControl(event.Data.CustomID())
	if err != nil || c.Action != "pick" {
		_ = event.DeferUpdateMessage()
		return
	}
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

	data := event.StringSelectMenuInteractionData()
	if len(data.Values) == 0 {
		_ = event.DeferUpdateMessage()
		return
	}
	index, err := strconv.Atoi(data.Values[0])
	if err != nil {
		_ = event.DeferUpdateMessage()
		return
	}

	if err := event.DeferUpdateMessage(); err != nil {
		sys.LogDebug(sys.MsgMusicReplyFailed, err)
		return
	}

	ctx, cancel := context.WithTimeout(sys.AppContext, resolveTimeout)
	defer cancel()

	client := event.Client()
	user := event.User()
	m.pick(ctx, m.reply(client.Rest, event.ApplicationID(), event.Token()), pickRequest{
		Token:          c.Token,
		User:           user,
		Index:          index,
		VoiceChannelID: userVoiceChannel(client.Caches, *guildID, user.ID),
		Components:     event.Message.Components,
	})
}

// pick claims the session and queues the chosen candidate. The picker is
// redrawn disabled whatever the outcome.
func (m *musicRuntime) pick(ctx context.Context, r reply, req pickRequest) {
	session, candidate, err := m.picks.Take(req.Token, req.User.ID, req.Index)
	switch {
	case errors.Is(err, errPickNotYours):
		r.followup(sys.ErrMusicNotYours)
		return
	case err != nil:
		r.edit(disableComponents(req.Components))
		r.followup(sys.ErrMusicSelectExpired)
		return
	}

	note := fmt.Sprintf(sys.MsgMusicPicked, req.Index+1, escapeMarkdown(sys.TruncateEnd(candidate.Title, 100)))
	r.edit(renderSearch(req.Token, session.Query, session.Candidates, ViewDisabled, note))
	r.followup(m.enqueueCandidate(ctx, session, candidate, req.User, req.VoiceChannelID))
}

// enqueueCandidate resolves a picked candidate into a track and queues it.
// It returns the notice for the requester.
func (m *musicRuntime) enqueueCandidate(ctx context.Context, session pickSession, c proc.Candidate, user discord.User, voiceChannelID snowflake.ID) string {
	if err := m.service.Check(ctx, session.GuildID, voiceChannelID); err != nil {
		return noticeFor(err, m.capacity)
	}

	res, err := m.resolver.Resolve(ctx, c.URL)
	if err != nil {
		sys.LogResolver(sys.MsgResolverFailed, c.URL, err)
		return sys.ErrMusicResolveFailed
	}
	if len(res.Tracks) == 0 {
		return sys.ErrMusicNothingFound
	}

	notice, err := m.enqueueTracks(ctx, session.GuildID, user, voiceChannelID, session.TextChannelID, res.Tracks[:1])
	if err != nil {
		sys.LogMusic(sys.MsgMusicCommandFailed, "pick", session.GuildID, err)
		return noticeFor(err, m.capacity)
	}
	return notice
}

func handleMusicAutocomplete(event *events.AutocompleteInteractionCreate) {
	f := event.Data.Focused()
	if f.Name != "search" {
		return
	}

	ctx, cancel := context.WithTimeout(sys.AppContext, suggestTimeout)
	defer cancel()

	choices := lo.Map(proc.Suggest(ctx, f.String()), func(s proc.Suggestion, _ int) discord.AutocompleteChoice {
		value := s.URL
		if value == "" || len(value) > 100 {
			value = sys.TruncateEnd(s.Title, 100)
		}
		return discord.AutocompleteChoiceString{Name: sys.TruncateEnd(s.Label(), 100), Value: value}
	})
	_ = event.AutocompleteResult(choices)
}
