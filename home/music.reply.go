package home

import (
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/jukebox/sys"
)

// noticeLifetime is how long a transient notice stays visible.
const noticeLifetime = 10 * time.Second

// interactionAPI is the slice of the REST client used once an interaction is acknowledged.
type interactionAPI interface {
	UpdateInteractionResponse(applicationID snowflake.ID, interactionToken string, messageUpdate discord.MessageUpdate, opts ...rest.RequestOpt) (*discord.Message, error)
	DeleteInteractionResponse(applicationID snowflake.ID, interactionToken string, opts ...rest.RequestOpt) error
	CreateFollowupMessage(applicationID snowflake.ID, interactionToken string, messageCreate discord.MessageCreate, opts ...rest.RequestOpt) (*discord.Message, error)
	DeleteFollowupMessage(applicationID snowflake.ID, interactionToken string, messageID snowflake.ID, opts ...rest.RequestOpt) error
}

// reply answers an interaction that has already been acknowledged.
type reply struct {
	api           interactionAPI
	applicationID snowflake.ID
	token         string
	lifetime      time.Duration
}

func (m *musicRuntime) reply(api interactionAPI, applicationID snowflake.ID, token string) reply {
	return reply{api: api, applicationID: applicationID, token: token, lifetime: m.noticeLifetime}
}

// edit replaces the original response. For a deferred component update that
// is the message the component sits on.
func (r reply) edit(view []discord.LayoutComponent) {
	_, err := r.api.UpdateInteractionResponse(r.applicationID, r.token, discord.NewMessageUpdate().
		WithIsComponentsV2(true).
		WithComponents(view...))
	if err != nil {
		sys.LogDebug(sys.MsgMusicReplyFailed, err)
	}
}

// notice shows text as the original response and removes it after the lifetime.
func (r reply) notice(text string) {
	r.edit(noticeView(text))
	r.dismiss(func() error {
		return r.api.DeleteInteractionResponse(r.applicationID, r.token)
	})
}

// followup sends text as a new ephemeral message that removes itself after the lifetime.
func (r reply) followup(text string) {
	msg, ok := r.followupView(noticeView(text))
	if !ok {
		return
	}
	r.dismiss(func() error {
		return r.api.DeleteFollowupMessage(r.applicationID, r.token, msg.ID)
	})
}

// followupView sends view as a new ephemeral message that stays.
func (r reply) followupView(view []discord.LayoutComponent) (*discord.Message, bool) {
	msg, err := r.api.CreateFollowupMessage(r.applicationID, r.token, discord.NewMessageCreate().
		WithIsComponentsV2(true).
		WithEphemeral(true).
		WithComponents(view...))
	if err != nil {
		sys.LogDebug(sys.MsgMusicReplyFailed, err)
		return nil, false
	}
	return msg, true
}

func (r reply) dismiss(remove func() error) {
	if r.lifetime <= 0 {
		return
	}
	time.AfterFunc(r.lifetime, func() {
		if err := remove(); err != nil {
			sys.LogDebug(sys.MsgMusicReplyFailed, err)
		}
	})
}

// responder is implemented by every interaction event that can reply.
type responder interface {
	CreateMessage(messageCreate discord.MessageCreate, opts ...rest.RequestOpt) error
	Client() *bot.Client
	ApplicationID() snowflake.ID
	Token() string
}

// replyNotice answers a not yet acknowledged interaction with a transient
// ephemeral notice.
func replyNotice(e responder, text string) {
	if err := e.CreateMessage(discord.NewMessageCreate().
		WithIsComponentsV2(true).
		WithEphemeral(true).
		WithComponents(noticeView(text)...)); err != nil {
		sys.LogDebug(sys.MsgMusicReplyFailed, err)
		return
	}
	r := reply{api: e.Client().Rest, applicationID: e.ApplicationID(), token: e.Token(), lifetime: noticeLifetime}
	r.dismiss(func() error {
		return r.api.DeleteInteractionResponse(r.applicationID, r.token)
	})
}
