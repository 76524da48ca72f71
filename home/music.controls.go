package home

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/jukebox/proc"
	"github.com/leeineian/jukebox/sys"
)

// control is a parsed music component custom id.
type control struct {
	Action string
	Gen    uint64
	Token  string
}

func parseControl(customID string) (control, error) {
	parts := strings.Split(customID, ":")
	if len(parts) < 2 || parts[0] != "music" {
		return control{}, fmt.Errorf("not a music control: %q", customID)
	}

	c := control{Action: parts[1]}
	switch c.Action {
	case "add":
		if len(parts) != 2 {
			return control{}, fmt.Errorf("malformed add control: %q", customID)
		}
	case "skip", "queue", "stop":
		if len(parts) != 3 {
			return control{}, fmt.Errorf("malformed %s control: %q", c.Action, customID)
		}
		gen, err := strconv.ParseUint(parts[2], 10, 64)
		if err != nil {
			return control{}, fmt.Errorf("malformed %s control generation: %w", c.Action, err)
		}
		c.Gen = gen
	case "pick":
		if len(parts) != 3 || parts[2] == "" {
			return control{}, fmt.Errorf("malformed pick control: %q", customID)
		}
		c.Token = parts[2]
	default:
		return control{}, fmt.Errorf("unknown music control: %q", customID)
	}
	return c, nil
}

// --- Disabling rendered components ---

func disableComponents(comps []discord.LayoutComponent) []discord.LayoutComponent {
	out := make([]discord.LayoutComponent, len(comps))
	for i, comp := range comps {
		out[i] = disableLayout(comp)
	}
	return out
}

func disableLayout(comp discord.LayoutComponent) discord.LayoutComponent {
	switch c := comp.(type) {
	case discord.ContainerComponent:
		c.Components = disableSubs(c.Components)
		return c
	case *discord.ContainerComponent:
		cp := *c
		cp.Components = disableSubs(c.Components)
		return cp
	case discord.ActionRowComponent:
		c.Components = disableInteractives(c.Components)
		return c
	case *discord.ActionRowComponent:
		cp := *c
		cp.Components = disableInteractives(c.Components)
		return cp
	}
	return comp
}

func disableSubs(subs []discord.ContainerSubComponent) []discord.ContainerSubComponent {
	out := make([]discord.ContainerSubComponent, len(subs))
	for i, sub := range subs {
		switch s := sub.(type) {
		case discord.ActionRowComponent:
			s.Components = disableInteractives(s.Components)
			out[i] = s
		case *discord.ActionRowComponent:
			cp := *s
			cp.Components = disableInteractives(s.Components)
			out[i] = cp
		default:
			out[i] = sub
		}
	}
	return out
}

func disableInteractives(inters []discord.InteractiveComponent) []discord.InteractiveComponent {
	out := make([]discord.InteractiveComponent, len(inters))
	for i, inter := range inters {
		switch c := inter.(type) {
		case discord.ButtonComponent:
			c.Disabled = true
			out[i] = c
		case *discord.ButtonComponent:
			cp := *c
			cp.Disabled = true
			out[i] = cp
		case discord.StringSelectMenuComponent:
			c.Disabled = true
			out[i] = c
		case *discord.StringSelectMenuComponent:
			cp := *c
			cp.Disabled = true
			out[i] = cp
		default:
			out[i] = inter
		}
	}
	return out
}

// --- Control expiry ---

type expiryTimer struct {
	timer *time.Timer
}

// expiries holds one pending expiry per message.
type expiries struct {
	mu     sync.Mutex
	timers map[snowflake.ID]*expiryTimer
	closed bool
}

func newExpiries() *expiries {
	return &expiries{timers: make(map[snowflake.ID]*expiryTimer)}
}

// schedule runs fn after d unless the message is rescheduled or cancelled first.
// A non-positive d leaves the message without expiry.
func (e *expiries) schedule(messageID snowflake.ID, d time.Duration, fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if old, ok := e.timers[messageID]; ok {
		old.timer.Stop()
		delete(e.timers, messageID)
	}
	if d <= 0 || e.closed {
		return
	}

	entry := &expiryTimer{}
	entry.timer = time.AfterFunc(d, func() {
		e.mu.Lock()
		current, ok := e.timers[messageID]
		if !ok || current != entry {
			e.mu.Unlock()
			return
		}
		delete(e.timers, messageID)
		e.mu.Unlock()
		fn()
	})
	e.timers[messageID] = entry
}

// cancel reports whether a pending expiry was stopped.
func (e *expiries) cancel(messageID snowflake.ID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.timers[messageID]
	if !ok {
		return false
	}
	entry.timer.Stop()
	delete(e.timers, messageID)
	return true
}

func (e *expiries) pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.timers)
}

func (e *expiries) stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	for id, entry := range e.timers {
		entry.timer.Stop()
		delete(e.timers, id)
	}
}

// --- Component handlers ---

// addModal asks for a link or search phrase, submitted as customOrder.
func addModal() discord.ModalCreate {
	return discord.NewModalCreate(customOrder, sys.MsgMusicAddTitle, []discord.LayoutComponent{
		discord.NewLabel(sys.MsgMusicAddLabel, discord.NewShortTextInput(orderQueryInput).
			WithRequired(true).
			WithMaxLength(400).
			WithPlaceholder(sys.MsgMusicAddHint)),
	})
}

func handleMusicAdd(event *events.ComponentInteractionCreate) {
	if err := event.Modal(addModal()); err != nil {
		sys.LogDebug(sys.MsgMusicReplyFailed, err)
	}
}

// clickedMessage is the message a control was clicked on.
type clickedMessage struct {
	ID         snowflake.ID
	Components []discord.LayoutComponent
}

// handleMusicControl serves the Skip, Queue and Disconnect buttons.
func handleMusicControl(event *events.ComponentInteractionCreate) {
	c, err := parseControl(event.Data.CustomID())
	if err != nil {
		sys.LogDebug(sys.MsgGenericError, err)
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

	// The player loop may be busy connecting; acknowledge before waiting on it.
	if err := event.DeferUpdateMessage(); err != nil {
		sys.LogDebug(sys.MsgMusicReplyFailed, err)
		return
	}

	ctx, cancel := context.WithTimeout(sys.AppContext, commandTimeout)
	defer cancel()

	client := event.Client()
	m.control(ctx, m.reply(client.Rest, event.ApplicationID(), event.Token()), c, *guildID,
		userVoiceChannel(client.Caches, *guildID, event.User().ID),
		clickedMessage{ID: event.Message.ID, Components: event.Message.Components})
}

// control applies a playback button. The player re-renders the message on
// its own transition, so success sends nothing.
func (m *musicRuntime) control(ctx context.Context, r reply, c control, guildID, voiceChannelID snowflake.ID, msg clickedMessage) {
	var err error
	switch c.Action {
	case "skip":
		err = m.service.Skip(ctx, guildID, voiceChannelID, c.Gen)
	case "stop":
		err = m.service.Disconnect(ctx, guildID, voiceChannelID, c.Gen)
	case "queue":
		var snap proc.Snapshot
		snap, err = m.service.Snapshot(ctx, guildID)
		if err == nil && snap.Generation != c.Gen {
			err = proc.ErrStaleControl
		}
		if err == nil {
			r.followupView(renderQueueListing(snap))
			return
		}
	}

	switch {
	case err == nil:
	case errors.Is(err, proc.ErrStaleControl):
		m.retireClicked(r, guildID, msg)
	default:
		r.followup(noticeFor(err, m.capacity))
	}
}

// retireClicked redraws a stale control as disabled. Standing setup
// messages are left alone since the player keeps them current.
func (m *musicRuntime) retireClicked(r reply, guildID snowflake.ID, msg clickedMessage) {
	if msg.ID == 0 || m.display.IsStanding(guildID, msg.ID) {
		return
	}
	m.display.Forget(msg.ID)
	r.edit(disableComponents(msg.Components))
}
