package home

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/leeineian/jukebox/proc"
	"github.com/leeineian/jukebox/sys"
	"github.com/samber/lo"
)

const (
	customAdd   = "music:add"
	customSkip  = "music:skip:"
	customQueue = "music:queue:"
	customStop  = "music:stop:"
	customPick  = "music:pick:"
	customOrder = "music:order"

	orderQueryInput = "query"
)

// ViewState is the interactivity of a rendered view.
type ViewState int

const (
	ViewEnabled ViewState = iota
	// ViewDisabled marks a control that fired or no longer shows the current track.
	ViewDisabled
	// ViewTimedOut marks a control whose idle window elapsed.
	ViewTimedOut
)

func (s ViewState) String() string {
	switch s {
	case ViewEnabled:
		return "enabled"
	case ViewDisabled:
		return "disabled"
	case ViewTimedOut:
		return "timed out"
	}
	return "unknown"
}

type ViewKind int

const (
	ViewSearch ViewKind = iota
	ViewPlayback
	ViewSetup
)

// ViewTimeouts holds the idle window per view kind. Zero never expires.
type ViewTimeouts struct {
	Search   time.Duration
	Playback time.Duration
	Setup    time.Duration
}

var defaultViewTimeouts = ViewTimeouts{
	Search:   sys.DefaultSearchTimeout,
	Playback: sys.DefaultPlaybackTimeout,
	Setup:    sys.DefaultSetupTimeout,
}

func timeoutsFromConfig(cfg *sys.Config) ViewTimeouts {
	if cfg == nil {
		return defaultViewTimeouts
	}
	return ViewTimeouts{
		Search:   cfg.SearchTimeout,
		Playback: cfg.PlaybackTimeout,
		Setup:    cfg.SetupTimeout,
	}
}

func (t ViewTimeouts) For(kind ViewKind) time.Duration {
	switch kind {
	case ViewSearch:
		return t.Search
	case ViewPlayback:
		return t.Playback
	case ViewSetup:
		return t.Setup
	}
	return 0
}

func controlID(prefix string, gen uint64) string {
	return prefix + strconv.FormatUint(gen, 10)
}

var markdownEscaper = strings.NewReplacer("[", "\\[", "]", "\\]", "*", "\\*", "_", "\\_", "`", "'")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// link renders a masked link, or bold text when there is no URL.
func link(text, url string, maxLen int) string {
	text = escapeMarkdown(sys.TruncateEnd(text, maxLen))
	if url == "" {
		return "**" + text + "**"
	}
	return fmt.Sprintf("[%s](%s)", text, url)
}

func channelLink(t proc.Track) string {
	if t.Channel == "" {
		return "Unknown channel"
	}
	return link(t.Channel, t.ChannelURL, 60)
}

func stateFooter(state ViewState, expired string) string {
	switch state {
	case ViewDisabled:
		return sys.MsgMusicViewFinished
	case ViewTimedOut:
		return expired
	}
	return ""
}

// playbackControls is the button row under the track view. Skip, Queue and
// Disconnect only act while something plays.
func playbackControls(gen uint64, state ViewState, playing bool) discord.ActionRowComponent {
	active := state == ViewEnabled && playing
	return discord.NewActionRow(
		discord.NewButton(discord.ButtonStyleSuccess, "Add", customAdd, "", 0).WithDisabled(state != ViewEnabled),
		discord.NewButton(discord.ButtonStylePrimary, "Skip", controlID(customSkip, gen), "", 0).WithDisabled(!active),
		discord.NewButton(discord.ButtonStyleSecondary, "Queue", controlID(customQueue, gen), "", 0).WithDisabled(!active),
		discord.NewButton(discord.ButtonStyleDanger, "Disconnect", controlID(customStop, gen), "", 0).WithDisabled(!active),
	)
}

// renderNowPlaying shows the head entry of snap with its controls.
func renderNowPlaying(snap proc.Snapshot, state ViewState) []discord.LayoutComponent {
	if snap.Current == nil {
		return renderIdle(snap, state)
	}
	t := snap.Current.Track

	var sb strings.Builder
	sb.WriteString("### ")
	sb.WriteString(link(t.Title, t.URL, 120))
	sb.WriteString("\n")
	sb.WriteString(channelLink(t))
	sb.WriteString("\n")
	if t.RequesterID != 0 {
		sb.WriteString(fmt.Sprintf(sys.MsgMusicRequestedBy, t.RequesterID))
		sb.WriteString(" · ")
	}
	sb.WriteString("`" + t.Duration.String() + "`")
	if footer := stateFooter(state, sys.MsgMusicViewExpired); footer != "" {
		sb.WriteString("\n" + footer)
	}

	var head discord.ContainerSubComponent = discord.NewTextDisplay(sb.String())
	if t.Thumbnail != "" {
		head = discord.NewSection(discord.NewTextDisplay(sb.String())).
			WithAccessory(discord.NewThumbnail(t.Thumbnail))
	}

	return []discord.LayoutComponent{
		discord.NewContainer(
			head,
			discord.NewSeparator(discord.SeparatorSpacingSizeSmall).WithDivider(true),
			playbackControls(snap.Generation, state, true),
		),
	}
}

// renderIdle is the nothing-playing placeholder of the standing track message.
func renderIdle(snap proc.Snapshot, state ViewState) []discord.LayoutComponent {
	text := sys.MsgMusicIdleTitle + "\n" + sys.MsgMusicIdleBody
	if state == ViewTimedOut {
		text += "\n" + sys.MsgMusicViewExpired
	}
	return []discord.LayoutComponent{
		discord.NewContainer(
			discord.NewTextDisplay(text),
			discord.NewSeparator(discord.SeparatorSpacingSizeSmall).WithDivider(true),
			playbackControls(snap.Generation, state, false),
		),
	}
}

// queueLines lists the entries after the current one, numbered from 1.
func queueLines(snap proc.Snapshot) []string {
	return lo.Map(snap.Pending, func(e proc.QueueEntry, i int) string {
		return fmt.Sprintf("`%2d.` %s · %s · `%s`", i+1, channelLink(e.Track), link(e.Track.Title, e.Track.URL, 70), e.Track.Duration.String())
	})
}

func renderQueueView(snap proc.Snapshot) []discord.LayoutComponent {
	capacity := snap.Capacity
	if capacity < 1 {
		capacity = sys.DefaultQueueCapacity
	}
	body := sys.MsgMusicQueueEmpty
	if lines := queueLines(snap); len(lines) > 0 {
		body = strings.Join(lines, "\n")
	}
	return []discord.LayoutComponent{
		discord.NewContainer(
			discord.NewTextDisplay(fmt.Sprintf(sys.MsgMusicQueueTitle, snap.Len(), capacity)),
			discord.NewSeparator(discord.SeparatorSpacingSizeSmall).WithDivider(true),
			discord.NewTextDisplay(body),
		),
	}
}

// renderQueueListing is the ephemeral reply to /queue and the Queue button.
func renderQueueListing(snap proc.Snapshot) []discord.LayoutComponent {
	view := renderQueueView(snap)
	if snap.Current == nil {
		return view
	}
	t := snap.Current.Track
	head := discord.NewTextDisplay(fmt.Sprintf(sys.MsgMusicCurrentLine, link(t.Title, t.URL, 100), t.Duration.String()))
	return append([]discord.LayoutComponent{head}, view...)
}

// renderSearch lists candidates and binds them to a select menu. note is
// appended under the list, e.g. the picked entry.
func renderSearch(token, query string, candidates []proc.Candidate, state ViewState, note string) []discord.LayoutComponent {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(sys.MsgMusicSearchTitle, escapeMarkdown(sys.TruncateEnd(query, 80))))
	options := make([]discord.StringSelectMenuOption, 0, len(candidates))
	for i, c := range candidates {
		sb.WriteString(fmt.Sprintf("\n**%d.** %s · %s · `%s`", i+1, link(c.Title, c.URL, 80), escapeMarkdown(sys.TruncateEnd(lo.Ternary(c.Channel != "", c.Channel, "Unknown channel"), 40)), c.Duration.String()))

		opt := discord.NewStringSelectMenuOption(sys.TruncateEnd(fmt.Sprintf("%d. %s", i+1, c.Title), 100), strconv.Itoa(i))
		if desc := candidateDescription(c); desc != "" {
			opt = opt.WithDescription(desc)
		}
		options = append(options, opt)
	}
	if note != "" {
		sb.WriteString("\n" + note)
	}
	if footer := stateFooter(state, sys.MsgMusicPickExpired); footer != "" && note == "" {
		sb.WriteString("\n" + footer)
	}

	menu := discord.NewStringSelectMenu(customPick+token, sys.MsgMusicSearchPrompt, options...).
		WithDisabled(state != ViewEnabled)

	return []discord.LayoutComponent{
		discord.NewContainer(
			discord.NewTextDisplay(sb.String()),
			discord.NewSeparator(discord.SeparatorSpacingSizeSmall).WithDivider(true),
			discord.NewActionRow(menu),
		),
	}
}

func candidateDescription(c proc.Candidate) string {
	parts := make([]string, 0, 2)
	if c.Channel != "" {
		parts = append(parts, c.Channel)
	}
	parts = append(parts, c.Duration.String())
	return sys.TruncateEnd(strings.Join(parts, " · "), 100)
}

// queuedNotice describes where an enqueue landed.
func queuedNotice(tracks []proc.Track, res proc.EnqueueResult) string {
	if res.Added > 1 {
		return fmt.Sprintf(sys.MsgMusicQueuedMany, res.Added)
	}
	if len(tracks) == 0 {
		return ""
	}
	t := tracks[0]
	if res.Started {
		return fmt.Sprintf(sys.MsgMusicStarted, escapeMarkdown(sys.TruncateEnd(t.Title, 100)), t.URL, t.Duration.String())
	}
	return fmt.Sprintf(sys.MsgMusicQueued, res.Position, escapeMarkdown(sys.TruncateEnd(t.Title, 100)), t.URL, t.Duration.String())
}

// noticeView wraps a one-line notice the way ephemeral replies are shown.
func noticeView(text string) []discord.LayoutComponent {
	return []discord.LayoutComponent{
		discord.NewContainer(discord.NewTextDisplay(text)),
	}
}
