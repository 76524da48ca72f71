package proc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/jukebox/sys"
)

const (
	eventBuffer = 32
	opTimeout   = 30 * time.Second
	// leaveEchoWindow bounds how long the gateway echo of our own leave is expected.
	leaveEchoWindow = 15 * time.Second
)

// leftVoice remembers the channel the player last left on its own.
type leftVoice struct {
	channelID snowflake.ID
	at        time.Time
}

// Player drives one guild's queue. Every mutation runs on a single goroutine
// that drains the events channel, so transitions within a guild are ordered.
type Player struct {
	guildID   snowflake.ID
	transport Transport
	display   Display

	// owned by the loop goroutine
	queue         *Queue
	state         State
	gen           uint64
	textChannelID snowflake.ID
	left          leftVoice

	ctx       context.Context
	cancel    context.CancelFunc
	events    chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewPlayer(guildID snowflake.ID, capacity int, transport Transport, display Display) *Player {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		guildID:   guildID,
		transport: transport,
		display:   display,
		queue:     NewQueue(capacity),
		state:     StateIdle,
		ctx:       ctx,
		cancel:    cancel,
		events:    make(chan func(), eventBuffer),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go p.run()
	return p
}

// --- Loop ---

func (p *Player) run() {
	defer close(p.done)
	for {
		select {
		case <-p.quit:
			return
		case ev := <-p.events:
			p.exec(ev)
		}
	}
}

func (p *Player) exec(ev func()) {
	defer func() {
		if r := recover(); r != nil {
			sys.LogError(sys.MsgMusicPlayerPanic, p.guildID, r)
		}
	}()
	ev()
}

// do runs fn on the loop and waits for it to return.
func (p *Player) do(ctx context.Context, fn func()) error {
	reply := make(chan struct{})
	ev := func() {
		defer close(reply)
		fn()
	}

	select {
	case p.events <- ev:
	case <-p.quit:
		return ErrPlayerClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-reply:
		return nil
	case <-p.done:
		select {
		case <-reply:
			return nil
		default:
			return ErrPlayerClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues fn without waiting for it.
func (p *Player) post(fn func()) {
	select {
	case p.events <- fn:
	case <-p.quit:
	}
}

// completion is handed to the transport. It runs on the audio goroutine and
// only hands the event back to the loop.
func (p *Player) completion(gen uint64) func() {
	return func() {
		go p.post(func() { p.trackFinished(gen) })
	}
}

func (p *Player) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(p.ctx, opTimeout)
}

// --- Public operations ---

// Check runs the enqueue guards without touching the queue.
func (p *Player) Check(ctx context.Context, voiceChannelID snowflake.ID) error {
	var err error
	if doErr := p.do(ctx, func() { err = p.check(voiceChannelID) }); doErr != nil {
		return doErr
	}
	return err
}

func (p *Player) Enqueue(ctx context.Context, req Request) (EnqueueResult, error) {
	var (
		res EnqueueResult
		err error
	)
	if doErr := p.do(ctx, func() { res, err = p.enqueue(req) }); doErr != nil {
		return EnqueueResult{}, doErr
	}
	return res, err
}

// Skip stops the current stream. gen is the generation the control was built
// for, or zero when the request did not come from a control.
func (p *Player) Skip(ctx context.Context, voiceChannelID snowflake.ID, gen uint64) error {
	var err error
	if doErr := p.do(ctx, func() { err = p.skip(voiceChannelID, gen) }); doErr != nil {
		return doErr
	}
	return err
}

func (p *Player) Disconnect(ctx context.Context, voiceChannelID snowflake.ID, gen uint64) error {
	var err error
	if doErr := p.do(ctx, func() { err = p.disconnect(voiceChannelID, gen) }); doErr != nil {
		return doErr
	}
	return err
}

// ChannelEmptied tears playback down because no listeners are left.
func (p *Player) ChannelEmptied(ctx context.Context) error {
	return p.do(ctx, func() {
		if p.isIdle() {
			return
		}
		sys.LogMusic(sys.MsgMusicChannelEmpty, p.guildID)
		p.teardown()
	})
}

// ForcedDisconnect handles the bot being removed from channelID by someone
// else. The echo of the player's own leave and leaves from a channel the
// player no longer uses are ignored. A zero channelID skips the channel check.
func (p *Player) ForcedDisconnect(ctx context.Context, channelID snowflake.ID) error {
	return p.do(ctx, func() {
		if p.ownLeave(channelID) || p.isIdle() {
			return
		}
		if cur, ok := p.transport.ChannelID(p.guildID); ok && channelID != 0 && cur != channelID {
			sys.LogDebug(sys.MsgMusicStaleLeave, channelID, p.guildID, cur)
			return
		}
		sys.LogMusic(sys.MsgMusicForcedLeave, p.guildID, p.queue.Len())
		p.teardown()
		// Already out of voice, so no echo will follow.
		p.left = leftVoice{}
	})
}

func (p *Player) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := p.do(ctx, func() { snap = p.snapshot() })
	return snap, err
}

// Refresh redraws the views of the current state, e.g. once a setup has
// been attached to the display.
func (p *Player) Refresh(ctx context.Context) error {
	var err error
	if doErr := p.do(ctx, func() { err = p.refresh() }); doErr != nil {
		return doErr
	}
	return err
}

// Close leaves voice if needed and stops the loop.
func (p *Player) Close(ctx context.Context) error {
	err := p.do(ctx, func() {
		if p.isIdle() {
			return
		}
		c, cancel := p.opContext()
		defer cancel()
		p.gen++
		p.transport.Stop(p.guildID)
		p.queue.Clear()
		if err := p.transport.Disconnect(c, p.guildID); err != nil {
			sys.LogVoice(sys.MsgGenericError, err)
		}
		p.state = StateIdle
	})
	p.closeOnce.Do(func() { close(p.quit) })

	select {
	case <-p.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	p.cancel()
	sys.LogMusic(sys.MsgMusicPlayerStopped, p.guildID)

	if errors.Is(err, ErrPlayerClosed) {
		return nil
	}
	return err
}

// --- Loop-side transitions ---

func (p *Player) isIdle() bool {
	return p.state == StateIdle && p.queue.IsEmpty()
}

// ownLeave consumes the marker of the player's own last leave when channelID matches it.
func (p *Player) ownLeave(channelID snowflake.ID) bool {
	left := p.left
	if channelID == 0 || left.channelID != channelID || time.Since(left.at) > leaveEchoWindow {
		return false
	}
	p.left = leftVoice{}
	sys.LogDebug(sys.MsgMusicOwnLeave, channelID, p.guildID)
	return true
}

func (p *Player) refresh() error {
	ctx, cancel := p.opContext()
	defer cancel()

	cur, ok := p.queue.Current()
	if !ok {
		return p.display.Idle(ctx, p.snapshot())
	}
	id, err := p.display.NowPlaying(ctx, p.snapshot())
	if err != nil {
		return err
	}
	if cur.MessageID != 0 && cur.MessageID != id {
		p.retire(ctx, cur)
	}
	p.queue.SetMessage(id)
	sys.LogMusic(sys.MsgMusicRefreshed, p.guildID)
	return p.display.Queue(ctx, p.snapshot())
}

func (p *Player) check(voiceChannelID snowflake.ID) error {
	if voiceChannelID == 0 {
		return ErrNotInVoice
	}
	if !p.queue.IsEmpty() {
		if botChannel, ok := p.transport.ChannelID(p.guildID); ok && botChannel != voiceChannelID {
			return ErrNotWithBot
		}
	}
	if p.queue.IsFull() {
		return ErrQueueFull
	}
	return nil
}

// sameChannel guards actions that need the actor next to the bot.
func (p *Player) sameChannel(voiceChannelID snowflake.ID) error {
	if voiceChannelID == 0 {
		return ErrNotInVoice
	}
	botChannel, ok := p.transport.ChannelID(p.guildID)
	if !ok || botChannel != voiceChannelID {
		return ErrNotWithBot
	}
	return nil
}

func (p *Player) enqueue(req Request) (EnqueueResult, error) {
	var res EnqueueResult
	if err := p.check(req.VoiceChannelID); err != nil {
		return res, err
	}
	if len(req.Tracks) == 0 {
		return res, ErrNothingFound
	}

	wasEmpty := p.queue.IsEmpty()
	for _, t := range req.Tracks {
		pos, err := p.queue.Enqueue(t)
		if err != nil {
			break
		}
		if res.Added == 0 {
			res.Position = pos
		}
		res.Added++
		sys.LogMusic(sys.MsgMusicEnqueued, t.Title, p.guildID, pos, t.RequesterName)
	}

	if !wasEmpty {
		ctx, cancel := p.opContext()
		defer cancel()
		p.renderQueue(ctx)
		return res, nil
	}

	p.textChannelID = req.TextChannelID
	p.state = StateConnecting

	ctx, cancel := p.opContext()
	err := p.transport.Connect(ctx, p.guildID, req.VoiceChannelID)
	cancel()
	if err != nil {
		sys.LogMusic(sys.MsgMusicConnectFailed, p.guildID, err)
		p.queue.Clear()
		p.state = StateIdle
		return EnqueueResult{}, fmt.Errorf("%w: %w", ErrConnect, err)
	}

	if !p.startCurrent() {
		return EnqueueResult{}, ErrPlayFailed
	}
	res.Started = true
	return res, nil
}

// startCurrent streams the head entry. Entries whose stream cannot start are
// dropped; when nothing is left the connection is torn down.
func (p *Player) startCurrent() bool {
	ctx, cancel := p.opContext()
	defer cancel()

	for {
		entry, ok := p.queue.Current()
		if !ok {
			sys.LogMusic(sys.MsgMusicIdle, p.guildID)
			p.goIdle(ctx)
			return false
		}

		p.gen++
		if err := p.transport.Play(ctx, p.guildID, entry.Track, p.completion(p.gen)); err != nil {
			sys.LogMusic(sys.MsgMusicPlayFailed, entry.Track.Title, p.guildID, err)
			_, _ = p.queue.Advance()
			continue
		}

		p.state = StatePlaying
		sys.LogMusic(sys.MsgMusicNowPlaying, entry.Track.Title, p.guildID)

		if id, err := p.display.NowPlaying(ctx, p.snapshot()); err != nil {
			sys.LogWarn(sys.MsgMusicRenderFailed, "now playing", p.guildID, err)
		} else {
			p.queue.SetMessage(id)
		}
		p.renderQueue(ctx)
		return true
	}
}

func (p *Player) trackFinished(gen uint64) {
	if gen != p.gen || p.state != StatePlaying {
		sys.LogDebug(sys.MsgMusicStaleFinish, gen, p.gen, p.guildID)
		return
	}
	p.state = StateAdvancing

	ctx, cancel := p.opContext()
	defer cancel()

	if entry, err := p.queue.Advance(); err == nil {
		p.retire(ctx, entry)
	}
	sys.LogMusic(sys.MsgMusicAdvance, p.guildID, p.queue.Len())

	p.startCurrent()
}

func (p *Player) skip(voiceChannelID snowflake.ID, gen uint64) error {
	if gen != 0 && gen != p.gen {
		return ErrStaleControl
	}
	if p.queue.IsEmpty() || p.state != StatePlaying {
		return ErrQueueEmpty
	}
	if err := p.sameChannel(voiceChannelID); err != nil {
		return err
	}
	// The stopped stream reports completion like a natural end.
	p.transport.Stop(p.guildID)
	return nil
}

func (p *Player) disconnect(voiceChannelID snowflake.ID, gen uint64) error {
	if gen != 0 && gen != p.gen {
		return ErrStaleControl
	}
	if p.isIdle() {
		return ErrQueueEmpty
	}
	if err := p.sameChannel(voiceChannelID); err != nil {
		return err
	}
	p.teardown()
	return nil
}

// teardown clears everything and leaves voice.
func (p *Player) teardown() {
	ctx, cancel := p.opContext()
	defer cancel()

	p.state = StateDisconnecting
	p.gen++
	p.transport.Stop(p.guildID)
	for _, entry := range p.queue.Clear() {
		if entry.MessageID != 0 {
			p.retire(ctx, entry)
		}
	}
	p.goIdle(ctx)
}

func (p *Player) goIdle(ctx context.Context) {
	p.state = StateDisconnecting
	p.gen++

	if err := p.display.Idle(ctx, p.snapshot()); err != nil {
		sys.LogWarn(sys.MsgMusicRenderFailed, "idle", p.guildID, err)
	}
	if ch, ok := p.transport.ChannelID(p.guildID); ok {
		p.left = leftVoice{channelID: ch, at: time.Now()}
	}
	if err := p.transport.Disconnect(ctx, p.guildID); err != nil {
		sys.LogVoice(sys.MsgGenericError, err)
	}
	p.state = StateIdle
}

func (p *Player) retire(ctx context.Context, entry QueueEntry) {
	if err := p.display.Retire(ctx, p.snapshot(), entry); err != nil {
		sys.LogWarn(sys.MsgMusicRenderFailed, "retired", p.guildID, err)
	}
}

func (p *Player) renderQueue(ctx context.Context) {
	if err := p.display.Queue(ctx, p.snapshot()); err != nil {
		sys.LogWarn(sys.MsgMusicRenderFailed, "queue", p.guildID, err)
	}
}

func (p *Player) snapshot() Snapshot {
	snap := Snapshot{
		GuildID:       p.guildID,
		State:         p.state,
		Generation:    p.gen,
		Pending:       p.queue.Pending(),
		Capacity:      p.queue.Cap(),
		TextChannelID: p.textChannelID,
	}
	if cur, ok := p.queue.Current(); ok {
		snap.Current = &cur
	}
	if ch, ok := p.transport.ChannelID(p.guildID); ok {
		snap.VoiceChannelID = ch
	}
	return snap
}
