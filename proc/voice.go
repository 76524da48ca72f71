package proc

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/disgo/voice"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/jukebox/sys"
)

const (
	statusDebounce = 500 * time.Millisecond
	statusRetry    = time.Second
	statusMaxLen   = 128
)

// VoiceSystem is the disgo-backed Transport.
type VoiceSystem struct {
	client   *bot.Client
	mu       sync.Mutex
	sessions map[snowflake.ID]*voiceSession
}

type voiceSession struct {
	guildID snowflake.ID
	conn    voice.Conn

	channelMu sync.RWMutex
	channelID snowflake.ID

	streamMu     sync.Mutex
	streamCancel context.CancelFunc
	provider     *StreamProvider

	statusChan chan string
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

func NewVoiceSystem(client *bot.Client) *VoiceSystem {
	return &VoiceSystem{client: client, sessions: make(map[snowflake.ID]*voiceSession)}
}

func (vs *VoiceSystem) session(guildID snowflake.ID) *voiceSession {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.sessions[guildID]
}

func (vs *VoiceSystem) Connect(ctx context.Context, guildID, channelID snowflake.ID) error {
	if s := vs.session(guildID); s != nil {
		if s.channel() == channelID {
			return nil
		}
		if err := vs.Disconnect(ctx, guildID); err != nil {
			sys.LogVoice(sys.MsgGenericError, err)
		}
	}

	sys.LogVoice("Joining channel %s in guild %s", channelID, guildID)
	sctx, cancel := context.WithCancel(context.Background())
	s := &voiceSession{
		guildID:    guildID,
		channelID:  channelID,
		conn:       vs.client.VoiceManager.CreateConn(guildID),
		statusChan: make(chan string, 10),
		ctx:        sctx,
		cancel:     cancel,
	}

	if err := s.conn.Open(ctx, channelID, false, false); err != nil {
		s.conn.Close(ctx)
		cancel()
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		vs.statusManager(s)
	}()

	vs.mu.Lock()
	vs.sessions[guildID] = s
	vs.mu.Unlock()
	return nil
}

func (vs *VoiceSystem) Play(ctx context.Context, guildID snowflake.ID, t Track, done func()) error {
	s := vs.session(guildID)
	if s == nil {
		return errors.New("not connected to voice")
	}
	if t.StreamURL == "" {
		return errors.New("track has no stream url")
	}

	s.stopStream()

	streamCtx, cancel := context.WithCancel(s.ctx)
	p := NewStreamProvider(streamCtx)
	p.OnFinish = func() {
		cancel()
		if done != nil {
			done()
		}
	}

	s.streamMu.Lock()
	s.streamCancel = cancel
	s.provider = p
	s.streamMu.Unlock()

	go func() {
		defer p.PushFrame(nil)
		tc := NewAstiavTranscoder()
		defer tc.Close()

		if err := tc.OpenInput(t.StreamURL); err != nil {
			sys.LogVoice("Transcoder OpenInput failed: %v", err)
			return
		}
		if err := tc.SetupDecoder(); err != nil {
			sys.LogVoice("Transcoder SetupDecoder failed: %v", err)
			return
		}
		if err := tc.SetupEncoder(); err != nil {
			sys.LogVoice("Transcoder SetupEncoder failed: %v", err)
			return
		}
		// Transcode hands nil to the provider itself on exit.
		if err := tc.Transcode(streamCtx, p.PushFrame); err != nil && !errors.Is(err, context.Canceled) {
			sys.LogVoice("Transcoder finished for %q: %v", t.Title, err)
		}
	}()

	s.setOpusFrameProviderSafe(p)
	s.conn.SetSpeaking(ctx, voice.SpeakingFlagMicrophone)
	s.setStatus(sys.TruncateWithPreserve(t.Title, statusMaxLen, "🎶 ", channelSuffix(t.Channel)))
	return nil
}

func channelSuffix(channel string) string {
	if channel == "" || channel == "NA" {
		return ""
	}
	return " · " + channel
}

func (vs *VoiceSystem) Stop(guildID snowflake.ID) {
	if s := vs.session(guildID); s != nil {
		s.stopStream()
	}
}

func (vs *VoiceSystem) Disconnect(ctx context.Context, guildID snowflake.ID) error {
	vs.mu.Lock()
	s, ok := vs.sessions[guildID]
	delete(vs.sessions, guildID)
	vs.mu.Unlock()
	if !ok {
		return nil
	}

	s.stopStream()
	s.cancel()
	s.wg.Wait()
	vs.putStatus(s.channel(), "")

	s.conn.Close(ctx)
	sys.LogVoice("Left voice in guild %s", guildID)
	return nil
}

func (vs *VoiceSystem) ChannelID(guildID snowflake.ID) (snowflake.ID, bool) {
	s := vs.session(guildID)
	if s == nil {
		return 0, false
	}
	ch := s.channel()
	return ch, ch != 0
}

// Moved follows the bot when someone drags it to another channel.
func (vs *VoiceSystem) Moved(guildID, channelID snowflake.ID) {
	s := vs.session(guildID)
	if s == nil {
		return
	}
	old := s.channel()
	if old == channelID {
		return
	}
	sys.LogVoice("Bot moved from %s to %s in guild %s", old, channelID, guildID)
	vs.putStatus(old, "")

	s.channelMu.Lock()
	s.channelID = channelID
	s.channelMu.Unlock()
}

// Shutdown leaves every voice channel.
func (vs *VoiceSystem) Shutdown(ctx context.Context) {
	vs.mu.Lock()
	ids := make([]snowflake.ID, 0, len(vs.sessions))
	for id := range vs.sessions {
		ids = append(ids, id)
	}
	vs.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(guildID snowflake.ID) {
			defer wg.Done()
			_ = vs.Disconnect(ctx, guildID)
		}(id)
	}
	wg.Wait()
}

func (s *voiceSession) channel() snowflake.ID {
	s.channelMu.RLock()
	defer s.channelMu.RUnlock()
	return s.channelID
}

// stopStream cancels the running stream and fires its completion.
func (s *voiceSession) stopStream() {
	s.streamMu.Lock()
	cancel, p := s.streamCancel, s.provider
	s.streamCancel, s.provider = nil, nil
	s.streamMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.setOpusFrameProviderSafe(nil)
	s.conn.SetSpeaking(context.TODO(), 0)
	p.Close()
}

// setOpusFrameProviderSafe sets the opus frame provider safely, recovering from any potential panics
func (s *voiceSession) setOpusFrameProviderSafe(provider voice.OpusFrameProvider) {
	if s.conn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			sys.LogVoice("Recovered from panic in SetOpusFrameProvider: %v", r)
		}
	}()
	s.conn.SetOpusFrameProvider(provider)
}

func (s *voiceSession) setStatus(status string) {
	select {
	case s.statusChan <- status:
	default:
	}
}

func (vs *VoiceSystem) putStatus(channelID snowflake.ID, status string) error {
	if channelID == 0 {
		return nil
	}
	route := rest.NewEndpoint(http.MethodPut, "/channels/"+channelID.String()+"/voice-status")
	return vs.client.Rest.Do(route.Compile(nil), map[string]string{"status": status}, nil)
}

// statusManager debounces voice channel status updates and retries failed ones.
func (vs *VoiceSystem) statusManager(s *voiceSession) {
	var cur, next string
	hasNext := false
	t := time.NewTimer(0)
	if !t.Stop() {
		<-t.C
	}
	defer t.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case n := <-s.statusChan:
			next = n
			hasNext = true
		drain:
			for {
				select {
				case n := <-s.statusChan:
					next = n
				default:
					break drain
				}
			}
			if next == cur {
				hasNext = false
				continue
			}
			t.Reset(statusDebounce)
		case <-t.C:
			if !hasNext {
				continue
			}
			channelID := s.channel()
			if err := vs.putStatus(channelID, next); err != nil {
				sys.LogVoice("Failed to update status for %s: %v (retrying...)", channelID, err)
				t.Reset(statusRetry)
				continue
			}
			cur = next
			hasNext = false
		}
	}
}
