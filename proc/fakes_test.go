package proc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/jukebox/sys"
	"github.com/stretchr/testify/require"
)

const (
	testGuild   snowflake.ID = 100
	voiceA      snowflake.ID = 10
	voiceB      snowflake.ID = 20
	textChannel snowflake.ID = 30
)

const (
	eventuallyFor  = 2 * time.Second
	eventuallyTick = 5 * time.Millisecond
)

var errStreamFailed = errors.New("stream failed")

type fakeTransport struct {
	mu          sync.Mutex
	channels    map[snowflake.ID]snowflake.ID
	played      []Track
	done        func()
	connects    int
	disconnects int
	stops       int
	connectErr  error
	failStreams map[string]bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{channels: map[snowflake.ID]snowflake.ID{}, failStreams: map[string]bool{}}
}

func (f *fakeTransport) Connect(_ context.Context, guildID, channelID snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.channels[guildID] = channelID
	return nil
}

func (f *fakeTransport) Play(_ context.Context, _ snowflake.ID, t Track, done func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStreams[t.StreamURL] {
		return errStreamFailed
	}
	f.played = append(f.played, t)
	f.done = done
	return nil
}

func (f *fakeTransport) Stop(_ snowflake.ID) {
	f.mu.Lock()
	f.stops++
	done := f.done
	f.done = nil
	f.mu.Unlock()
	if done != nil {
		done()
	}
}

func (f *fakeTransport) Disconnect(_ context.Context, guildID snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.done = nil
	delete(f.channels, guildID)
	return nil
}

func (f *fakeTransport) ChannelID(guildID snowflake.ID) (snowflake.ID, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[guildID]
	return ch, ok
}

// finish simulates the current stream running out and returns the callback it fired.
func (f *fakeTransport) finish() func() {
	f.mu.Lock()
	done := f.done
	f.done = nil
	f.mu.Unlock()
	if done != nil {
		done()
	}
	return done
}

func (f *fakeTransport) counts() (connects, disconnects, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, f.disconnects, f.stops
}

func (f *fakeTransport) playedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	urls := make([]string, len(f.played))
	for i, t := range f.played {
		urls[i] = t.StreamURL
	}
	return urls
}

type fakeDisplay struct {
	mu         sync.Mutex
	nextID     snowflake.ID
	nowPlaying []Snapshot
	idle       []Snapshot
	queues     []Snapshot
	retired    []QueueEntry
	attached   []sys.MusicSetup
	detached   []snowflake.ID
}

func newFakeDisplay() *fakeDisplay {
	return &fakeDisplay{nextID: 1000}
}

func (d *fakeDisplay) NowPlaying(_ context.Context, snap Snapshot) (snowflake.ID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.nowPlaying = append(d.nowPlaying, snap)
	return d.nextID, nil
}

func (d *fakeDisplay) Idle(_ context.Context, snap Snapshot) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.idle = append(d.idle, snap)
	return nil
}

func (d *fakeDisplay) Queue(_ context.Context, snap Snapshot) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queues = append(d.queues, snap)
	return nil
}

func (d *fakeDisplay) Retire(_ context.Context, _ Snapshot, entry QueueEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.retired = append(d.retired, entry)
	return nil
}

func (d *fakeDisplay) Attach(setup sys.MusicSetup) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attached = append(d.attached, setup)
}

func (d *fakeDisplay) Detach(guildID snowflake.ID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detached = append(d.detached, guildID)
}

func (d *fakeDisplay) lastNowPlaying() (Snapshot, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.nowPlaying) == 0 {
		return Snapshot{}, false
	}
	return d.nowPlaying[len(d.nowPlaying)-1], true
}

func (d *fakeDisplay) idleCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.idle)
}

func (d *fakeDisplay) nowPlayingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.nowPlaying)
}

func (d *fakeDisplay) queueCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}

func (d *fakeDisplay) retiredTitles() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	titles := make([]string, len(d.retired))
	for i, e := range d.retired {
		titles[i] = e.Track.Title
	}
	return titles
}

type fakeStore struct {
	mu        sync.Mutex
	setups    []sys.MusicSetup
	err       error
	deleteErr error
	deleted   []snowflake.ID
}

func (s *fakeStore) All(context.Context) ([]sys.MusicSetup, error) {
	return s.setups, s.err
}

func (s *fakeStore) Delete(_ context.Context, guildID snowflake.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, guildID)
	return s.deleteErr
}

func (s *fakeStore) deletedGuilds() []snowflake.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]snowflake.ID(nil), s.deleted...)
}

func song(name string) Track {
	return Track{
		RequesterID:   1,
		RequesterName: "tester",
		StreamURL:     "https://stream/" + name,
		Title:         name,
		URL:           "https://video/" + name,
		Channel:       "uploader",
		Duration:      KnownDuration(125 * time.Second),
	}
}

func newTestPlayer(t *testing.T, capacity int) (*Player, *fakeTransport, *fakeDisplay) {
	t.Helper()
	tr := newFakeTransport()
	disp := newFakeDisplay()
	p := NewPlayer(testGuild, capacity, tr, disp)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = p.Close(ctx)
	})
	return p, tr, disp
}

func snapshotOf(t *testing.T, p *Player) Snapshot {
	t.Helper()
	snap, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	return snap
}

func currentTitle(p *Player) string {
	snap, err := p.Snapshot(context.Background())
	if err != nil || snap.Current == nil {
		return ""
	}
	return snap.Current.Track.Title
}

func stateOf(p *Player) State {
	snap, err := p.Snapshot(context.Background())
	if err != nil {
		return -1
	}
	return snap.State
}
