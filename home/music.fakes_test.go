package home

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/jukebox/proc"
	"github.com/leeineian/jukebox/sys"
	"github.com/stretchr/testify/require"
)

const (
	testGuild   snowflake.ID = 1
	testBot     snowflake.ID = 2
	voiceA      snowflake.ID = 10
	voiceB      snowflake.ID = 20
	textChannel snowflake.ID = 30
)

const (
	eventuallyFor  = 2 * time.Second
	eventuallyTick = 5 * time.Millisecond
)

var testUser = discord.User{ID: 500, Username: "listener"}

// fakeInteractions records what a reply sends back to Discord.
type fakeInteractions struct {
	mu        sync.Mutex
	nextID    snowflake.ID
	edits     [][]discord.LayoutComponent
	followups [][]discord.LayoutComponent
	ephemeral []bool
	deleted   int
	removed   []snowflake.ID
}

func (f *fakeInteractions) UpdateInteractionResponse(_ snowflake.ID, _ string, mu discord.MessageUpdate, _ ...rest.RequestOpt) (*discord.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var comps []discord.LayoutComponent
	if mu.Components != nil {
		comps = *mu.Components
	}
	f.edits = append(f.edits, comps)
	return &discord.Message{}, nil
}

func (f *fakeInteractions) DeleteInteractionResponse(_ snowflake.ID, _ string, _ ...rest.RequestOpt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted++
	return nil
}

func (f *fakeInteractions) CreateFollowupMessage(_ snowflake.ID, _ string, mc discord.MessageCreate, _ ...rest.RequestOpt) (*discord.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.followups = append(f.followups, mc.Components)
	f.ephemeral = append(f.ephemeral, mc.Flags.Has(discord.MessageFlagEphemeral))
	return &discord.Message{ID: 9000 + f.nextID}, nil
}

func (f *fakeInteractions) DeleteFollowupMessage(_ snowflake.ID, _ string, messageID snowflake.ID, _ ...rest.RequestOpt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, messageID)
	return nil
}

func (f *fakeInteractions) editTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.edits))
	for i, e := range f.edits {
		out[i] = texts(e)
	}
	return out
}

func (f *fakeInteractions) lastEdit() []discord.LayoutComponent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edits) == 0 {
		return nil
	}
	return f.edits[len(f.edits)-1]
}

func (f *fakeInteractions) followupTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.followups))
	for i, e := range f.followups {
		out[i] = texts(e)
	}
	return out
}

func (f *fakeInteractions) deletes() (int, []snowflake.ID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleted, append([]snowflake.ID(nil), f.removed...)
}

// fakeTransport is an in-memory voice connection.
type fakeTransport struct {
	mu       sync.Mutex
	channels map[snowflake.ID]snowflake.ID
	played   []proc.Track
	failAll  bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{channels: map[snowflake.ID]snowflake.ID{}}
}

func (f *fakeTransport) Connect(_ context.Context, guildID, channelID snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[guildID] = channelID
	return nil
}

func (f *fakeTransport) Play(_ context.Context, _ snowflake.ID, t proc.Track, _ func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("stream failed")
	}
	f.played = append(f.played, t)
	return nil
}

func (f *fakeTransport) Stop(snowflake.ID) {}

func (f *fakeTransport) Disconnect(_ context.Context, guildID snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.channels, guildID)
	return nil
}

func (f *fakeTransport) ChannelID(guildID snowflake.ID) (snowflake.ID, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.channels[guildID]
	return id, ok
}

func (f *fakeTransport) playedTitles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.played))
	for i, t := range f.played {
		out[i] = t.Title
	}
	return out
}

// fakeResolver answers from a fixed table keyed by query.
type fakeResolver struct {
	mu      sync.Mutex
	results map[string]proc.Resolution
	queries []string
}

func (f *fakeResolver) Resolve(_ context.Context, query string) (proc.Resolution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	res, ok := f.results[query]
	if !ok {
		return proc.Resolution{}, errors.New("unknown query")
	}
	return res, nil
}

func (f *fakeResolver) Stop() {}

func (f *fakeResolver) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// fakeSetups is an in-memory setup table.
type fakeSetups struct {
	mu      sync.Mutex
	saved   []sys.MusicSetup
	saveErr error
}

func (f *fakeSetups) All(context.Context) ([]sys.MusicSetup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sys.MusicSetup(nil), f.saved...), nil
}

func (f *fakeSetups) Save(_ context.Context, s sys.MusicSetup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, s)
	return nil
}

func (f *fakeSetups) Delete(context.Context, snowflake.ID) error { return nil }

type overwrite struct {
	channelID snowflake.ID
	targetID  snowflake.ID
	update    discord.PermissionOverwriteUpdate
}

// fakeSetupAPI records the channel changes /setup makes.
type fakeSetupAPI struct {
	mu         sync.Mutex
	nextID     snowflake.ID
	topics     []string
	created    []sentMessage
	overwrites []overwrite
	createErr  error
}

func (f *fakeSetupAPI) UpdateChannel(_ snowflake.ID, cu discord.ChannelUpdate, _ ...rest.RequestOpt) (discord.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := cu.(discord.GuildTextChannelUpdate); ok && u.Topic != nil {
		f.topics = append(f.topics, *u.Topic)
	}
	return nil, nil
}

func (f *fakeSetupAPI) UpdatePermissionOverwrite(channelID, overwriteID snowflake.ID, u discord.PermissionOverwriteUpdate, _ ...rest.RequestOpt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overwrites = append(f.overwrites, overwrite{channelID: channelID, targetID: overwriteID, update: u})
	return nil
}

func (f *fakeSetupAPI) CreateMessage(channelID snowflake.ID, mc discord.MessageCreate, _ ...rest.RequestOpt) (*discord.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	id := 700 + f.nextID
	f.created = append(f.created, sentMessage{channelID: channelID, messageID: id, components: mc.Components})
	return &discord.Message{ID: id, ChannelID: channelID}, nil
}

type testRuntime struct {
	*musicRuntime
	voiceFake *fakeTransport
	resolved  *fakeResolver
	messenger *fakeMessenger
	stored    *fakeSetups
}

// newTestRuntime wires a runtime to fakes. Notices are never dismissed
// unless a test sets noticeLifetime.
func newTestRuntime(t *testing.T, results map[string]proc.Resolution) *testRuntime {
	t.Helper()
	tr := newFakeTransport()
	res := &fakeResolver{results: results}
	msgr := &fakeMessenger{}
	setups := &fakeSetups{}
	display := NewDiscordDisplay(msgr, ViewTimeouts{})
	svc := proc.NewService(25, tr, display, setups)
	picks := newPickSessions(time.Minute)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventuallyFor)
		defer cancel()
		require.NoError(t, svc.Shutdown(ctx))
		display.Stop()
		picks.Stop()
	})
	return &testRuntime{
		musicRuntime: &musicRuntime{
			service:  svc,
			resolver: res,
			display:  display,
			setups:   setups,
			picks:    picks,
			capacity: 25,
		},
		voiceFake: tr,
		resolved:  res,
		messenger: msgr,
		stored:    setups,
	}
}
