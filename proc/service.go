package proc

import (
	"context"
	"errors"
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/jukebox/sys"
	"golang.org/x/sync/errgroup"
)

// Service owns one Player per guild.
type Service struct {
	mu       sync.Mutex
	players  map[snowflake.ID]*Player
	closed   bool
	capacity int

	transport Transport
	display   Display
	store     SetupStore
}

func NewService(capacity int, transport Transport, display Display, store SetupStore) *Service {
	if capacity < 1 {
		capacity = sys.DefaultQueueCapacity
	}
	return &Service{
		players:   make(map[snowflake.ID]*Player),
		capacity:  capacity,
		transport: transport,
		display:   display,
		store:     store,
	}
}

// AddGuild creates the guild's player if it does not exist yet.
func (s *Service) AddGuild(guildID snowflake.ID) *Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerLocked(guildID)
}

// Player returns the guild's player, creating it on first use.
// It returns nil once the service has shut down.
func (s *Service) Player(guildID snowflake.ID) *Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerLocked(guildID)
}

func (s *Service) playerLocked(guildID snowflake.ID) *Player {
	if s.closed {
		return nil
	}
	if p, ok := s.players[guildID]; ok {
		return p
	}
	p := NewPlayer(guildID, s.capacity, s.transport, s.display)
	s.players[guildID] = p
	return p
}

// lookup returns an existing player without creating one.
func (s *Service) lookup(guildID snowflake.ID) (*Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[guildID]
	return p, ok
}

// RemoveGuild stops and forgets the guild's player and drops its stored setup.
func (s *Service) RemoveGuild(ctx context.Context, guildID snowflake.ID) error {
	s.mu.Lock()
	p, ok := s.players[guildID]
	delete(s.players, guildID)
	s.mu.Unlock()

	s.display.Detach(guildID)
	var closeErr error
	if ok {
		closeErr = p.Close(ctx)
	}
	return errors.Join(closeErr, s.store.Delete(ctx, guildID))
}

func (s *Service) Check(ctx context.Context, guildID, voiceChannelID snowflake.ID) error {
	p := s.Player(guildID)
	if p == nil {
		return ErrPlayerClosed
	}
	return p.Check(ctx, voiceChannelID)
}

func (s *Service) Enqueue(ctx context.Context, guildID snowflake.ID, req Request) (EnqueueResult, error) {
	p := s.Player(guildID)
	if p == nil {
		return EnqueueResult{}, ErrPlayerClosed
	}
	return p.Enqueue(ctx, req)
}

func (s *Service) Skip(ctx context.Context, guildID, voiceChannelID snowflake.ID, gen uint64) error {
	p, ok := s.lookup(guildID)
	if !ok {
		return ErrQueueEmpty
	}
	return p.Skip(ctx, voiceChannelID, gen)
}

func (s *Service) Disconnect(ctx context.Context, guildID, voiceChannelID snowflake.ID, gen uint64) error {
	p, ok := s.lookup(guildID)
	if !ok {
		return ErrQueueEmpty
	}
	return p.Disconnect(ctx, voiceChannelID, gen)
}

func (s *Service) ChannelEmptied(ctx context.Context, guildID snowflake.ID) error {
	p, ok := s.lookup(guildID)
	if !ok {
		return nil
	}
	return p.ChannelEmptied(ctx)
}

// ForcedDisconnect reports that the bot left channelID without the player asking.
func (s *Service) ForcedDisconnect(ctx context.Context, guildID, channelID snowflake.ID) error {
	p, ok := s.lookup(guildID)
	if !ok {
		return nil
	}
	return p.ForcedDisconnect(ctx, channelID)
}

// Snapshot reports an idle snapshot for guilds without a player.
func (s *Service) Snapshot(ctx context.Context, guildID snowflake.ID) (Snapshot, error) {
	p, ok := s.lookup(guildID)
	if !ok {
		return Snapshot{GuildID: guildID, State: StateIdle, Capacity: s.capacity}, nil
	}
	return p.Snapshot(ctx)
}

// Attach binds setup to the display and redraws the guild's views into it,
// so a setup made during playback shows the current track right away.
func (s *Service) Attach(ctx context.Context, setup sys.MusicSetup) error {
	p := s.Player(setup.GuildID)
	if p == nil {
		return ErrPlayerClosed
	}
	s.display.Attach(setup)
	return p.Refresh(ctx)
}

// Restore binds every stored setup to the display and redraws its views in
// place. It returns the number of guilds restored.
func (s *Service) Restore(ctx context.Context) (int, error) {
	setups, err := s.store.All(ctx)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, setup := range setups {
		s.display.Attach(setup)
		p := s.Player(setup.GuildID)
		if p == nil {
			return restored, ErrPlayerClosed
		}
		if err := p.Refresh(ctx); err != nil {
			sys.LogWarn(sys.MsgSetupRestoreFailed, setup.GuildID, err)
			continue
		}
		restored++
	}
	return restored, nil
}

// Shutdown closes every player concurrently. The service rejects new guilds afterwards.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	players := make([]*Player, 0, len(s.players))
	for id, p := range s.players {
		players = append(players, p)
		delete(s.players, id)
	}
	s.mu.Unlock()

	var g errgroup.Group
	for _, p := range players {
		g.Go(func() error {
			return p.Close(ctx)
		})
	}
	return g.Wait()
}
