package home

import (
	"errors"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/karlseguin/ccache/v3"
	"github.com/leeineian/jukebox/proc"
)

var (
	errPickExpired  = errors.New("selection expired")
	errPickNotYours = errors.New("selection belongs to another user")
	errPickIndex    = errors.New("selection index out of range")
)

// pickLifetime bounds sessions whose search view never times out. It matches
// how long an interaction token stays editable.
const pickLifetime = 15 * time.Minute

// pickSession is an open search result list waiting for its requester.
type pickSession struct {
	UserID        snowflake.ID
	GuildID       snowflake.ID
	TextChannelID snowflake.ID
	Query         string
	Candidates    []proc.Candidate
}

// pickSessions hands every session out at most once, to a pick or to expiry.
type pickSessions struct {
	cache *ccache.Cache[pickSession]
	ttl   time.Duration
}

func newPickSessions(ttl time.Duration) *pickSessions {
	if ttl <= 0 {
		ttl = pickLifetime
	}
	return &pickSessions{
		cache: ccache.New(
			ccache.Configure[pickSession]().
				MaxSize(5000).
				GetsPerPromote(3).
				ItemsToPrune(50),
		),
		ttl: ttl,
	}
}

func (p *pickSessions) Open(token string, s pickSession) {
	p.cache.Set(token, s, p.ttl)
}

// Take claims the session for userID and returns the candidate at index.
// Only the first successful Take or Expire of a token wins.
func (p *pickSessions) Take(token string, userID snowflake.ID, index int) (pickSession, proc.Candidate, error) {
	item := p.cache.Get(token)
	if item == nil || item.Expired() {
		return pickSession{}, proc.Candidate{}, errPickExpired
	}
	s := item.Value()
	if s.UserID != userID {
		return pickSession{}, proc.Candidate{}, errPickNotYours
	}
	if index < 0 || index >= len(s.Candidates) {
		return pickSession{}, proc.Candidate{}, errPickIndex
	}
	if !p.cache.Delete(token) {
		return pickSession{}, proc.Candidate{}, errPickExpired
	}
	return s, s.Candidates[index], nil
}

// Expire closes an untaken session and reports whether this call closed it.
func (p *pickSessions) Expire(token string) (pickSession, bool) {
	item := p.cache.Get(token)
	if item == nil {
		return pickSession{}, false
	}
	if !p.cache.Delete(token) {
		return pickSession{}, false
	}
	return item.Value(), true
}

func (p *pickSessions) Stop() {
	p.cache.Stop()
}
