package proc

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/leeineian/jukebox/sys"
	"github.com/ppalone/ytsearch"
	"github.com/raitonoberu/ytmusic"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const (
	MaxSuggestions = 25
	suggestTimeout = 2600 * time.Millisecond
)

// Suggestion is an autocomplete choice for /play.
type Suggestion struct {
	ID     string
	Title  string
	Artist string
	URL    string
	Source string
}

// Label is the text shown in the autocomplete list.
func (s Suggestion) Label() string {
	artist := ""
	if s.Artist != "" {
		artist = " - " + s.Artist
	}
	return sys.TruncateWithPreserve(s.Title, 100, "["+s.Source+"] ", artist)
}

// Suggest queries YouTube Music and YouTube in parallel. Backend failures are
// logged and yield fewer results rather than an error.
func Suggest(ctx context.Context, prefix string) []Suggestion {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" || IsURL(prefix) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, suggestTimeout)
	defer cancel()

	var (
		mu  sync.Mutex
		all []Suggestion
	)
	add := func(s ...Suggestion) {
		mu.Lock()
		all = append(all, s...)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := ytmusic.TrackSearch(prefix).Next()
		if err != nil {
			sys.LogResolver(sys.MsgResolverSuggestError, "ytmusic", err)
			return nil
		}
		for _, v := range r.Tracks {
			if v.VideoID == "" {
				continue
			}
			artist := ""
			if len(v.Artists) > 0 {
				artist = v.Artists[0].Name
			}
			add(Suggestion{ID: v.VideoID, Title: v.Title, Artist: artist, URL: "https://music.youtube.com/watch?v=" + v.VideoID, Source: "YTM"})
		}
		return nil
	})
	g.Go(func() error {
		r, err := ytsearch.NewClient(nil).Search(gctx, prefix)
		if err != nil {
			sys.LogResolver(sys.MsgResolverSuggestError, "ytsearch", err)
			return nil
		}
		for _, v := range r.Results {
			if v.VideoID == "" {
				continue
			}
			add(Suggestion{ID: v.VideoID, Title: v.Title, URL: "https://www.youtube.com/watch?v=" + v.VideoID, Source: "YT"})
		}
		return nil
	})

	// ytmusic has no context support; stop waiting once the deadline passes.
	waited := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
	}

	mu.Lock()
	results := slices.Clone(all)
	mu.Unlock()

	return RankSuggestions(prefix, results)
}

// RankSuggestions drops duplicate videos and orders the rest by how closely
// their title matches the typed prefix.
func RankSuggestions(prefix string, in []Suggestion) []Suggestion {
	q := strings.ToLower(prefix)
	out := lo.UniqBy(in, func(s Suggestion) string { return s.ID })

	score := func(s Suggestion) (int, int) {
		title := strings.ToLower(s.Title)
		tier := 1
		if strings.Contains(title, q) {
			tier = 0
		}
		head := title
		if r := []rune(title); len(r) > len([]rune(q)) {
			head = string(r[:len([]rune(q))])
		}
		return tier, levenshtein.ComputeDistance(q, head)
	}

	slices.SortStableFunc(out, func(a, b Suggestion) int {
		at, ad := score(a)
		bt, bd := score(b)
		if at != bt {
			return at - bt
		}
		return ad - bd
	})
	return lo.Slice(out, 0, MaxSuggestions)
}
