package proc

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/karlseguin/ccache/v3"
	"github.com/leeineian/jukebox/sys"
	"github.com/lrstanley/go-ytdlp"
	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"
)

// Resolution is either a list of playable tracks (direct links) or a list of
// search candidates. Both empty means nothing was found.
type Resolution struct {
	Tracks     []Track
	Candidates []Candidate
}

func (r Resolution) Empty() bool {
	return len(r.Tracks) == 0 && len(r.Candidates) == 0
}

func (r Resolution) IsSearch() bool {
	return len(r.Candidates) > 0
}

type Resolver interface {
	Resolve(ctx context.Context, query string) (Resolution, error)
}

const (
	trackTemplate     = "%(url)s\t%(title)s\t%(webpage_url)s\t%(uploader)s\t%(uploader_url)s\t%(thumbnail)s\t%(duration)s"
	candidateTemplate = "%(url)s\t%(title)s\t%(uploader)s\t%(duration)s"
	searchCacheSize   = 500
	searchCacheTTL    = 10 * time.Minute
)

// YTDLPResolver resolves queries with yt-dlp. Search results are cached and
// concurrent identical lookups share one process.
type YTDLPResolver struct {
	executable    string
	searchResults int
	maxTracks     int

	cache *ccache.Cache[[]Candidate]
	group singleflight.Group
}

func NewYTDLPResolver(executable string, searchResults, maxTracks int) *YTDLPResolver {
	if searchResults < 1 {
		searchResults = sys.DefaultSearchResults
	}
	if maxTracks < 1 {
		maxTracks = sys.DefaultQueueCapacity
	}
	return &YTDLPResolver{
		executable:    executable,
		searchResults: searchResults,
		maxTracks:     maxTracks,
		cache: ccache.New(
			ccache.Configure[[]Candidate]().
				MaxSize(searchCacheSize).
				GetsPerPromote(3).
				ItemsToPrune(25),
		),
	}
}

func (r *YTDLPResolver) Stop() {
	r.cache.Stop()
}

func (r *YTDLPResolver) command() *ytdlp.Command {
	cmd := ytdlp.New()
	if r.executable != "" {
		cmd.SetExecutable(r.executable)
	}
	return cmd
}

func (r *YTDLPResolver) Resolve(ctx context.Context, query string) (Resolution, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Resolution{}, nil
	}

	if IsURL(query) {
		sys.LogResolver(sys.MsgResolverDirect, query)
		tracks, err := r.direct(ctx, query)
		if err != nil {
			return Resolution{}, fmt.Errorf("resolve %s: %w", query, err)
		}
		return Resolution{Tracks: tracks}, nil
	}

	candidates, err := r.search(ctx, query)
	if err != nil {
		return Resolution{}, fmt.Errorf("search %q: %w", query, err)
	}
	return Resolution{Candidates: candidates}, nil
}

func (r *YTDLPResolver) direct(ctx context.Context, u string) ([]Track, error) {
	res, err := r.command().
		Print(trackTemplate).
		Format("bestaudio/best").
		NoPlaylist().
		PlaylistItems(fmt.Sprintf("1-%d", r.maxTracks)).
		NoWarnings().
		IgnoreConfig().
		Run(ctx, "--skip-download", u)
	if err != nil {
		return nil, err
	}
	return lo.Slice(ParseTrackLines(res.Stdout), 0, r.maxTracks), nil
}

func (r *YTDLPResolver) search(ctx context.Context, q string) ([]Candidate, error) {
	key := normalizeQuery(q)
	if item := r.cache.Get(key); item != nil && !item.Expired() {
		return item.Value(), nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		sys.LogResolver(sys.MsgResolverSearch, q, r.searchResults)
		res, err := r.command().
			FlatPlaylist().
			Print(candidateTemplate).
			PlaylistItems(fmt.Sprintf("1-%d", r.searchResults)).
			NoWarnings().
			IgnoreConfig().
			Run(ctx, fmt.Sprintf("ytsearch%d:%s", r.searchResults, q))
		if err != nil {
			return nil, err
		}
		candidates := ParseCandidateLines(res.Stdout)
		if len(candidates) > 0 {
			r.cache.Set(key, candidates, searchCacheTTL)
		}
		return candidates, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Candidate), nil
}

// IsURL reports whether s is an absolute http(s) URL.
func IsURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// field maps yt-dlp's "NA" placeholder to an empty string.
func field(s string) string {
	s = strings.TrimSpace(s)
	if s == "NA" || s == "None" {
		return ""
	}
	return s
}

// ParseTrackLines parses output printed with trackTemplate.
func ParseTrackLines(out string) []Track {
	var tracks []Track
	for _, l := range strings.Split(strings.TrimSpace(out), "\n") {
		ps := strings.Split(l, "\t")
		if len(ps) < 7 || field(ps[0]) == "" {
			continue
		}
		t := Track{
			StreamURL:  field(ps[0]),
			Title:      field(ps[1]),
			URL:        field(ps[2]),
			Channel:    field(ps[3]),
			ChannelURL: field(ps[4]),
			Thumbnail:  field(ps[5]),
			Duration:   ParseSeconds(ps[6]),
		}
		if t.URL == "" {
			t.URL = t.StreamURL
		}
		if t.Title == "" {
			t.Title = t.URL
		}
		tracks = append(tracks, t)
	}
	return tracks
}

// ParseCandidateLines parses output printed with candidateTemplate.
func ParseCandidateLines(out string) []Candidate {
	var candidates []Candidate
	for _, l := range strings.Split(strings.TrimSpace(out), "\n") {
		ps := strings.Split(l, "\t")
		if len(ps) < 4 || field(ps[0]) == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			URL:      field(ps[0]),
			Title:    field(ps[1]),
			Channel:  field(ps[2]),
			Duration: ParseSeconds(ps[3]),
		})
	}
	return lo.UniqBy(candidates, func(c Candidate) string { return c.URL })
}
