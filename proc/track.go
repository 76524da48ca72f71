package proc

import (
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// DurationPlaceholder is shown wherever a track length is not known.
const DurationPlaceholder = "--:--"

// Duration is a track length that may be unknown (live streams, some extractors).
type Duration struct {
	d     time.Duration
	known bool
}

// UnknownDuration is the zero Duration.
var UnknownDuration = Duration{}

func KnownDuration(d time.Duration) Duration {
	if d < 0 {
		return UnknownDuration
	}
	return Duration{d: d, known: true}
}

// ParseSeconds reads yt-dlp's %(duration)s field, which is a float number of
// seconds or "NA".
func ParseSeconds(s string) Duration {
	s = strings.TrimSpace(s)
	if s == "" || s == "NA" || s == "None" {
		return UnknownDuration
	}
	d, err := time.ParseDuration(s + "s")
	if err != nil {
		return UnknownDuration
	}
	return KnownDuration(d.Round(time.Second))
}

func (d Duration) Known() bool {
	return d.known
}

func (d Duration) Value() time.Duration {
	return d.d
}

// String formats as MM:SS, HH:MM:SS or D:HH:MM:SS.
func (d Duration) String() string {
	if !d.known {
		return DurationPlaceholder
	}
	total := int64(d.d / time.Second)
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%d:%02d:%02d:%02d", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	default:
		return fmt.Sprintf("%02d:%02d", minutes, seconds)
	}
}

// Track is a fully resolved playable item. Treat as immutable.
type Track struct {
	RequesterID   snowflake.ID
	RequesterName string
	StreamURL     string
	Title         string
	URL           string
	Channel       string
	ChannelURL    string
	Thumbnail     string
	Duration      Duration
}

// WithRequester returns a copy of t attributed to the given user.
func (t Track) WithRequester(id snowflake.ID, name string) Track {
	t.RequesterID = id
	t.RequesterName = name
	return t
}

// Candidate is a search hit that still has to be resolved into a Track.
type Candidate struct {
	Title    string
	URL      string
	Channel  string
	Duration Duration
}
