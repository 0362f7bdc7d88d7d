// Package media wraps yt-dlp for metadata lookup and stream extraction.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lrstanley/go-ytdlp"
	zlog "github.com/rs/zerolog/log"
)

// Print templates emit one tab-separated line per item. Every field uses the
// JSON conversion so tabs and newlines inside values stay escaped.
const (
	entryTemplate = "%(webpage_url,url)j\t%(title)j\t%(uploader,channel)j\t%(duration)j"
	infoTemplate  = "%(id)j\t%(title)j\t%(uploader,channel)j\t%(duration)j\t%(webpage_url)j\t%(thumbnail)j\t%(extractor_key)j\t%(urls)j"

	notAvailable = "NA"
)

// ErrNotFound is returned when yt-dlp produced no usable entry.
var ErrNotFound = errors.New("no media found")

// Config represents extractor configuration.
type Config struct {
	Path        string // yt-dlp executable; resolved from PATH when empty
	Format      string // Format selector for stream extraction
	CookiesFile string // Passed to yt-dlp when the file exists
	Proxy       string
}

// Entry is a lightweight result of a lookup or search.
type Entry struct {
	URL      string
	Title    string
	Uploader string
	Duration time.Duration
}

// Info is a fully extracted media item.
type Info struct {
	ID           string
	Title        string
	Uploader     string
	Duration     time.Duration
	WebpageURL   string
	ThumbnailURL string
	Extractor    string
	StreamURL    string // Time-limited direct URL of the selected format
}

// Extractor runs yt-dlp.
type Extractor struct {
	config Config
}

// NewExtractor creates a new extractor.
func NewExtractor(cfg Config) *Extractor {
	if cfg.Format == "" {
		cfg.Format = "bestaudio/best"
	}
	return &Extractor{config: cfg}
}

func (x *Extractor) command() *ytdlp.Command {
	cmd := ytdlp.New().
		Quiet().
		NoWarnings().
		IgnoreConfig()

	if x.config.Path != "" {
		cmd.SetExecutable(x.config.Path)
	}
	if x.config.Proxy != "" {
		cmd.Proxy(x.config.Proxy)
	}
	if x.cookiesAvailable() {
		cmd.Cookies(x.config.CookiesFile)
	}
	return cmd
}

func (x *Extractor) cookiesAvailable() bool {
	if x.config.CookiesFile == "" {
		return false
	}
	_, err := os.Stat(x.config.CookiesFile)
	return err == nil
}

// Lookup returns the first entry behind a URL. Playlists and other
// collections yield their first item.
func (x *Extractor) Lookup(ctx context.Context, url string) (Entry, error) {
	res, err := x.command().
		FlatPlaylist().
		Print(entryTemplate).
		PlaylistItems("1").
		Run(ctx, url)
	if err != nil {
		return Entry{}, runError(err, res, "lookup")
	}

	entries := parseEntries(res.Stdout)
	if len(entries) == 0 {
		return Entry{}, errors.Wrapf(ErrNotFound, "lookup %s", url)
	}
	zlog.Debug().Msgf("media: lookup: url=%s entry_url=%s title=%s", url, entries[0].URL, entries[0].Title)
	return entries[0], nil
}

// Search runs a yt-dlp search and returns up to limit entries.
func (x *Extractor) Search(ctx context.Context, query string, limit int, music bool) ([]Entry, error) {
	if limit <= 0 {
		limit = 1
	}
	prefix := "ytsearch"
	if music {
		prefix = "ytmsearch"
	}

	res, err := x.command().
		FlatPlaylist().
		Print(entryTemplate).
		PlaylistItems(fmt.Sprintf("1-%d", limit)).
		Run(ctx, fmt.Sprintf("%s%d:%s", prefix, limit, query))
	if err != nil {
		return nil, runError(err, res, "search")
	}
	return parseEntries(res.Stdout), nil
}

// Extract resolves a page URL into a playable stream descriptor.
func (x *Extractor) Extract(ctx context.Context, url string) (*Info, error) {
	res, err := x.command().
		Format(x.config.Format).
		NoPlaylist().
		Print(infoTemplate).
		Run(ctx, url)
	if err != nil {
		return nil, runError(err, res, "extract")
	}

	info, err := parseInfo(res.Stdout)
	if err != nil {
		return nil, errors.Wrapf(err, "extract %s", url)
	}
	zlog.Debug().Msgf("media: extracted: url=%s id=%s title=%s duration=%v", url, info.ID, info.Title, info.Duration)
	return info, nil
}

func runError(err error, res *ytdlp.Result, op string) error {
	if res != nil {
		if msg := lastLine(res.Stderr); msg != "" {
			return errors.Wrapf(err, "yt-dlp %s: %s", op, msg)
		}
	}
	return errors.Wrapf(err, "yt-dlp %s", op)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// parseEntries parses entryTemplate lines. Lines without a URL are skipped.
func parseEntries(stdout string) []Entry {
	var entries []Entry
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		ps := strings.Split(line, "\t")
		if len(ps) < 4 {
			continue
		}
		url := field(ps[0])
		if url == "" {
			continue
		}
		entries = append(entries, Entry{
			URL:      url,
			Title:    field(ps[1]),
			Uploader: field(ps[2]),
			Duration: parseSeconds(ps[3]),
		})
	}
	return entries
}

// parseInfo parses the first infoTemplate line. The stream URL is required;
// merged formats list one URL per line and the first one is used.
func parseInfo(stdout string) (*Info, error) {
	line := strings.SplitN(strings.TrimSpace(stdout), "\n", 2)[0]
	ps := strings.SplitN(line, "\t", 8)
	if len(ps) < 8 {
		return nil, errors.Wrapf(ErrNotFound, "unexpected yt-dlp output: %q", line)
	}
	info := &Info{
		ID:           field(ps[0]),
		Title:        field(ps[1]),
		Uploader:     field(ps[2]),
		Duration:     parseSeconds(ps[3]),
		WebpageURL:   field(ps[4]),
		ThumbnailURL: field(ps[5]),
		Extractor:    field(ps[6]),
		StreamURL:    firstLine(field(ps[7])),
	}
	if info.StreamURL == "" {
		return nil, errors.Wrap(ErrNotFound, "no stream url in yt-dlp output")
	}
	return info, nil
}

// field decodes one JSON-converted template field. Missing values print as
// NA or null; non-string values are returned as printed.
func field(s string) string {
	s = strings.TrimSpace(s)
	if s == notAvailable || s == "null" {
		return ""
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return strings.TrimSpace(v)
		}
	}
	return s
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// parseSeconds parses yt-dlp durations such as "213" or "213.5".
func parseSeconds(s string) time.Duration {
	f, err := strconv.ParseFloat(field(s), 64)
	if err != nil || f <= 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}
