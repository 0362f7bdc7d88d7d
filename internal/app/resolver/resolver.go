// Package resolver turns a user query into a playable track.
package resolver

import (
	"context"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voicebox/internal/app/playback"
	"github.com/osa030/voicebox/internal/app/search"
	"github.com/osa030/voicebox/internal/domain/track"
	"github.com/osa030/voicebox/internal/infra/media"
)

// Searcher finds candidates for free text.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]search.Candidate, error)
}

// Extractor looks up and extracts media by URL.
type Extractor interface {
	Lookup(ctx context.Context, url string) (media.Entry, error)
	Extract(ctx context.Context, url string) (*media.Info, error)
}

// LinkRewriter rewrites links of a third-party catalog into search text.
type LinkRewriter interface {
	IsLink(input string) bool
	SearchText(ctx context.Context, link string) (string, error)
}

// Resolver resolves queries in two phases: query to candidate, then
// candidate to a stream descriptor.
type Resolver struct {
	searcher  Searcher
	extractor Extractor
	rewriter  LinkRewriter // optional
}

// New creates a new resolver. rewriter may be nil.
func New(searcher Searcher, extractor Extractor, rewriter LinkRewriter) *Resolver {
	return &Resolver{
		searcher:  searcher,
		extractor: extractor,
		rewriter:  rewriter,
	}
}

// Resolve resolves query into exactly one track.
// Every failure is marked playback.ErrResolutionFailed.
func (r *Resolver) Resolve(ctx context.Context, query string) (*track.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.Mark(errors.New("empty query"), playback.ErrResolutionFailed)
	}

	c, err := r.lookup(ctx, query)
	if err != nil {
		return nil, errors.Mark(err, playback.ErrResolutionFailed)
	}

	info, err := r.extractor.Extract(ctx, c.URL)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to extract %s", c.URL), playback.ErrResolutionFailed)
	}

	t := &track.Track{
		ID:           info.ID,
		Title:        firstNonEmpty(info.Title, c.Title, c.URL),
		Artist:       firstNonEmpty(info.Uploader, c.Artist),
		URL:          firstNonEmpty(info.WebpageURL, c.URL),
		StreamURL:    info.StreamURL,
		Duration:     info.Duration,
		ThumbnailURL: info.ThumbnailURL,
		Source:       firstNonEmpty(c.Source, info.Extractor),
	}
	if t.Duration == 0 {
		t.Duration = c.Duration
	}

	zlog.Debug().Msgf("resolved: query=%q title=%s source=%s duration=%s", query, t.Title, t.Source, t.DurationFormatted())
	return t, nil
}

// lookup is phase one. URLs go to the extractor, catalog links are rewritten
// into text, and text goes to the search chain.
func (r *Resolver) lookup(ctx context.Context, query string) (search.Candidate, error) {
	if r.rewriter != nil && r.rewriter.IsLink(query) {
		text, err := r.rewriter.SearchText(ctx, query)
		if err != nil {
			return search.Candidate{}, errors.Wrap(err, "failed to read link")
		}
		return r.searchFirst(ctx, text)
	}

	if isURL(query) {
		entry, err := r.extractor.Lookup(ctx, query)
		if err != nil {
			return search.Candidate{}, errors.Wrapf(err, "failed to look up %s", query)
		}
		return search.Candidate{
			URL:      firstNonEmpty(entry.URL, query),
			Title:    entry.Title,
			Artist:   entry.Uploader,
			Duration: entry.Duration,
		}, nil
	}

	return r.searchFirst(ctx, query)
}

func (r *Resolver) searchFirst(ctx context.Context, text string) (search.Candidate, error) {
	candidates, err := r.searcher.Search(ctx, text, 1)
	if err != nil {
		return search.Candidate{}, errors.Wrapf(err, "no results for %q", text)
	}
	if len(candidates) == 0 || candidates[0].URL == "" {
		return search.Candidate{}, errors.Mark(errors.Newf("no results for %q", text), search.ErrNoResults)
	}
	return candidates[0], nil
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
