package discordbot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voicebox/internal/app/notification"
	"github.com/osa030/voicebox/internal/app/session/state"
	"github.com/osa030/voicebox/internal/domain/track"
	"github.com/osa030/voicebox/internal/infra/lastfm"
)

const (
	colorNowPlaying = 0x1DB954
	colorQueue      = 0x5865F2

	buttonToggle = "music:toggle"
	buttonSkip   = "music:skip"
	buttonStop   = "music:stop"
)

// SimilarFinder looks up tracks similar to the one playing.
type SimilarFinder interface {
	GetSimilarTracks(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.SimilarTrack, error)
}

// messageRest is the subset of the REST client used to post messages.
type messageRest interface {
	CreateMessage(channelID snowflake.ID, messageCreate discord.MessageCreate, opts ...rest.RequestOpt) (*discord.Message, error)
	UpdateMessage(channelID snowflake.ID, messageID snowflake.ID, messageUpdate discord.MessageUpdate, opts ...rest.RequestOpt) (*discord.Message, error)
}

// Presenter posts now-playing messages to the text channel a session was
// started from. It implements session.NowPlayingPublisher and receives
// session notifications as a notification.Stream.
type Presenter struct {
	rest         messageRest
	similar      SimilarFinder // optional
	similarCount int

	mu       sync.Mutex
	channels map[string]snowflake.ID  // session ID -> text channel
	messages map[string]postedMessage // session ID -> last now-playing message
}

type postedMessage struct {
	channelID snowflake.ID
	messageID snowflake.ID
}

// NewPresenter creates a new presenter. similar may be nil.
func NewPresenter(r messageRest, similar SimilarFinder, similarCount int) *Presenter {
	return &Presenter{
		rest:         r,
		similar:      similar,
		similarCount: similarCount,
		channels:     make(map[string]snowflake.ID),
		messages:     make(map[string]postedMessage),
	}
}

// Bind records the text channel used for a session's announcements.
func (p *Presenter) Bind(sessionID string, channelID snowflake.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels[sessionID] = channelID
}

// PublishNowPlaying posts the now-playing message for qt and retires the
// previous one.
func (p *Presenter) PublishNowPlaying(ctx context.Context, sessionID string, qt *track.QueuedTrack) error {
	p.mu.Lock()
	channelID, ok := p.channels[sessionID]
	p.mu.Unlock()
	if !ok {
		return nil
	}

	similar := p.lookupSimilar(ctx, qt)
	msg := discord.NewMessageCreateBuilder().
		AddEmbeds(nowPlayingEmbed(qt, similar)).
		AddComponents(controlRow(false)).
		Build()

	posted, err := p.rest.CreateMessage(channelID, msg, rest.WithCtx(ctx))
	if err != nil {
		return errors.Wrap(err, "failed to post now playing message")
	}

	p.mu.Lock()
	previous, hadPrevious := p.messages[sessionID]
	p.messages[sessionID] = postedMessage{channelID: channelID, messageID: posted.ID}
	p.mu.Unlock()

	if hadPrevious {
		p.retire(ctx, previous)
	}
	return nil
}

// Send implements notification.Stream.
func (p *Presenter) Send(n *notification.Notification) error {
	switch n.Type {
	case notification.TypeSessionClosed:
		p.mu.Lock()
		previous, hadPrevious := p.messages[n.SessionID]
		delete(p.messages, n.SessionID)
		delete(p.channels, n.SessionID)
		p.mu.Unlock()
		if hadPrevious {
			p.retire(context.Background(), previous)
		}
	case notification.TypeTrackFailed:
		p.mu.Lock()
		channelID, ok := p.channels[n.SessionID]
		p.mu.Unlock()
		if ok && n.Track != nil {
			content := fmt.Sprintf("⚠️ Could not play **%s**, skipping.", escape(n.Track.Title))
			if _, err := p.rest.CreateMessage(channelID, discord.NewMessageCreateBuilder().SetContent(content).Build()); err != nil {
				return errors.Wrap(err, "failed to post playback error")
			}
		}
	}
	return nil
}

// retire removes the controls from a message that is no longer current.
func (p *Presenter) retire(ctx context.Context, m postedMessage) {
	update := discord.NewMessageUpdateBuilder().SetComponents().Build()
	if _, err := p.rest.UpdateMessage(m.channelID, m.messageID, update, rest.WithCtx(ctx)); err != nil {
		zlog.Debug().Msgf("discord: failed to retire message: channel=%s message=%s error=%v", m.channelID, m.messageID, err)
	}
}

func (p *Presenter) lookupSimilar(ctx context.Context, qt *track.QueuedTrack) []lastfm.SimilarTrack {
	if p.similar == nil || p.similarCount <= 0 {
		return nil
	}
	artist, name := lastfm.GuessArtistTitle(qt.Track.Title, qt.Track.Artist)
	if artist == "" || name == "" {
		return nil
	}
	tracks, err := p.similar.GetSimilarTracks(ctx, name, artist, p.similarCount)
	if err != nil {
		zlog.Debug().Msgf("discord: similar tracks unavailable: artist=%s track=%s error=%v", artist, name, err)
		return nil
	}
	return tracks
}

func nowPlayingEmbed(qt *track.QueuedTrack, similar []lastfm.SimilarTrack) discord.Embed {
	t := qt.Track
	description := fmt.Sprintf("**%s**", escape(t.Title))
	if u := t.DisplayURL(); u != "" {
		description = fmt.Sprintf("**[%s](%s)**", escape(t.Title), u)
	}

	eb := discord.NewEmbedBuilder().
		SetTitle("🎶 Now Playing").
		SetDescription(description).
		SetColor(colorNowPlaying).
		AddField("Duration", t.DurationFormatted(), true).
		AddField("Requested by", requesterLabel(qt.Requester), true)

	if t.ThumbnailURL != "" {
		eb.SetThumbnail(t.ThumbnailURL)
	}
	if len(similar) > 0 {
		lines := make([]string, 0, len(similar))
		for _, s := range similar {
			lines = append(lines, fmt.Sprintf("[%s - %s](%s)", escape(s.Artist), escape(s.Name), s.URL))
		}
		eb.AddField("Similar tracks", strings.Join(lines, "\n"), false)
	}
	return eb.Build()
}

func controlRow(paused bool) discord.ActionRowComponent {
	toggle := discord.NewSecondaryButton("⏸️ Pause", buttonToggle)
	if paused {
		toggle = discord.NewSuccessButton("▶️ Resume", buttonToggle)
	}
	return discord.NewActionRow(
		toggle,
		discord.NewPrimaryButton("⏭️ Skip", buttonSkip),
		discord.NewDangerButton("⏹️ Stop", buttonStop),
	)
}

func queueEmbed(s state.Snapshot) discord.Embed {
	var sb strings.Builder
	if s.Current != nil {
		sb.WriteString("**Now:**\n")
		sb.WriteString(queueLine(s.Current))
		sb.WriteString("\n\n")
	}
	if len(s.Upcoming) > 0 {
		sb.WriteString("**Up next:**\n")
		for i, qt := range s.Upcoming {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, queueLine(qt))
		}
	}
	if s.Truncated {
		fmt.Fprintf(&sb, "… and **%d** more.", s.Remaining)
	}

	return discord.NewEmbedBuilder().
		SetTitle("📋 Music Queue").
		SetDescription(strings.TrimSpace(sb.String())).
		SetColor(colorQueue).
		Build()
}

func queueLine(qt *track.QueuedTrack) string {
	return fmt.Sprintf("**%s** `%s` (%s)", escape(qt.Track.Title), qt.Track.DurationFormatted(), requesterLabel(qt.Requester))
}

func playReply(title string, started bool, position int) string {
	if started {
		return fmt.Sprintf("▶️ Now playing: **%s**", escape(title))
	}
	return fmt.Sprintf("📥 Added to queue (#%d): **%s**", position, escape(title))
}

func requesterLabel(r track.Requester) string {
	switch {
	case r.Mention != "":
		return r.Mention
	case r.Name != "":
		return r.Name
	default:
		return "unknown"
	}
}

var markdownEscaper = strings.NewReplacer("*", "\\*", "_", "\\_", "`", "\\`", "~", "\\~", "|", "\\|", "[", "\\[", "]", "\\]")

func escape(s string) string {
	return markdownEscaper.Replace(s)
}
