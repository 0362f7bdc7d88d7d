// Package discordbot connects the session manager to Discord: slash
// commands, voice connections and now-playing messages.
package discordbot

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/disgo/voice"
	"github.com/disgoorg/godave/golibdave"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voicebox/internal/app/session"
	"github.com/osa030/voicebox/internal/app/session/state"
	"github.com/osa030/voicebox/internal/infra/config"
	"github.com/osa030/voicebox/internal/infra/logger"
)

// Manager is the session surface driven by commands and buttons.
type Manager interface {
	RequestPlay(ctx context.Context, req session.PlayRequest) (*session.PlayResult, error)
	RequestSkip(ctx context.Context, sessionID string) error
	RequestStop(ctx context.Context, sessionID string) error
	RequestQueueView(sessionID string) (state.Snapshot, error)
	TogglePause(ctx context.Context, sessionID string) (bool, error)
	HandleVoiceDisconnect(ctx context.Context, sessionID string)
}

// Bot is the Discord front end.
type Bot struct {
	client    *bot.Client
	config    *config.Config
	connector *Connector
	presenter *Presenter

	mu      sync.RWMutex
	manager Manager
}

// New creates the Discord client. The gateway is not opened until Open.
func New(cfg *config.Config, similar SimilarFinder) (*Bot, error) {
	b := &Bot{config: cfg}

	client, err := disgo.New(cfg.Discord.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildVoiceStates,
			),
		),
		bot.WithCacheConfigOpts(
			cache.WithCaches(cache.FlagGuilds, cache.FlagChannels, cache.FlagVoiceStates),
		),
		bot.WithVoiceManagerConfigOpts(
			voice.WithDaveSessionCreateFunc(golibdave.NewSession),
		),
		bot.WithLogger(logger.Slog("discord")),
		bot.WithEventListenerFunc(b.onReady),
		bot.WithEventListenerFunc(b.onApplicationCommand),
		bot.WithEventListenerFunc(b.onComponent),
		bot.WithEventListenerFunc(b.onVoiceStateUpdate),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create discord client")
	}

	b.client = client
	b.connector = NewConnector(client, ConnectorConfig{
		SelfDeaf: cfg.Discord.IsSelfDeaf(),
		Audio: AudioConfig{
			FFmpegPath: cfg.Audio.FFmpegPath,
			Bitrate:    cfg.Audio.Bitrate,
			Volume:     cfg.Audio.Volume,
		},
	})
	b.presenter = NewPresenter(client.Rest, similar, cfg.LastFM.SimilarCount)
	return b, nil
}

// Connector returns the voice connector.
func (b *Bot) Connector() *Connector {
	return b.connector
}

// Presenter returns the now-playing presenter.
func (b *Bot) Presenter() *Presenter {
	return b.presenter
}

// SetManager sets the manager that handles commands. Must be called before Open.
func (b *Bot) SetManager(m Manager) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.manager = m
}

func (b *Bot) getManager() Manager {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.manager
}

// Open registers the slash commands and connects to the gateway.
func (b *Bot) Open(ctx context.Context) error {
	if b.getManager() == nil {
		return errors.New("discord: manager is not set")
	}
	if err := b.syncCommands(); err != nil {
		return err
	}
	if err := b.client.OpenGateway(ctx); err != nil {
		return errors.Wrap(err, "failed to open gateway")
	}
	return nil
}

// Close disconnects from Discord.
func (b *Bot) Close(ctx context.Context) {
	b.client.Close(ctx)
}

func (b *Bot) syncCommands() error {
	cmds := commands()
	if len(b.config.Discord.GuildIDs) == 0 {
		if _, err := b.client.Rest.SetGlobalCommands(b.client.ApplicationID, cmds); err != nil {
			return errors.Wrap(err, "failed to register global commands")
		}
		zlog.Info().Msgf("discord: registered global commands: count=%d", len(cmds))
		return nil
	}

	for _, raw := range b.config.Discord.GuildIDs {
		guildID, err := snowflake.Parse(raw)
		if err != nil {
			return errors.Wrapf(err, "invalid guild id %q", raw)
		}
		if _, err := b.client.Rest.SetGuildCommands(b.client.ApplicationID, guildID, cmds); err != nil {
			return errors.Wrapf(err, "failed to register commands for guild %s", guildID)
		}
		zlog.Info().Msgf("discord: registered guild commands: guild=%s count=%d", guildID, len(cmds))
	}
	return nil
}

func (b *Bot) onReady(e *events.Ready) {
	zlog.Info().Msgf("discord: ready: user=%s id=%s guilds=%d", e.User.Username, e.User.ID, len(e.Guilds))
}

func (b *Bot) onVoiceStateUpdate(e *events.GuildVoiceStateUpdate) {
	if e.VoiceState.UserID != b.client.ID() {
		return
	}
	if !b.connector.HandleVoiceStateUpdate(e.VoiceState.GuildID, e.VoiceState.ChannelID) {
		return
	}
	if m := b.getManager(); m != nil {
		go m.HandleVoiceDisconnect(context.Background(), e.VoiceState.GuildID.String())
	}
}

func (b *Bot) message(code string) discord.MessageCreate {
	return discord.NewMessageCreateBuilder().
		SetContent(b.config.GetMessage(code)).
		SetEphemeral(true).
		Build()
}
