package discordbot

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/voicebox/internal/app/playback"
	"github.com/osa030/voicebox/internal/app/session"
	"github.com/osa030/voicebox/internal/domain/track"
)

const (
	commandTimeout = 10 * time.Second
	playTimeout    = 90 * time.Second
)

func commands() []discord.ApplicationCommandCreate {
	perms := discord.PermissionConnect | discord.PermissionSpeak
	guildOnly := []discord.InteractionContextType{discord.InteractionContextTypeGuild}

	slash := func(name, description string, options ...discord.ApplicationCommandOption) discord.SlashCommandCreate {
		return discord.SlashCommandCreate{
			Name:                     name,
			Description:              description,
			DefaultMemberPermissions: omit.New(&perms),
			Contexts:                 guildOnly,
			Options:                  options,
		}
	}

	return []discord.ApplicationCommandCreate{
		slash("play", "Play a song or add it to the queue",
			discord.ApplicationCommandOptionString{
				Name:        "query",
				Description: "A URL or search terms",
				Required:    true,
			},
		),
		slash("skip", "Skip the current song"),
		slash("stop", "Stop playback, clear the queue and leave the voice channel"),
		slash("queue", "Show the current queue"),
		slash("pause", "Pause or resume playback"),
	}
}

func (b *Bot) onApplicationCommand(e *events.ApplicationCommandInteractionCreate) {
	data := e.SlashCommandInteractionData()
	if e.GuildID() == nil {
		_ = e.CreateMessage(b.message("default"))
		return
	}

	switch data.CommandName() {
	case "play":
		b.handlePlay(e, data)
	case "skip":
		b.handleSkip(e)
	case "stop":
		b.handleStop(e)
	case "queue":
		b.handleQueue(e)
	case "pause":
		b.handlePause(e)
	}
}

func (b *Bot) handlePlay(e *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	guildID := *e.GuildID()
	user := e.User()
	query := data.String("query")

	req := session.PlayRequest{
		SessionID: guildID.String(),
		Query:     query,
		Requester: track.Requester{
			ID:      user.ID.String(),
			Name:    user.EffectiveName(),
			Mention: user.Mention(),
			Type:    track.RequesterTypeUser,
		},
	}
	if vs, ok := e.Client().Caches.VoiceState(guildID, user.ID); ok && vs.ChannelID != nil {
		req.ChannelRef = vs.ChannelID.String()
	}

	if err := e.DeferCreateMessage(false); err != nil {
		zlog.Warn().Msgf("discord: failed to defer play: guild=%s error=%v", guildID, err)
		return
	}

	b.presenter.Bind(req.SessionID, e.Channel().ID())
	zlog.Info().Msgf("play requested: session=%s user=%s query=%q", req.SessionID, user.Username, query)

	ctx, cancel := context.WithTimeout(context.Background(), playTimeout)
	defer cancel()

	var content string
	res, err := b.getManager().RequestPlay(ctx, req)
	if err != nil {
		content = b.errorMessage(err)
	} else {
		content = playReply(res.Track.Track.Title, res.Started, res.Position)
	}

	update := discord.NewMessageUpdateBuilder().SetContent(content).Build()
	if _, err := e.Client().Rest.UpdateInteractionResponse(e.ApplicationID(), e.Token(), update); err != nil {
		zlog.Warn().Msgf("discord: failed to reply to play: guild=%s error=%v", guildID, err)
	}
}

func (b *Bot) handleSkip(e *events.ApplicationCommandInteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := b.getManager().RequestSkip(ctx, e.GuildID().String()); err != nil {
		_ = e.CreateMessage(b.errorReply(err))
		return
	}
	_ = e.CreateMessage(discord.NewMessageCreateBuilder().SetContent(b.config.GetMessage("skipped")).Build())
}

func (b *Bot) handleStop(e *events.ApplicationCommandInteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := b.getManager().RequestStop(ctx, e.GuildID().String()); err != nil {
		_ = e.CreateMessage(b.errorReply(err))
		return
	}
	_ = e.CreateMessage(discord.NewMessageCreateBuilder().SetContent(b.config.GetMessage("stopped")).Build())
}

func (b *Bot) handleQueue(e *events.ApplicationCommandInteractionCreate) {
	snapshot, err := b.getManager().RequestQueueView(e.GuildID().String())
	if err != nil {
		_ = e.CreateMessage(b.errorReply(err))
		return
	}
	_ = e.CreateMessage(discord.NewMessageCreateBuilder().AddEmbeds(queueEmbed(snapshot)).Build())
}

func (b *Bot) handlePause(e *events.ApplicationCommandInteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	paused, err := b.getManager().TogglePause(ctx, e.GuildID().String())
	if err != nil {
		_ = e.CreateMessage(b.errorReply(err))
		return
	}
	_ = e.CreateMessage(discord.NewMessageCreateBuilder().SetContent(b.config.GetMessage(pauseCode(paused))).Build())
}

func (b *Bot) onComponent(e *events.ComponentInteractionCreate) {
	if e.GuildID() == nil {
		return
	}
	sessionID := e.GuildID().String()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	m := b.getManager()
	switch e.Data.CustomID() {
	case buttonToggle:
		paused, err := m.TogglePause(ctx, sessionID)
		if err != nil {
			_ = e.CreateMessage(b.errorReply(err))
			return
		}
		_ = e.UpdateMessage(discord.NewMessageUpdateBuilder().SetComponents(controlRow(paused)).Build())
		zlog.Info().Msgf("pause toggled: session=%s user=%s paused=%t", sessionID, e.User().Username, paused)
	case buttonSkip:
		if err := m.RequestSkip(ctx, sessionID); err != nil {
			_ = e.CreateMessage(b.errorReply(err))
			return
		}
		_ = e.CreateMessage(b.message("skipped"))
	case buttonStop:
		if err := m.RequestStop(ctx, sessionID); err != nil {
			_ = e.CreateMessage(b.errorReply(err))
			return
		}
		_ = e.CreateMessage(b.message("stopped"))
	}
}

// errorMessage maps err to a user-facing message.
func (b *Bot) errorMessage(err error) string {
	code := playback.ErrorCode(err)
	if code == "default" {
		zlog.Error().Msgf("discord: request failed: error=%+v", err)
	} else {
		zlog.Debug().Msgf("discord: request rejected: code=%s error=%v", code, err)
	}
	msg := b.config.GetMessage(code)
	if errors.Is(err, playback.ErrResolutionFailed) {
		if cause := errors.UnwrapAll(err).Error(); cause != "" {
			msg += "\n-# " + cause
		}
	}
	return msg
}

func (b *Bot) errorReply(err error) discord.MessageCreate {
	return discord.NewMessageCreateBuilder().
		SetContent(b.errorMessage(err)).
		SetEphemeral(true).
		Build()
}

func pauseCode(paused bool) string {
	if paused {
		return "paused"
	}
	return "resumed"
}
