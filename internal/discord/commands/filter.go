// Package commands implements the leadscout slash commands.
package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/leadscout/internal/dialog"
	"github.com/MrWong99/leadscout/internal/discord"
)

// handlerTimeout bounds the work done for one interaction or message,
// including paced delivery of results.
const handlerTimeout = 2 * time.Minute

const msgNotYourDialog = "This filter dialog belongs to someone else or has expired. Start your own with `/filter start`."

// DialogService runs filter dialogs.
type DialogService interface {
	Start(ctx context.Context, t dialog.Target) error
	Handle(ctx context.Context, t dialog.Target, ev dialog.Event) (bool, error)
	Cancel(ctx context.Context, t dialog.Target) (bool, error)
}

// FilterCommands holds the dependencies for /filter and the dialog
// buttons and free-text answers.
type FilterCommands struct {
	dialogs DialogService
}

// NewFilterCommands creates FilterCommands.
func NewFilterCommands(dialogs DialogService) *FilterCommands {
	return &FilterCommands{dialogs: dialogs}
}

// Register registers /filter, the dialog buttons and the message handler.
func (fc *FilterCommands) Register(router *discord.CommandRouter) {
	def := fc.Definition()
	router.RegisterCommand("filter", def, func(s discord.Session, i *discordgo.InteractionCreate) {
		discord.RespondEphemeral(s, i, "Please use a subcommand: `/filter start` or `/filter cancel`.")
	})
	router.RegisterHandler("filter/start", fc.handleStart)
	router.RegisterHandler("filter/cancel", fc.handleCancel)
	router.RegisterComponentPrefix(dialog.TokenPrefix, fc.handleButton)
	router.RegisterMessageHandler(fc.handleMessage)
}

// Definition returns the ApplicationCommand definition for Discord.
func (fc *FilterCommands) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "filter",
		Description: "Find tenders step by step",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "start",
				Description: "Start a guided filter dialog in this channel",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "cancel",
				Description: "Cancel your filter dialog in this channel",
			},
		},
	}
}

func targetOf(i *discordgo.InteractionCreate) dialog.Target {
	return dialog.Target{ChannelID: i.ChannelID, UserID: discord.UserID(i)}
}

func (fc *FilterCommands) handleStart(s discord.Session, i *discordgo.InteractionCreate) {
	t := targetOf(i)
	discord.RespondEphemeral(s, i, "Starting a filter dialog. Answer with the buttons or by typing in this channel.")

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	if err := fc.dialogs.Start(ctx, t); err != nil {
		slog.Error("filter start failed", "channel_id", t.ChannelID, "user_id", t.UserID, "err", err)
		discord.FollowUp(s, i, "Could not start the filter dialog. Check that I can post in this channel.")
	}
}

func (fc *FilterCommands) handleCancel(s discord.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	ok, err := fc.dialogs.Cancel(ctx, targetOf(i))
	switch {
	case err != nil:
		discord.RespondError(s, i, err)
	case !ok:
		discord.RespondEphemeral(s, i, "You have no filter dialog in this channel.")
	default:
		discord.RespondEphemeral(s, i, "Cancelled.")
	}
}

func (fc *FilterCommands) handleButton(s discord.Session, i *discordgo.InteractionCreate) {
	ev, err := dialog.ParseToken(i.MessageComponentData().CustomID)
	if err != nil {
		slog.Warn("filter: malformed button", "err", err)
		discord.RespondEphemeral(s, i, "This button is no longer active.")
		return
	}
	discord.DeferUpdate(s, i)
	if i.Message != nil {
		ev = ev.From(i.Message.ID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	t := targetOf(i)
	handled, err := fc.dialogs.Handle(ctx, t, ev)
	if err != nil {
		slog.Error("filter: button failed", "channel_id", t.ChannelID, "user_id", t.UserID, "err", err)
	}
	if !handled {
		discord.FollowUp(s, i, msgNotYourDialog)
	}
}

func (fc *FilterCommands) handleMessage(_ discord.Session, m *discordgo.MessageCreate) bool {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	t := dialog.Target{ChannelID: m.ChannelID, UserID: m.Author.ID}
	handled, err := fc.dialogs.Handle(ctx, t, dialog.TextEvent(m.Content))
	if err != nil {
		slog.Error("filter: answer failed", "channel_id", t.ChannelID, "user_id", t.UserID, "err", err)
	}
	return handled
}
