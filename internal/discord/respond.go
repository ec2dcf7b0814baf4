package discord

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// MsgInternalError is what a user sees when a command fails on our side.
// The cause goes to the log only.
const MsgInternalError = "Something went wrong on our side. Please try again in a moment."

// RespondEphemeral answers an interaction with text only its user can see.
func RespondEphemeral(s Session, i *discordgo.InteractionCreate, content string) {
	respond(s, i, "reply", &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// RespondEmbed answers an interaction with a private embed, such as the
// /help card.
func RespondEmbed(s Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	respond(s, i, "embed", &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
}

// RespondError logs err against the interaction and shows the user
// [MsgInternalError].
func RespondError(s Session, i *discordgo.InteractionCreate, err error) {
	slog.Error("discord: command failed", append(interactionAttrs(i), "err", err)...)
	RespondEphemeral(s, i, MsgInternalError)
}

// DeferReply acknowledges a slash command whose answer arrives later as a
// follow-up, as /leads and /analysis do.
func DeferReply(s Session, i *discordgo.InteractionCreate) {
	respond(s, i, "defer", &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
}

// DeferUpdate acknowledges a dialog button. The prompt itself is edited
// through the channel API.
func DeferUpdate(s Session, i *discordgo.InteractionCreate) {
	respond(s, i, "ack", &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
}

// FollowUp sends private text after [DeferReply] or [DeferUpdate].
func FollowUp(s Session, i *discordgo.InteractionCreate, content string) {
	_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		slog.Warn("discord: follow-up not sent", append(interactionAttrs(i), "err", err)...)
	}
}

func respond(s Session, i *discordgo.InteractionCreate, kind string, resp *discordgo.InteractionResponse) {
	if err := s.InteractionRespond(i.Interaction, resp); err != nil {
		slog.Warn("discord: interaction response not sent", append(interactionAttrs(i), "kind", kind, "err", err)...)
	}
}

// interactionAttrs identifies an interaction in log lines.
func interactionAttrs(i *discordgo.InteractionCreate) []any {
	attrs := []any{"channel_id", i.ChannelID, "user_id", UserID(i)}
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		attrs = append(attrs, "command", i.ApplicationCommandData().Name)
	case discordgo.InteractionMessageComponent:
		attrs = append(attrs, "custom_id", i.MessageComponentData().CustomID)
	}
	return attrs
}
