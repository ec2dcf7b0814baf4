package commands

import (
	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/leadscout/internal/discord"
)

var helpFields = []*discordgo.MessageEmbedField{
	{Name: "/leads", Value: "The tenders with the highest win probability."},
	{Name: "/filter start", Value: "A step-by-step dialog: price, region, fuel, contract terms, networks, probability, dates, text and sorting. Answer with the buttons or by typing; type `skip` to skip a question."},
	{Name: "/filter cancel", Value: "Abandon your dialog in this channel."},
	{Name: "/analysis run", Value: "Scrape the platforms and score new tenders."},
}

// HelpCommands serves /help.
type HelpCommands struct{}

// Register registers /help with the router.
func (HelpCommands) Register(router *discord.CommandRouter) {
	router.RegisterCommand("help", &discordgo.ApplicationCommand{
		Name:        "help",
		Description: "Explain what leadscout can do",
	}, func(s discord.Session, i *discordgo.InteractionCreate) {
		discord.RespondEmbed(s, i, &discordgo.MessageEmbed{
			Title:       "leadscout",
			Description: "Finds fuel-card tenders worth bidding on.",
			Fields:      helpFields,
		})
	})
}
