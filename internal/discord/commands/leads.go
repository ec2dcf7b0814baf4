package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/leadscout/internal/dialog"
	"github.com/MrWong99/leadscout/internal/discord"
	"github.com/MrWong99/leadscout/internal/query"
)

// TopQuerier returns the best-scored records.
type TopQuerier interface {
	Top(ctx context.Context) (query.Result, error)
}

// Deliverer posts result blocks to a channel.
type Deliverer interface {
	Deliver(ctx context.Context, t dialog.Target, blocks []string) error
}

// LeadsCommands holds the dependencies for /leads.
type LeadsCommands struct {
	querier TopQuerier
	out     Deliverer
}

// NewLeadsCommands creates LeadsCommands.
func NewLeadsCommands(q TopQuerier, out Deliverer) *LeadsCommands {
	return &LeadsCommands{querier: q, out: out}
}

// Register registers /leads with the router.
func (lc *LeadsCommands) Register(router *discord.CommandRouter) {
	router.RegisterCommand("leads", lc.Definition(), lc.handle)
}

// Definition returns the ApplicationCommand definition for Discord.
func (lc *LeadsCommands) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "leads",
		Description: "Show the tenders with the highest win probability",
	}
}

func (lc *LeadsCommands) handle(s discord.Session, i *discordgo.InteractionCreate) {
	discord.DeferReply(s, i)

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	res, err := lc.querier.Top(ctx)
	switch {
	case errors.Is(err, query.ErrDataUnavailable):
		discord.FollowUp(s, i, dialog.MsgUnavailable)
		return
	case err != nil:
		slog.Error("leads: query failed", "err", err)
		discord.FollowUp(s, i, "⚠️ Could not load the leads. Try again later.")
		return
	case res.Total == 0:
		discord.FollowUp(s, i, "📭 No scored tenders yet. Run `/analysis run` first.")
		return
	}

	discord.FollowUp(s, i, fmt.Sprintf("🏆 Top %d tenders by win probability:", res.Shown))
	if err := lc.out.Deliver(ctx, targetOf(i), res.Blocks); err != nil {
		slog.Error("leads: delivery failed", "channel_id", i.ChannelID, "err", err)
	}
}
