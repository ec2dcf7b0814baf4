package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/leadscout/internal/analysis"
	"github.com/MrWong99/leadscout/internal/discord"
)

// maxTail keeps the failure report within Discord's 2000 character limit.
const maxTail = 1500

// Runner starts the analysis pipeline.
type Runner interface {
	Configured() bool
	Running() bool
	Run(ctx context.Context) (analysis.Report, error)
}

// AnalysisCommands holds the dependencies for /analysis.
type AnalysisCommands struct {
	runner Runner
	perms  *discord.PermissionChecker
	wg     sync.WaitGroup
}

// NewAnalysisCommands creates AnalysisCommands.
func NewAnalysisCommands(runner Runner, perms *discord.PermissionChecker) *AnalysisCommands {
	return &AnalysisCommands{runner: runner, perms: perms}
}

// Register registers /analysis with the router.
func (ac *AnalysisCommands) Register(router *discord.CommandRouter) {
	router.RegisterCommand("analysis", ac.Definition(), func(s discord.Session, i *discordgo.InteractionCreate) {
		discord.RespondEphemeral(s, i, "Please use a subcommand: `/analysis run`.")
	})
	router.RegisterHandler("analysis/run", ac.handleRun)
}

// Definition returns the ApplicationCommand definition for Discord.
func (ac *AnalysisCommands) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "analysis",
		Description: "Collect and score new tenders",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "run",
				Description: "Scrape the platforms and score the tenders now",
			},
		},
	}
}

// Wait blocks until every run started from Discord has reported back.
func (ac *AnalysisCommands) Wait() { ac.wg.Wait() }

func (ac *AnalysisCommands) handleRun(s discord.Session, i *discordgo.InteractionCreate) {
	if !ac.perms.IsAnalyst(i) {
		discord.RespondEphemeral(s, i, "You need the analyst role to run the analysis.")
		return
	}
	if !ac.runner.Configured() {
		discord.RespondEphemeral(s, i, "The analysis pipeline is not configured.")
		return
	}

	if ac.runner.Running() {
		discord.RespondEphemeral(s, i, "⏳ An analysis is already running. You will be notified here when it finishes.")
	} else {
		discord.RespondEphemeral(s, i, "🚀 Analysis started. This can take a while; you will be notified here when it finishes.")
	}

	channelID, userID := i.ChannelID, discord.UserID(i)
	ac.wg.Go(func() {
		rep, err := ac.runner.Run(context.Background())
		msg := Report(userID, rep, err)
		if _, sendErr := s.ChannelMessageSend(channelID, msg); sendErr != nil {
			slog.Warn("analysis: failed to report result", "channel_id", channelID, "err", sendErr)
		}
	})
}

// Report renders the completion message for a run.
func Report(userID string, rep analysis.Report, err error) string {
	mention := ""
	if userID != "" {
		mention = fmt.Sprintf("<@%s> ", userID)
	}
	took := rep.Duration.Round(time.Second)

	switch {
	case errors.Is(err, analysis.ErrNotConfigured):
		return mention + "The analysis pipeline is not configured."
	case rep.TimedOut:
		return fmt.Sprintf("%s⏱️ Analysis run `%s` timed out after %s.", mention, rep.RunID, took)
	case err != nil:
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s❌ Analysis failed", mention)
		if rep.RunID != "" {
			fmt.Fprintf(&sb, " (run `%s`, exit code %d)", rep.RunID, rep.ExitCode)
		}
		sb.WriteString(".")
		if tail := lastRunes(rep.Tail, maxTail); tail != "" {
			fmt.Fprintf(&sb, "\n```\n%s\n```", tail)
		}
		return sb.String()
	}
	return fmt.Sprintf("%s✅ Analysis finished in %s. Use `/leads` or `/filter start` to see the results.", mention, took)
}

func lastRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return "…" + string(r[len(r)-n:])
}
