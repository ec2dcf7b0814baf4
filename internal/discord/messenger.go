package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/leadscout/internal/dialog"
)

// Discord component limits.
const (
	maxRows        = 5
	maxRowButtons  = 5
	maxOptions     = (maxRows - 1) * maxRowButtons // one row is kept for controls
	maxLabelRunes  = 80
	maxCustomIDLen = 100
)

const embedColor = 0x2E86C1

// Messenger shows filter dialogs and results in Discord channels. Prompts
// are channel messages with button rows, edited in place as the dialog
// advances.
type Messenger struct {
	session Session
	delay   atomic.Int64
}

var _ dialog.Messenger = (*Messenger)(nil)

// NewMessenger creates a Messenger. sendDelay paces consecutive result
// messages.
func NewMessenger(s Session, sendDelay time.Duration) *Messenger {
	m := &Messenger{session: s}
	m.SetSendDelay(sendDelay)
	return m
}

// SetSendDelay changes the pacing between result messages.
func (m *Messenger) SetSendDelay(d time.Duration) { m.delay.Store(int64(d)) }

// ShowPrompt edits the prompt message ref, or sends a new message when ref
// is empty or the edit fails.
func (m *Messenger) ShowPrompt(ctx context.Context, t dialog.Target, ref string, p dialog.Prompt) (string, error) {
	content, components := RenderPrompt(p)

	if ref != "" {
		edit := discordgo.NewMessageEdit(t.ChannelID, ref)
		edit.Content = &content
		edit.Components = &components
		_, err := m.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
		if err == nil {
			return ref, nil
		}
		slog.Warn("discord: prompt edit failed, sending a new message",
			"channel_id", t.ChannelID, "message_id", ref, "err", err)
	}

	msg, err := m.session.ChannelMessageSendComplex(t.ChannelID, &discordgo.MessageSend{
		Content:    content,
		Components: components,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("discord: send prompt: %w", err)
	}
	return msg.ID, nil
}

// Notify sends a plain message to the channel of t.
func (m *Messenger) Notify(ctx context.Context, t dialog.Target, text string) error {
	if _, err := m.session.ChannelMessageSend(t.ChannelID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: notify: %w", err)
	}
	return nil
}

// Deliver sends each block as an embed, pausing between messages.
func (m *Messenger) Deliver(ctx context.Context, t dialog.Target, blocks []string) error {
	delay := time.Duration(m.delay.Load())
	for i, b := range blocks {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("discord: deliver: %w", ctx.Err())
			case <-time.After(delay):
			}
		}
		_, err := m.session.ChannelMessageSendComplex(t.ChannelID, &discordgo.MessageSend{
			Embeds: []*discordgo.MessageEmbed{{Description: b, Color: embedColor}},
		}, discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("discord: deliver block %d of %d: %w", i+1, len(blocks), err)
		}
	}
	return nil
}

// RenderPrompt turns a prompt into message content and button rows.
// Options beyond what fits are left out with a hint that they can still be
// typed.
func RenderPrompt(p dialog.Prompt) (string, []discordgo.MessageComponent) {
	var sb strings.Builder
	if p.Notice != "" {
		fmt.Fprintf(&sb, "⚠️ %s\n\n", p.Notice)
	}
	sb.WriteString(p.Text)

	options := p.Options
	if len(options) > maxOptions {
		fmt.Fprintf(&sb, "\n\nShowing the first %d of %d options. Type a name to pick one that is not listed.", maxOptions, len(options))
		options = options[:maxOptions]
	}

	var rows []discordgo.MessageComponent
	var row []discordgo.MessageComponent
	for _, o := range options {
		btn, ok := button(o, optionStyle(o))
		if !ok {
			continue
		}
		row = append(row, btn)
		if len(row) == maxRowButtons {
			rows = append(rows, discordgo.ActionsRow{Components: row})
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, discordgo.ActionsRow{Components: row})
	}

	var controls []discordgo.MessageComponent
	for _, o := range p.Controls {
		if btn, ok := button(o, controlStyle(o)); ok && len(controls) < maxRowButtons {
			controls = append(controls, btn)
		}
	}
	if len(controls) > 0 && len(rows) < maxRows {
		rows = append(rows, discordgo.ActionsRow{Components: controls})
	}

	// An empty, non-nil slice clears the buttons of an edited message.
	if rows == nil {
		rows = []discordgo.MessageComponent{}
	}
	return sb.String(), rows
}

func button(o dialog.Option, style discordgo.ButtonStyle) (discordgo.Button, bool) {
	id := o.Token()
	if utf8.RuneCountInString(id) > maxCustomIDLen {
		slog.Debug("discord: option token too long for a button", "label", o.Label)
		return discordgo.Button{}, false
	}
	label := o.Label
	if o.Selected {
		label = "✅ " + label
	}
	return discordgo.Button{Label: truncate(label, maxLabelRunes), Style: style, CustomID: id}, true
}

func optionStyle(o dialog.Option) discordgo.ButtonStyle {
	if o.Selected {
		return discordgo.SuccessButton
	}
	return discordgo.SecondaryButton
}

func controlStyle(o dialog.Option) discordgo.ButtonStyle {
	switch o.Event.Kind {
	case dialog.KindDone:
		return discordgo.PrimaryButton
	case dialog.KindCancel:
		return discordgo.DangerButton
	}
	return discordgo.SecondaryButton
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
