package dialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/leadscout/internal/filter"
	"github.com/MrWong99/leadscout/internal/observe"
	"github.com/MrWong99/leadscout/internal/query"
	"github.com/MrWong99/leadscout/internal/session"
)

// User-facing terminal messages.
const (
	MsgCancelled   = "✖ Filter dialog cancelled."
	MsgUnavailable = "📭 No analysed tenders are available yet. Run `/analysis run` and try again."
	MsgFailed      = "⚠️ Something went wrong while applying the filters. Start again with `/filter start`."
	MsgNoMatches   = "🔍 No tenders match these filters. Try `/filter start` with wider criteria."
)

// Target identifies where a dialog lives: one user in one channel.
type Target struct {
	ChannelID string
	UserID    string
}

// Key is the session key for t.
func (t Target) Key() string { return t.ChannelID + ":" + t.UserID }

// Messenger is the chat side of a dialog.
type Messenger interface {
	// ShowPrompt edits the prompt message ref in place, or sends a new one
	// when ref is empty or the edit fails. It returns the reference of the
	// message now showing p.
	ShowPrompt(ctx context.Context, t Target, ref string, p Prompt) (string, error)

	// Notify sends a plain message.
	Notify(ctx context.Context, t Target, text string) error

	// Deliver sends result chunks in order.
	Deliver(ctx context.Context, t Target, blocks []string) error
}

// Querier runs finished criteria.
type Querier interface {
	Run(ctx context.Context, c filter.Criteria) (query.Result, error)
}

// ServiceConfig configures a [Service].
type ServiceConfig struct {
	Messenger Messenger
	Querier   Querier

	// Catalog returns the options offered to a new dialog.
	Catalog func(ctx context.Context) Catalog

	MaxSessions int
	IdleTimeout time.Duration

	Metrics *observe.Metrics
	Now     func() time.Time
}

// Service runs filter dialogs for many users at once. Events for one
// [Target] are handled one at a time, pipeline included.
type Service struct {
	messenger Messenger
	querier   Querier
	catalog   func(context.Context) Catalog
	metrics   *observe.Metrics
	sessions  *session.Store[*Conversation]
}

// NewService creates a [Service].
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		messenger: cfg.Messenger,
		querier:   cfg.Querier,
		catalog:   cfg.Catalog,
		metrics:   cfg.Metrics,
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.catalog == nil {
		s.catalog = func(context.Context) Catalog { return Catalog{} }
	}
	s.sessions = session.New[*Conversation](session.Config{
		MaxSessions: cfg.MaxSessions,
		IdleTimeout: cfg.IdleTimeout,
		Now:         cfg.Now,
		OnRemove: func(key string, reason session.Reason) {
			s.metrics.RecordDialogEnded(context.Background(), string(reason))
			slog.Debug("filter dialog ended", "session", key, "reason", string(reason))
		},
	})
	return s
}

// Start opens a new dialog for t, replacing any dialog t already has, and
// shows the first question.
func (s *Service) Start(ctx context.Context, t Target) error {
	conv := NewConversation(s.catalog(ctx))
	conv.Begin()
	s.sessions.Start(t.Key(), conv)
	s.metrics.RecordDialogStarted(ctx)

	var err error
	s.sessions.Do(t.Key(), func(c **Conversation) bool {
		err = s.show(ctx, t, *c)
		return err != nil
	})
	if err != nil {
		return fmt.Errorf("dialog: start: %w", err)
	}
	slog.Info("filter dialog started", "channel_id", t.ChannelID, "user_id", t.UserID)
	return nil
}

// Handle applies ev to the dialog of t. It reports false when t has no
// dialog, so the caller can treat the input as unrelated chatter. Rejected
// input is not an error: the question is shown again with the reason.
func (s *Service) Handle(ctx context.Context, t Target, ev Event) (bool, error) {
	var err error
	handled := s.sessions.Do(t.Key(), func(cp **Conversation) (remove bool) {
		c := *cp
		prev := c.State
		outcome, stepErr := Step(c, ev)
		s.metrics.RecordDialogStep(ctx, prev.String(), string(outcome))

		var verr *ValidationError
		if errors.As(stepErr, &verr) {
			slog.Debug("filter dialog input rejected", "state", verr.State.String(), "reason", verr.Reason)
		}

		switch outcome {
		case OutcomeCancelled:
			_, err = s.messenger.ShowPrompt(ctx, t, c.PromptRef, Prompt{State: c.State, Text: MsgCancelled})
			return true
		case OutcomeFinal:
			defer func() {
				if r := recover(); r != nil {
					slog.Error("filter dialog: final step panicked", "panic", r)
					err = &query.PipelineError{Stage: "final", Err: fmt.Errorf("panic: %v", r)}
					if nerr := s.messenger.Notify(ctx, t, MsgFailed); nerr != nil {
						err = errors.Join(err, nerr)
					}
					remove = true
				}
			}()
			err = s.finish(ctx, t, c)
			return true
		default:
			err = s.show(ctx, t, c)
			return false
		}
	})
	if err != nil {
		return handled, fmt.Errorf("dialog: handle: %w", err)
	}
	return handled, nil
}

// Cancel ends the dialog of t, if any, and tells the user.
func (s *Service) Cancel(ctx context.Context, t Target) (bool, error) {
	if !s.sessions.Close(t.Key()) {
		return false, nil
	}
	if err := s.messenger.Notify(ctx, t, MsgCancelled); err != nil {
		return true, fmt.Errorf("dialog: cancel: %w", err)
	}
	return true, nil
}

// Active returns the number of open dialogs.
func (s *Service) Active() int { return s.sessions.Len() }

// Run expires idle dialogs until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	s.sessions.Run(ctx)
}

func (s *Service) show(ctx context.Context, t Target, c *Conversation) error {
	ref, err := s.messenger.ShowPrompt(ctx, t, c.PromptRef, BuildPrompt(c))
	if err != nil {
		return err
	}
	c.PromptRef = ref
	return nil
}

// finish runs the query for a conversation in StateFinal and reports the
// result. The caller removes the session whatever happens here.
func (s *Service) finish(ctx context.Context, t Target, c *Conversation) error {
	if err := s.show(ctx, t, c); err != nil {
		slog.Warn("filter dialog: final prompt not shown", "err", err)
	}

	res, err := s.querier.Run(ctx, c.Criteria)
	switch {
	case errors.Is(err, query.ErrDataUnavailable):
		return s.messenger.Notify(ctx, t, MsgUnavailable)
	case err != nil:
		slog.Error("filter dialog: query failed", "channel_id", t.ChannelID, "user_id", t.UserID, "err", err)
		return s.messenger.Notify(ctx, t, MsgFailed)
	case res.Total == 0:
		return s.messenger.Notify(ctx, t, MsgNoMatches)
	}
	return s.messenger.Deliver(ctx, t, res.Blocks)
}
