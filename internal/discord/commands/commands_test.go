package commands

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/leadscout/internal/analysis"
	"github.com/MrWong99/leadscout/internal/dialog"
	"github.com/MrWong99/leadscout/internal/discord"
	"github.com/MrWong99/leadscout/internal/discord/mock"
	"github.com/MrWong99/leadscout/internal/filter"
	"github.com/MrWong99/leadscout/internal/query"
)

// ── fakes ────────────────────────────────────────────────────────────────────

type fakeDialogs struct {
	mu       sync.Mutex
	owners   map[dialog.Target]bool
	events   []dialog.Event
	startErr error
}

func newFakeDialogs(owners ...dialog.Target) *fakeDialogs {
	f := &fakeDialogs{owners: make(map[dialog.Target]bool)}
	for _, o := range owners {
		f.owners[o] = true
	}
	return f
}

func (f *fakeDialogs) Start(_ context.Context, t dialog.Target) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.owners[t] = true
	return nil
}

func (f *fakeDialogs) Handle(_ context.Context, t dialog.Target, ev dialog.Event) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.owners[t] {
		return false, nil
	}
	f.events = append(f.events, ev)
	return true, nil
}

func (f *fakeDialogs) Cancel(_ context.Context, t dialog.Target) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ok := f.owners[t]
	delete(f.owners, t)
	return ok, nil
}

type fakeTop struct {
	res query.Result
	err error
}

func (f fakeTop) Top(context.Context) (query.Result, error) { return f.res, f.err }

type fakeRunner struct {
	configured bool
	running    bool
	rep        analysis.Report
	err        error
}

func (f *fakeRunner) Configured() bool { return f.configured }
func (f *fakeRunner) Running() bool    { return f.running }
func (f *fakeRunner) Run(context.Context) (analysis.Report, error) {
	return f.rep, f.err
}

type recordingDeliverer struct {
	blocks []string
}

func (d *recordingDeliverer) Deliver(_ context.Context, _ dialog.Target, blocks []string) error {
	d.blocks = append(d.blocks, blocks...)
	return nil
}

// ── interactions ─────────────────────────────────────────────────────────────

var alice = dialog.Target{ChannelID: "chan-1", UserID: "alice"}

func command(name, sub, userID string, roles ...string) *discordgo.InteractionCreate {
	data := discordgo.ApplicationCommandInteractionData{Name: name}
	if sub != "" {
		data.Options = []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: sub, Type: discordgo.ApplicationCommandOptionSubCommand},
		}
	}
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:      discordgo.InteractionApplicationCommand,
		ChannelID: "chan-1",
		Member:    &discordgo.Member{User: &discordgo.User{ID: userID}, Roles: roles},
		Data:      data,
	}}
}

const promptID = "prompt-1"

func click(customID, userID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:      discordgo.InteractionMessageComponent,
		ChannelID: "chan-1",
		Message:   &discordgo.Message{ID: promptID, ChannelID: "chan-1"},
		Member:    &discordgo.Member{User: &discordgo.User{ID: userID}},
		Data:      discordgo.MessageComponentInteractionData{CustomID: customID},
	}}
}

func message(content, userID string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ChannelID: "chan-1",
		Content:   content,
		Author:    &discordgo.User{ID: userID},
	}}
}

func routerWith(registrars ...interface{ Register(*discord.CommandRouter) }) *discord.CommandRouter {
	r := discord.NewCommandRouter()
	for _, reg := range registrars {
		reg.Register(r)
	}
	return r
}

// ── /filter ──────────────────────────────────────────────────────────────────

func TestFilterDefinition(t *testing.T) {
	t.Parallel()

	def := NewFilterCommands(newFakeDialogs()).Definition()
	if def.Name != "filter" {
		t.Errorf("Name = %q, want filter", def.Name)
	}
	var subs []string
	for _, o := range def.Options {
		if o.Type != discordgo.ApplicationCommandOptionSubCommand {
			t.Errorf("option %q is not a subcommand", o.Name)
		}
		subs = append(subs, o.Name)
	}
	if diff := cmp.Diff([]string{"start", "cancel"}, subs); diff != "" {
		t.Errorf("subcommands mismatch (-want +got):\n%s", diff)
	}
}

func TestFilter_StartAndCancel(t *testing.T) {
	t.Parallel()

	dialogs := newFakeDialogs()
	r := routerWith(NewFilterCommands(dialogs))
	s := &mock.Session{}

	r.Handle(s, command("filter", "start", "alice"))
	if !dialogs.owners[alice] {
		t.Fatal("dialog not started for alice")
	}
	if resp := s.LastResponse(); resp.Data.Flags != discordgo.MessageFlagsEphemeral {
		t.Errorf("start reply not ephemeral: %+v", resp.Data)
	}

	r.Handle(s, command("filter", "cancel", "alice"))
	if got := s.LastResponse().Data.Content; got != "Cancelled." {
		t.Errorf("cancel reply = %q", got)
	}
	r.Handle(s, command("filter", "cancel", "alice"))
	if got := s.LastResponse().Data.Content; !strings.Contains(got, "no filter dialog") {
		t.Errorf("second cancel reply = %q", got)
	}
}

func TestFilter_StartFailureIsReported(t *testing.T) {
	t.Parallel()

	dialogs := newFakeDialogs()
	dialogs.startErr = errors.New("missing access")
	r := routerWith(NewFilterCommands(dialogs))
	s := &mock.Session{}

	r.Handle(s, command("filter", "start", "alice"))
	if s.LastFollowUp() == nil {
		t.Fatal("no follow-up after failed start")
	}
}

func TestFilter_Buttons(t *testing.T) {
	t.Parallel()

	dialogs := newFakeDialogs(alice)
	r := routerWith(NewFilterCommands(dialogs))
	s := &mock.Session{}

	token := dialog.EncodeToken(dialog.Toggle(filter.DimRegions, "Москва"))
	r.Handle(s, click(token, "alice"))
	want := []dialog.Event{dialog.Toggle(filter.DimRegions, "Москва").From(promptID)}
	if diff := cmp.Diff(want, dialogs.events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if got := s.LastResponse().Type; got != discordgo.InteractionResponseDeferredMessageUpdate {
		t.Errorf("button ack type = %v, want deferred update", got)
	}
	if len(s.FollowUps) != 0 {
		t.Errorf("owner click produced follow-ups: %+v", s.FollowUps)
	}

	// Someone else clicking alice's prompt.
	r.Handle(s, click(token, "bob"))
	if fu := s.LastFollowUp(); fu == nil || fu.Content != msgNotYourDialog {
		t.Errorf("follow-up for foreign click = %+v", fu)
	}

	// A malformed token never reaches the dialog.
	r.Handle(s, click("filter:explode", "alice"))
	if len(dialogs.events) != 1 {
		t.Errorf("malformed token produced an event: %+v", dialogs.events)
	}
}

func TestFilter_TextAnswers(t *testing.T) {
	t.Parallel()

	dialogs := newFakeDialogs(alice)
	r := routerWith(NewFilterCommands(dialogs))
	s := &mock.Session{}

	r.HandleMessage(s, message("500000", "alice"))
	r.HandleMessage(s, message("chatter", "bob"))
	r.HandleMessage(s, message("skip", "alice"))

	want := []dialog.Event{dialog.TextEvent("500000"), {Kind: dialog.KindSkip}}
	if diff := cmp.Diff(want, dialogs.events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

// ── /leads ───────────────────────────────────────────────────────────────────

func TestLeads(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		querier    fakeTop
		wantFollow string
		wantBlocks []string
	}{
		{
			name:       "results",
			querier:    fakeTop{res: query.Result{Blocks: []string{"1", "2"}, Total: 7, Shown: 2}},
			wantFollow: "🏆 Top 2 tenders",
			wantBlocks: []string{"1", "2"},
		},
		{
			name:       "no data",
			querier:    fakeTop{err: query.ErrDataUnavailable},
			wantFollow: dialog.MsgUnavailable,
		},
		{
			name:       "empty",
			querier:    fakeTop{},
			wantFollow: "No scored tenders",
		},
		{
			name:       "failure",
			querier:    fakeTop{err: errors.New("boom")},
			wantFollow: "Could not load",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out := &recordingDeliverer{}
			r := routerWith(NewLeadsCommands(tt.querier, out))
			s := &mock.Session{}
			r.Handle(s, command("leads", "", "alice"))

			if got := s.Responses[0].Type; got != discordgo.InteractionResponseDeferredChannelMessageWithSource {
				t.Errorf("first response = %v, want deferred reply", got)
			}
			if fu := s.LastFollowUp(); fu == nil || !strings.Contains(fu.Content, tt.wantFollow) {
				t.Errorf("follow-up = %+v, want it to contain %q", fu, tt.wantFollow)
			}
			if diff := cmp.Diff(tt.wantBlocks, out.blocks); diff != "" {
				t.Errorf("delivered blocks mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// ── /analysis ────────────────────────────────────────────────────────────────

func TestAnalysisRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		runner    *fakeRunner
		roles     []string
		wantReply string
		wantPost  string
	}{
		{
			name:      "missing role",
			runner:    &fakeRunner{configured: true},
			wantReply: "analyst role",
		},
		{
			name:      "not configured",
			runner:    &fakeRunner{},
			roles:     []string{"analyst"},
			wantReply: "not configured",
		},
		{
			name:      "success",
			runner:    &fakeRunner{configured: true, rep: analysis.Report{RunID: "r1", Duration: 90 * time.Second}},
			roles:     []string{"analyst"},
			wantReply: "Analysis started",
			wantPost:  "✅ Analysis finished in 1m30s",
		},
		{
			name:      "joins running analysis",
			runner:    &fakeRunner{configured: true, running: true, rep: analysis.Report{RunID: "r1", Shared: true}},
			roles:     []string{"analyst"},
			wantReply: "already running",
			wantPost:  "✅ Analysis finished",
		},
		{
			name: "failure",
			runner: &fakeRunner{
				configured: true,
				rep:        analysis.Report{RunID: "r2", ExitCode: 1, Tail: "Traceback: boom"},
				err:        errors.New("exit status 1"),
			},
			roles:     []string{"analyst"},
			wantReply: "Analysis started",
			wantPost:  "exit code 1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ac := NewAnalysisCommands(tt.runner, discord.NewPermissionChecker("analyst"))
			r := routerWith(ac)
			s := &mock.Session{}
			r.Handle(s, command("analysis", "run", "alice", tt.roles...))
			ac.Wait()

			if got := s.LastResponse().Data.Content; !strings.Contains(got, tt.wantReply) {
				t.Errorf("reply = %q, want it to contain %q", got, tt.wantReply)
			}
			posts := s.SentContents()
			if tt.wantPost == "" {
				if len(posts) != 0 {
					t.Errorf("unexpected channel posts: %q", posts)
				}
				return
			}
			if len(posts) != 1 || !strings.Contains(posts[0], tt.wantPost) || !strings.HasPrefix(posts[0], "<@alice>") {
				t.Errorf("posts = %q, want one mentioning alice containing %q", posts, tt.wantPost)
			}
		})
	}
}

func TestReport(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("line\n", 1000)
	tests := []struct {
		name string
		rep  analysis.Report
		err  error
		want []string
	}{
		{"timeout", analysis.Report{RunID: "r", TimedOut: true, Duration: time.Hour}, errors.New("timeout"), []string{"timed out after 1h0m0s"}},
		{"failure with tail", analysis.Report{RunID: "r", ExitCode: 2, Tail: long}, errors.New("exit"), []string{"exit code 2", "```\n…"}},
		{"not configured", analysis.Report{}, analysis.ErrNotConfigured, []string{"not configured"}},
	}
	for _, tt := range tests {
		got := Report("", tt.rep, tt.err)
		for _, want := range tt.want {
			if !strings.Contains(got, want) {
				t.Errorf("%s: Report = %q, want it to contain %q", tt.name, got, want)
			}
		}
		if len([]rune(got)) > 2000 {
			t.Errorf("%s: report is %d characters, over the message limit", tt.name, len([]rune(got)))
		}
	}
}

// ── /help ────────────────────────────────────────────────────────────────────

func TestHelp(t *testing.T) {
	t.Parallel()

	r := routerWith(HelpCommands{})
	s := &mock.Session{}
	r.Handle(s, command("help", "", "alice"))
	resp := s.LastResponse()
	if resp == nil || len(resp.Data.Embeds) != 1 || len(resp.Data.Embeds[0].Fields) != len(helpFields) {
		t.Fatalf("help response = %+v", resp)
	}
}
