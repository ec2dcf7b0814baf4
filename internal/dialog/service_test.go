package dialog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/leadscout/internal/filter"
	"github.com/MrWong99/leadscout/internal/query"
)

// fakeMessenger records everything the service sends.
type fakeMessenger struct {
	mu        sync.Mutex
	prompts   []Prompt
	refs      []string
	notices   []string
	delivered [][]string
	showErr   error
	next      int
}

func (f *fakeMessenger) ShowPrompt(_ context.Context, _ Target, ref string, p Prompt) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.showErr != nil {
		return "", f.showErr
	}
	f.prompts = append(f.prompts, p)
	f.refs = append(f.refs, ref)
	if ref == "" {
		f.next++
		ref = fmt.Sprintf("msg-%d", f.next)
	}
	return ref, nil
}

func (f *fakeMessenger) Notify(_ context.Context, _ Target, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, text)
	return nil
}

func (f *fakeMessenger) Deliver(_ context.Context, _ Target, blocks []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, blocks)
	return nil
}

func (f *fakeMessenger) lastPrompt() Prompt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompts[len(f.prompts)-1]
}

// fakeQuerier returns a fixed result and remembers the criteria it ran.
type fakeQuerier struct {
	res   query.Result
	err   error
	panic bool
	got   *filter.Criteria
}

func (f *fakeQuerier) Run(_ context.Context, c filter.Criteria) (query.Result, error) {
	if f.panic {
		panic("boom")
	}
	f.got = &c
	return f.res, f.err
}

var alice = Target{ChannelID: "c1", UserID: "u1"}

func newTestService(m Messenger, q Querier) *Service {
	return NewService(ServiceConfig{
		Messenger: m,
		Querier:   q,
		Catalog:   func(context.Context) Catalog { return testCatalog() },
	})
}

func TestService_StartShowsFirstQuestion(t *testing.T) {
	t.Parallel()

	m := &fakeMessenger{}
	s := newTestService(m, &fakeQuerier{})
	if err := s.Start(context.Background(), alice); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := m.lastPrompt().State; got != StatePriceMin {
		t.Errorf("first prompt state = %s, want price_min", got)
	}
	if s.Active() != 1 {
		t.Errorf("Active() = %d, want 1", s.Active())
	}
}

func TestService_StartFailsWhenPromptCannotBeShown(t *testing.T) {
	t.Parallel()

	m := &fakeMessenger{showErr: errors.New("missing access")}
	s := newTestService(m, &fakeQuerier{})
	if err := s.Start(context.Background(), alice); err == nil {
		t.Fatal("Start succeeded, want error")
	}
	if s.Active() != 0 {
		t.Errorf("Active() = %d after failed start, want 0", s.Active())
	}
}

func TestService_HandleEditsPromptInPlace(t *testing.T) {
	t.Parallel()

	m := &fakeMessenger{}
	s := newTestService(m, &fakeQuerier{})
	ctx := context.Background()
	if err := s.Start(ctx, alice); err != nil {
		t.Fatalf("Start: %v", err)
	}

	handled, err := s.Handle(ctx, alice, TextEvent("abc"))
	if !handled || err != nil {
		t.Fatalf("Handle = %v, %v", handled, err)
	}
	p := m.lastPrompt()
	if p.State != StatePriceMin || p.Notice == "" {
		t.Errorf("after invalid input prompt = %+v, want price_min with a notice", p)
	}

	if _, err := s.Handle(ctx, alice, TextEvent("100000")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := m.lastPrompt().State; got != StatePriceMax {
		t.Errorf("prompt state = %s, want price_max", got)
	}
	if diff := cmp.Diff([]string{"", "msg-1", "msg-1"}, m.refs); diff != "" {
		t.Errorf("prompt refs mismatch (-want +got):\n%s", diff)
	}
}

func TestService_HandleWithoutSession(t *testing.T) {
	t.Parallel()

	s := newTestService(&fakeMessenger{}, &fakeQuerier{})
	handled, err := s.Handle(context.Background(), alice, TextEvent("hello"))
	if handled || err != nil {
		t.Errorf("Handle = %v, %v; want false, nil", handled, err)
	}
}

func TestService_Final(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		querier       *fakeQuerier
		wantNotice    string
		wantDelivered bool
		wantErr       bool
	}{
		{
			name:          "results delivered",
			querier:       &fakeQuerier{res: query.Result{Blocks: []string{"a", "b"}, Total: 2, Shown: 2}},
			wantDelivered: true,
		},
		{
			name:       "no matches",
			querier:    &fakeQuerier{res: query.Result{}},
			wantNotice: MsgNoMatches,
		},
		{
			name:       "no data",
			querier:    &fakeQuerier{err: fmt.Errorf("%w: disk", query.ErrDataUnavailable)},
			wantNotice: MsgUnavailable,
		},
		{
			name:       "pipeline error",
			querier:    &fakeQuerier{err: &query.PipelineError{Stage: "format", Err: errors.New("bad")}},
			wantNotice: MsgFailed,
		},
		{
			name:       "panic",
			querier:    &fakeQuerier{panic: true},
			wantNotice: MsgFailed,
			wantErr:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := &fakeMessenger{}
			s := newTestService(m, tt.querier)
			ctx := context.Background()
			if err := s.Start(ctx, alice); err != nil {
				t.Fatalf("Start: %v", err)
			}
			// Fast-forward to the sort question.
			s.sessions.Do(alice.Key(), func(c **Conversation) bool {
				(*c).State = StateSortBy
				return false
			})

			handled, err := s.Handle(ctx, alice, Choose(filter.DimSortBy, ChoiceSortProbability))
			if !handled {
				t.Fatal("final event not handled")
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("Handle err = %v, wantErr %v", err, tt.wantErr)
			}
			if s.Active() != 0 {
				t.Errorf("Active() = %d after final, want 0", s.Active())
			}
			if got := m.lastPrompt().State; got != StateFinal {
				t.Errorf("last prompt state = %s, want final", got)
			}
			if tt.wantDelivered != (len(m.delivered) == 1) {
				t.Errorf("delivered = %v, want delivery %v", m.delivered, tt.wantDelivered)
			}
			var wantNotices []string
			if tt.wantNotice != "" {
				wantNotices = []string{tt.wantNotice}
			}
			if diff := cmp.Diff(wantNotices, m.notices); diff != "" {
				t.Errorf("notices mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestService_CancelViaEventAndCommand(t *testing.T) {
	t.Parallel()

	m := &fakeMessenger{}
	s := newTestService(m, &fakeQuerier{})
	ctx := context.Background()

	if err := s.Start(ctx, alice); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := s.Handle(ctx, alice, Cancel()); err != nil {
		t.Fatalf("Handle(cancel): %v", err)
	}
	if s.Active() != 0 {
		t.Errorf("Active() = %d after cancel, want 0", s.Active())
	}
	if got := m.lastPrompt().Text; got != MsgCancelled {
		t.Errorf("prompt text = %q, want the cancel message", got)
	}

	if err := s.Start(ctx, alice); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if ok, err := s.Cancel(ctx, alice); !ok || err != nil {
		t.Errorf("Cancel = %v, %v; want true, nil", ok, err)
	}
	if ok, _ := s.Cancel(ctx, alice); ok {
		t.Error("second Cancel reported a removed dialog")
	}
}

func TestService_SessionsAreIndependent(t *testing.T) {
	t.Parallel()

	m := &fakeMessenger{}
	s := newTestService(m, &fakeQuerier{})
	ctx := context.Background()
	bob := Target{ChannelID: "c1", UserID: "u2"}

	var wg sync.WaitGroup
	for _, tg := range []Target{alice, bob} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Start(ctx, tg); err != nil {
				t.Errorf("Start(%s): %v", tg.Key(), err)
			}
		}()
	}
	wg.Wait()

	if _, err := s.Handle(ctx, alice, TextEvent("1000")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	var aliceState, bobState State
	s.sessions.Do(alice.Key(), func(c **Conversation) bool { aliceState = (*c).State; return false })
	s.sessions.Do(bob.Key(), func(c **Conversation) bool { bobState = (*c).State; return false })
	if aliceState != StatePriceMax || bobState != StatePriceMin {
		t.Errorf("states = %s, %s; want price_max, price_min", aliceState, bobState)
	}
}

func TestService_IdleDialogsExpire(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		now = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	)
	clock := func() time.Time { mu.Lock(); defer mu.Unlock(); return now }
	s := NewService(ServiceConfig{
		Messenger:   &fakeMessenger{},
		Querier:     &fakeQuerier{},
		IdleTimeout: time.Minute,
		Now:         clock,
	})
	ctx := context.Background()
	if err := s.Start(ctx, alice); err != nil {
		t.Fatalf("Start: %v", err)
	}

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	if handled, _ := s.Handle(ctx, alice, TextEvent("1000")); handled {
		t.Error("expired dialog still handled input")
	}
}
