package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/threadx/internal/counter"
	"github.com/desertthunder/threadx/internal/models"
	"github.com/desertthunder/threadx/internal/tasks"
)

type staticLister struct {
	threads []*models.Thread
	err     error
}

func (s *staticLister) List(map[string]any) ([]*models.Thread, error) { return s.threads, s.err }

type fakeEngine struct {
	posted, retried int
	err             error
}

func (f *fakeEngine) Post(ctx context.Context, thread *models.Thread, progress chan<- tasks.ProgressUpdate) error {
	f.posted++
	return f.run(thread, progress)
}

func (f *fakeEngine) Retry(ctx context.Context, thread *models.Thread, progress chan<- tasks.ProgressUpdate) error {
	f.retried++
	return f.run(thread, progress)
}

func (f *fakeEngine) Progress() float64 { return 1 }

func (f *fakeEngine) run(thread *models.Thread, progress chan<- tasks.ProgressUpdate) error {
	if f.err != nil {
		thread.SetStatus(models.StatusFailed)
		return f.err
	}
	post := models.NewPublishedPost("42", "hi", 0, "", 0, thread.UpdatedAt())
	progress <- tasks.ProgressUpdate{Phase: tasks.PublishItem, Step: 1, Total: 1, Fraction: 1, Data: post}
	thread.SetStatus(models.StatusPosted)
	return nil
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// drive runs cmd and feeds its messages back into the model until no command is left.
func drive(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	for range 20 {
		if cmd == nil {
			return
		}
		msg := cmd()
		if _, ok := msg.(Msg); !ok {
			return
		}
		_, cmd = m.Update(msg)
	}
}

func newTestModel(t *testing.T, lister *staticLister, engine *fakeEngine) *Model {
	t.Helper()
	m := NewModel(context.Background(), lister, engine, 280)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	drive(t, m, m.Init())
	return m
}

func TestModel(t *testing.T) {
	t.Run("lists drafts", func(t *testing.T) {
		th := models.NewThread("hello world", "second")
		th.SetSequence(3)
		m := newTestModel(t, &staticLister{threads: []*models.Thread{th}}, &fakeEngine{})

		if m.State() != DraftListView {
			t.Fatalf("expected draft list, got %v", m.State())
		}
		if !strings.Contains(m.View(), "#3 hello world") {
			t.Errorf("expected thread title in view, got:\n%s", m.View())
		}
	})

	t.Run("load error", func(t *testing.T) {
		m := NewModel(context.Background(), &staticLister{err: errors.New("db locked")}, &fakeEngine{}, 0)
		msg := m.Init()()
		m.Update(msg)
		if !strings.Contains(m.View(), "db locked") {
			t.Errorf("expected error in view, got:\n%s", m.View())
		}
	})

	t.Run("post flow", func(t *testing.T) {
		th := models.NewThread("hello world")
		engine := &fakeEngine{}
		m := newTestModel(t, &staticLister{threads: []*models.Thread{th}}, engine)

		m.Update(keyMsg("enter"))
		if m.State() != PreviewView {
			t.Fatalf("expected preview, got %v", m.State())
		}
		if !strings.Contains(m.View(), "11/280") {
			t.Errorf("expected weighted count in preview, got:\n%s", m.View())
		}

		m.Update(keyMsg("enter"))
		if m.State() != ConfirmView {
			t.Fatalf("expected confirm, got %v", m.State())
		}
		if !strings.Contains(m.View(), "Post thread") {
			t.Errorf("expected post prompt, got:\n%s", m.View())
		}

		_, cmd := m.Update(keyMsg("y"))
		if m.State() != PostingView {
			t.Fatalf("expected posting, got %v", m.State())
		}
		drive(t, m, cmd)

		if m.State() != ResultView {
			t.Fatalf("expected result, got %v", m.State())
		}
		if engine.posted != 1 || engine.retried != 0 {
			t.Errorf("expected one post, got %d posts %d retries", engine.posted, engine.retried)
		}
		if !strings.Contains(m.View(), "https://x.com/i/web/status/42") {
			t.Errorf("expected link in result, got:\n%s", m.View())
		}

		m.Update(keyMsg("r"))
		if m.State() != DraftListView {
			t.Errorf("expected draft list after restart, got %v", m.State())
		}
	})

	t.Run("failed thread is retried", func(t *testing.T) {
		th := models.NewThread("again")
		th.SetStatus(models.StatusFailed)
		th.SetFailureMessage("server error")
		engine := &fakeEngine{err: errors.New("still broken")}
		m := newTestModel(t, &staticLister{threads: []*models.Thread{th}}, engine)

		m.Update(keyMsg("enter"))
		if !strings.Contains(m.View(), "Last attempt failed: server error") {
			t.Errorf("expected failure note, got:\n%s", m.View())
		}
		m.Update(keyMsg("enter"))
		if !strings.Contains(m.View(), "Retry thread") {
			t.Errorf("expected retry prompt, got:\n%s", m.View())
		}

		_, cmd := m.Update(keyMsg("y"))
		drive(t, m, cmd)

		if engine.retried != 1 || engine.posted != 0 {
			t.Errorf("expected one retry, got %d posts %d retries", engine.posted, engine.retried)
		}
		if !strings.Contains(m.View(), "Posting failed: still broken") {
			t.Errorf("expected failure in result, got:\n%s", m.View())
		}
	})

	t.Run("interrupted thread is retried", func(t *testing.T) {
		thread := models.NewThread("x", "y")
		thread.SetStatus(models.StatusPosting)
		engine := &fakeEngine{}
		m := newTestModel(t, &staticLister{threads: []*models.Thread{thread}}, engine)

		m.Update(keyMsg("enter"))
		if !strings.Contains(m.View(), "interrupted") {
			t.Errorf("expected interrupted notice, got:\n%s", m.View())
		}
		m.Update(keyMsg("enter"))
		if !strings.Contains(m.View(), "Retry thread") {
			t.Errorf("expected retry prompt, got:\n%s", m.View())
		}
		_, cmd := m.Update(keyMsg("y"))
		drive(t, m, cmd)

		if engine.retried != 1 || engine.posted != 0 {
			t.Errorf("expected one retry, got %d posts %d retries", engine.posted, engine.retried)
		}
	})

	t.Run("empty thread cannot be confirmed", func(t *testing.T) {
		m := newTestModel(t, &staticLister{threads: []*models.Thread{models.NewThread()}}, &fakeEngine{})

		m.Update(keyMsg("enter"))
		m.Update(keyMsg("enter"))
		if m.State() != PreviewView {
			t.Errorf("expected to stay in preview, got %v", m.State())
		}

		m.Update(keyMsg("esc"))
		if m.State() != DraftListView {
			t.Errorf("expected draft list after back, got %v", m.State())
		}
	})

	t.Run("confirm can be cancelled", func(t *testing.T) {
		engine := &fakeEngine{}
		m := newTestModel(t, &staticLister{threads: []*models.Thread{models.NewThread("x")}}, engine)

		m.Update(keyMsg("enter"))
		m.Update(keyMsg("enter"))
		m.Update(keyMsg("n"))
		if m.State() != PreviewView || engine.posted != 0 {
			t.Errorf("expected preview without posting, got %v", m.State())
		}
	})
}

func TestUsageStyle(t *testing.T) {
	tests := []struct {
		name string
		text string
		want lipgloss.Style
	}{
		{"short", "hello", styles.muted},
		{"near limit", strings.Repeat("a", 9), styles.warn},
		{"over limit", strings.Repeat("a", 11), styles.err},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := styles.usage(counter.Summarize(tt.text, 10))
			if got.GetForeground() != tt.want.GetForeground() {
				t.Errorf("expected %v, got %v", tt.want.GetForeground(), got.GetForeground())
			}
		})
	}
}
