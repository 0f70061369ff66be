package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/threadx/internal/models"
	"github.com/desertthunder/threadx/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgThreadsLoaded MsgKind = iota
	MsgProgressUpdate
	MsgPostComplete
)

type threadsLoaded struct {
	threads []*models.Thread
	err     error
}

type postComplete struct {
	thread *models.Thread
	err    error
}

// threadsLoadedMsg is the constructor for [MsgThreadsLoaded]
func threadsLoadedMsg(threads []*models.Thread, err error) Msg {
	return Msg{kind: MsgThreadsLoaded, data: threadsLoaded{threads, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// postCompleteMsg is the constructor for [MsgPostComplete]
func postCompleteMsg(thread *models.Thread, err error) Msg {
	return Msg{kind: MsgPostComplete, data: postComplete{thread, err}}
}
