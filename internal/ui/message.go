package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/bookx/internal/models"
	"github.com/desertthunder/bookx/internal/tasks"
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
	MsgCountsLoaded MsgKind = iota
	MsgBooksLoaded
	MsgDetailLoaded
	MsgProgressUpdate
	MsgSyncComplete
	MsgLoginDone
)

type countsLoaded struct {
	counts map[models.ListType]int
	err    error
}

type booksLoaded struct {
	listType models.ListType
	books    []models.Book
	err      error
}

type detailLoaded struct {
	book models.Book
	bib  *models.Bibliography
	err  error
}

type syncComplete struct {
	result *tasks.SyncResult
	err    error
}

// countsLoadedMsg is the constructor for [MsgCountsLoaded]
func countsLoadedMsg(counts map[models.ListType]int, err error) Msg {
	return Msg{kind: MsgCountsLoaded, data: countsLoaded{counts, err}}
}

// booksLoadedMsg is the constructor for [MsgBooksLoaded]
func booksLoadedMsg(lt models.ListType, books []models.Book, err error) Msg {
	return Msg{kind: MsgBooksLoaded, data: booksLoaded{lt, books, err}}
}

// detailLoadedMsg is the constructor for [MsgDetailLoaded]
func detailLoadedMsg(book models.Book, bib *models.Bibliography, err error) Msg {
	return Msg{kind: MsgDetailLoaded, data: detailLoaded{book, bib, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// syncCompleteMsg is the constructor for [MsgSyncComplete]
func syncCompleteMsg(result *tasks.SyncResult, err error) Msg {
	return Msg{kind: MsgSyncComplete, data: syncComplete{result, err}}
}

// loginDoneMsg is the constructor for [MsgLoginDone]
func loginDoneMsg(err error) Msg {
	return Msg{kind: MsgLoginDone, data: err}
}
