package ui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/datalens/pkg/client"
	"github.com/go-go-golems/datalens/pkg/dataset"
	"github.com/go-go-golems/datalens/pkg/session"
	"github.com/rs/zerolog/log"
)

type uploadFinishedMsg struct {
	path    string
	dataset *dataset.Dataset
	err     error
}

type chatFinishedMsg struct {
	fileID string
	reply  *client.ChatReply
	err    error
}

type historyLoadedMsg struct {
	fileID  string
	history *client.History
	err     error
}

// Backend turns calls on the analysis service into tea.Cmds that run off the
// event loop and report back with a typed message.
type Backend struct {
	api session.Backend

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	inFlight int
}

// NewBackend creates a Backend whose requests run under ctx. Interrupt
// cancels every request still in flight.
func NewBackend(ctx context.Context, api session.Backend) *Backend {
	ctx, cancel := context.WithCancel(ctx)
	return &Backend{api: api, ctx: ctx, cancel: cancel}
}

func (b *Backend) track() func() {
	b.mu.Lock()
	b.inFlight++
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		b.inFlight--
		b.mu.Unlock()
	}
}

// Upload sends the spreadsheet at path and reports with an uploadFinishedMsg.
func (b *Backend) Upload(path string) tea.Cmd {
	done := b.track()
	return func() tea.Msg {
		defer done()
		ds, err := b.api.Upload(b.ctx, path)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("ui: upload failed")
		}
		return uploadFinishedMsg{path: path, dataset: ds, err: err}
	}
}

// Chat asks message about fileID and reports with a chatFinishedMsg.
func (b *Backend) Chat(fileID, message string) tea.Cmd {
	done := b.track()
	return func() tea.Msg {
		defer done()
		reply, err := b.api.Chat(b.ctx, fileID, message)
		if err != nil {
			log.Error().Err(err).Str("file_id", fileID).Msg("ui: chat failed")
		}
		return chatFinishedMsg{fileID: fileID, reply: reply, err: err}
	}
}

func (b *Backend) History(fileID string) tea.Cmd {
	done := b.track()
	return func() tea.Msg {
		defer done()
		h, err := b.api.History(b.ctx, fileID)
		return historyLoadedMsg{fileID: fileID, history: h, err: err}
	}
}

// Busy reports whether any request is still outstanding.
func (b *Backend) Busy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inFlight > 0
}

// Interrupt cancels every outstanding request.
func (b *Backend) Interrupt() {
	if b.Busy() {
		log.Debug().Msg("ui: interrupting outstanding requests")
	}
	b.cancel()
}
