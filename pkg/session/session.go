package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-go-golems/datalens/pkg/charts"
	"github.com/go-go-golems/datalens/pkg/client"
	"github.com/go-go-golems/datalens/pkg/conversation"
	"github.com/go-go-golems/datalens/pkg/dataset"
	"github.com/go-go-golems/datalens/pkg/typing"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Backend is the remote analysis service.
type Backend interface {
	Upload(ctx context.Context, path string) (*dataset.Dataset, error)
	Chat(ctx context.Context, fileID, message string) (*client.ChatReply, error)
	History(ctx context.Context, fileID string) (*client.History, error)
}

var _ Backend = (*client.Client)(nil)

type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeError
)

// Notice is a transient message for the status line.
type Notice struct {
	Level NoticeLevel
	Text  string
}

func (n Notice) IsZero() bool {
	return n.Text == ""
}

func infoNotice(format string, args ...any) Notice {
	return Notice{Level: NoticeInfo, Text: fmt.Sprintf(format, args...)}
}

func errorNotice(format string, args ...any) Notice {
	return Notice{Level: NoticeError, Text: fmt.Sprintf(format, args...)}
}

// Describe turns an error into text fit for the user.
func Describe(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Reason
	}
	var serr *client.HTTPStatusError
	if errors.As(err, &serr) && serr.Detail != "" {
		return serr.Detail
	}
	return err.Error()
}

// ChatOutcome is what applying a chat response changed.
type ChatOutcome struct {
	// Applied is false when the response belonged to a dataset that is no
	// longer active and was ignored.
	Applied bool
	Step    typing.Step
	Charts  []charts.Chart
	Notice  Notice
}

// Session is the state of one client: the active dataset, its conversation
// and the typing renderer. Methods are called from a single event loop; the
// Begin*/Finish* pairs bracket the network calls made in between.
type Session struct {
	ID string

	store    *conversation.Store
	renderer *typing.Renderer
	progress *Progress
	dataset  *dataset.Dataset

	uploading   bool
	pendingChat string

	logger zerolog.Logger
}

type Settings struct {
	Typing       typing.Policy
	ProgressStep float64
	StoreOptions []conversation.Option
}

func New(s Settings) *Session {
	store := conversation.NewStore(s.StoreOptions...)
	id := uuid.NewString()
	return &Session{
		ID:       id,
		store:    store,
		renderer: typing.NewRenderer(store, s.Typing),
		progress: NewProgress(s.ProgressStep),
		logger:   log.With().Str("session_id", id).Logger(),
	}
}

func (s *Session) Store() *conversation.Store { return s.store }
func (s *Session) Renderer() *typing.Renderer { return s.renderer }
func (s *Session) Progress() *Progress        { return s.progress }
func (s *Session) Dataset() *dataset.Dataset  { return s.dataset }
func (s *Session) Uploading() bool            { return s.uploading }
func (s *Session) Sending() bool              { return s.pendingChat != "" }

// BeginUpload validates path and starts the progress indicator. The caller
// performs Backend.Upload only when it returns nil.
func (s *Session) BeginUpload(path string) error {
	if strings.TrimSpace(path) == "" {
		return &ValidationError{Reason: "choose a file to upload"}
	}
	if err := ValidateFileName(path); err != nil {
		return err
	}
	if s.uploading {
		return &ValidationError{Reason: "an upload is already in progress"}
	}
	s.uploading = true
	s.progress.Start()
	s.logger.Debug().Str("path", path).Msg("session: upload started")
	return nil
}

// FinishUpload applies the upload result. On success the dataset and the
// conversation are replaced; on failure nothing but the progress indicator
// changes.
func (s *Session) FinishUpload(ds *dataset.Dataset, err error) Notice {
	s.uploading = false
	s.progress.Complete()

	if err == nil {
		err = ds.Validate()
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("session: upload failed")
		return errorNotice("Upload failed: %s", Describe(err))
	}

	welcome := ds.Welcome()
	s.renderer.Cancel()
	if err := s.store.Reset(conversation.Message{
		Role:           conversation.RoleAssistant,
		Content:        welcome,
		DisplayContent: welcome,
	}); err != nil {
		s.logger.Error().Err(err).Msg("session: could not reset conversation")
		return errorNotice("Upload failed: %s", err.Error())
	}
	s.store.ClearVisualization()
	s.dataset = ds
	s.pendingChat = ""

	s.logger.Info().
		Str("file_id", ds.ID).
		Str("filename", ds.Filename).
		Int("rows", ds.RowCount).
		Int("columns", len(ds.Columns)).
		Msg("session: dataset loaded")
	return infoNotice("Loaded %s", ds.Filename)
}

// BeginSend appends the user's message and returns the file id the chat
// call must be scoped to.
func (s *Session) BeginSend(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &ValidationError{Reason: "type a message first"}
	}
	if s.dataset == nil {
		return "", &ValidationError{Reason: "upload a dataset before asking questions"}
	}
	if s.pendingChat != "" {
		return "", &ValidationError{Reason: "wait for the current reply to arrive"}
	}

	if _, err := s.store.Append(conversation.Message{
		Role:    conversation.RoleUser,
		Content: text,
	}); err != nil {
		return "", errors.Wrap(err, "append user message")
	}
	s.pendingChat = s.dataset.ID
	return s.dataset.ID, nil
}

func (s *Session) isStale(fileID string) bool {
	return s.dataset == nil || s.dataset.ID != fileID
}

// FinishSend applies a chat response for fileID. Charts are published to the
// visualization slot right away and the prose starts revealing.
func (s *Session) FinishSend(fileID string, reply *client.ChatReply, err error) ChatOutcome {
	if s.isStale(fileID) || s.pendingChat != fileID {
		s.logger.Debug().Str("file_id", fileID).Msg("session: ignoring chat response for inactive dataset")
		return ChatOutcome{}
	}
	s.pendingChat = ""

	if err == nil && reply == nil {
		err = errors.New("empty reply")
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("file_id", fileID).Msg("session: chat failed")
		s.renderer.Cancel()
		apology := fmt.Sprintf("Sorry, I couldn't answer that: %s. Please try again.", strings.TrimSuffix(Describe(err), "."))
		if _, aerr := s.store.Append(conversation.Message{
			Role:           conversation.RoleAssistant,
			Content:        apology,
			DisplayContent: apology,
		}); aerr != nil {
			s.logger.Error().Err(aerr).Msg("session: could not append apology")
		}
		return ChatOutcome{Applied: true, Notice: errorNotice("Request failed: %s", Describe(err))}
	}

	cs, display := charts.Parse(reply.Analysis)
	if len(cs) > 0 {
		s.store.PublishCharts(cs)
	}

	s.renderer.Cancel()
	step, serr := s.renderer.Start(reply.Analysis, display, cs)
	if serr != nil {
		s.logger.Error().Err(serr).Msg("session: could not start reveal, showing reply at once")
		if _, aerr := s.store.Append(conversation.Message{
			Role:           conversation.RoleAssistant,
			Content:        reply.Analysis,
			DisplayContent: display,
			Charts:         cs,
		}); aerr != nil {
			s.logger.Error().Err(aerr).Msg("session: could not append reply")
		}
		return ChatOutcome{Applied: true, Charts: cs, Step: typing.Step{State: typing.StateDone, Scroll: true}}
	}

	outcome := ChatOutcome{Applied: true, Step: step, Charts: cs}
	if len(cs) > 0 {
		outcome.Notice = infoNotice("%d chart(s) added to the gallery", len(cs))
	}
	return outcome
}

// RestoreHistory replaces the conversation with the backend's record of it.
func (s *Session) RestoreHistory(fileID string, h *client.History, err error) Notice {
	if s.isStale(fileID) {
		return Notice{}
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("file_id", fileID).Msg("session: history failed")
		return errorNotice("Could not load history: %s", Describe(err))
	}
	if h == nil || len(h.Entries) == 0 {
		return infoNotice("No history for %s yet", s.dataset.Filename)
	}

	msgs := make([]conversation.Message, 0, len(h.Entries))
	var latest []charts.Chart
	for _, e := range h.Entries {
		m := conversation.Message{
			Role:      conversation.Role(e.Role),
			Content:   e.Content,
			Timestamp: e.Timestamp,
		}
		if m.Role == conversation.RoleAssistant {
			cs, display := charts.Parse(e.Content)
			m.DisplayContent = display
			m.Charts = cs
			if len(cs) > 0 {
				latest = cs
			}
		}
		msgs = append(msgs, m)
	}

	s.renderer.Cancel()
	if rerr := s.store.Reset(msgs...); rerr != nil {
		// the backend's timestamps collide; fall back to local ones
		for i := range msgs {
			msgs[i].Timestamp = time.Time{}
		}
		if rerr = s.store.Reset(msgs...); rerr != nil {
			return errorNotice("Could not load history: %s", rerr.Error())
		}
	}
	if latest != nil {
		s.store.PublishCharts(latest)
	} else {
		s.store.ClearVisualization()
	}
	return infoNotice("Restored %d messages", len(msgs))
}

// Close completes any reveal still in progress.
func (s *Session) Close() {
	s.renderer.Cancel()
}
