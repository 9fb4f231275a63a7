// Package store implements the streaming session state store: the single
// source of truth for a plan document's message log, selection, execution
// flags, planning status, and settings, with per-channel change
// notification.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/planstudio-ai/planstudio/internal/event"
	"github.com/planstudio-ai/planstudio/internal/logging"
	"github.com/planstudio-ai/planstudio/internal/planner"
	"github.com/planstudio-ai/planstudio/internal/settings"
	"github.com/planstudio-ai/planstudio/pkg/types"
)

// ErrNotImplemented marks operations exposed as extension points that
// have no implementation yet. Distinct from a runtime failure; check
// with errors.Is.
var ErrNotImplemented = errors.New("not implemented")

// State is the document lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateLoaded  State = "loaded"
	StateError   State = "error"
)

// ResourceClient is what the store needs from the remote project
// resource.
type ResourceClient interface {
	Fetch(ctx context.Context, locator string) (*types.ProjectDocument, error)
	Store(ctx context.Context, locator string, doc *types.ProjectDocument) error
}

// SessionLauncher opens planning sessions against the backend.
type SessionLauncher interface {
	Open(ctx context.Context, req types.PlanRequest, h planner.Handler) planner.Session
}

// Store owns a plan document. All mutation goes through its typed
// methods; every state change publishes on exactly the channels that
// concern it, after the state is settled. Listener payloads are
// snapshots and must be treated as read-only.
type Store struct {
	mu       sync.Mutex
	bus      *event.Bus
	resource ResourceClient
	launcher SessionLauncher
	settings settings.Repository
	log      zerolog.Logger

	state    State
	locator  string
	messages []types.Message
	dirty    bool

	selectedKey       string
	selectedAutomated bool

	execRunning bool
	execSteps   []types.ExecutionStep

	// generation identifies the active planning session. Each Plan call
	// bumps it; callbacks carrying an older generation are dropped, so a
	// superseded session can never mutate state owned by its successor.
	generation uint64
	session    planner.Session
}

// New creates a store over its collaborators. The settings repository
// was already read at construction by its own constructor; reads through
// Setting are synchronous.
func New(resource ResourceClient, launcher SessionLauncher, repo settings.Repository) *Store {
	return &Store{
		bus:      event.NewBus(),
		resource: resource,
		launcher: launcher,
		settings: repo,
		log:      logging.ForComponent("store"),

		state:             StateIdle,
		selectedAutomated: true,
	}
}

// Close shuts down the store's event bus.
func (s *Store) Close() error {
	return s.bus.Close()
}

// emit publishes events synchronously, in order, outside the store
// mutex. Each payload is a snapshot taken while the mutex was held.
func (s *Store) emit(events ...event.Event) {
	for _, e := range events {
		s.bus.PublishSync(e)
	}
}

func (s *Store) loadedEventLocked() event.Event {
	return event.Event{
		Type: event.DocumentLoaded,
		Data: event.DocumentLoadedData{
			State:    string(s.state),
			Locator:  s.locator,
			Messages: types.CloneMessages(s.messages),
			Dirty:    s.dirty,
		},
	}
}

func (s *Store) executionEventLocked() event.Event {
	steps := make([]types.ExecutionStep, len(s.execSteps))
	copy(steps, s.execSteps)
	return event.Event{
		Type: event.ExecutionUpdated,
		Data: event.ExecutionData{Running: s.execRunning, Steps: steps},
	}
}

func (s *Store) selectionEventLocked() event.Event {
	return event.Event{
		Type: event.SelectionChanged,
		Data: event.SelectionData{MessageKey: s.selectedKey, Automated: s.selectedAutomated},
	}
}

func planningEvent(data types.PlanningEvent) event.Event {
	return event.Event{Type: event.PlanningUpdated, Data: event.PlanningData(data)}
}

// Load resets the log, fetches the document stored under locator, and
// populates the store from the response.
//
// Overlapping Load calls are not coalesced: each call resets state, and
// whichever response arrives last wins. Callers must avoid firing
// concurrent loads; the store documents rather than enforces this.
func (s *Store) Load(ctx context.Context, locator string) error {
	s.mu.Lock()
	s.state = StateLoading
	s.locator = locator
	s.messages = nil
	s.dirty = false
	loading := s.loadedEventLocked()
	s.mu.Unlock()
	s.emit(loading)

	doc, err := s.resource.Fetch(ctx, locator)
	if err != nil {
		s.mu.Lock()
		s.state = StateError
		failed := s.loadedEventLocked()
		s.mu.Unlock()
		s.emit(failed)

		s.log.Error().Err(err).Str("locator", locator).Msg("load failed")
		return fmt.Errorf("load project %q: %w", locator, err)
	}

	s.LoadProject(doc, locator)
	return nil
}

// LoadProject populates the store synchronously from an already-fetched
// document: the log is replaced when the document carries messages,
// selection and the dirty flag are cleared, execution is reset, and
// loaded listeners are notified.
func (s *Store) LoadProject(doc *types.ProjectDocument, locator string) {
	s.mu.Lock()
	// Loading supersedes any in-flight session.
	s.generation++
	s.session = nil
	if doc != nil && doc.Messages != nil {
		s.messages = types.CloneMessages(doc.Messages)
	}
	s.state = StateLoaded
	s.locator = locator
	s.dirty = false
	s.selectedKey = ""
	s.selectedAutomated = true
	s.execRunning = false
	s.execSteps = nil
	loaded := s.loadedEventLocked()
	s.mu.Unlock()

	s.emit(loaded)
}

// SetMessages replaces the message log. This and UpdateMessages are the
// only sanctioned mutation paths for the log; both mark the document
// dirty and notify loaded listeners.
func (s *Store) SetMessages(messages []types.Message) {
	s.UpdateMessages(func([]types.Message) []types.Message {
		return messages
	})
}

// UpdateMessages applies a pure updater to the current log. The updater
// must not retain or mutate its argument.
func (s *Store) UpdateMessages(updater func(old []types.Message) []types.Message) {
	s.mu.Lock()
	loaded := s.applyMessagesLocked(updater(types.CloneMessages(s.messages)))
	s.mu.Unlock()

	s.emit(loaded)
}

// applyMessagesLocked installs a new log, assigning keys and creation
// times to entries that lack them, and returns the loaded event to emit.
func (s *Store) applyMessagesLocked(messages []types.Message) event.Event {
	next := types.CloneMessages(messages)
	for i := range next {
		if next[i].Key == "" {
			next[i].Key = newKey()
		}
		if next[i].Time.Created == 0 {
			next[i].Time.Created = time.Now().UnixMilli()
		}
	}
	s.messages = next
	s.dirty = true
	return s.loadedEventLocked()
}

// SelectMessage records an explicit selection. An empty key means "no
// selection, eligible for auto-follow": it re-arms automated selection.
func (s *Store) SelectMessage(key string) {
	s.mu.Lock()
	s.selectedKey = key
	s.selectedAutomated = key == ""
	changed := s.selectionEventLocked()
	s.mu.Unlock()

	s.emit(changed)
}

// AutoselectMessage selects key only while the current selection is
// unset or was itself automated; it never overrides a user's explicit
// pick.
func (s *Store) AutoselectMessage(key string) {
	s.mu.Lock()
	e, ok := s.autoselectLocked(key)
	s.mu.Unlock()

	if ok {
		s.emit(e)
	}
}

func (s *Store) autoselectLocked(key string) (event.Event, bool) {
	if s.selectedKey != "" && !s.selectedAutomated {
		return event.Event{}, false
	}
	if s.selectedKey == key {
		return event.Event{}, false
	}
	s.selectedKey = key
	s.selectedAutomated = true
	return s.selectionEventLocked(), true
}

// Plan starts a new planning session seeded with history, superseding
// any session still in flight: the old session's callbacks are ignored
// from this point on. The seed history immediately replaces the log.
// Returns the session handle.
func (s *Store) Plan(ctx context.Context, history []types.Message, plannerID string) planner.Session {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.session = nil

	loaded := s.applyMessagesLocked(history)

	req := types.PlanRequest{
		PlannerID: plannerID,
		History:   types.CloneMessages(s.messages),
	}
	sess := s.launcher.Open(ctx, req, &sessionHandler{store: s, generation: gen})
	s.session = sess
	s.execRunning = true
	s.execSteps = nil

	execution := s.executionEventLocked()
	status := planningEvent(types.PlanningEvent{Type: types.PlanningStatus, Running: true})
	s.mu.Unlock()

	s.emit(loaded, execution, status)
	sess.Run()
	return sess
}

// Save serializes the log to the remote project resource. It is a no-op
// while the document is clean. Save must not be called concurrently
// with itself; if it is, the last write wins. The same rule applies to
// mutations that land while a save is in flight (a streamed step, a
// local edit): they are absent from the written snapshot, and the
// completing save still clears the dirty flag, so they stay unsaved
// until a later mutation marks the document dirty again.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	locator := s.locator
	doc := &types.ProjectDocument{Messages: types.CloneMessages(s.messages)}
	s.mu.Unlock()

	if err := s.resource.Store(ctx, locator, doc); err != nil {
		s.mu.Lock()
		s.state = StateError
		failed := s.loadedEventLocked()
		s.mu.Unlock()
		s.emit(failed)

		s.log.Error().Err(err).Str("locator", locator).Msg("save failed")
		return fmt.Errorf("save project %q: %w", locator, err)
	}

	s.mu.Lock()
	s.dirty = false
	saved := s.loadedEventLocked()
	s.mu.Unlock()
	s.emit(saved)
	return nil
}

// Verify is an extension point for plan verification. Not implemented.
func (s *Store) Verify(key string) error {
	return fmt.Errorf("verify message %q: %w", key, ErrNotImplemented)
}

// Run is an extension point for plan execution. Not implemented.
func (s *Store) Run(key string) error {
	return fmt.Errorf("run message %q: %w", key, ErrNotImplemented)
}

// SetSetting writes one settings key through to persistence and
// notifies settings listeners synchronously.
func (s *Store) SetSetting(key string, value any) error {
	if err := s.settings.Set(key, value); err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	s.emit(event.Event{
		Type: event.SettingsChanged,
		Data: event.SettingsData{Key: key, Value: value},
	})
	return nil
}

// Setting reads one settings key synchronously.
func (s *Store) Setting(key string) (any, bool) {
	return s.settings.Get(key)
}

// ObserveExternalSettings republishes edits made to the settings file
// outside this process onto the settings channel. Blocks until ctx is
// done; repositories without watch support return immediately.
func (s *Store) ObserveExternalSettings(ctx context.Context) error {
	w, ok := s.settings.(interface {
		Watch(context.Context, func(key string, value any)) error
	})
	if !ok {
		return nil
	}
	return w.Watch(ctx, func(key string, value any) {
		s.emit(event.Event{
			Type: event.SettingsChanged,
			Data: event.SettingsData{Key: key, Value: value, External: true},
		})
	})
}

// HighlightProblem publishes a problem pointer to its listeners.
func (s *Store) HighlightProblem(p types.Problem) {
	s.emit(event.Event{Type: event.ProblemHighlighted, Data: event.ProblemData(p)})
}

// Messages returns a snapshot of the log.
func (s *Store) Messages() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.CloneMessages(s.messages)
}

// DocumentState returns the current document lifecycle state.
func (s *Store) DocumentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dirty reports whether the log has unsaved changes.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Selection returns the selected message key ("" when none) and whether
// the selection was automated.
func (s *Store) Selection() (key string, automated bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedKey, s.selectedAutomated
}

// ExecutionRunning reports whether a planning session is in flight.
func (s *Store) ExecutionRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.execRunning
}

// ExecutionSteps returns a snapshot of the execution trace.
func (s *Store) ExecutionSteps() []types.ExecutionStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	steps := make([]types.ExecutionStep, len(s.execSteps))
	copy(steps, s.execSteps)
	return steps
}

// OnLoaded subscribes to document-loaded notifications; the returned
// function unsubscribes. All subscription channels notify in
// registration order.
func (s *Store) OnLoaded(fn func(event.DocumentLoadedData)) func() {
	return s.bus.Subscribe(event.DocumentLoaded, func(e event.Event) {
		if d, ok := e.Data.(event.DocumentLoadedData); ok {
			fn(d)
		}
	})
}

// OnExecution subscribes to execution-state notifications.
func (s *Store) OnExecution(fn func(event.ExecutionData)) func() {
	return s.bus.Subscribe(event.ExecutionUpdated, func(e event.Event) {
		if d, ok := e.Data.(event.ExecutionData); ok {
			fn(d)
		}
	})
}

// OnSelectedMessage subscribes to selection changes.
func (s *Store) OnSelectedMessage(fn func(event.SelectionData)) func() {
	return s.bus.Subscribe(event.SelectionChanged, func(e event.Event) {
		if d, ok := e.Data.(event.SelectionData); ok {
			fn(d)
		}
	})
}

// OnSettingsChanged subscribes to settings changes.
func (s *Store) OnSettingsChanged(fn func(event.SettingsData)) func() {
	return s.bus.Subscribe(event.SettingsChanged, func(e event.Event) {
		if d, ok := e.Data.(event.SettingsData); ok {
			fn(d)
		}
	})
}

// OnPlanning subscribes to planning events: raw steps plus normalized
// status and error events.
func (s *Store) OnPlanning(fn func(types.PlanningEvent)) func() {
	return s.bus.Subscribe(event.PlanningUpdated, func(e event.Event) {
		if d, ok := e.Data.(event.PlanningData); ok {
			fn(types.PlanningEvent(d))
		}
	})
}

// OnHighlightProblem subscribes to problem highlights.
func (s *Store) OnHighlightProblem(fn func(types.Problem)) func() {
	return s.bus.Subscribe(event.ProblemHighlighted, func(e event.Event) {
		if d, ok := e.Data.(event.ProblemData); ok {
			fn(types.Problem(d))
		}
	})
}

func newKey() string {
	return ulid.Make().String()
}
