// ABOUTME: Conversation view-model holding the transcript, draft, busy flag and last error
// ABOUTME: Serializes send/reset so exactly one agent call is in flight at a time

package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Guard errors. Neither is a call failure: the state is left untouched.
var (
	ErrBusy       = errors.New("request already in flight")
	ErrEmptyQuery = errors.New("query is empty")
)

// Messages stored when a failure carries no message of its own.
const (
	msgSendFailed  = "An error occurred while fetching the response. Please try again."
	msgResetFailed = "An error occurred while resetting the agent. Please try again."
)

// AgentClient is the remote agent service as seen by the view-model.
type AgentClient interface {
	QueryAgent(ctx context.Context, text string) (string, error)
	ResetAgent(ctx context.Context) (string, error)
}

// State is the view-model's call state.
type State int

const (
	StateIdle State = iota
	StateSending
	StateResetting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateResetting:
		return "resetting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Exchange is one query/response pair in the transcript.
type Exchange struct {
	Query   string
	Message string
}

// Snapshot is an immutable copy of the view-model state.
// Version increases with every change, so consumers can drop stale snapshots.
type Snapshot struct {
	Version    uint64
	State      State
	Transcript []Exchange
	Draft      string
	Busy       bool
	LastError  string
}

// ViewModel owns the conversation state for one dashboard session.
type ViewModel struct {
	client AgentClient
	policy ResetPolicy
	logger *slog.Logger

	mu         sync.Mutex
	version    uint64
	state      State
	transcript []Exchange
	draft      string
	lastError  string
	subs       map[string]chan Snapshot
}

// Option configures a ViewModel.
type Option func(*ViewModel)

// WithResetPolicy selects how a successful reset rewrites the transcript.
func WithResetPolicy(p ResetPolicy) Option {
	return func(vm *ViewModel) {
		vm.policy = p
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(vm *ViewModel) {
		if logger != nil {
			vm.logger = logger
		}
	}
}

// New creates an idle view-model with an empty transcript.
func New(client AgentClient, opts ...Option) *ViewModel {
	vm := &ViewModel{
		client: client,
		policy: DefaultResetPolicy,
		logger: slog.Default(),
		subs:   make(map[string]chan Snapshot),
	}
	for _, opt := range opts {
		opt(vm)
	}
	vm.logger = vm.logger.With("component", "dashboard")
	return vm
}

// Snapshot returns the current state.
func (vm *ViewModel) Snapshot() Snapshot {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.snapshotLocked()
}

// SetDraft replaces the draft input text.
func (vm *ViewModel) SetDraft(draft string) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.draft == draft {
		return
	}
	vm.draft = draft
	vm.changedLocked()
}

// Submit sends the current draft.
func (vm *ViewModel) Submit(ctx context.Context) error {
	return vm.Send(ctx, vm.Snapshot().Draft)
}

// Send issues one query. Empty or whitespace-only queries and calls made while
// another call is in flight are rejected without touching the state. Call
// failures are not returned: they land in LastError.
func (vm *ViewModel) Send(ctx context.Context, query string) error {
	if strings.TrimSpace(query) == "" {
		return ErrEmptyQuery
	}
	if _, err := vm.begin(StateSending); err != nil {
		return err
	}

	message, err := vm.client.QueryAgent(ctx, query)

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if err != nil {
		vm.lastError = failureMessage(err, msgSendFailed)
		vm.logger.Warn("query failed", "error", err)
	} else {
		vm.transcript = append(vm.transcript, Exchange{Query: query, Message: message})
		vm.draft = ""
	}
	vm.state = StateIdle
	vm.changedLocked()
	return nil
}

// Reset asks the agent service to forget the conversation. On success the
// transcript is rewritten by the reset policy; on failure it is unchanged.
func (vm *ViewModel) Reset(ctx context.Context) error {
	draft, err := vm.begin(StateResetting)
	if err != nil {
		return err
	}

	message, err := vm.client.ResetAgent(ctx)

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if err != nil {
		vm.lastError = failureMessage(err, msgResetFailed)
		vm.logger.Warn("reset failed", "error", err)
	} else {
		vm.transcript = vm.policy.Apply(draft, message)
	}
	vm.state = StateIdle
	vm.changedLocked()
	return nil
}

// begin moves from idle into next and returns the draft at call time.
// The busy transition happens under the lock before any network I/O.
func (vm *ViewModel) begin(next State) (string, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.state != StateIdle {
		return "", ErrBusy
	}
	vm.state = next
	vm.lastError = ""
	vm.changedLocked()
	return vm.draft, nil
}

// Subscribe returns a channel carrying the current snapshot followed by every
// later change. Delivery is latest-wins: a slow reader skips intermediate
// snapshots but always observes the newest one. The channel is closed when
// ctx is done.
func (vm *ViewModel) Subscribe(ctx context.Context) <-chan Snapshot {
	subID := uuid.New().String()
	ch := make(chan Snapshot, 1)

	vm.mu.Lock()
	ch <- vm.snapshotLocked()
	vm.subs[subID] = ch
	vm.mu.Unlock()

	vm.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		<-ctx.Done()
		vm.unsubscribe(subID)
	}()

	return ch
}

func (vm *ViewModel) unsubscribe(subID string) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	ch, ok := vm.subs[subID]
	if !ok {
		return
	}
	delete(vm.subs, subID)
	close(ch)

	vm.logger.Debug("subscriber removed", "sub_id", subID)
}

// changedLocked bumps the version and publishes. Must hold vm.mu, which also
// keeps publishes in version order.
func (vm *ViewModel) changedLocked() {
	vm.version++
	if len(vm.subs) == 0 {
		return
	}
	snap := vm.snapshotLocked()
	for _, ch := range vm.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		// Replace the stale pending snapshot.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func (vm *ViewModel) snapshotLocked() Snapshot {
	transcript := make([]Exchange, len(vm.transcript))
	copy(transcript, vm.transcript)
	return Snapshot{
		Version:    vm.version,
		State:      vm.state,
		Transcript: transcript,
		Draft:      vm.draft,
		Busy:       vm.state != StateIdle,
		LastError:  vm.lastError,
	}
}

// failureMessage is the user-facing text for a failed call.
func failureMessage(err error, fallback string) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
