// ABOUTME: Tests for the conversation view-model state machine
// ABOUTME: Covers send/reset outcomes, guards, busy serialization and subscriptions

package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/secure-agent/internal/agentclient"
)

// fakeClient is a scripted AgentClient that records every call.
type fakeClient struct {
	mu      sync.Mutex
	queries []string
	resets  int

	queryFn func(ctx context.Context, text string) (string, error)
	resetFn func(ctx context.Context) (string, error)
}

func (f *fakeClient) QueryAgent(ctx context.Context, text string) (string, error) {
	f.mu.Lock()
	f.queries = append(f.queries, text)
	fn := f.queryFn
	f.mu.Unlock()
	if fn == nil {
		return "", errors.New("unexpected query")
	}
	return fn(ctx, text)
}

func (f *fakeClient) ResetAgent(ctx context.Context) (string, error) {
	f.mu.Lock()
	f.resets++
	fn := f.resetFn
	f.mu.Unlock()
	if fn == nil {
		return "", errors.New("unexpected reset")
	}
	return fn(ctx)
}

func (f *fakeClient) calls() ([]string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...), f.resets
}

func replyWith(msg string) func(context.Context, string) (string, error) {
	return func(context.Context, string) (string, error) { return msg, nil }
}

func ackWith(msg string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return msg, nil }
}

// seedTranscript sends n queries through a client that always answers "ok".
func seedTranscript(t *testing.T, vm *ViewModel, fc *fakeClient, n int) {
	t.Helper()
	prev := fc.queryFn
	fc.queryFn = replyWith("ok")
	for i := 0; i < n; i++ {
		require.NoError(t, vm.Send(context.Background(), "seed"))
	}
	fc.queryFn = prev
}

func TestSend_AppendsExchangeAndClearsDraft(t *testing.T) {
	fc := &fakeClient{queryFn: replyWith("hi")}
	vm := New(fc)
	vm.SetDraft("hello")

	err := vm.Send(context.Background(), "hello")

	require.NoError(t, err)
	snap := vm.Snapshot()
	assert.Equal(t, []Exchange{{Query: "hello", Message: "hi"}}, snap.Transcript)
	assert.Equal(t, "", snap.Draft)
	assert.Empty(t, snap.LastError)
	assert.False(t, snap.Busy)
	assert.Equal(t, StateIdle, snap.State)
}

func TestSend_AppendsToEndInOrder(t *testing.T) {
	fc := &fakeClient{queryFn: func(_ context.Context, text string) (string, error) {
		return "re: " + text, nil
	}}
	vm := New(fc)

	for _, q := range []string{"one", "two", "three"} {
		require.NoError(t, vm.Send(context.Background(), q))
	}

	assert.Equal(t, []Exchange{
		{Query: "one", Message: "re: one"},
		{Query: "two", Message: "re: two"},
		{Query: "three", Message: "re: three"},
	}, vm.Snapshot().Transcript)
}

func TestSend_UnauthorizedKeepsTranscript(t *testing.T) {
	fc := &fakeClient{}
	vm := New(fc)
	seedTranscript(t, vm, fc, 2)
	before := vm.Snapshot().Transcript

	fc.queryFn = func(context.Context, string) (string, error) {
		return "", &agentclient.UnauthorizedError{Message: "token expired"}
	}
	vm.SetDraft("x")

	err := vm.Send(context.Background(), "x")

	require.NoError(t, err)
	snap := vm.Snapshot()
	assert.Equal(t, "token expired", snap.LastError)
	assert.Equal(t, before, snap.Transcript)
	assert.Equal(t, "x", snap.Draft, "draft is kept so the user can retry")
	assert.False(t, snap.Busy)
}

func TestSend_RequestErrorMessage(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{
			name:    "underlying message",
			err:     &agentclient.RequestError{Message: "server returned status 500", StatusCode: 500},
			wantMsg: "server returned status 500",
		},
		{
			name:    "client fallback message",
			err:     &agentclient.RequestError{Message: agentclient.MsgQueryFailed},
			wantMsg: agentclient.MsgQueryFailed,
		},
		{
			name:    "empty message",
			err:     &agentclient.RequestError{},
			wantMsg: msgSendFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeClient{queryFn: func(context.Context, string) (string, error) { return "", tt.err }}
			vm := New(fc)

			require.NoError(t, vm.Send(context.Background(), "hello"))

			snap := vm.Snapshot()
			assert.Equal(t, tt.wantMsg, snap.LastError)
			assert.Empty(t, snap.Transcript)
		})
	}
}

func TestSend_BlankQueryIsNoop(t *testing.T) {
	for _, q := range []string{"", "   ", "\t\n "} {
		fc := &fakeClient{queryFn: replyWith("should not be called")}
		vm := New(fc)
		vm.SetDraft(q)
		before := vm.Snapshot()

		err := vm.Send(context.Background(), q)

		assert.ErrorIs(t, err, ErrEmptyQuery)
		assert.Equal(t, before, vm.Snapshot())
		queries, _ := fc.calls()
		assert.Empty(t, queries, "no network call for %q", q)
	}
}

func TestSend_BlankQueryKeepsPreviousError(t *testing.T) {
	fc := &fakeClient{queryFn: func(context.Context, string) (string, error) {
		return "", &agentclient.RequestError{Message: "boom"}
	}}
	vm := New(fc)
	require.NoError(t, vm.Send(context.Background(), "hello"))

	_ = vm.Send(context.Background(), "  ")

	assert.Equal(t, "boom", vm.Snapshot().LastError)
}

func TestSend_ClearsErrorOnNewAttempt(t *testing.T) {
	fc := &fakeClient{queryFn: func(context.Context, string) (string, error) {
		return "", &agentclient.RequestError{Message: "boom"}
	}}
	vm := New(fc)
	require.NoError(t, vm.Send(context.Background(), "hello"))
	require.Equal(t, "boom", vm.Snapshot().LastError)

	started := make(chan struct{})
	release := make(chan struct{})
	fc.queryFn = func(context.Context, string) (string, error) {
		close(started)
		<-release
		return "fine", nil
	}

	done := make(chan error, 1)
	go func() { done <- vm.Send(context.Background(), "again") }()
	<-started

	assert.Empty(t, vm.Snapshot().LastError, "error is cleared when the call starts")

	close(release)
	require.NoError(t, <-done)
	assert.Empty(t, vm.Snapshot().LastError)
}

func TestSubmit_SendsDraft(t *testing.T) {
	fc := &fakeClient{queryFn: replyWith("pong")}
	vm := New(fc)
	vm.SetDraft("ping")

	require.NoError(t, vm.Submit(context.Background()))

	queries, _ := fc.calls()
	assert.Equal(t, []string{"ping"}, queries)
	assert.Equal(t, []Exchange{{Query: "ping", Message: "pong"}}, vm.Snapshot().Transcript)
	assert.Empty(t, vm.Snapshot().Draft)
}

func TestReset_ReplacesTranscriptWithConfirmation(t *testing.T) {
	fc := &fakeClient{resetFn: ackWith("cleared")}
	vm := New(fc)
	seedTranscript(t, vm, fc, 3)
	require.Len(t, vm.Snapshot().Transcript, 3)

	err := vm.Reset(context.Background())

	require.NoError(t, err)
	snap := vm.Snapshot()
	require.Len(t, snap.Transcript, 1)
	assert.Equal(t, "cleared", snap.Transcript[0].Message)
	assert.Equal(t, "", snap.Transcript[0].Query)
	assert.Empty(t, snap.LastError)
	assert.False(t, snap.Busy)
}

func TestReset_AlwaysLeavesOneEntry(t *testing.T) {
	for _, n := range []int{0, 1, 7} {
		fc := &fakeClient{resetFn: ackWith("cleared")}
		vm := New(fc)
		seedTranscript(t, vm, fc, n)

		require.NoError(t, vm.Reset(context.Background()))

		assert.Len(t, vm.Snapshot().Transcript, 1, "after %d entries", n)
	}
}

func TestReset_Policies(t *testing.T) {
	tests := []struct {
		policy ResetPolicy
		want   []Exchange
	}{
		{policy: ResetReplaceWithAck, want: []Exchange{{Query: "", Message: "cleared"}}},
		{policy: ResetReplaceWithDraft, want: []Exchange{{Query: "half typed", Message: "cleared"}}},
		{policy: ResetClear, want: []Exchange{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			fc := &fakeClient{resetFn: ackWith("cleared")}
			vm := New(fc, WithResetPolicy(tt.policy))
			seedTranscript(t, vm, fc, 2)
			vm.SetDraft("half typed")

			require.NoError(t, vm.Reset(context.Background()))

			snap := vm.Snapshot()
			assert.Equal(t, tt.want, snap.Transcript)
			assert.Equal(t, "half typed", snap.Draft, "reset keeps the draft")
		})
	}
}

func TestReset_FailureKeepsTranscript(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{name: "unauthorized with detail", err: &agentclient.UnauthorizedError{Message: "Token expired"}, wantMsg: "Token expired"},
		{name: "unauthorized generic", err: &agentclient.UnauthorizedError{Message: agentclient.MsgUnauthorized}, wantMsg: agentclient.MsgUnauthorized},
		{name: "request fallback", err: &agentclient.RequestError{Message: agentclient.MsgResetFailed}, wantMsg: agentclient.MsgResetFailed},
		{name: "empty message", err: &agentclient.RequestError{}, wantMsg: msgResetFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeClient{resetFn: func(context.Context) (string, error) { return "", tt.err }}
			vm := New(fc)
			seedTranscript(t, vm, fc, 2)
			before := vm.Snapshot().Transcript

			require.NoError(t, vm.Reset(context.Background()))

			snap := vm.Snapshot()
			assert.Equal(t, tt.wantMsg, snap.LastError)
			assert.Equal(t, before, snap.Transcript)
			assert.False(t, snap.Busy)
		})
	}
}

func TestBusy_RejectsOverlappingCalls(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	fc := &fakeClient{
		queryFn: func(context.Context, string) (string, error) {
			close(started)
			<-release
			return "done", nil
		},
		resetFn: ackWith("never"),
	}
	vm := New(fc)

	done := make(chan error, 1)
	go func() { done <- vm.Send(context.Background(), "slow") }()
	<-started

	snap := vm.Snapshot()
	assert.True(t, snap.Busy)
	assert.Equal(t, StateSending, snap.State)

	assert.ErrorIs(t, vm.Send(context.Background(), "second"), ErrBusy)
	assert.ErrorIs(t, vm.Reset(context.Background()), ErrBusy)

	close(release)
	require.NoError(t, <-done)

	snap = vm.Snapshot()
	assert.False(t, snap.Busy)
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, []Exchange{{Query: "slow", Message: "done"}}, snap.Transcript)

	queries, resets := fc.calls()
	assert.Equal(t, []string{"slow"}, queries)
	assert.Zero(t, resets)
}

func TestBusy_DuringReset(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	fc := &fakeClient{resetFn: func(context.Context) (string, error) {
		close(started)
		<-release
		return "cleared", nil
	}}
	vm := New(fc)

	done := make(chan error, 1)
	go func() { done <- vm.Reset(context.Background()) }()
	<-started

	snap := vm.Snapshot()
	assert.True(t, snap.Busy)
	assert.Equal(t, StateResetting, snap.State)
	assert.ErrorIs(t, vm.Send(context.Background(), "hello"), ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, vm.Snapshot().Busy)
}

func TestBusy_ConcurrentSendsIssueOneCall(t *testing.T) {
	release := make(chan struct{})
	fc := &fakeClient{queryFn: func(context.Context, string) (string, error) {
		<-release
		return "ok", nil
	}}
	vm := New(fc)

	const callers = 16
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() { results <- vm.Send(context.Background(), "hello") }()
	}

	// All but one caller must bounce off the busy guard.
	busy := 0
	for i := 0; i < callers-1; i++ {
		if errors.Is(<-results, ErrBusy) {
			busy++
		}
	}
	close(release)
	require.NoError(t, <-results)

	assert.Equal(t, callers-1, busy)
	queries, _ := fc.calls()
	assert.Len(t, queries, 1)
	assert.Len(t, vm.Snapshot().Transcript, 1)
}

func TestSend_PassesContextToClient(t *testing.T) {
	type ctxKey struct{}
	var got any
	fc := &fakeClient{queryFn: func(ctx context.Context, _ string) (string, error) {
		got = ctx.Value(ctxKey{})
		return "ok", nil
	}}
	vm := New(fc)

	ctx := context.WithValue(context.Background(), ctxKey{}, "marker")
	require.NoError(t, vm.Send(ctx, "hello"))

	assert.Equal(t, "marker", got)
}

func TestSubscribe_ReceivesCurrentAndChanges(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	fc := &fakeClient{queryFn: func(context.Context, string) (string, error) {
		close(started)
		<-release
		return "hi", nil
	}}
	vm := New(fc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := vm.Subscribe(ctx)

	initial := <-updates
	assert.False(t, initial.Busy)
	assert.Empty(t, initial.Transcript)

	done := make(chan error, 1)
	go func() { done <- vm.Send(context.Background(), "hello") }()
	<-started

	busy := receive(t, updates)
	assert.True(t, busy.Busy)
	assert.Greater(t, busy.Version, initial.Version)

	close(release)
	require.NoError(t, <-done)

	final := receive(t, updates)
	assert.False(t, final.Busy)
	assert.Equal(t, []Exchange{{Query: "hello", Message: "hi"}}, final.Transcript)
}

func TestSubscribe_LatestWins(t *testing.T) {
	vm := New(&fakeClient{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := vm.Subscribe(ctx)

	// Nobody reads while these changes happen.
	vm.SetDraft("a")
	vm.SetDraft("ab")
	vm.SetDraft("abc")

	snap := receive(t, updates)
	assert.Equal(t, "abc", snap.Draft)
	assert.Equal(t, vm.Snapshot().Version, snap.Version)
}

func TestSubscribe_ClosedOnCancel(t *testing.T) {
	vm := New(&fakeClient{})

	ctx, cancel := context.WithCancel(context.Background())
	updates := vm.Subscribe(ctx)
	<-updates

	cancel()

	select {
	case _, ok := <-updates:
		assert.False(t, ok, "channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("subscription not closed after cancel")
	}

	// Changes after unsubscribe must not panic on the closed channel.
	vm.SetDraft("still works")
}

func TestSnapshot_IsACopy(t *testing.T) {
	fc := &fakeClient{queryFn: replyWith("hi")}
	vm := New(fc)
	require.NoError(t, vm.Send(context.Background(), "hello"))

	snap := vm.Snapshot()
	snap.Transcript[0].Message = "mutated"

	assert.Equal(t, "hi", vm.Snapshot().Transcript[0].Message)
}

func TestParseResetPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    ResetPolicy
		wantErr bool
	}{
		{in: "", want: ResetReplaceWithAck},
		{in: "replace_with_ack", want: ResetReplaceWithAck},
		{in: "replace_with_draft", want: ResetReplaceWithDraft},
		{in: "clear", want: ResetClear},
		{in: "wipe", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseResetPolicy(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "ParseResetPolicy(%q)", tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "sending", StateSending.String())
	assert.Equal(t, "resetting", StateResetting.String())
	assert.Equal(t, "state(9)", State(9).String())
}

// receive waits for the next snapshot or fails the test.
func receive(t *testing.T, updates <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-updates:
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}
