// Package dashboard implements the conversation view-model behind the chat
// dashboard.
//
// # State Machine
//
// The view-model is Idle, Sending or Resetting. Send and Reset each perform
// exactly one agent call:
//
//	Idle --Send(q)--> Sending --ok--> Idle   (transcript += {q, reply}; draft cleared)
//	                          --err-> Idle   (LastError set; transcript unchanged)
//	Idle --Reset()--> Resetting --ok--> Idle (transcript rewritten by ResetPolicy)
//	                            --err-> Idle (LastError set; transcript unchanged)
//
// Busy is set under the view-model lock before the call begins and cleared
// under the same lock after it completes, so a second call started in
// between returns ErrBusy. Empty or whitespace-only queries return
// ErrEmptyQuery and issue no call.
//
// # Observing State
//
// Renderers either poll Snapshot or Subscribe for change notifications:
//
//	updates := vm.Subscribe(ctx)
//	for snap := range updates {
//		render(snap)
//	}
package dashboard
