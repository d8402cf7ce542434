// Package server implements the agent service HTTP API.
//
// # Endpoints
//
//	POST /query       {"query": "..."}        -> {"response": "..."}
//	POST /reset       {}                      -> {"response": "Conversation has been reset."}
//	POST /daysOff                             -> {"days_off_available": n}
//	POST /daysOffFor  {"person_name": "..."}  -> {"days_off_available": n, "person_name": "...", "asked_by": "..."}
//	GET  /health                              -> OK
//
// Everything except /health requires a bearer token. /daysOffFor also
// requires the office_management client role. Errors use {"detail": "..."};
// body validation failures return 422 with a list of field errors.
//
// /query replays the caller's recent history to the responder and appends
// the new exchange. /reset clears the caller's history.
//
// # Lifecycle
//
//	srv, err := server.New(cfg, logger)
//	err = srv.Run(ctx) // blocks until ctx is canceled, then shuts down
package server
