// Package agent produces replies for the /query endpoint.
//
// A Responder receives the verified username, the query and the user's
// stored history:
//
//	reply, err := responder.Respond(ctx, agent.Request{
//		Username: "jettro",
//		Query:    "How many days off do I have?",
//		History:  history,
//	})
//
// EchoResponder returns "Welcome {user}, we received your query: {query}"
// and needs no credentials. ClaudeResponder replays history as alternating
// user and assistant turns and sends it to the Anthropic Messages API.
// Exchanges with an empty query or response (reset acknowledgements) are
// skipped so turns always alternate.
package agent
