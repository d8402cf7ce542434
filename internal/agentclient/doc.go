// Package agentclient is the HTTP client for the secure agent service.
//
// # Endpoints
//
// The client performs exactly two remote operations against one base URL:
//
//   - POST /query with {"query": "..."}, answered by {"response": "..."}
//   - POST /reset with {}, answered by {"response": "..."}
//
// # Authentication
//
// The bearer credential is read from a CredentialProvider on every call, so a
// refreshed or cleared token is observed by the next request without
// rebuilding the client:
//
//	c := agentclient.New("http://localhost:8000", identity)
//	reply, err := c.QueryAgent(ctx, "how many days off do I have?")
//
// # Errors
//
// Every failure is one of two kinds. An HTTP 401 yields *UnauthorizedError
// carrying the server's "detail" message. Anything else (transport failure,
// non-401 status, undecodable body) yields *RequestError.
package agentclient
