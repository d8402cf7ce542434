// Package auth provides bearer token authentication and role checks for the
// agent service.
//
// # Token Verification
//
// JWTVerifier accepts two kinds of tokens:
//
//   - RS256 tokens issued by an OpenID Connect provider such as Keycloak.
//     Keys come from a KeySource, normally a JWKS over the realm's certs
//     endpoint. It refreshes hourly and again when a token names an
//     unknown kid, at most once per DefaultMinRefresh.
//
//   - HS256 tokens signed with the configured jwt_secret. These are minted
//     by `secureagent-server token` for local development.
//
// Issuer and audience are checked when configured. The username is
// preferred_username, falling back to sub. Roles are read from
// resource_access.<client_id>.roles.
//
// # HTTP Middleware
//
//	mux.Handle("POST /query", auth.Middleware(verifier, logger)(handler))
//	mux.Handle("POST /daysOffFor", auth.Middleware(verifier, logger)(
//		auth.RequireRole("office_management")(handler)))
//
// Rejections use the {"detail": "..."} body shape:
//
//   - 401 "Not authenticated" when no bearer token is sent
//   - 401 "Token expired"
//   - 401 "Public key not found" when the kid is unknown to the JWKS
//   - 401 "Invalid token: <reason>" for any other verification failure
//   - 403 "Insufficient permissions" when RequireRole fails
package auth
