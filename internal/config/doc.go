// Package config handles configuration loading for secureagent-server and
// the secureagent terminal client.
//
// # Server Configuration
//
// The server reads YAML. Default location:
//
//  1. Path from SECUREAGENT_SERVER_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/secureagent/server.yaml
//  3. ~/.config/secureagent/server.yaml
//
// Example:
//
//	server:
//	  http_addr: "127.0.0.1:8080"
//
//	auth:
//	  keycloak_url: "http://localhost:8081"
//	  realm: "secure-agent"
//	  client_id: "secure-agent-ui"
//	  # or, for local development:
//	  # jwt_secret: "${SECUREAGENT_JWT_SECRET}"
//
//	database:
//	  path: "./secureagent.db"   # empty keeps history in memory
//
//	llm:
//	  provider: "anthropic"      # or "echo"
//	  api_key: "${ANTHROPIC_API_KEY}"
//	  model: "claude-sonnet-4-5"
//	  max_tokens: 1024
//
//	hr:
//	  days_off:
//	    jettro: 10
//	    johndoe: 5
//
//	cors:
//	  origins: ["http://localhost:5173"]
//
//	logging:
//	  level: "info"    # debug, info, warn, error
//	  format: "text"   # text, json
//
// When keycloak_url and realm are set, issuer defaults to
// {keycloak_url}/realms/{realm} and jwks_url to the realm's
// openid-connect certs endpoint. Audience defaults to "account".
//
// # Client Configuration
//
// The terminal client reads TOML from SECUREAGENT_CONFIG or
// $XDG_CONFIG_HOME/secureagent/config.toml. A missing file means defaults:
//
//	[agent]
//	base_url = "http://localhost:8080"
//	timeout = "30s"
//
//	[identity]
//	token_env = "SECUREAGENT_TOKEN"
//	token_file = "${HOME}/.config/secureagent/token"
//
//	[client]
//	reset_policy = "replace_with_ack"   # replace_with_draft, clear
//	log_file = "${HOME}/.config/secureagent/secureagent.log"
//
// # Environment Variable Expansion
//
// Both formats expand ${VAR_NAME} before decoding. Unset variables become
// empty strings.
package config
