package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SessionLogger returns the global logger scoped to one transport session.
func SessionLogger(role, sessionID, remote string) zerolog.Logger {
	return log.Logger.With().
		Str("role", role).
		Str("session_id", sessionID).
		Str("remote", remote).
		Logger()
}
