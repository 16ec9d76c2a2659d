// Package testlog routes zerolog output through the test logging profile.
package testlog

import (
	"testing"

	"github.com/danmuck/plcbridge/internal/logging"
	"github.com/rs/zerolog/log"
)

// Start configures test logging once per binary and brackets t with start and
// end events.
func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	log.Info().Str("test", t.Name()).Msg("test start")
	t.Cleanup(func() {
		log.Info().Str("test", t.Name()).Bool("failed", t.Failed()).Msg("test end")
	})
}
