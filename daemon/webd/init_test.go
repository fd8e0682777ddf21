package webd

import (
	"github.com/rotblauer/tilehover/params"
	"testing"
)

// newTestWebDaemon creates a new WebDaemon for testing purposes.
// If datadir is empty the daemon runs without a hover store.
func newTestWebDaemon(t *testing.T, datadir string) *WebDaemon {
	t.Helper()
	config := params.DefaultTestWebDaemonConfig()
	config.DataDir = datadir
	daemon, err := NewWebDaemon(config)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := daemon.Close(); err != nil {
			t.Error(err)
		}
	})
	return daemon
}
