// Package testing puts test binaries that import it into console test mode
// and points the API client at an address nothing listens on.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var defaults = [][2]string{
	{"CONSOLE_TEST_MODE", "1"},
	{"API_BASE_URL", "http://127.0.0.1:0/api"},
	{"LOG_LEVEL", "error"},
}

var once sync.Once

func applyDefaults() {
	once.Do(func() {
		for _, kv := range defaults {
			if _, set := os.LookupEnv(kv[0]); set && kv[0] != "CONSOLE_TEST_MODE" {
				continue
			}
			_ = os.Setenv(kv[0], kv[1])
		}
	})
}

func init() {
	applyDefaults()
}

// TestMain applies the defaults and runs m. Packages call it from their own
// TestMain when they need the defaults before any init order applies.
func TestMain(m *stdtesting.M) {
	applyDefaults()
	os.Exit(m.Run())
}
