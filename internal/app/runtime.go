package app

import (
	"os"
	"strconv"
)

// TestModeEnv makes serve return before it dials Redis or binds a port.
// The testing package sets it for every test binary that imports it.
const TestModeEnv = "CONSOLE_TEST_MODE"

// InTestMode reports whether runtime side effects are disabled.
func InTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	return err == nil && on
}
