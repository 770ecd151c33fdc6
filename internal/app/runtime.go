package app

import (
	"os"
	"strconv"
)

// TestModeEnv, when true, makes cmd/portal return before dialing Redis or
// the backend.
const TestModeEnv = "PORTAL_TEST_MODE"

// InTestMode reports whether PORTAL_TEST_MODE holds a true value.
func InTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	return err == nil && on
}
