// Package testing prepares the process environment for tests. Import it for
// side effects: it switches the portal into test mode and fills in the
// required settings that tests never dial.
package testing

import "os"

var defaults = map[string]string{
	"SUPABASE_URL":      "http://127.0.0.1:0",
	"SUPABASE_ANON_KEY": "test-anon-key",
	"CSRF_SECRET":       "test-csrf-secret",
}

func init() {
	_ = os.Setenv("PORTAL_TEST_MODE", "1")
	for key, value := range defaults {
		if _, ok := os.LookupEnv(key); !ok {
			_ = os.Setenv(key, value)
		}
	}
}
