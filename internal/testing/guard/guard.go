// Package guard switches the process into test mode when imported, so
// entrypoints under test skip their runtime side effects.
package guard

import (
	"os"
	"sync"
)

const testModeEnv = "LABSTOCK_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(testModeEnv) == "" {
			_ = os.Setenv(testModeEnv, "1")
		}
	})
}
