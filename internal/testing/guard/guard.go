// Package guard forces test mode for any package that imports it,
// keeping test binaries from ever starting the real server entrypoint.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("PORTALESCOLA_TEST_MODE") == "" {
			_ = os.Setenv("PORTALESCOLA_TEST_MODE", "1")
		}
	})
}
