// Package guard forces test mode before any package under test starts
// runtime components. Import it for side effects from _test files.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("STOKSYNC_TEST_MODE") == "" {
			_ = os.Setenv("STOKSYNC_TEST_MODE", "1")
		}
	})
}
