// Package guard switches the process into test mode when imported, so
// binaries exercised from tests return before dialing PostgreSQL or Redis.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("REGISTRY_TEST_MODE") == "" {
			_ = os.Setenv("REGISTRY_TEST_MODE", "1")
		}
	})
}
