package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("PRESENTA_TEST_MODE") == "" {
			_ = os.Setenv("PRESENTA_TEST_MODE", "1")
		}
	})
}
