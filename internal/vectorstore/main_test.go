package vectorstore

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies the gateway leaks no goroutines: every query
// context it creates must be canceled on return.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}
