package fake

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// CheckLog returns a logger and a function to verify that a message containing
// the given text has been logged.
func CheckLog(msg string) (zerolog.Logger, func(t *testing.T)) {
	buffer := &syncBuffer{}

	check := func(t *testing.T) {
		if !strings.Contains(buffer.String(), msg) {
			t.Fatalf("log '%s' not found in %s", msg, buffer.String())
		}
	}

	return zerolog.New(buffer), check
}

type syncBuffer struct {
	sync.Mutex
	buffer bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.Lock()
	defer b.Unlock()

	return b.buffer.Write(p)
}

func (b *syncBuffer) String() string {
	b.Lock()
	defer b.Unlock()

	return b.buffer.String()
}
