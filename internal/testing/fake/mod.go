// Package fake provides fake implementations for interfaces commonly used in
// the repository.
// The implementations offer configuration to return errors when it is needed by
// the unit test and the fake database records the writes.
package fake

import (
	"sync"

	"golang.org/x/xerrors"
)

// fakeErr is the error returned by the fakes configured to fail.
var fakeErr = xerrors.New("fake error")

// GetError returns the error used by the fakes.
func GetError() error {
	return fakeErr
}

// Err returns the message of the fake error prefixed by the message, which is
// the format of a wrapped error.
func Err(msg string) string {
	return msg + ": " + fakeErr.Error()
}

// Call records the arguments of the calls of a function.
type Call struct {
	sync.Mutex
	calls [][]interface{}
}

// Get returns the ith argument of the nth call.
func (c *Call) Get(n, i int) interface{} {
	c.Lock()
	defer c.Unlock()

	return c.calls[n][i]
}

// Len returns the number of calls.
func (c *Call) Len() int {
	c.Lock()
	defer c.Unlock()

	return len(c.calls)
}

// Add records a call with its arguments.
func (c *Call) Add(args ...interface{}) {
	c.Lock()
	defer c.Unlock()

	c.calls = append(c.calls, args)
}
