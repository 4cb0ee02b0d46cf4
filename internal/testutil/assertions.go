// Package testutil provides common test utilities and assertions for bridge tests
package testutil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertJSONEqual compares two JSON strings for equality, ignoring formatting
func AssertJSONEqual(t *testing.T, expected, actual string, msgAndArgs ...interface{}) {
	t.Helper()

	var expectedJSON, actualJSON interface{}
	require.NoError(t, json.Unmarshal([]byte(expected), &expectedJSON), "expected JSON is invalid")
	require.NoError(t, json.Unmarshal([]byte(actual), &actualJSON), "actual JSON is invalid")

	assert.Equal(t, expectedJSON, actualJSON, msgAndArgs...)
}

// AssertPayloads compares received byte payloads against expected strings, in order
func AssertPayloads(t *testing.T, expected []string, actual [][]byte, msgAndArgs ...interface{}) {
	t.Helper()

	got := make([]string, len(actual))
	for i, p := range actual {
		got[i] = string(p)
	}
	if expected == nil {
		expected = []string{}
	}
	assert.Equal(t, expected, got, msgAndArgs...)
}

// WaitFor polls cond until it holds or the timeout expires
func WaitFor(t *testing.T, cond func() bool, timeout time.Duration, msgAndArgs ...interface{}) {
	t.Helper()
	require.Eventually(t, cond, timeout, time.Millisecond, msgAndArgs...)
}

// FakeClock is a manually advanced clock for timer and frame tests
type FakeClock struct {
	now time.Time
}

// NewFakeClock returns a clock fixed at start
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the current fake time
func (c *FakeClock) Now() time.Time {
	return c.now
}

// Advance moves the clock forward by d
func (c *FakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
