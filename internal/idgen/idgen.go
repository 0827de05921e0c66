// Package idgen generates the worker and signal id formats mandated by the
// spec: worker-<username>-<unixMs>-<4 alphanum> and
// signal-<unixMs>-<4 alphanum>.
package idgen

import (
	"crypto/rand"
	"fmt"
)

const alphanum = "abcdefghijklmnopqrstuvwxyz0123456789"

// Suffix returns a random n-character lowercase alphanumeric string.
func Suffix(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	out := make([]byte, n)
	for i, v := range b {
		out[i] = alphanum[int(v)%len(alphanum)]
	}
	return string(out)
}

// WorkerID builds a worker-<username>-<unixMs>-<4 alphanum> id.
func WorkerID(username string, unixMs int64) string {
	return fmt.Sprintf("worker-%s-%d-%s", username, unixMs, Suffix(4))
}

// SignalID builds a signal-<unixMs>-<4 alphanum> id.
func SignalID(unixMs int64) string {
	return fmt.Sprintf("signal-%d-%s", unixMs, Suffix(4))
}
