// Package monitoring exposes error reporting to the rest of the engine
// without binding it to a vendor. The Sentry implementation lives under
// infra/monitoring.
package monitoring

import "time"

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Recover()
	Flush(timeout time.Duration)
}

// NopMonitor discards everything.
type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}

var current Monitor = NopMonitor{}

// Init sets the process-wide monitor implementation.
func Init(m Monitor) {
	if m != nil {
		current = m
	}
}

// CaptureException records the error with optional tags, typically the
// breakdown number and the failing component.
func CaptureException(err error, tags map[string]string) {
	if current != nil {
		current.CaptureException(err, tags)
	}
}

// Recover captures panics in goroutines. Call it deferred.
func Recover() {
	if current != nil {
		current.Recover()
	}
}

// Flush flushes buffered events before shutdown.
func Flush(d time.Duration) {
	if current != nil {
		current.Flush(d)
	}
}
