package monitoring

import "time"

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	// Recover reports a value obtained from recover().
	Recover(r any)
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover(any)                               {}
func (NopMonitor) Flush(time.Duration)                       {}

var current Monitor = NopMonitor{}

// Init sets the global monitor implementation.
func Init(m Monitor) {
	if m != nil {
		current = m
	}
}

// CaptureException records the error with optional tags.
func CaptureException(err error, tags map[string]string) {
	current.CaptureException(err, tags)
}

// Recover reports and re-raises a panic. It must be deferred directly.
func Recover() {
	if r := recover(); r != nil {
		current.Recover(r)
		panic(r)
	}
}

// Flush flushes buffered events.
func Flush(d time.Duration) {
	current.Flush(d)
}
