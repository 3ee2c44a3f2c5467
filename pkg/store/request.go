package store

// RequestPhase is the tri-state fetch status carried by every slice.
type RequestPhase int

const (
	RequestIdle RequestPhase = iota
	RequestLoading
	RequestFailed
)

// RequestState reports the most recent fetch outcome for a slice. Starting a
// new fetch clears any prior error; completion always clears loading.
type RequestState struct {
	Phase RequestPhase
	Err   string
}

// Loading reports whether a fetch is in flight.
func (r RequestState) Loading() bool { return r.Phase == RequestLoading }

// Error returns the failure message from the last completed fetch, or "".
func (r RequestState) Error() string {
	if r.Phase != RequestFailed {
		return ""
	}
	return r.Err
}
