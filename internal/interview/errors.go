package interview

import "errors"

// ErrSessionActive is returned by Conductor.Start when a session is
// already connecting or connected. At most one session is active per
// conductor.
var ErrSessionActive = errors.New("interview session already active")
