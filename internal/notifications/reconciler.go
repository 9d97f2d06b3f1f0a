// Package notifications turns raw recording lifecycle flags into the small
// set of user-visible notification transitions, one reconciler per subscriber.
package notifications

// State is a user-visible recording notification state.
type State string

const (
	StateNone       State = "none"
	StateStarted    State = "started"
	StateInProgress State = "inProgress"
	StateFinished   State = "finished"
)

// Track identifies which recording pipeline an observation belongs to.
type Track string

const (
	// TrackNative is the room's own platform recording.
	TrackNative Track = "native"
	// TrackComposed is the composed (render resource + archive) recording.
	TrackComposed Track = "composed"
)

// Notification is one emitted transition.
type Notification struct {
	Track Track `json:"track"`
	State State `json:"state"`
}

// trackState is the per-track bookkeeping: the previous flag is three-valued
// (unknown until the first observation, then the last seen boolean).
type trackState struct {
	known bool
	prev  bool
}

// Reconciler consumes per-track recording flags and emits at most one
// notification per edge. A flag that is already true on first observation
// yields inProgress rather than started: a subscriber arriving mid-recording
// must be told recording is already happening, not that it just began.
//
// The two tracks keep independent bookkeeping; only the displayed notification
// slot is shared, last write wins. Not safe for concurrent use — each
// subscriber owns its own reconciler and feeds it one event at a time.
type Reconciler struct {
	tracks map[Track]*trackState
	active Notification
}

// NewReconciler creates a reconciler with no active notification and all
// tracks unobserved.
func NewReconciler() *Reconciler {
	return &Reconciler{
		tracks: make(map[Track]*trackState),
		active: Notification{State: StateNone},
	}
}

// Observe feeds one flag observation for a track. It returns the emitted
// notification and true when a transition fired. Out-of-order or repeated
// observations degrade to no emission, never an error.
func (r *Reconciler) Observe(track Track, recording bool) (Notification, bool) {
	ts := r.tracks[track]
	if ts == nil {
		ts = &trackState{}
		r.tracks[track] = ts
	}

	var state State
	emit := false
	switch {
	case recording && !ts.known:
		state, emit = StateInProgress, true
	case recording && !ts.prev:
		state, emit = StateStarted, true
	case !recording && ts.known && ts.prev:
		state, emit = StateFinished, true
	}

	ts.known = true
	ts.prev = recording

	if !emit {
		return Notification{}, false
	}
	r.active = Notification{Track: track, State: state}
	return r.active, true
}

// Active returns the currently displayed notification.
func (r *Reconciler) Active() Notification {
	return r.active
}

// Dismiss clears the displayed notification without touching per-track
// bookkeeping, so a dismissed "started" is still followed by "finished".
func (r *Reconciler) Dismiss() {
	r.active = Notification{State: StateNone}
}
