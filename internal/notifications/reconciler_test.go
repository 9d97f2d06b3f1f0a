package notifications

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveTransitions(t *testing.T) {
	tests := []struct {
		name  string
		flags []bool
		want  []State
	}{
		{
			name:  "start observed from the beginning",
			flags: []bool{false, true, false},
			want:  []State{StateStarted, StateFinished},
		},
		{
			name:  "already recording at subscription",
			flags: []bool{true},
			want:  []State{StateInProgress},
		},
		{
			name:  "mid-recording join then stop",
			flags: []bool{true, false},
			want:  []State{StateInProgress, StateFinished},
		},
		{
			name:  "repeated false is silent",
			flags: []bool{false, false},
			want:  nil,
		},
		{
			name:  "first observation false is silent",
			flags: []bool{false},
			want:  nil,
		},
		{
			name:  "repeated true emits only once",
			flags: []bool{true, true, true},
			want:  []State{StateInProgress},
		},
		{
			name:  "full cycle twice",
			flags: []bool{false, true, false, true, false},
			want:  []State{StateStarted, StateFinished, StateStarted, StateFinished},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReconciler()
			var got []State
			for _, flag := range tt.flags {
				if n, emitted := r.Observe(TrackNative, flag); emitted {
					got = append(got, n.State)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTracksAreIndependent(t *testing.T) {
	r := NewReconciler()

	// Composed track starting must not look like a native edge.
	_, emitted := r.Observe(TrackNative, false)
	require.False(t, emitted)

	n, emitted := r.Observe(TrackComposed, true)
	require.True(t, emitted)
	assert.Equal(t, TrackComposed, n.Track)
	assert.Equal(t, StateInProgress, n.State)

	n, emitted = r.Observe(TrackNative, true)
	require.True(t, emitted)
	assert.Equal(t, TrackNative, n.Track)
	assert.Equal(t, StateStarted, n.State)
}

func TestActiveIsLastWriteWins(t *testing.T) {
	r := NewReconciler()
	require.Equal(t, StateNone, r.Active().State)

	r.Observe(TrackNative, false)
	r.Observe(TrackNative, true)
	assert.Equal(t, Notification{Track: TrackNative, State: StateStarted}, r.Active())

	r.Observe(TrackComposed, true)
	assert.Equal(t, Notification{Track: TrackComposed, State: StateInProgress}, r.Active())
}

func TestDismissKeepsBookkeeping(t *testing.T) {
	r := NewReconciler()
	r.Observe(TrackNative, false)
	r.Observe(TrackNative, true)
	require.Equal(t, StateStarted, r.Active().State)

	r.Dismiss()
	assert.Equal(t, StateNone, r.Active().State)

	// The stop edge still fires after dismissal.
	n, emitted := r.Observe(TrackNative, false)
	require.True(t, emitted)
	assert.Equal(t, StateFinished, n.State)
}
