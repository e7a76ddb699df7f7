package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGigStatus_TransitionTableIsExhaustive(t *testing.T) {
	allowed := map[GigStatus]map[GigStatus]bool{
		GigStatusDraft:     {GigStatusOpen: true, GigStatusCancelled: true},
		GigStatusOpen:      {GigStatusAccepted: true, GigStatusExpired: true, GigStatusCancelled: true},
		GigStatusAccepted:  {GigStatusSubmitted: true, GigStatusDisputed: true, GigStatusExpired: true},
		GigStatusSubmitted: {GigStatusCompleted: true, GigStatusDisputed: true},
		GigStatusDisputed:  {GigStatusResolved: true},
	}

	for _, from := range AllGigStatuses {
		for _, to := range AllGigStatuses {
			want := allowed[from][to]
			assert.Equalf(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestGigStatus_Terminal(t *testing.T) {
	terminal := map[GigStatus]bool{
		GigStatusCompleted: true,
		GigStatusResolved:  true,
		GigStatusExpired:   true,
		GigStatusCancelled: true,
	}
	for _, s := range AllGigStatuses {
		assert.Equal(t, terminal[s], s.IsTerminal(), s.String())
	}
}

func TestGigStatus_UnknownNeverTransitions(t *testing.T) {
	unknown := GigStatus("archived")
	assert.False(t, unknown.IsValid())
	assert.False(t, unknown.CanTransitionTo(GigStatusOpen))
	assert.False(t, GigStatusDraft.CanTransitionTo(unknown))

	_, err := NewGigStatus("archived")
	assert.Error(t, err)

	s, err := NewGigStatus("open")
	assert.NoError(t, err)
	assert.Equal(t, GigStatusOpen, s)
}
