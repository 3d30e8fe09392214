package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextStatus_AllowedEdges(t *testing.T) {
	cases := []struct {
		from   ReservationStatus
		action Action
		to     ReservationStatus
	}{
		{ReservationStatusPending, ActionApprove, ReservationStatusApproved},
		{ReservationStatusPending, ActionReject, ReservationStatusRejected},
		{ReservationStatusPending, ActionCancel, ReservationStatusCancelled},
		{ReservationStatusApproved, ActionCancel, ReservationStatusCancelled},
		{ReservationStatusApproved, ActionComplete, ReservationStatusCompleted},
	}
	for _, tc := range cases {
		to, ok := NextStatus(tc.from, tc.action)
		assert.True(t, ok, "%s + %s", tc.from, tc.action)
		assert.Equal(t, tc.to, to)
	}
}

func TestNextStatus_Closure(t *testing.T) {
	statuses := []ReservationStatus{
		ReservationStatusPending, ReservationStatusApproved,
		ReservationStatusRejected, ReservationStatusCancelled, ReservationStatusCompleted,
	}
	actions := []Action{ActionApprove, ActionReject, ActionCancel, ActionComplete}

	allowed := map[[2]string]bool{
		{"pending", "approve"}:   true,
		{"pending", "reject"}:    true,
		{"pending", "cancel"}:    true,
		{"approved", "cancel"}:   true,
		{"approved", "complete"}: true,
	}

	for _, s := range statuses {
		for _, a := range actions {
			_, ok := NextStatus(s, a)
			assert.Equal(t, allowed[[2]string{string(s), string(a)}], ok, "%s + %s", s, a)
		}
	}
}

func TestTerminalStatusesHaveNoEdges(t *testing.T) {
	for _, s := range []ReservationStatus{ReservationStatusRejected, ReservationStatusCancelled, ReservationStatusCompleted} {
		assert.True(t, s.Terminal())
		for _, a := range []Action{ActionApprove, ActionReject, ActionCancel, ActionComplete} {
			_, ok := NextStatus(s, a)
			assert.False(t, ok, "%s + %s", s, a)
		}
	}
}

func TestActorAllowed(t *testing.T) {
	assert.True(t, ActorAllowed(ReservationStatusPending, ActionApprove, ActorDriver))
	assert.False(t, ActorAllowed(ReservationStatusPending, ActionApprove, ActorPassenger))
	assert.True(t, ActorAllowed(ReservationStatusPending, ActionCancel, ActorPassenger))
	assert.False(t, ActorAllowed(ReservationStatusPending, ActionCancel, ActorDriver))
	assert.True(t, ActorAllowed(ReservationStatusApproved, ActionCancel, ActorDriver))
	assert.True(t, ActorAllowed(ReservationStatusApproved, ActionCancel, ActorPassenger))
	assert.False(t, ActorAllowed(ReservationStatusApproved, ActionComplete, ActorPassenger))
}

func TestCounted(t *testing.T) {
	assert.True(t, ReservationStatusPending.Counted())
	assert.True(t, ReservationStatusApproved.Counted())
	assert.False(t, ReservationStatusRejected.Counted())
	assert.False(t, ReservationStatusCancelled.Counted())
	assert.False(t, ReservationStatusCompleted.Counted())
}
