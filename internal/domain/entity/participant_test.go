package entity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestParticipant_OpenSlot(t *testing.T) {
	left := uuid.New()
	right := uuid.New()

	tests := []struct {
		name     string
		node     Participant
		wantSlot Slot
		wantOpen bool
	}{
		{name: "empty node prefers left", node: Participant{}, wantSlot: SlotLeft, wantOpen: true},
		{name: "left taken", node: Participant{LeftChildID: &left}, wantSlot: SlotRight, wantOpen: true},
		{name: "only right taken", node: Participant{RightChildID: &right}, wantSlot: SlotLeft, wantOpen: true},
		{name: "full", node: Participant{LeftChildID: &left, RightChildID: &right}, wantOpen: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot, open := tt.node.OpenSlot()
			assert.Equal(t, tt.wantOpen, open)
			assert.Equal(t, tt.wantSlot, slot)
		})
	}
}

func TestParticipant_ChildrenInSlotOrder(t *testing.T) {
	left := uuid.New()
	right := uuid.New()
	node := Participant{LeftChildID: &left, RightChildID: &right}

	assert.Equal(t, []uuid.UUID{left, right}, node.Children())
	assert.Equal(t, &left, node.ChildAt(SlotLeft))
	assert.Equal(t, &right, node.ChildAt(SlotRight))
	assert.Nil(t, node.ChildAt(Slot("middle")))
	assert.True(t, node.HasChildren())
}

func TestSlot_IsValid(t *testing.T) {
	assert.True(t, SlotLeft.IsValid())
	assert.True(t, SlotRight.IsValid())
	assert.False(t, Slot("").IsValid())
}

func TestCommissionStatus_IsValid(t *testing.T) {
	assert.True(t, CommissionStatusPending.IsValid())
	assert.True(t, CommissionStatusPaid.IsValid())
	assert.True(t, CommissionStatusCancelled.IsValid())
	assert.False(t, CommissionStatus("earned").IsValid())
}
