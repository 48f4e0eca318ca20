package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusLabelPrecedence(t *testing.T) {
	tests := []struct {
		name  string
		order Order
		want  string
	}{
		{"unpaid", Order{}, LabelUnpaid},
		{"awaiting shipment", Order{Paid: true}, LabelAwaitingShipment},
		{"awaiting write off", Order{Paid: true, ShippingType: ShippingTypePickup}, LabelAwaitingWriteOff},
		{"awaiting receipt", Order{Paid: true, Status: OrderStatusAwaitReceipt}, LabelAwaitingReceipt},
		{"awaiting review", Order{Paid: true, Status: OrderStatusAwaitReview}, LabelAwaitingReview},
		{"completed", Order{Paid: true, Status: OrderStatusCompleted}, LabelCompleted},
		{"refunding beats fulfillment", Order{Paid: true, Status: OrderStatusAwaitReceipt, RefundStatus: RefundStatusRequested}, LabelRefunding},
		{"refunded", Order{Paid: true, RefundStatus: RefundStatusRefunded}, LabelRefunded},
		{"deleted beats refund", Order{Paid: true, RefundStatus: RefundStatusRefunded, IsDel: true}, LabelDeleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.order.StatusLabel())
		})
	}
}

func TestFlashSaleSlotOverlap(t *testing.T) {
	a := &FlashSaleSlot{StartHour: 14, EndHour: 16}

	assert.True(t, a.Overlaps(&FlashSaleSlot{StartHour: 15, EndHour: 17}))
	assert.True(t, a.Overlaps(&FlashSaleSlot{StartHour: 10, EndHour: 22}))
	assert.False(t, a.Overlaps(&FlashSaleSlot{StartHour: 16, EndHour: 18}))
	assert.False(t, a.Overlaps(&FlashSaleSlot{StartHour: 12, EndHour: 14}))

	assert.False(t, a.Contains(13))
	assert.True(t, a.Contains(14))
	assert.False(t, a.Contains(16))
}

func TestEffectiveStatusIsLazy(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := &TeamMember{Status: TeamStatusOpen, ExpireAt: now}
	assert.Equal(t, TeamStatusFailed, m.EffectiveStatus(now))
	assert.Equal(t, TeamStatusOpen, m.EffectiveStatus(now.Add(-time.Second)))

	done := &TeamMember{Status: TeamStatusCompleted, ExpireAt: now}
	assert.Equal(t, TeamStatusCompleted, done.EffectiveStatus(now.Add(time.Hour)))

	s := &BargainSession{Status: BargainStatusActive, ExpireAt: now}
	assert.Equal(t, "failed", BargainStatusName(s.EffectiveStatus(now)))
}
