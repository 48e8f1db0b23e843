package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDoseSlot(t *testing.T) {
	for _, slot := range AllSlots {
		parsed, err := ParseDoseSlot(string(slot))
		require.NoError(t, err)
		assert.Equal(t, slot, parsed)
	}

	_, err := ParseDoseSlot("breakfast")
	assert.Error(t, err)
	_, err = ParseDoseSlot("")
	assert.Error(t, err)
}

func TestSlotOrderMatchesClock(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	prev := time.Time{}
	for _, slot := range AllSlots {
		nominal := slot.NominalTime(day)
		assert.True(t, nominal.After(prev), "slot %s out of order", slot)
		prev = nominal
	}

	assert.Equal(t, 7, SlotBeforeBreakfast.NominalTime(day).Hour())
	assert.Equal(t, 21, SlotAfterDinner.NominalTime(day).Hour())
}

func TestDayBounds(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	now := time.Date(2025, 3, 10, 13, 45, 12, 0, loc)
	start := StartOfDay(now)
	end := EndOfDay(now)

	assert.Equal(t, 0, start.Hour())
	assert.Equal(t, loc, start.Location())
	assert.Equal(t, 23, end.Hour())
	assert.True(t, end.After(now))
	assert.Equal(t, start.Day(), end.Day())
}

func TestMedicineActiveOn(t *testing.T) {
	m := &Medicine{
		StartDate: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
	}

	assert.False(t, m.ActiveOn(time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)))
	assert.True(t, m.ActiveOn(time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)))
	assert.True(t, m.ActiveOn(time.Date(2025, 3, 15, 23, 0, 0, 0, time.UTC)))
	assert.False(t, m.ActiveOn(time.Date(2025, 3, 16, 0, 0, 1, 0, time.UTC)))
}

func TestScheduledSlotsFixedOrder(t *testing.T) {
	m := &Medicine{
		Scheduled: NewSlotSet([]DoseSlot{SlotAfterDinner, SlotBeforeBreakfast}),
	}

	assert.Equal(t, []DoseSlot{SlotBeforeBreakfast, SlotAfterDinner}, m.ScheduledSlots())
}
