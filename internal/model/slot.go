package model

import (
	"fmt"
	"time"
)

// DoseSlot is one of the six fixed daily timing slots a dose can be
// scheduled at. The set is closed; slots are never added or removed at
// runtime.
type DoseSlot string

const (
	SlotBeforeBreakfast DoseSlot = "beforeBreakfast"
	SlotAfterBreakfast  DoseSlot = "afterBreakfast"
	SlotBeforeLunch     DoseSlot = "beforeLunch"
	SlotAfterLunch      DoseSlot = "afterLunch"
	SlotBeforeDinner    DoseSlot = "beforeDinner"
	SlotAfterDinner     DoseSlot = "afterDinner"
)

// SlotInfo carries the nominal wall-clock time and display label of a slot.
type SlotInfo struct {
	Hour   int    `json:"hour"`
	Minute int    `json:"minute"`
	Label  string `json:"label"`
}

// AllSlots lists the slots in their fixed daily order.
var AllSlots = []DoseSlot{
	SlotBeforeBreakfast,
	SlotAfterBreakfast,
	SlotBeforeLunch,
	SlotAfterLunch,
	SlotBeforeDinner,
	SlotAfterDinner,
}

// TimingSchedule maps every slot to its nominal time of day.
var TimingSchedule = map[DoseSlot]SlotInfo{
	SlotBeforeBreakfast: {Hour: 7, Minute: 0, Label: "Before Breakfast (7:00 AM)"},
	SlotAfterBreakfast:  {Hour: 9, Minute: 0, Label: "After Breakfast (9:00 AM)"},
	SlotBeforeLunch:     {Hour: 12, Minute: 0, Label: "Before Lunch (12:00 PM)"},
	SlotAfterLunch:      {Hour: 14, Minute: 0, Label: "After Lunch (2:00 PM)"},
	SlotBeforeDinner:    {Hour: 19, Minute: 0, Label: "Before Dinner (7:00 PM)"},
	SlotAfterDinner:     {Hour: 21, Minute: 0, Label: "After Dinner (9:00 PM)"},
}

// ParseDoseSlot validates a slot name coming from the API or the database.
func ParseDoseSlot(s string) (DoseSlot, error) {
	slot := DoseSlot(s)
	if _, ok := TimingSchedule[slot]; !ok {
		return "", fmt.Errorf("invalid timing slot %q", s)
	}
	return slot, nil
}

// Valid reports whether the slot is one of the six known slots.
func (s DoseSlot) Valid() bool {
	_, ok := TimingSchedule[s]
	return ok
}

// Label returns the human display label for the slot.
func (s DoseSlot) Label() string {
	return TimingSchedule[s].Label
}

// NominalTime returns the slot's scheduled wall-clock time on the given day.
func (s DoseSlot) NominalTime(day time.Time) time.Time {
	info := TimingSchedule[s]
	return time.Date(day.Year(), day.Month(), day.Day(), info.Hour, info.Minute, 0, 0, day.Location())
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable instant of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
