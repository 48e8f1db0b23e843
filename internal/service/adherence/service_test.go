package adherence

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anjali-yatham/Medisense/internal/model"
	"github.com/anjali-yatham/Medisense/internal/repository/memory"
	"github.com/anjali-yatham/Medisense/pkg/logger"
	"github.com/anjali-yatham/Medisense/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("test", "adherence")

type capturingBroker struct {
	published []string
}

func (b *capturingBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	b.published = append(b.published, channel)
	return nil
}

func (b *capturingBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, nil
}

func (b *capturingBroker) Close() error { return nil }

type fixture struct {
	svc           *Service
	medicines     *memory.MedicineRepository
	notifications *memory.NotificationRepository
	users         *memory.UserRepository
	broker        *capturingBroker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		medicines:     memory.NewMedicineRepository(),
		notifications: memory.NewNotificationRepository(),
		users:         memory.NewUserRepository(),
		broker:        &capturingBroker{},
	}
	testLogger := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	f.svc = NewService(f.medicines, f.notifications, f.users, f.broker, testLogger, testMetrics)
	return f
}

func (f *fixture) addPatient(t *testing.T, contact *model.EmergencyContact) uuid.UUID {
	t.Helper()

	u := &model.User{
		ID:    uuid.New(),
		Name:  "Asha",
		Phone: "9876543210",
	}
	if contact != nil {
		u.EmergencyContact = *contact
	}
	f.users.Put(u)
	return u.ID
}

func (f *fixture) addMedicine(t *testing.T, patientID uuid.UUID, slots []model.DoseSlot, day time.Time) *model.Medicine {
	t.Helper()

	med := &model.Medicine{
		ID:        uuid.New(),
		PatientID: patientID,
		Name:      "Metformin",
		Quantity:  30,
		StartDate: model.StartOfDay(day).AddDate(0, 0, -1),
		EndDate:   model.StartOfDay(day).AddDate(0, 0, 10),
		Scheduled: model.NewSlotSet(slots),
		Taken:     model.NewSlotSet(nil),
	}
	require.NoError(t, f.medicines.Create(context.Background(), med))
	return med
}

func notificationsOfType(f *fixture, typ model.NotificationType) []*model.Notification {
	var out []*model.Notification
	for _, n := range f.notifications.All() {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

func TestComputeDueRemindersCreatesOnePerMedicine(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)
	patientID := f.addPatient(t, nil)
	med := f.addMedicine(t, patientID, []model.DoseSlot{model.SlotBeforeBreakfast}, now)

	require.NoError(t, f.svc.ComputeDueReminders(context.Background(), model.SlotBeforeBreakfast, now))

	reminders := notificationsOfType(f, model.NotificationReminder)
	require.Len(t, reminders, 1)
	assert.Equal(t, patientID, reminders[0].UserID)
	assert.Equal(t, med.ID, *reminders[0].MedicineID)
	assert.Equal(t, model.SlotBeforeBreakfast, *reminders[0].Timing)
	assert.False(t, reminders[0].IsSent)
	assert.Contains(t, reminders[0].Message, "Metformin")

	// In-app fan-out rides on the durable enqueue.
	assert.Equal(t, []string{"notifications"}, f.broker.published)
}

func TestComputeDueRemindersIdempotentWithinDay(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)
	patientID := f.addPatient(t, nil)
	f.addMedicine(t, patientID, []model.DoseSlot{model.SlotBeforeBreakfast}, now)

	require.NoError(t, f.svc.ComputeDueReminders(context.Background(), model.SlotBeforeBreakfast, now))
	require.NoError(t, f.svc.ComputeDueReminders(context.Background(), model.SlotBeforeBreakfast, now.Add(5*time.Minute)))

	assert.Len(t, notificationsOfType(f, model.NotificationReminder), 1)
}

func TestComputeDueRemindersSkipsTakenAndUnscheduled(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)
	patientID := f.addPatient(t, nil)

	taken := f.addMedicine(t, patientID, []model.DoseSlot{model.SlotBeforeBreakfast}, now)
	require.NoError(t, f.medicines.RecordTake(context.Background(), taken.ID, model.SlotBeforeBreakfast))

	f.addMedicine(t, patientID, []model.DoseSlot{model.SlotAfterDinner}, now)

	require.NoError(t, f.svc.ComputeDueReminders(context.Background(), model.SlotBeforeBreakfast, now))

	assert.Empty(t, notificationsOfType(f, model.NotificationReminder))
}

func TestComputeDueRemindersRejectsInvalidSlot(t *testing.T) {
	f := newFixture(t)
	err := f.svc.ComputeDueReminders(context.Background(), model.DoseSlot("brunch"), time.Now())
	assert.Error(t, err)
}

func TestComputeMissedDosesRespectsGracePeriod(t *testing.T) {
	f := newFixture(t)
	patientID := f.addPatient(t, nil)
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	f.addMedicine(t, patientID, []model.DoseSlot{model.SlotBeforeBreakfast}, day)

	// 7:59, inside the 60 minute grace window after the 7:00 slot.
	insideGrace := day.Add(7*time.Hour + 59*time.Minute)
	require.NoError(t, f.svc.ComputeMissedDoses(context.Background(), insideGrace))
	assert.Empty(t, notificationsOfType(f, model.NotificationMissedDose))

	// 8:00, grace elapsed.
	afterGrace := day.Add(8 * time.Hour)
	require.NoError(t, f.svc.ComputeMissedDoses(context.Background(), afterGrace))
	assert.Len(t, notificationsOfType(f, model.NotificationMissedDose), 1)
}

func TestComputeMissedDosesRepeatInterval(t *testing.T) {
	f := newFixture(t)
	patientID := f.addPatient(t, nil)
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	f.addMedicine(t, patientID, []model.DoseSlot{model.SlotBeforeBreakfast}, day)

	first := day.Add(8*time.Hour + 30*time.Minute)
	require.NoError(t, f.svc.ComputeMissedDoses(context.Background(), first))
	require.Len(t, notificationsOfType(f, model.NotificationMissedDose), 1)

	// 20 minutes later: inside the repeat interval, no second alert.
	require.NoError(t, f.svc.ComputeMissedDoses(context.Background(), first.Add(20*time.Minute)))
	assert.Len(t, notificationsOfType(f, model.NotificationMissedDose), 1)

	// 31 minutes later: a repeat is due.
	require.NoError(t, f.svc.ComputeMissedDoses(context.Background(), first.Add(31*time.Minute)))
	assert.Len(t, notificationsOfType(f, model.NotificationMissedDose), 2)
}

func TestComputeMissedDosesStopsAfterTake(t *testing.T) {
	f := newFixture(t)
	patientID := f.addPatient(t, nil)
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	med := f.addMedicine(t, patientID, []model.DoseSlot{model.SlotBeforeBreakfast}, day)

	require.NoError(t, f.medicines.RecordTake(context.Background(), med.ID, model.SlotBeforeBreakfast))

	require.NoError(t, f.svc.ComputeMissedDoses(context.Background(), day.Add(9*time.Hour)))
	assert.Empty(t, notificationsOfType(f, model.NotificationMissedDose))
}

func TestDailyResetTalliesBeforeZeroing(t *testing.T) {
	f := newFixture(t)
	patientID := f.addPatient(t, nil)
	day := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)

	med := f.addMedicine(t, patientID, []model.DoseSlot{
		model.SlotBeforeBreakfast, model.SlotBeforeLunch, model.SlotBeforeDinner,
	}, day)
	require.NoError(t, f.medicines.RecordTake(context.Background(), med.ID, model.SlotBeforeLunch))

	require.NoError(t, f.svc.DailyReset(context.Background(), day))

	after, err := f.medicines.Get(context.Background(), med.ID)
	require.NoError(t, err)

	// Two of three scheduled slots were untaken at reset time.
	assert.Equal(t, 2, after.MissedCount)
	assert.Equal(t, 2, after.ConsecutiveMissedCount)
	for _, slot := range model.AllSlots {
		assert.False(t, after.IsTaken(slot), "slot %s not reset", slot)
	}
	require.NotNil(t, after.LastResetDate)
	assert.Equal(t, model.StartOfDay(day), *after.LastResetDate)
}

func TestDailyResetFullyTakenDayKeepsStreakClean(t *testing.T) {
	f := newFixture(t)
	patientID := f.addPatient(t, nil)
	day := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)

	med := f.addMedicine(t, patientID, []model.DoseSlot{model.SlotBeforeBreakfast}, day)
	require.NoError(t, f.medicines.RecordTake(context.Background(), med.ID, model.SlotBeforeBreakfast))

	require.NoError(t, f.svc.DailyReset(context.Background(), day))

	after, err := f.medicines.Get(context.Background(), med.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.MissedCount)
	assert.Equal(t, 0, after.ConsecutiveMissedCount)
}

func TestDailyResetSecondRunSameDayDoesNotDoubleCount(t *testing.T) {
	f := newFixture(t)
	patientID := f.addPatient(t, nil)
	day := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)

	med := f.addMedicine(t, patientID, []model.DoseSlot{
		model.SlotBeforeBreakfast, model.SlotBeforeLunch,
	}, day)

	require.NoError(t, f.svc.DailyReset(context.Background(), day))
	// A manual trigger later the same day finds last_reset_date already
	// stamped and must leave the tallies alone.
	require.NoError(t, f.svc.DailyReset(context.Background(), day))

	after, err := f.medicines.Get(context.Background(), med.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, after.MissedCount)
	assert.Equal(t, 2, after.ConsecutiveMissedCount)
}

func TestEscalationFiresAtThresholdAndLatches(t *testing.T) {
	f := newFixture(t)
	contact := &model.EmergencyContact{Name: "Ravi", Phone: "9123456780", Relationship: "son"}
	patientID := f.addPatient(t, contact)
	day := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)

	med := f.addMedicine(t, patientID, []model.DoseSlot{model.SlotBeforeBreakfast}, day)
	// Four prior consecutive misses on record; tonight's miss is the fifth.
	require.NoError(t, f.medicines.AddMissed(context.Background(), med.ID, 4))

	require.NoError(t, f.svc.DailyReset(context.Background(), day))

	alerts := notificationsOfType(f, model.NotificationEmergencyContact)
	require.Len(t, alerts, 1)
	assert.True(t, alerts[0].IsEmergencyContact)
	assert.Equal(t, "Ravi", *alerts[0].EmergencyContactName)
	assert.Equal(t, "9123456780", *alerts[0].EmergencyContactPhone)
	assert.Contains(t, alerts[0].Message, "son")
	assert.Contains(t, alerts[0].Message, "5 times consecutively")

	after, err := f.medicines.Get(context.Background(), med.ID)
	require.NoError(t, err)
	assert.True(t, after.EmergencyContactNotified)

	// Next day's reset misses again but the latch holds.
	require.NoError(t, f.svc.DailyReset(context.Background(), day.AddDate(0, 0, 1)))
	assert.Len(t, notificationsOfType(f, model.NotificationEmergencyContact), 1)
}

func TestEscalationWithoutContactIsNoOp(t *testing.T) {
	f := newFixture(t)
	patientID := f.addPatient(t, nil)
	day := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)

	med := f.addMedicine(t, patientID, []model.DoseSlot{model.SlotBeforeBreakfast}, day)
	require.NoError(t, f.medicines.AddMissed(context.Background(), med.ID, 6))

	require.NoError(t, f.svc.CheckConsecutiveMissed(context.Background(), day))

	assert.Empty(t, notificationsOfType(f, model.NotificationEmergencyContact))

	after, err := f.medicines.Get(context.Background(), med.ID)
	require.NoError(t, err)
	assert.False(t, after.EmergencyContactNotified)
}

func TestCheckConsecutiveMissedSweepsUnlatchedCandidates(t *testing.T) {
	f := newFixture(t)
	contact := &model.EmergencyContact{Name: "Ravi", Phone: "9123456780"}
	patientID := f.addPatient(t, contact)
	day := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)

	med := f.addMedicine(t, patientID, []model.DoseSlot{model.SlotBeforeBreakfast}, day)
	require.NoError(t, f.medicines.AddMissed(context.Background(), med.ID, 5))

	require.NoError(t, f.svc.CheckConsecutiveMissed(context.Background(), day))
	require.Len(t, notificationsOfType(f, model.NotificationEmergencyContact), 1)

	// Latched now; the sweep finds nothing on the second pass.
	require.NoError(t, f.svc.CheckConsecutiveMissed(context.Background(), day))
	assert.Len(t, notificationsOfType(f, model.NotificationEmergencyContact), 1)
}

func TestTakeClearsStreakAndLatch(t *testing.T) {
	f := newFixture(t)
	contact := &model.EmergencyContact{Name: "Ravi", Phone: "9123456780"}
	patientID := f.addPatient(t, contact)
	day := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)

	med := f.addMedicine(t, patientID, []model.DoseSlot{model.SlotBeforeBreakfast}, day)
	require.NoError(t, f.medicines.AddMissed(context.Background(), med.ID, 5))
	require.NoError(t, f.medicines.MarkEscalated(context.Background(), med.ID, day))

	require.NoError(t, f.medicines.RecordTake(context.Background(), med.ID, model.SlotBeforeBreakfast))

	after, err := f.medicines.Get(context.Background(), med.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.ConsecutiveMissedCount)
	assert.False(t, after.EmergencyContactNotified)
	// Lifetime total is untouched by forgiveness.
	assert.Equal(t, 5, after.MissedCount)
}

func TestCheckExpiryNotifiesOncePerDay(t *testing.T) {
	f := newFixture(t)
	patientID := f.addPatient(t, nil)
	now := time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)

	expiring := &model.Medicine{
		ID:        uuid.New(),
		PatientID: patientID,
		Name:      "Amoxicillin",
		Quantity:  10,
		StartDate: model.StartOfDay(now).AddDate(0, 0, -5),
		EndDate:   model.StartOfDay(now).AddDate(0, 0, 2),
		Scheduled: model.NewSlotSet([]model.DoseSlot{model.SlotAfterBreakfast}),
		Taken:     model.NewSlotSet(nil),
	}
	require.NoError(t, f.medicines.Create(context.Background(), expiring))

	expired := &model.Medicine{
		ID:        uuid.New(),
		PatientID: patientID,
		Name:      "Ibuprofen",
		Quantity:  4,
		StartDate: model.StartOfDay(now).AddDate(0, 0, -7),
		EndDate:   model.EndOfDay(now),
		Scheduled: model.NewSlotSet([]model.DoseSlot{model.SlotAfterBreakfast}),
		Taken:     model.NewSlotSet(nil),
	}
	require.NoError(t, f.medicines.Create(context.Background(), expired))

	require.NoError(t, f.svc.CheckExpiry(context.Background(), now))

	expiredAlerts := notificationsOfType(f, model.NotificationExpired)
	require.Len(t, expiredAlerts, 1)
	assert.Contains(t, expiredAlerts[0].Message, "Ibuprofen")

	soonAlerts := notificationsOfType(f, model.NotificationExpiringSoon)
	require.Len(t, soonAlerts, 1)
	assert.Contains(t, soonAlerts[0].Message, "Amoxicillin")
	assert.Contains(t, soonAlerts[0].Message, "2 days")

	// Second run on the same day adds nothing.
	require.NoError(t, f.svc.CheckExpiry(context.Background(), now.Add(time.Hour)))
	assert.Len(t, notificationsOfType(f, model.NotificationExpired), 1)
	assert.Len(t, notificationsOfType(f, model.NotificationExpiringSoon), 1)
}

func TestNotifyNewMedicineListsSlots(t *testing.T) {
	f := newFixture(t)
	patientID := f.addPatient(t, nil)
	now := time.Date(2025, 3, 11, 10, 0, 0, 0, time.UTC)
	med := f.addMedicine(t, patientID, []model.DoseSlot{
		model.SlotBeforeBreakfast, model.SlotAfterDinner,
	}, now)

	require.NoError(t, f.svc.NotifyNewMedicine(context.Background(), med))

	added := notificationsOfType(f, model.NotificationNewMedicine)
	require.Len(t, added, 1)
	assert.Contains(t, added[0].Message, "Before Breakfast (7:00 AM), After Dinner (9:00 PM)")
}
