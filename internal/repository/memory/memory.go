// Package memory holds in-memory repository implementations used by the
// service and worker tests. Guard semantics mirror the postgres layer:
// compare-and-set misses return repository.ErrNoRowsUpdated.
package memory

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anjali-yatham/Medisense/internal/model"
	"github.com/anjali-yatham/Medisense/internal/repository"
)

type MedicineRepository struct {
	mu        sync.Mutex
	medicines map[uuid.UUID]*model.Medicine
}

func NewMedicineRepository() *MedicineRepository {
	return &MedicineRepository{medicines: make(map[uuid.UUID]*model.Medicine)}
}

func copyMedicine(m *model.Medicine) *model.Medicine {
	out := *m
	out.Scheduled = make(map[model.DoseSlot]bool, len(m.Scheduled))
	for k, v := range m.Scheduled {
		out.Scheduled[k] = v
	}
	out.Taken = make(map[model.DoseSlot]bool, len(m.Taken))
	for k, v := range m.Taken {
		out.Taken[k] = v
	}
	return &out
}

func (r *MedicineRepository) Create(ctx context.Context, medicine *model.Medicine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if medicine.ID == uuid.Nil {
		medicine.ID = uuid.New()
	}
	if medicine.Taken == nil {
		medicine.Taken = model.NewSlotSet(nil)
	}
	medicine.CreatedAt = time.Now()
	medicine.UpdatedAt = time.Now()
	r.medicines[medicine.ID] = copyMedicine(medicine)
	return nil
}

func (r *MedicineRepository) Get(ctx context.Context, id uuid.UUID) (*model.Medicine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.medicines[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return copyMedicine(m), nil
}

func (r *MedicineRepository) GetForPatient(ctx context.Context, id, patientID uuid.UUID) (*model.Medicine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.medicines[id]
	if !ok || m.PatientID != patientID {
		return nil, sql.ErrNoRows
	}
	return copyMedicine(m), nil
}

func (r *MedicineRepository) Delete(ctx context.Context, id, patientID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.medicines[id]
	if !ok || m.PatientID != patientID {
		return repository.ErrNoRowsUpdated
	}
	delete(r.medicines, id)
	return nil
}

func (r *MedicineRepository) list(filter func(*model.Medicine) bool) []*model.Medicine {
	var out []*model.Medicine
	for _, m := range r.medicines {
		if filter(m) {
			out = append(out, copyMedicine(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *MedicineRepository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Medicine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(m *model.Medicine) bool { return m.PatientID == patientID }), nil
}

func (r *MedicineRepository) ListActive(ctx context.Context, day time.Time) ([]*model.Medicine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(m *model.Medicine) bool { return m.ActiveOn(day) }), nil
}

func (r *MedicineRepository) ListActiveForPatient(ctx context.Context, patientID uuid.UUID, day time.Time) ([]*model.Medicine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(m *model.Medicine) bool { return m.PatientID == patientID && m.ActiveOn(day) }), nil
}

func (r *MedicineRepository) ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*model.Medicine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(m *model.Medicine) bool {
		return !m.EndDate.Before(from) && !m.EndDate.After(to)
	}), nil
}

func (r *MedicineRepository) ListEscalationCandidates(ctx context.Context, day time.Time, threshold int) ([]*model.Medicine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(m *model.Medicine) bool {
		return m.ActiveOn(day) && m.ConsecutiveMissedCount >= threshold && !m.EmergencyContactNotified
	}), nil
}

func (r *MedicineRepository) RecordTake(ctx context.Context, id uuid.UUID, slot model.DoseSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.medicines[id]
	if !ok || m.Taken[slot] || m.Quantity <= 0 {
		return repository.ErrNoRowsUpdated
	}

	m.Taken[slot] = true
	m.Quantity--
	m.TakenCount++
	m.ConsecutiveMissedCount = 0
	m.EmergencyContactNotified = false
	m.UpdatedAt = time.Now()
	return nil
}

func (r *MedicineRepository) RecordUntake(ctx context.Context, id uuid.UUID, slot model.DoseSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.medicines[id]
	if !ok || !m.Taken[slot] {
		return repository.ErrNoRowsUpdated
	}

	m.Taken[slot] = false
	m.Quantity++
	if m.TakenCount > 0 {
		m.TakenCount--
	}
	m.UpdatedAt = time.Now()
	return nil
}

func (r *MedicineRepository) AddMissed(ctx context.Context, id uuid.UUID, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.medicines[id]
	if !ok {
		return repository.ErrNoRowsUpdated
	}

	m.MissedCount += n
	m.ConsecutiveMissedCount += n
	m.UpdatedAt = time.Now()
	return nil
}

func (r *MedicineRepository) MarkEscalated(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.medicines[id]
	if !ok {
		return repository.ErrNoRowsUpdated
	}

	m.EmergencyContactNotified = true
	m.LastEmergencyNotificationDate = &at
	m.UpdatedAt = time.Now()
	return nil
}

func (r *MedicineRepository) ResetTaken(ctx context.Context, day time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	reset := model.StartOfDay(day)
	for _, m := range r.medicines {
		if !m.ActiveOn(day) {
			continue
		}
		for slot := range m.Taken {
			m.Taken[slot] = false
		}
		m.LastResetDate = &reset
		m.UpdatedAt = time.Now()
		count++
	}
	return count, nil
}

type NotificationRepository struct {
	mu            sync.Mutex
	notifications map[uuid.UUID]*model.Notification
	order         []uuid.UUID
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{notifications: make(map[uuid.UUID]*model.Notification)}
}

func copyNotification(n *model.Notification) *model.Notification {
	out := *n
	return &out
}

func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.CreatedAt = time.Now()
	n.UpdatedAt = time.Now()
	r.notifications[n.ID] = copyNotification(n)
	r.order = append(r.order, n.ID)
	return nil
}

func (r *NotificationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return copyNotification(n), nil
}

// All returns every stored notification in insertion order. Test helper.
func (r *NotificationRepository) All() []*model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*model.Notification, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, copyNotification(r.notifications[id]))
	}
	return out
}

func (r *NotificationRepository) LatestForDay(ctx context.Context, medicineID uuid.UUID, timing *model.DoseSlot, typ model.NotificationType, day time.Time) (*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start, end := model.StartOfDay(day), model.EndOfDay(day)
	var latest *model.Notification
	for _, n := range r.notifications {
		if n.MedicineID == nil || *n.MedicineID != medicineID || n.Type != typ {
			continue
		}
		if n.ScheduledFor.Before(start) || n.ScheduledFor.After(end) {
			continue
		}
		if timing != nil && (n.Timing == nil || *n.Timing != *timing) {
			continue
		}
		if latest == nil || n.ScheduledFor.After(latest.ScheduledFor) {
			latest = n
		}
	}
	if latest == nil {
		return nil, nil
	}
	return copyNotification(latest), nil
}

func (r *NotificationRepository) ListPending(ctx context.Context, now time.Time, limit int) ([]*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Notification
	for _, n := range r.notifications {
		if !n.IsSent && !n.ScheduledFor.After(now) {
			out = append(out, copyNotification(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *NotificationRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[id]
	if !ok {
		return repository.ErrNoRowsUpdated
	}
	n.IsSent = true
	n.UpdatedAt = time.Now()
	return nil
}

func (r *NotificationRepository) MarkRemindersRead(ctx context.Context, medicineID uuid.UUID, timing model.DoseSlot, day time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start, end := model.StartOfDay(day), model.EndOfDay(day)
	for _, n := range r.notifications {
		if n.MedicineID == nil || *n.MedicineID != medicineID || n.Type != model.NotificationReminder {
			continue
		}
		if n.Timing == nil || *n.Timing != timing || n.IsRead {
			continue
		}
		if n.ScheduledFor.Before(start) || n.ScheduledFor.After(end) {
			continue
		}
		n.IsRead = true
		n.UpdatedAt = time.Now()
	}
	return nil
}

func (r *NotificationRepository) ListForUser(ctx context.Context, userID uuid.UUID, filter *model.NotificationFilter) ([]*model.Notification, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*model.Notification
	for i := len(r.order) - 1; i >= 0; i-- {
		n := r.notifications[r.order[i]]
		if n.UserID != userID {
			continue
		}
		if filter != nil && filter.Type != nil && n.Type != *filter.Type {
			continue
		}
		if filter != nil && filter.IsRead != nil && n.IsRead != *filter.IsRead {
			continue
		}
		matched = append(matched, copyNotification(n))
	}

	total := len(matched)
	if filter != nil {
		if filter.Offset > 0 {
			if filter.Offset >= len(matched) {
				matched = nil
			} else {
				matched = matched[filter.Offset:]
			}
		}
		if filter.Limit > 0 && len(matched) > filter.Limit {
			matched = matched[:filter.Limit]
		}
	}
	return matched, total, nil
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, n := range r.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[id]
	if !ok || n.UserID != userID {
		return repository.ErrNoRowsUpdated
	}
	n.IsRead = true
	n.UpdatedAt = time.Now()
	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, n := range r.notifications {
		if n.UserID == userID {
			n.IsRead = true
			n.UpdatedAt = time.Now()
		}
	}
	return nil
}

func (r *NotificationRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[id]
	if !ok || n.UserID != userID {
		return repository.ErrNoRowsUpdated
	}
	delete(r.notifications, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

type UserRepository struct {
	mu    sync.Mutex
	users map[uuid.UUID]*model.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[uuid.UUID]*model.User)}
}

func (r *UserRepository) Put(u *model.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *u
	r.users[u.ID] = &copied
}

func (r *UserRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *u
	return &copied, nil
}

type PrescriptionRepository struct {
	mu            sync.Mutex
	prescriptions map[uuid.UUID]*model.Prescription
}

func NewPrescriptionRepository() *PrescriptionRepository {
	return &PrescriptionRepository{prescriptions: make(map[uuid.UUID]*model.Prescription)}
}

func (r *PrescriptionRepository) Create(ctx context.Context, p *model.Prescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	copied := *p
	r.prescriptions[p.ID] = &copied
	return nil
}

func (r *PrescriptionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.prescriptions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *p
	return &copied, nil
}

func (r *PrescriptionRepository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Prescription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Prescription
	for _, p := range r.prescriptions {
		if p.PatientID == patientID {
			copied := *p
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
