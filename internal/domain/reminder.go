package domain

import "time"

// Reminder is an at-most-once notification scheduled ahead of a bill's due date.
type Reminder struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	BillID       string     `json:"billId"`
	ReminderDate time.Time  `json:"reminderDate"`
	Sent         bool       `json:"sent"`
	SentAt       *time.Time `json:"sentAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// IsDue reports whether the reminder is unsent and scheduled on or before day.
func (r Reminder) IsDue(day time.Time) bool {
	if r.Sent {
		return false
	}
	ry, rm, rd := r.ReminderDate.Date()
	dy, dm, dd := day.Date()
	if ry != dy {
		return ry < dy
	}
	if rm != dm {
		return rm < dm
	}
	return rd <= dd
}
