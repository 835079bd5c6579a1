package sla

import "time"

// ReminderLevel identifies a deadline reminder threshold.
type ReminderLevel string

const (
	ReminderOneDay   ReminderLevel = "1d"
	ReminderTwoHours ReminderLevel = "2h"
)

const (
	oneDayThreshold   = 24 * time.Hour
	twoHoursThreshold = 2 * time.Hour
)

// Label is the human readable reminder text.
func (l ReminderLevel) Label() string {
	switch l {
	case ReminderOneDay:
		return "1 day remaining"
	case ReminderTwoHours:
		return "2 hours remaining"
	}
	return string(l)
}

// ReminderDue returns the reminder level that applies to a deadline at now.
// Deadlines already passed or further than a day away have no reminder.
func ReminderDue(deadline, now time.Time) (ReminderLevel, bool) {
	remaining := deadline.Sub(now)
	switch {
	case remaining <= 0:
		return "", false
	case remaining <= twoHoursThreshold:
		return ReminderTwoHours, true
	case remaining <= oneDayThreshold:
		return ReminderOneDay, true
	}
	return "", false
}
