package lifecycle

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

var dateLayouts = []string{"2006-01-02", "2006/01/02", "01/02/2006", "Jan 2, 2006", "2 Jan 2006"}

var timeLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "03:04 PM", "3 PM", "3PM"}

// ScheduledAt interprets the free-form date and time strings of an
// appointment. Slot ranges such as "10:00 AM - 10:30 AM" resolve to their
// start. ok is false when no known layout matches.
func ScheduledAt(date, clock string, loc *time.Location) (time.Time, bool) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if i := strings.Index(clock, "-"); i > 0 {
		clock = strings.TrimSpace(clock[:i])
	}
	clock = strings.ToUpper(clock)
	if loc == nil {
		loc = time.Local
	}
	for _, dl := range dateLayouts {
		for _, tl := range timeLayouts {
			if t, err := time.ParseInLocation(dl+" "+tl, date+" "+clock, loc); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// MeetingRoom derives the video room name from the appointment id, so the
// same appointment always maps to the same room.
func MeetingRoom(appointmentID string) string {
	sum := sha256.Sum256([]byte(appointmentID))
	return "clinic-" + hex.EncodeToString(sum[:6])
}
