package model

import (
	"fmt"
	"time"
)

// UsageType is a metered daily action.
type UsageType string

const (
	UsageChat  UsageType = "chat"
	UsageImage UsageType = "image"
)

// ParseUsageType validates a usage type name.
func ParseUsageType(s string) (UsageType, error) {
	switch t := UsageType(s); t {
	case UsageChat, UsageImage:
		return t, nil
	default:
		return "", fmt.Errorf("unknown usage type %q", s)
	}
}

// UsageDateLayout is the calendar-day key format for daily counters.
const UsageDateLayout = "2006-01-02"

// ReferenceZone is the fixed timezone (IST, UTC+5:30) that defines a usage day.
var ReferenceZone = time.FixedZone("IST", 5*60*60+30*60)

// UsageDate returns the usage day containing t in the reference timezone.
func UsageDate(t time.Time) string {
	return t.In(ReferenceZone).Format(UsageDateLayout)
}

// DailyUsage holds a student's counters for one usage day.
type DailyUsage struct {
	StudentID  string `db:"student_id" json:"student_id"`
	UsageDate  string `db:"usage_date" json:"usage_date"`
	ChatsUsed  int    `db:"chats_used" json:"chats_used"`
	ImagesUsed int    `db:"images_used" json:"images_used"`
}

// Count returns the counter for t.
func (u *DailyUsage) Count(t UsageType) int {
	if u == nil {
		return 0
	}
	if t == UsageImage {
		return u.ImagesUsed
	}
	return u.ChatsUsed
}
