// Package filter derives read-only views from mirrored snapshots.  Nothing
// here writes or mutates its input.
package filter

import (
	"strings"
	"time"

	"github.com/fitfusion/admin-console/internal/model"
)

// ExpiryWindowDays is the horizon of ExpiringPlans.
const ExpiryWindowDays = 30

func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysUntil counts calendar days from today to the academy's plan end.  ok
// is false when the academy has no usable end date.
func DaysUntil(a model.Academy, today time.Time) (days int, ok bool) {
	end, ok := a.PlanEnd(time.UTC)
	if !ok {
		return 0, false
	}
	return int(end.Sub(civil(today)).Hours() / 24), true
}

// ExpiringPlans keeps academies whose plan ends after today and at most
// ExpiryWindowDays calendar days from it.  Ending today, already expired or
// further out is left out, as is a missing end date.
func ExpiringPlans(academies []model.Academy, today time.Time) []model.Academy {
	out := make([]model.Academy, 0)
	for _, a := range academies {
		d, ok := DaysUntil(a, today)
		if ok && d > 0 && d <= ExpiryWindowDays {
			out = append(out, a)
		}
	}
	return out
}

func emailKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// NotificationsForAcademies keeps notifications whose target email is the
// owner email of at least one loaded academy.  Unmatched ones are dropped.
func NotificationsForAcademies(notifs []model.Notification, academies []model.Academy) []model.Notification {
	owners := make(map[string]struct{}, len(academies))
	for _, a := range academies {
		if k := emailKey(a.OwnerEmail); k != "" {
			owners[k] = struct{}{}
		}
	}
	out := make([]model.Notification, 0, len(notifs))
	for _, n := range notifs {
		if _, ok := owners[emailKey(n.TargetEmail)]; ok {
			out = append(out, n)
		}
	}
	return out
}

// NotificationsForAcademy keeps the notifications addressed to one academy.
func NotificationsForAcademy(notifs []model.Notification, a model.Academy) []model.Notification {
	return NotificationsForAcademies(notifs, []model.Academy{a})
}

// AcademyFor resolves the academy a notification is addressed to.
func AcademyFor(n model.Notification, academies []model.Academy) (model.Academy, bool) {
	k := emailKey(n.TargetEmail)
	for _, a := range academies {
		if emailKey(a.OwnerEmail) == k {
			return a, true
		}
	}
	return model.Academy{}, false
}
