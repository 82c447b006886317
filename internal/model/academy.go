package model

import "time"

// DateLayout is the calendar date format used by date-only fields such as
// Academy.PlanEndDate and Notification.Date.
const DateLayout = "2006-01-02"

// Academy represents a gym account managed by the platform.  An Academy is
// one-to-one with a companion Account sharing the same id once created.
//
// Fields:
//  ID                 – identity-provider issued id.
//  Name               – gym name.
//  OwnerName          – name of the gym owner.
//  OwnerEmail         – owner login email; Notifications target this value.
//  SecretHash         – hashed owner secret.
//  Blocked            – whether the academy is blocked from the platform.
//  Payment            – whether the current plan has been paid.
//  PlanName           – commercial plan name.
//  PlanDurationMonths – plan length in months.
//  PlanEndDate        – plan end date (DateLayout).
type Academy struct {
	ID                 string `json:"id,omitempty"`
	Name               string `json:"name" validate:"required"`
	OwnerName          string `json:"ownerName" validate:"required"`
	OwnerEmail         string `json:"ownerEmail" validate:"required,email"`
	SecretHash         string `json:"secretHash,omitempty"`
	Blocked            bool   `json:"blocked"`
	Payment            bool   `json:"payment"`
	PlanName           string `json:"planName"`
	PlanDurationMonths int    `json:"planDurationMonths" validate:"gte=0"`
	PlanEndDate        string `json:"planEndDate" validate:"omitempty,datetime=2006-01-02"`
}

// PlanEnd parses PlanEndDate in the given location.  ok is false when the
// academy has no (or an unparsable) end date.
func (a Academy) PlanEnd(loc *time.Location) (time.Time, bool) {
	if a.PlanEndDate == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(DateLayout, a.PlanEndDate, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
