package model

import "time"

// Notification is a push message addressed to the Academy whose
// OwnerEmail equals TargetEmail.  The relation is resolved at read time and
// is not enforced by the store.
//
// Fields:
//  ID          – store assigned id.
//  Title       – headline.
//  Subtitle    – secondary line.
//  Description – body text.
//  TargetEmail – owner email of the addressed academy.
//  Date        – display date (DateLayout).
//  CreatedAt   – stamped when the notification is created.
//  UpdatedAt   – stamped on every update (nil until the first one).
type Notification struct {
	ID          string     `json:"id,omitempty"`
	Title       string     `json:"title" validate:"required"`
	Subtitle    string     `json:"subtitle"`
	Description string     `json:"description" validate:"required"`
	TargetEmail string     `json:"targetEmail" validate:"required,email"`
	Date        string     `json:"date" validate:"omitempty,datetime=2006-01-02"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}
