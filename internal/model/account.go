package model

// Collection names as they are laid out in the remote store.  Each entity
// type is one flat collection keyed by an opaque document id.
const (
	CollectionAccounts      = "users"
	CollectionAcademies     = "academias"
	CollectionAdmins        = "admins"
	CollectionArticles      = "artigos"
	CollectionNotifications = "notifications"
)

// Account roles stored on companion Account documents.
const (
	RoleAdmin    = "admin"
	RoleGymOwner = "gym-owner"
)

// Account represents either a platform administrator or a gym owner.  It
// is the companion document of an Academy or an Admin and shares that
// document's id.  SecretHash only ever holds the output of the secret
// hashing primitive; the plaintext secret is never persisted.
//
// Fields:
//  ID          – identity-provider issued id (same as the paired document).
//  DisplayName – owner or admin name.
//  Email       – login email.
//  SecretHash  – hashed secret (empty when the paired entity never staged one).
//  Role        – RoleAdmin or RoleGymOwner.
//  SubRole     – optional refinement of Role (admins only).
type Account struct {
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"displayName" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	SecretHash  string `json:"secretHash,omitempty"`
	Role        string `json:"role" validate:"required,oneof=admin gym-owner"`
	SubRole     string `json:"subRole,omitempty"`
}
