package model

// Admin is a platform administrator allowed to sign in to the console.
// Like Academy it is paired with a companion Account of the same id.
type Admin struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	SecretHash string `json:"secretHash,omitempty"`
	SubRole    string `json:"subRole,omitempty"`
}
