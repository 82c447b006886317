// Package repository stores the identity provider's credentials.  The
// sentinel values below let the identity layer tell expected failures
// (a duplicate email, an unknown email) from infrastructure errors.
package repository

import "errors"

// ErrEmailExists is returned by Create when the email is already registered.
var ErrEmailExists = errors.New("email already exists")

// ErrNotFound is returned when no credential matches the lookup.
var ErrNotFound = errors.New("credential not found")
