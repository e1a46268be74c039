// Package common defines sentinel errors shared by the repositories, services
// and transport layers of vpnkeeper. Callers should use errors.Is to match
// these values; lower layers wrap them with fmt.Errorf("...: %w", err).
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound          = errors.New("not found")
	ErrConstraintViolation = errors.New("constraint violation")

	// Service-level errors.
	ErrorInternal           = errors.New("internal error")
	ErrQuotaExceeded        = errors.New("key quota exceeded")
	ErrDuplicateMigration   = errors.New("migration already applied")
	ErrExternalCollaborator = errors.New("external collaborator failure")

	// Validation errors.
	ErrInvalidArgument = errors.New("invalid argument")
)
