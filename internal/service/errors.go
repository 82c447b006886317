// Package service is the write side of the console: per-screen editors,
// the orchestrator performing multi-document writes, two-step confirmations
// and the per-session workspaces tying them to mirrors and notices.
package service

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/fitfusion/admin-console/internal/identity"
	"github.com/fitfusion/admin-console/internal/model"
	"github.com/fitfusion/admin-console/internal/store"
)

var (
	ErrNoDraft          = errors.New("nenhum formulário aberto")
	ErrBusy             = errors.New("já existe um formulário aberto")
	ErrUnknownField     = errors.New("campo desconhecido")
	ErrInvalidValue     = errors.New("valor inválido")
	ErrSecretRequired   = errors.New("A senha é obrigatória.")
	ErrUnknownScreen    = errors.New("tela desconhecida")
	ErrUnknownToggle    = errors.New("alternância desconhecida")
	ErrNoConfirmation   = errors.New("confirmação não encontrada")
	ErrNotFound         = errors.New("registro não encontrado")
	ErrNotAdmin         = errors.New("O email fornecido não pertence a um administrador.")
	ErrInvalidLoginForm = errors.New("Informe email e senha.")
)

// PartialWriteError reports a multi-document write that stopped after some
// of its writes had already landed.  Nothing is rolled back.
type PartialWriteError struct {
	Step       string // the step that failed
	Collection string
	ID         string
	Err        error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial write: %s failed for %s/%s: %v", e.Step, e.Collection, e.ID, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

var userFacing = []error{
	identity.ErrEmailExists,
	identity.ErrInvalidEmail,
	identity.ErrWeakSecret,
	identity.ErrInvalidCredentials,
	ErrSecretRequired,
	ErrNotAdmin,
	ErrInvalidLoginForm,
}

// Reason turns any failure into the short text shown after the kind's
// failure prefix.  Infrastructure details stay in the logs.
func Reason(err error) string {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	for _, e := range userFacing {
		if errors.Is(err, e) {
			return e.Error()
		}
	}
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, ErrNotFound):
		return ErrNotFound.Error()
	case errors.Is(err, ErrInvalidValue):
		return err.Error()
	}
	return "falha ao comunicar com o servidor, tente novamente"
}
