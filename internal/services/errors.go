package services

import (
	"errors"
	"fmt"

	"github.com/dtorrez/rentora-api/internal/repository"

	"gorm.io/gorm"
)

// Common service errors. Handlers map these to HTTP statuses with errors.Is;
// services wrap them via fmt.Errorf("%w: ...") to attach detail.
var (
	ErrNotFound            = errors.New("registro no encontrado")
	ErrInvalidArgument     = errors.New("argumento inválido")
	ErrInvalidState        = errors.New("transición de estado inválida")
	ErrBusinessRule        = errors.New("operación rechazada por regla de negocio")
	ErrConcurrencyConflict = errors.New("el registro fue modificado por otro proceso")
	ErrUnavailable         = errors.New("servicio temporalmente no disponible")
	ErrInvalidPassword     = errors.New("contraseña inválida")
	ErrUnauthorized        = errors.New("no autorizado")
	ErrDuplicate           = errors.New("registro duplicado")
	ErrInvalidRecoveryCode = errors.New("código de recuperación inválido o expirado")
)

// translateRepoError maps persistence failures onto the service sentinels so
// callers never have to know repository internals.
func translateRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrStaleObject):
		return ErrConcurrencyConflict
	case errors.Is(err, repository.ErrDuplicateDraft):
		return fmt.Errorf("%w: otro proceso creó el borrador para este período", ErrBusinessRule)
	}
	return err
}
