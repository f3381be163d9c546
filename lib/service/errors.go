package service

import (
	"errors"
	"strings"

	"github.com/uptrace/bun/driver/pgdriver"
)

var (
	ErrNotFound                = errors.New("not found")
	ErrConflict                = errors.New("conflict")
	ErrUnsupportedChain        = errors.New("unsupported chain")
	ErrContractNotConfigured   = errors.New("contract address not configured")
	ErrChainCall               = errors.New("chain call failed")
	ErrInsufficientPoolBalance = errors.New("insufficient research pool balance")
	ErrForbidden               = errors.New("forbidden")
	ErrInvalidArgument         = errors.New("invalid argument")
	ErrBadSignature            = errors.New("bad signature")
)

// isUniqueViolation reports whether err was raised by a unique index, on
// postgres (SQLSTATE 23505) or sqlite.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
