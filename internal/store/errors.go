package store

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/chkdhq/chkd/internal/chkderr"
)

// Classify maps a raw SQL driver error to a chkderr.Kind for a given
// operation label. Callers use this at the store boundary so the rest of the
// engine never inspects driver-specific error strings.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return chkderr.New(chkderr.NotFound, op, err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint"), strings.Contains(msg, "duplicate entry"):
		return chkderr.New(chkderr.Conflict, op, err)
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "busy"):
		return chkderr.New(chkderr.Timeout, op, err)
	case strings.Contains(msg, "malformed"), strings.Contains(msg, "corrupt"):
		return chkderr.New(chkderr.StoreCorruption, op, err)
	default:
		return chkderr.New(chkderr.StoreIO, op, err)
	}
}
