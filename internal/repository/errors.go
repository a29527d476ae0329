// Package repository holds the MySQL data access for rooms (izba) and
// students (ziak).  Every multi-statement mutation runs in one transaction
// and keeps izba.pocet_ubytovanych in step with the ziak rows that point at
// the room.  Driver errors are translated into apperrors kinds so handlers
// can map them to HTTP status codes without knowing about MySQL.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/dorm-occupancy/internal/apperrors"
)

// MySQL server error numbers the repositories translate.
const (
	errDuplicateEntry  = 1062 // unique key violation
	errRowIsReferenced = 1451 // parent row still referenced by a foreign key
	errNoReferencedRow = 1452 // foreign key points at a missing parent row
)

// translate maps known driver errors to domain errors.  msg is used as the
// human readable message; unknown errors pass through unchanged.
func translate(err error, msg string) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return err
	}
	switch me.Number {
	case errDuplicateEntry, errRowIsReferenced:
		return apperrors.Conflict(msg)
	case errNoReferencedRow:
		return apperrors.NotFound(msg)
	}
	return err
}
