package database

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers the lifecycle treats as transient.
const (
	ErDupEntry        = 1062
	ErLockWaitTimeout = 1205
	ErLockDeadlock    = 1213
)

// IsRetryable reports whether err is a deadlock, a lock wait timeout or a
// duplicate key.  Two concurrent bookings of the same slot surface as one
// of these, and a single retry re-runs validation against the winner.
func IsRetryable(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	switch me.Number {
	case ErDupEntry, ErLockWaitTimeout, ErLockDeadlock:
		return true
	}
	return false
}
