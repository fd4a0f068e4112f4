package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/turf-reservation/internal/database"
)

// classify maps transient lock/serialization failures onto ErrConflict,
// keeping the driver error in the chain for logging.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if database.IsRetryable(err) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return classify(err)
}
