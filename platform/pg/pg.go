package pg

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// DefaultSchema is the schema counters live in unless configured otherwise.
const DefaultSchema = "visits"

// URLTest is the connection URL integration tests default to, formatted with
// the current OS user.
const URLTest = "postgres://%s@127.0.0.1:5432/visits_test?sslmode=disable&connect_timeout=5"

const codeUndefinedTable = "42P01"

// ErrRelationNotFound is returned as equivalent to the Postgres error.
var ErrRelationNotFound = errors.New("relation not found")

// To ensure idempotence we want to create the index only if it doesn't exist.
const guardIndex = `DO $$
		BEGIN
		IF NOT EXISTS (
			SELECT 1 FROM pg_indexes WHERE schemaname = '%s' AND indexname = '%s'
		) THEN
		%s;
		END IF;
		END$$;`

// GuardIndex wraps an index creation query with a condition to prevent conflicts.
func GuardIndex(schema, index, query string) string {
	return fmt.Sprintf(
		guardIndex,
		schema,
		index,
		fmt.Sprintf(query, index, schema),
	)
}

// IsRelationNotFound indicates if err is ErrRelationNotFound.
func IsRelationNotFound(err error) bool {
	return err == ErrRelationNotFound
}

// WrapError check the given error if it indicates that the relation wasn't
// present, otherwise returns the original error.
func WrapError(err error) error {
	if err, ok := err.(*pq.Error); ok && err.Code == codeUndefinedTable {
		return ErrRelationNotFound
	}

	return err
}
