package counter

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tapglue/visits/platform/pg"
)

const (
	pgGetCounter = `
		SELECT
			value
		FROM
			%s.counters
		WHERE
			name = $1
		LIMIT
			1`
	pgIncrCounter = `
		INSERT INTO %s.counters(name, value)
		VALUES($1, 1)
		ON CONFLICT (name) DO
		UPDATE SET
			value = counters.value + 1,
			updated_at = (now() AT TIME ZONE 'utc')
		RETURNING
			value`
	pgSetCounter = `
		INSERT INTO %s.counters(name, value)
		VALUES($1, $2)
		ON CONFLICT (name) DO
		UPDATE SET
			value = $2,
			updated_at = (now() AT TIME ZONE 'utc')`

	pgCreateSchema = `CREATE SCHEMA IF NOT EXISTS %s`
	pgCreateTable  = `
		CREATE TABLE IF NOT EXISTS %s.counters(
			name TEXT NOT NULL,
			value BIGINT NOT NULL CHECK (value >= 0),
			created_at TIMESTAMP WITHOUT TIME ZONE DEFAULT (now() AT TIME ZONE 'utc'),
			updated_at TIMESTAMP WITHOUT TIME ZONE DEFAULT (now() AT TIME ZONE 'utc'),

			PRIMARY KEY (name)
		)`
	pgDropTable = `DROP TABLE IF EXISTS %s.counters CASCADE`

	pgIndexCounterUpdatedAt = `
		CREATE INDEX
			%s
		ON
			%s.counters
		USING
			btree(updated_at)`
)

type pgService struct {
	db     *sqlx.DB
	schema string
}

// PostgresService returns a Postgres based Service implementation keeping
// counters in the given schema.
func PostgresService(db *sqlx.DB, schema string) Service {
	return &pgService{
		db:     db,
		schema: schema,
	}
}

func (s *pgService) Get(name string) (uint64, error) {
	var (
		query = fmt.Sprintf(pgGetCounter, s.schema)

		value int64
	)

	err := s.db.Get(&value, query, name)
	if err != nil && pg.IsRelationNotFound(pg.WrapError(err)) {
		if err := s.Setup(); err != nil {
			return 0, err
		}

		err = s.db.Get(&value, query, name)
	}

	if err == sql.ErrNoRows {
		return 0, wrapError(ErrNotFound, "%s", name)
	}

	if err != nil {
		return 0, err
	}

	return uint64(value), nil
}

func (s *pgService) Incr(name string) (uint64, error) {
	var (
		query = fmt.Sprintf(pgIncrCounter, s.schema)

		value int64
	)

	err := s.db.Get(&value, query, name)
	if err != nil && pg.IsRelationNotFound(pg.WrapError(err)) {
		if err := s.Setup(); err != nil {
			return 0, err
		}

		err = s.db.Get(&value, query, name)
	}

	if err != nil {
		return 0, err
	}

	return uint64(value), nil
}

func (s *pgService) Set(name string, value uint64) error {
	var (
		args = []interface{}{
			name,
			int64(value),
		}
		query = fmt.Sprintf(pgSetCounter, s.schema)
	)

	_, err := s.db.Exec(query, args...)
	if err != nil && pg.IsRelationNotFound(pg.WrapError(err)) {
		if err := s.Setup(); err != nil {
			return err
		}

		_, err = s.db.Exec(query, args...)
	}

	return err
}

func (s *pgService) Setup() error {
	for _, q := range []string{
		fmt.Sprintf(pgCreateSchema, s.schema),
		fmt.Sprintf(pgCreateTable, s.schema),

		// Indexes.
		pg.GuardIndex(s.schema, "counter_updated_at", pgIndexCounterUpdatedAt),
	} {
		_, err := s.db.Exec(q)
		if err != nil {
			return fmt.Errorf("setup '%s': %s", q, err)
		}
	}

	return nil
}

func (s *pgService) Teardown() error {
	for _, q := range []string{
		fmt.Sprintf(pgDropTable, s.schema),
	} {
		_, err := s.db.Exec(q)
		if err != nil {
			return fmt.Errorf("teardown '%s': %s", q, err)
		}
	}

	return nil
}
