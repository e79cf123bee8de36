//go:build integration
// +build integration

package counter

import (
	"flag"
	"fmt"
	"os/user"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/tapglue/visits/platform/pg"
)

var pgTestURL = flag.String("postgres.url", "", "Postgres test connection URL")

func TestPostgresGet(t *testing.T) {
	testServiceGet(t, preparePostgres)
}

func TestPostgresIncr(t *testing.T) {
	testServiceIncr(t, preparePostgres)
}

func TestPostgresIncrConcurrent(t *testing.T) {
	testServiceIncrConcurrent(t, preparePostgres)
}

func TestPostgresSet(t *testing.T) {
	testServiceSet(t, preparePostgres)
}

func TestPostgresTeardown(t *testing.T) {
	testServiceTeardown(t, preparePostgres)
}

func preparePostgres(t *testing.T) Service {
	db, err := sqlx.Connect("postgres", postgresURL(t))
	if err != nil {
		t.Fatal(err)
	}

	s := PostgresService(db, "service_counter")

	if err := s.Teardown(); err != nil {
		t.Fatal(err)
	}

	return s
}

func postgresURL(t *testing.T) string {
	if *pgTestURL != "" {
		return *pgTestURL
	}

	u, err := user.Current()
	if err != nil {
		t.Fatal(err)
	}

	return fmt.Sprintf(pg.URLTest, u.Username)
}
