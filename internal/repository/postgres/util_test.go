package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErr(t *testing.T) {
	other := errors.New("connection reset")
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), ErrNotFound},
		{"unique", &pgconn.PgError{Code: "23505"}, ErrConflict},
		{"fk", &pgconn.PgError{Code: "23503"}, ErrConstraint},
		{"check", &pgconn.PgError{Code: "23514"}, ErrConstraint},
		{"passthrough", other, other},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapErr(tc.in)
			if tc.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tc.want)
		})
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := Migrations.ReadDir(MigrationsDir)
	assert.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestPoolConfigOverrides(t *testing.T) {
	pcfg, err := poolConfig(Config{
		DSN:             "postgres://u:p@localhost:5432/gorev?sslmode=disable",
		AppName:         "push-dispatcher",
		MaxConns:        7,
		MaxConnLifetime: time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, "push-dispatcher", pcfg.ConnConfig.RuntimeParams["application_name"])
	assert.EqualValues(t, 7, pcfg.MaxConns)
	assert.Equal(t, time.Minute, pcfg.MaxConnLifetime)

	_, err = poolConfig(Config{DSN: "postgres://u:p@localhost:notaport/gorev"})
	require.Error(t, err)
}

func TestMarkReadRejectsNonUUID(t *testing.T) {
	r := &NotificationRepo{}
	err := r.MarkRead(context.Background(), "alice", "not-a-uuid")
	require.ErrorIs(t, err, ErrNotFound)
}
