package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

func TestListQuery(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q, args := listQuery(
		"SELECT * FROM trade_records WHERE TRUE AND mode = $1",
		"executed_at", "ASC",
		domain.ListOpts{Since: &since, Limit: 10, Offset: 5},
		[]any{"real"},
	)
	assert.Equal(t,
		"SELECT * FROM trade_records WHERE TRUE AND mode = $1 AND executed_at >= $2 ORDER BY executed_at ASC LIMIT $3 OFFSET $4",
		q)
	assert.Equal(t, []any{"real", since, 10, 5}, args)
}

func TestListQueryNoFilters(t *testing.T) {
	q, args := listQuery("SELECT 1 FROM audit_log WHERE TRUE", "created_at", "DESC", domain.ListOpts{}, nil)
	assert.Equal(t, "SELECT 1 FROM audit_log WHERE TRUE ORDER BY created_at DESC", q)
	assert.Empty(t, args)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://bot:pw@db:5432/solbot?sslmode=disable",
		DSN(ClientConfig{User: "bot", Password: "pw", Host: "db", Database: "solbot"}))
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}))
}

func TestDSN_EscapesCredentials(t *testing.T) {
	got := DSN(ClientConfig{User: "bot", Password: "p@ss/word", Host: "db", Port: 6543, Database: "solbot", SSLMode: "require"})
	assert.Equal(t, "postgres://bot:p%40ss%2Fword@db:6543/solbot?sslmode=require", got)
}

func TestMigrationNames(t *testing.T) {
	names, err := migrationNames()
	assert.NoError(t, err)
	assert.Equal(t, []string{"001_trade_records.sql", "002_audit_log.sql"}, names)
	for _, name := range names {
		data, err := migrationsFS.ReadFile("migrations/" + name)
		assert.NoError(t, err, name)
		assert.NotEmpty(t, data)
	}
}
