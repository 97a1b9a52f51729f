package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/envelope-ocr/constants"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{DSN: "sqlite://:memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })
	return db
}

func TestDialectFor(t *testing.T) {
	assert.Equal(t, Postgres, DialectFor("postgres://u:p@localhost:5432/ocr"))
	assert.Equal(t, Postgres, DialectFor("postgresql://localhost/ocr"))
	assert.Equal(t, SQLite, DialectFor("sqlite:///var/lib/ocr/runs.db"))
	assert.Equal(t, SQLite, DialectFor(":memory:"))
}

func TestRebind(t *testing.T) {
	pg := &DB{Dialect: Postgres}
	assert.Equal(t, "UPDATE t SET a = $1 WHERE b = $2", pg.rebind("UPDATE t SET a = ? WHERE b = ?"))

	lite := &DB{Dialect: SQLite}
	assert.Equal(t, "SELECT ?", lite.rebind("SELECT ?"))
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, HealthCheck(context.Background(), db, time.Second, nil))
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	repo, err := NewRunRepository(ctx, openTestDB(t), nil)
	require.NoError(t, err)

	id, err := repo.Start(ctx, Run{
		ReportKey: "ocr-results/ocr_output_2025-03-14.xlsx",
		Filename:  "scan.png",
		Ext:       ".png",
		Source:    "http",
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	run, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusRunning, run.Status)
	assert.Equal(t, "scan.png", run.Filename)
	assert.Nil(t, run.FinishedAt)

	require.NoError(t, repo.Finish(ctx, id, Outcome{
		Status:       constants.RunStatusSucceeded,
		RowsAppended: 1,
		Pages:        1,
		Attempts:     1,
	}))

	run, err = repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusSucceeded, run.Status)
	assert.Equal(t, 1, run.RowsAppended)
	assert.Equal(t, 1, run.Attempts)
	require.NotNil(t, run.FinishedAt)
	assert.False(t, run.FinishedAt.Before(run.StartedAt))
}

func TestRunNotFound(t *testing.T) {
	ctx := context.Background()
	repo, err := NewRunRepository(ctx, openTestDB(t), nil)
	require.NoError(t, err)

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, repo.Finish(ctx, uuid.New(), Outcome{Status: constants.RunStatusFailed}), ErrRunNotFound)
}

func TestListByReport(t *testing.T) {
	ctx := context.Background()
	repo, err := NewRunRepository(ctx, openTestDB(t), nil)
	require.NoError(t, err)

	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	key := "ocr-results/ocr_output_2025-03-14.xlsx"
	for i, name := range []string{"a.pdf", "b.png"} {
		_, err := repo.Start(ctx, Run{ReportKey: key, Filename: name, Ext: ".x", Source: "cli", StartedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}
	_, err = repo.Start(ctx, Run{ReportKey: "other", Filename: "c.png", Ext: ".png", Source: "cli"})
	require.NoError(t, err)

	runs, err := repo.ListByReport(ctx, key)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "a.pdf", runs[0].Filename)
	assert.Equal(t, "b.png", runs[1].Filename)
	assert.True(t, runs[0].StartedAt.Equal(base))
}
