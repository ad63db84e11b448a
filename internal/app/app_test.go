package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joseda-hg/lazytime/internal/config"
	"github.com/Joseda-hg/lazytime/internal/core"
	"github.com/Joseda-hg/lazytime/internal/history"
	"github.com/Joseda-hg/lazytime/internal/model"
	"github.com/Joseda-hg/lazytime/internal/orm"
)

func newTestEnv(t *testing.T) (*Env, config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Config{
		DBPath:        filepath.Join(dir, "data", "lazytime.db"),
		HistoryDBPath: filepath.Join(dir, "data", "history.db"),
	}
	env, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })
	return env, cfg
}

func TestUpdateCommitsAndFailuresRollBack(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.Update(ctx, func(tr *core.Tracker) error {
		_, err := tr.Start(ctx, []string{"kept"})
		return err
	}))

	err := env.Update(ctx, func(tr *core.Tracker) error {
		if _, err := tr.CreatePath(ctx, []string{"dropped"}); err != nil {
			return err
		}
		_, err := tr.Start(ctx, []string{"second"})
		return err
	})
	var running *core.RunningError
	require.ErrorAs(t, err, &running)

	require.NoError(t, env.View(ctx, func(tr *core.Tracker) error {
		nodes, err := orm.GetAll[*model.Node](ctx, tr.Storage())
		require.NoError(t, err)
		require.Len(t, nodes, 1)
		assert.Equal(t, "kept", nodes[0].Label)
		return nil
	}))
}

func TestViewNeverCommits(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.View(ctx, func(tr *core.Tracker) error {
		_, err := tr.CreatePath(ctx, []string{"ghost"})
		return err
	}))
	require.NoError(t, env.View(ctx, func(tr *core.Tracker) error {
		found, err := tr.FindPath(ctx, []string{"ghost"})
		require.NoError(t, err)
		assert.Empty(t, found)
		return nil
	}))
}

func TestEnableHistoryBackfillsAndJournals(t *testing.T) {
	env, cfg := newTestEnv(t)
	ctx := context.Background()
	assert.False(t, env.HistoryEnabled())
	require.ErrorIs(t, env.Journal(ctx, func(*history.Journal) error { return nil }), ErrHistoryDisabled)

	require.NoError(t, env.Update(ctx, func(tr *core.Tracker) error {
		_, err := tr.Start(ctx, []string{"before"})
		return err
	}))

	written, err := env.EnableHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, written)
	require.NoError(t, env.Close())

	// A new process picks the journal up because the file now exists.
	env, err = Open(cfg)
	require.NoError(t, err)
	defer env.Close()
	require.True(t, env.HistoryEnabled())

	require.NoError(t, env.Update(ctx, func(tr *core.Tracker) error {
		_, err := tr.Cancel(ctx)
		return err
	}))

	require.NoError(t, env.Journal(ctx, func(j *history.Journal) error {
		records, err := j.Records(ctx, 0)
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, history.Update, records[0].Type)
		assert.Equal(t, "interval", records[0].EntityType)
		return nil
	}))
}
