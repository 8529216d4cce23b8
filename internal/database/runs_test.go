package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sshcollectorpro/devextract/internal/config"
	"github.com/sshcollectorpro/devextract/internal/model"
)

func openTemp(t *testing.T) *RunStore {
	t.Helper()
	conn, err := Open(config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "runs.db")})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewRunStore(conn)
}

func TestRunStoreSaveAndGet(t *testing.T) {
	store := openTemp(t)

	now := time.Now()
	run := &model.Run{
		ID:        "run-1",
		Host:      "10.0.0.1",
		Dialect:   "cisco_ios",
		Status:    model.RunStatusSuccess,
		Commands:  2,
		Result:    `{"version":{"version":"Cisco IOS Software, Version 15.2"}}`,
		StartTime: now,
		EndTime:   now.Add(time.Second),
		Duration:  1000,
	}
	require.NoError(t, store.Save(run))

	got, err := store.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", got.Host)
	assert.Equal(t, run.Result, got.Result)
	assert.Equal(t, 2, got.Commands)

	_, err = store.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunStoreListFilters(t *testing.T) {
	store := openTemp(t)

	base := time.Now()
	runs := []model.Run{
		{ID: "a", Host: "h1", Dialect: "cisco_ios", Status: model.RunStatusSuccess, StartTime: base},
		{ID: "b", Host: "h1", Dialect: "cisco_ios", Status: model.RunStatusFailed, Stage: "connect", StartTime: base.Add(time.Second)},
		{ID: "c", Host: "h2", Dialect: "juniper_junos", Status: model.RunStatusPartial, StartTime: base.Add(2 * time.Second)},
	}
	for i := range runs {
		require.NoError(t, store.Save(&runs[i]))
	}

	all, total, err := store.List(model.RunFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)

	h1, total, err := store.List(model.RunFilter{Host: "h1"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, h1, 2)

	failed, _, err := store.List(model.RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "connect", failed[0].Stage)

	page, total, err := store.List(model.RunFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].ID)
}

func TestRunStoreNotInitialized(t *testing.T) {
	var s *RunStore
	assert.Error(t, s.Save(&model.Run{}))
	_, err := (&RunStore{}).Get("x")
	assert.Error(t, err)
}

func TestRunStoreUsesGlobalDB(t *testing.T) {
	require.NoError(t, InitSQLite(config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "global.db")}))
	t.Cleanup(func() {
		_ = Close()
		db = nil
	})
	require.NoError(t, Health())

	store := NewRunStore(nil)
	require.NoError(t, store.Save(&model.Run{ID: "g1", Host: "10.0.0.9", Status: model.RunStatusSuccess, StartTime: time.Now()}))

	got, err := store.Get("g1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9", got.Host)
}
