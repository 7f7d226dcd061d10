package reflector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_IsTracked(t *testing.T) {
	t.Parallel()
	w, err := NewWatcher(t.TempDir(), Options{})
	require.NoError(t, err)
	defer w.watcher.Close()

	assert.True(t, w.isTracked(filepath.Join("top", "Core", "Types.h")))
	assert.True(t, w.isTracked(filepath.Join("top", "Core", "Core.vcxproj")))
	assert.False(t, w.isTracked(filepath.Join("top", "Core", "Types.cpp")))
	assert.False(t, w.isTracked(filepath.Join("top", "Core", "GeneratedCode", "RegisterCoreEnums.h")))
}

func TestWatcher_StopWithUnreadBacklog(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	w, err := NewWatcher(dir, Options{})
	require.NoError(t, err)
	require.NoError(t, w.Start())

	// More distinct changes than the channel holds, with nobody reading.
	for i := range 40 {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("H%02d.h", i)), []byte("#pragma once\n"), 0o644))
	}
	time.Sleep(500 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop blocked on a full change channel")
	}

	n := 0
	for range w.Changes {
		n++
	}
	assert.LessOrEqual(t, n, cap(w.changes))
}

func TestWatch_RerunsOnHeaderChange(t *testing.T) {
	t.Parallel()
	top := writeTree(t)
	opts := testOptions(top)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type result struct {
		sum Summary
		err error
	}
	results := make(chan result, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, opts, Deps{}, func(s Summary, err error) {
			results <- result{s, err}
		})
	}()

	select {
	case r := <-results:
		require.NoError(t, r.err)
		assert.Equal(t, 3, r.sum.Reparsed)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the initial run")
	}

	touch(t, filepath.Join(top, "Game", "Modes.h"), "#pragma once\n")

	select {
	case r := <-results:
		require.NoError(t, r.err)
		assert.Equal(t, []string{"Game"}, r.sum.Regenerated)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the rerun")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
