package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tracekit/internal/fs"
)

func TestLocal_Open(t *testing.T) {
	dir := t.TempDir()
	content := []byte("  bash-1 [000] 1.0: sched_switch: a=b\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "trace.txt"), content, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.txt"), nil, 0o600))

	for _, useMmap := range []bool{false, true} {
		name := "read"
		if useMmap {
			name = "mmap"
		}
		t.Run(name, func(t *testing.T) {
			src := NewLocal(WithRoot(dir), WithMmap(useMmap))

			rc, err := src.Open(t.Context(), "trace.txt")
			require.NoError(t, err)
			got, err := io.ReadAll(rc)
			require.NoError(t, err)
			require.NoError(t, rc.Close())
			assert.Equal(t, content, got)

			rc, err = src.Open(t.Context(), "empty.txt")
			require.NoError(t, err)
			got, err = io.ReadAll(rc)
			require.NoError(t, err)
			require.NoError(t, rc.Close())
			assert.Empty(t, got)

			_, err = src.Open(t.Context(), "missing.txt")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}

	t.Run("absolute path ignores root", func(t *testing.T) {
		src := NewLocal(WithRoot("/nonexistent"))
		rc, err := src.Open(t.Context(), filepath.Join(dir, "trace.txt"))
		require.NoError(t, err)
		require.NoError(t, rc.Close())
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		_, err := NewLocal().Open(ctx, filepath.Join(dir, "trace.txt"))
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("file system", func(t *testing.T) {
		faulty := fs.NewFaultyFS(nil)
		faulty.AddRule("trace", fs.Fault{FailOnOpen: true})

		_, err := NewLocal(WithRoot(dir), WithFileSystem(faulty)).Open(t.Context(), "trace.txt")
		assert.ErrorIs(t, err, fs.ErrInjected)
	})
}
