package memory_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentcore/core/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedHealth struct {
	status memory.SystemHealthStatus
}

func (f fixedHealth) Aggregate(context.Context) memory.SystemHealthStatus { return f.status }

func TestBackupCoordinatorSnapshotsAllLayersWithChecksums(t *testing.T) {
	store := memory.NewMemStore()
	require.NoError(t, store.Insert(context.Background(), newRecord(memory.Interact, []float64{1, 0})))

	bc := memory.NewBackupCoordinator(store, fixedHealth{status: memory.SystemDegraded})
	path := filepath.Join(t.TempDir(), "backup.json")

	manifest, err := bc.CreateBackup(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, manifest.Layers, 3)
	for _, l := range manifest.Layers {
		assert.NotEmpty(t, l.Checksum)
	}

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestBackupCoordinatorRefusesWhenUnhealthy(t *testing.T) {
	store := memory.NewMemStore()
	bc := memory.NewBackupCoordinator(store, fixedHealth{status: memory.SystemUnhealthy})
	_, err := bc.CreateBackup(context.Background(), filepath.Join(t.TempDir(), "backup.json"))
	assert.Error(t, err)
}
