package mmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ajitpratap0/hvol/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMapsContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"root":"x"}`), 0o600))

	r, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, `{"root":"x"}`, string(r.Bytes()))
	assert.Equal(t, 12, r.Len())

	require.NoError(t, r.Close())
	assert.Nil(t, r.Bytes())
	require.NoError(t, r.Close())
}

func TestOpenEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	r, err := Open(path)
	require.NoError(t, err)
	assert.Zero(t, r.Len())
	assert.NoError(t, r.Close())
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
