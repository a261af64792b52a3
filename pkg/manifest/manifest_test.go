package manifest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tofslices/internal/models"
)

// staticSource is a two subject dataset with three slices each
type staticSource struct{}

func (staticSource) Root() string   { return "/data" }
func (staticSource) TestMode() bool { return false }
func (staticSource) Len() int       { return 6 }

func (staticSource) Subjects() []models.Subject {
	var out []models.Subject
	for _, name := range []string{"a", "b"} {
		out = append(out, models.Subject{
			Name:   name,
			Orig:   fmt.Sprintf("/data/%s/%s_TOF-orig.nii.gz", name, name),
			Pre:    fmt.Sprintf("/data/%s/%s_TOF-pre.nii.gz", name, name),
			Seg:    fmt.Sprintf("/data/%s/%s_aneurysms.nii.gz", name, name),
			Slices: 3,
		})
	}
	return out
}

func (staticSource) Locate(i int) (int, int, error) { return i / 3, i % 3, nil }

func (s staticSource) Identifier(i int) (string, error) {
	return fmt.Sprintf("/data/%s/%s_aneurysms_slice%d.nii", s.Subjects()[i/3].Name, s.Subjects()[i/3].Name, i%3), nil
}

func TestWriteAndLookup(t *testing.T) {
	ctx := context.Background()
	store, err := Open(filepath.Join(t.TempDir(), "manifest.db"))
	require.NoError(t, err)
	defer store.Close()

	run, err := store.Write(ctx, staticSource{})
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	require.Equal(t, 6, run.Length)

	stored, err := store.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, run.ID, stored.ID)
	require.Equal(t, "/data", stored.Root)
	require.False(t, stored.TestMode)

	e, err := store.Lookup(ctx, 4)
	require.NoError(t, err)
	require.Equal(t, "b", e.Subject)
	require.Equal(t, 1, e.Slice)
	require.Equal(t, "/data/b/b_aneurysms_slice1.nii", e.Identifier)

	_, err = store.Lookup(ctx, 6)
	require.True(t, errors.Is(err, ErrNotFound))

	subjects, err := store.Subjects(ctx)
	require.NoError(t, err)
	require.Equal(t, staticSource{}.Subjects(), subjects)
}

func TestWriteReplacesPreviousRun(t *testing.T) {
	ctx := context.Background()
	store, err := Open(filepath.Join(t.TempDir(), "manifest.db"))
	require.NoError(t, err)
	defer store.Close()

	first, err := store.Write(ctx, staticSource{})
	require.NoError(t, err)
	second, err := store.Write(ctx, staticSource{})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	stored, err := store.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, second.ID, stored.ID)
}

func TestEmptyManifest(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "manifest.db"))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Run(context.Background())
	require.True(t, errors.Is(err, ErrNotFound))
}
