package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bmatcuk/doublestar"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/installtool/internal/domain/release"
)

func touch(t *testing.T, root string, names ...string) {
	t.Helper()

	for _, name := range names {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(name), 0o600))
	}
}

// TestFind covers pattern, architecture and recursion handling.
func TestFind(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	touch(t, root,
		"ckct-BaseCC-1.x86_64.rpm",
		"ckct-bcc_config-1.noarch.rpm",
		"ckct-DataHandler-1.aarch64.rpm",
		"README.txt",
		"rcc/ckct-Viewer-1.x86_64.rpm",
		"rcc/deep/ckct-Storage-1.x86_64.drpm",
	)

	cases := []struct {
		name  string
		query Query
		want  []string
	}{
		{
			name:  "flat",
			query: Query{Root: root, Pattern: "*.rpm"},
			want:  []string{"ckct-BaseCC-1.x86_64.rpm", "ckct-DataHandler-1.aarch64.rpm", "ckct-bcc_config-1.noarch.rpm"},
		},
		{
			name:  "architecture",
			query: Query{Root: root, Pattern: "*.rpm", Architecture: "x86_64"},
			want:  []string{"ckct-BaseCC-1.x86_64.rpm"},
		},
		{
			name:  "recursive",
			query: Query{Root: root, Pattern: "*.rpm", Recursive: true, Architecture: "x86_64"},
			want:  []string{"ckct-BaseCC-1.x86_64.rpm", "ckct-Viewer-1.x86_64.rpm"},
		},
		{
			name:  "alternatives",
			query: Query{Root: root, Pattern: "*.{rpm,drpm}", Recursive: true, Architecture: "x86_64"},
			want:  []string{"ckct-BaseCC-1.x86_64.rpm", "ckct-Viewer-1.x86_64.rpm", "ckct-Storage-1.x86_64.drpm"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			artifacts, err := Find(context.Background(), tc.query)
			require.NoError(t, err)
			require.Equal(t, tc.want, release.Names(artifacts))

			for _, artifact := range artifacts {
				require.True(t, filepath.IsAbs(artifact.Path))
				require.Equal(t, artifact.Name, filepath.Base(artifact.Path))
			}
		})
	}
}

// TestFind_Errors reports duplicates, empty results and bad patterns.
func TestFind_Errors(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	touch(t, root, "a/pkg-1.rpm", "b/pkg-1.rpm")

	_, err := Find(context.Background(), Query{Root: root, Pattern: "*.rpm", Recursive: true})
	require.ErrorIs(t, err, ErrDuplicateArtifact)

	_, err = Find(context.Background(), Query{Root: root, Pattern: "*.rpm"})
	require.ErrorIs(t, err, ErrNoArtifacts)

	_, err = Find(context.Background(), Query{Root: root, Pattern: "[", Recursive: true})
	require.ErrorIs(t, err, doublestar.ErrBadPattern)

	_, err = Find(context.Background(), Query{Root: filepath.Join(root, "missing"), Pattern: "*.rpm"})
	require.ErrorIs(t, err, os.ErrNotExist)
}
