package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar"

	"github.com/oshokin/installtool/internal/domain/release"
	"github.com/oshokin/installtool/internal/logger"
)

var (
	// ErrDuplicateArtifact is returned when two files share a base name.
	ErrDuplicateArtifact = errors.New("duplicate artifact name")
	// ErrNoArtifacts is returned when the search matched nothing.
	ErrNoArtifacts = errors.New("no artifacts found")
)

// Query describes a package search.
type Query struct {
	// Root is the directory to search.
	Root string
	// Pattern is matched against base names; doublestar syntax, e.g. *.{rpm,drpm}.
	Pattern string
	// Architecture keeps only names containing it when non-empty.
	Architecture string
	// Recursive descends into subdirectories.
	Recursive bool
}

// Find returns matching artifacts in lexical path order.
func Find(ctx context.Context, query Query) ([]release.Artifact, error) {
	root, err := filepath.Abs(query.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve search root: %w", err)
	}

	var (
		artifacts []release.Artifact
		seen      = make(map[string]string)
	)

	walk := func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if entry.IsDir() {
			if path != root && !query.Recursive {
				return filepath.SkipDir
			}

			return nil
		}

		if !entry.Type().IsRegular() && entry.Type()&fs.ModeSymlink == 0 {
			return nil
		}

		name := entry.Name()

		matched, matchErr := doublestar.Match(query.Pattern, name)
		if matchErr != nil {
			return fmt.Errorf("pattern %q: %w", query.Pattern, matchErr)
		}

		if !matched {
			return nil
		}

		if query.Architecture != "" && !strings.Contains(name, query.Architecture) {
			logger.DebugKV(ctx, "Skipping package for another architecture", "file", path)

			return nil
		}

		if previous, found := seen[name]; found {
			return fmt.Errorf("%s and %s: %w", previous, path, ErrDuplicateArtifact)
		}

		seen[name] = path
		artifacts = append(artifacts, release.Artifact{Name: name, Path: path})

		return nil
	}

	if err = filepath.WalkDir(root, walk); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("search root %s: %w", root, err)
		}

		return nil, fmt.Errorf("search packages: %w", err)
	}

	if len(artifacts) == 0 {
		return nil, fmt.Errorf("%s in %s: %w", query.Pattern, root, ErrNoArtifacts)
	}

	logger.InfoKV(ctx, "Packages discovered", "root", root, "pattern", query.Pattern,
		"architecture", query.Architecture, "recursive", query.Recursive, "count", len(artifacts))

	return artifacts, nil
}
