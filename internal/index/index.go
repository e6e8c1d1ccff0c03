package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/sirupsen/logrus"

	apperrors "github.com/timschmidt/bugbot9000/internal/errors"
)

// Source supplies the roster of crate names from a locally cached snapshot of
// the registry index.
type Source interface {
	// Refresh brings the local index cache up to date with its upstream.
	// A failure here is fatal to the whole run.
	Refresh(ctx context.Context) error

	// List returns the crate names currently in the cached index, in
	// index-defined order. The order is not guaranteed stable across
	// refreshes and the sequence is not restartable; a retried run lists
	// from the beginning again.
	List(ctx context.Context) ([]string, error)
}

// GitSource reads the crates.io-style index: a git repository whose working
// tree holds one metadata file per crate, sharded into one- and two-character
// directories, with one JSON line per published version.
type GitSource struct {
	remoteURL string
	dir       string
	logger    *logrus.Logger
}

func NewGitSource(remoteURL, dir string, logger *logrus.Logger) *GitSource {
	return &GitSource{
		remoteURL: remoteURL,
		dir:       dir,
		logger:    logger,
	}
}

// Refresh clones the index repository on first use and pulls on subsequent
// runs.
func (s *GitSource) Refresh(ctx context.Context) error {
	repo, err := git.PlainOpen(s.dir)
	if err == git.ErrRepositoryNotExists {
		s.logger.WithFields(logrus.Fields{
			"url": s.remoteURL,
			"dir": s.dir,
		}).Info("Cloning registry index")

		_, err := git.PlainCloneContext(ctx, s.dir, false, &git.CloneOptions{
			URL:          s.remoteURL,
			SingleBranch: true,
		})
		if err != nil {
			return apperrors.NewIndexError("could not clone registry index", err)
		}
		return nil
	}
	if err != nil {
		return apperrors.NewIndexError("could not open registry index cache", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return apperrors.NewIndexError("could not open index worktree", err)
	}

	s.logger.WithField("dir", s.dir).Info("Updating registry index")
	err = worktree.PullContext(ctx, &git.PullOptions{
		RemoteName:   "origin",
		SingleBranch: true,
		Force:        true,
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return apperrors.NewIndexError("could not update registry index", err)
	}

	return nil
}

// List walks the cached index tree and returns every crate name. The index
// file paths are lowercased, so the canonical name is taken from the "name"
// field of the newest version line; files that cannot be parsed are skipped.
func (s *GitSource) List(ctx context.Context) ([]string, error) {
	var names []string

	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		base := d.Name()
		if d.IsDir() {
			if base == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		// config.json and dotfiles at the index root are not crates.
		if base == "config.json" || base[0] == '.' {
			return nil
		}

		name, err := crateName(path)
		if err != nil {
			s.logger.WithError(err).WithField("file", path).Debug("Skipping unparseable index file")
			return nil
		}

		names = append(names, name)
		return nil
	})
	if err != nil {
		return nil, apperrors.NewIndexError("could not walk registry index", err)
	}

	s.logger.WithField("crates", len(names)).Info("Listed crates from registry index")
	return names, nil
}

// crateName extracts the crate name from the newest (last) version line of an
// index file.
func crateName(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	line := bytes.TrimRight(data, "\n")
	if i := bytes.LastIndexByte(line, '\n'); i >= 0 {
		line = line[i+1:]
	}

	var version struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(line, &version); err != nil {
		return "", err
	}
	if version.Name == "" {
		return "", fmt.Errorf("index file %s has no crate name", filepath.Base(path))
	}
	return version.Name, nil
}
