package cloner

import (
	"context"
	"fmt"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/sirupsen/logrus"

	apperrors "github.com/timschmidt/bugbot9000/internal/errors"
)

// Executor performs a full repository clone from a URL to a destination path.
type Executor interface {
	// Clone mirrors the default branch of url, full history, into dest.
	// Precondition: dest does not exist; the caller's skip check guarantees
	// it. The URL is passed through unvalidated, so a malformed or
	// unreachable URL surfaces as a clone error like any other failure.
	Clone(ctx context.Context, url, dest string) error
}

// GitCloner implements Executor with go-git. Both https and ssh-style URLs
// are accepted.
type GitCloner struct {
	logger *logrus.Logger
}

func NewGitCloner(logger *logrus.Logger) *GitCloner {
	return &GitCloner{logger: logger}
}

func (c *GitCloner) Clone(ctx context.Context, url, dest string) error {
	c.logger.WithFields(logrus.Fields{
		"url":  url,
		"dest": dest,
	}).Debug("Cloning repository")

	_, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
		URL: url,
	})
	if err != nil {
		// A half-written destination must not survive a failed clone: the
		// next run's skip check treats directory existence as a completed
		// mirror.
		if rmErr := os.RemoveAll(dest); rmErr != nil {
			c.logger.WithError(rmErr).WithField("dest", dest).Warn("Failed to clean up partial clone")
		}
		return apperrors.NewCloneError(fmt.Sprintf("failed to clone %s", url), err)
	}

	return nil
}
