// Package gitfiles narrows check input to files changed since HEAD, so
// incremental runs skip the parts of the tree nobody touched.
package gitfiles

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-git/go-git/v5"
)

// ErrNoRepository means the project root is not inside a git repository.
// Callers fall back to checking everything.
var ErrNoRepository = errors.New("gitfiles: not a git repository")

// ChangedFiles returns the paths (relative to the repository root) that
// differ from HEAD: staged, unstaged, and untracked files alike. Deleted
// files are excluded since no check can run against them.
func ChangedFiles(projectRoot string) ([]string, error) {
	repo, err := git.PlainOpenWithOptions(projectRoot, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, ErrNoRepository
		}
		return nil, fmt.Errorf("opening repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("getting worktree: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("computing status: %w", err)
	}

	var files []string
	for path, st := range status {
		if st.Staging == git.Unmodified && st.Worktree == git.Unmodified {
			continue
		}
		if st.Staging == git.Deleted || st.Worktree == git.Deleted {
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

// Branch returns the current branch name, empty on detached HEAD or when
// the root is not a repository.
func Branch(projectRoot string) string {
	repo, err := git.PlainOpenWithOptions(projectRoot, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	if head.Name().IsBranch() {
		return head.Name().Short()
	}
	return ""
}
