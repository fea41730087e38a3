// Package gitctx enriches a run context with repository facts: the current
// branch, HEAD commit, and the files changed since a base ref.
package gitctx

import (
	"fmt"
	"sort"

	goGit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/bkeller/terrarisk/internal/domain"
)

// Enricher reads repository state for run context fields.
type Enricher struct {
	repoDir string
}

// NewEnricher constructs an Enricher for the provided repository directory.
func NewEnricher(repoDir string) *Enricher {
	return &Enricher{repoDir: repoDir}
}

// Enrich fills the git-derived fields of a run context. Fields already set
// by the caller win; only empty ones are populated. A missing repository is
// not an error — the context is returned untouched so reviews of standalone
// files still work.
func (e *Enricher) Enrich(rc domain.RunContext, baseRef string) (domain.RunContext, error) {
	repo, err := goGit.PlainOpenWithOptions(e.repoDir, &goGit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if err == goGit.ErrRepositoryNotExists {
			return rc, nil
		}
		return rc, fmt.Errorf("open repo: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return rc, fmt.Errorf("resolve HEAD: %w", err)
	}

	if rc.CommitSHA == "" {
		rc.CommitSHA = head.Hash().String()
	}
	if rc.Branch == "" && head.Name().IsBranch() {
		rc.Branch = head.Name().Short()
	}

	if len(rc.ChangedFiles) == 0 && baseRef != "" {
		changed, err := e.changedFiles(repo, head.Hash(), baseRef)
		if err != nil {
			return rc, err
		}
		rc.ChangedFiles = changed
	}

	return rc, nil
}

// changedFiles lists paths that differ between baseRef and the head commit.
func (e *Enricher) changedFiles(repo *goGit.Repository, headHash plumbing.Hash, baseRef string) ([]string, error) {
	baseCommit, err := resolveCommit(repo, baseRef)
	if err != nil {
		return nil, fmt.Errorf("resolve base ref: %w", err)
	}
	headCommit, err := repo.CommitObject(headHash)
	if err != nil {
		return nil, fmt.Errorf("resolve head commit: %w", err)
	}

	patch, err := baseCommit.Patch(headCommit)
	if err != nil {
		return nil, fmt.Errorf("compute patch: %w", err)
	}

	seen := make(map[string]struct{})
	for _, fp := range patch.FilePatches() {
		from, to := fp.Files()
		if to != nil {
			seen[to.Path()] = struct{}{}
		} else if from != nil {
			seen[from.Path()] = struct{}{}
		}
	}

	paths := make([]string, 0, len(seen))
	for path := range seen {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}

func resolveCommit(repo *goGit.Repository, ref string) (*object.Commit, error) {
	candidates := []string{
		ref,
		fmt.Sprintf("refs/heads/%s", ref),
		fmt.Sprintf("refs/remotes/origin/%s", ref),
	}

	var lastErr error
	for _, candidate := range candidates {
		hash, err := repo.ResolveRevision(plumbing.Revision(candidate))
		if err != nil {
			lastErr = err
			continue
		}
		return repo.CommitObject(*hash)
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("unable to resolve ref %s", ref)
}
