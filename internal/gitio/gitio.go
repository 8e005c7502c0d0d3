// Package gitio reads committed trees from a Git repository so a workspace
// baseline can be seeded from an existing history.
package gitio

import (
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// FileInfo is a file in a commit tree.
type FileInfo struct {
	Path    string // slash separated, relative to the repository root
	Content []byte
}

// Repository wraps a go-git repository.
type Repository struct {
	repo *git.Repository
	path string
}

// Open opens an existing Git repository.
func Open(repoPath string) (*Repository, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}
	return &Repository{repo: repo, path: repoPath}, nil
}

// ResolveRef resolves HEAD, a branch, a tag or a commit hash to a commit.
func (r *Repository) ResolveRef(refName string) (*object.Commit, error) {
	if refName == "" || refName == "HEAD" {
		ref, err := r.repo.Head()
		if err != nil {
			return nil, fmt.Errorf("resolving HEAD: %w", err)
		}
		return r.commit(ref.Hash())
	}

	if ref, err := r.repo.Reference(plumbing.NewBranchReferenceName(refName), true); err == nil {
		return r.commit(ref.Hash())
	}

	if ref, err := r.repo.Reference(plumbing.NewTagReferenceName(refName), true); err == nil {
		// annotated tags point at a tag object
		if tag, err := r.repo.TagObject(ref.Hash()); err == nil {
			return tag.Commit()
		}
		return r.commit(ref.Hash())
	}

	commit, err := r.repo.CommitObject(plumbing.NewHash(refName))
	if err != nil {
		return nil, fmt.Errorf("resolving ref %q: not a branch, tag, or commit hash", refName)
	}
	return commit, nil
}

func (r *Repository) commit(hash plumbing.Hash) (*object.Commit, error) {
	commit, err := r.repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("getting commit: %w", err)
	}
	return commit, nil
}

// TreeFiles returns every file in the tree at a given commit.
func (r *Repository) TreeFiles(commit *object.Commit) ([]*FileInfo, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("getting tree: %w", err)
	}

	var files []*FileInfo
	err = tree.Files().ForEach(func(f *object.File) error {
		content, err := f.Contents()
		if err != nil {
			return fmt.Errorf("reading file %s: %w", f.Name, err)
		}
		files = append(files, &FileInfo{Path: f.Name, Content: []byte(content)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// CommitHash returns the hash of a commit as a string.
func CommitHash(commit *object.Commit) string {
	return commit.Hash.String()
}
