package gitlib

import (
	"context"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// Clone clones url into dir and checks out branch, or the remote's default
// branch when branch is empty.
func Clone(ctx context.Context, url, dir, branch string) (*Repository, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	repo, err := git2go.Clone(url, dir, &git2go.CloneOptions{
		CheckoutOptions: git2go.CheckoutOptions{Strategy: git2go.CheckoutSafe},
		CheckoutBranch:  branch,
	})
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", url, err)
	}

	return &Repository{repo: repo, path: dir}, nil
}
