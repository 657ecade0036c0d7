package gitlib

import (
	"context"
	"errors"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// Sentinel errors.
var (
	// ErrNoUpstream is returned when the checked out branch tracks no remote branch.
	ErrNoUpstream = errors.New("branch has no upstream")
	// ErrNotFastForward is returned when the local branch holds commits its
	// upstream does not have.
	ErrNotFastForward = errors.New("local branch has diverged from upstream")
)

// fastForwardMessage is recorded in the reflog when a clone is fast-forwarded.
const fastForwardMessage = "jig: fast-forward to upstream"

// TrackingStatus compares the checked out branch with its upstream.
type TrackingStatus struct {
	Local    Hash
	Upstream Hash
	// FastForward is true when Upstream descends from Local.
	FastForward bool
}

// Behind reports whether the local branch can be fast-forwarded to newer
// upstream commits. A diverged branch is never behind.
func (s TrackingStatus) Behind() bool {
	return s.Local != s.Upstream && s.FastForward
}

// FetchRemotes fetches every configured remote using its default refspecs.
func (r *Repository) FetchRemotes(ctx context.Context) error {
	names, err := r.repo.Remotes.List()
	if err != nil {
		return fmt.Errorf("list remotes: %w", err)
	}

	for _, name := range names {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		fetchErr := r.fetchRemote(name)
		if fetchErr != nil {
			return fetchErr
		}
	}

	return nil
}

func (r *Repository) fetchRemote(name string) error {
	remote, err := r.repo.Remotes.Lookup(name)
	if err != nil {
		return fmt.Errorf("lookup remote %s: %w", name, err)
	}
	defer remote.Free()

	fetchErr := remote.Fetch(nil, &git2go.FetchOptions{}, "")
	if fetchErr != nil {
		return fmt.Errorf("fetch remote %s: %w", name, fetchErr)
	}

	return nil
}

// Tracking reports how the checked out branch relates to its upstream.
func (r *Repository) Tracking() (TrackingStatus, error) {
	head, err := r.repo.Head()
	if err != nil {
		return TrackingStatus{}, fmt.Errorf("get HEAD: %w", err)
	}
	defer head.Free()

	upstream, err := head.Branch().Upstream()
	if err != nil {
		return TrackingStatus{}, fmt.Errorf("%w: %w", ErrNoUpstream, err)
	}
	defer upstream.Free()

	local := head.Target()
	remote := upstream.Target()

	status := TrackingStatus{
		Local:    HashFromOid(local),
		Upstream: HashFromOid(remote),
	}

	if local.Equal(remote) {
		return status, nil
	}

	status.FastForward, err = r.repo.DescendantOf(remote, local)
	if err != nil {
		return TrackingStatus{}, fmt.Errorf("compare with upstream: %w", err)
	}

	return status, nil
}

// FastForward moves the checked out branch to its upstream and updates the
// working directory to match. It fails with ErrNotFastForward when the
// branch has diverged, and leaves the branch in place when a safe checkout
// would overwrite local edits.
func (r *Repository) FastForward() error {
	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("get HEAD: %w", err)
	}
	defer head.Free()

	upstream, err := head.Branch().Upstream()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoUpstream, err)
	}
	defer upstream.Free()

	target := upstream.Target()
	if head.Target().Equal(target) {
		return nil
	}

	ahead, err := r.repo.DescendantOf(target, head.Target())
	if err != nil {
		return fmt.Errorf("compare with upstream: %w", err)
	}

	if !ahead {
		return ErrNotFastForward
	}

	commit, err := r.repo.LookupCommit(target)
	if err != nil {
		return fmt.Errorf("lookup upstream commit: %w", err)
	}
	defer commit.Free()

	tree, err := commit.Tree()
	if err != nil {
		return fmt.Errorf("get upstream tree: %w", err)
	}
	defer tree.Free()

	checkoutErr := r.repo.CheckoutTree(tree, &git2go.CheckoutOptions{Strategy: git2go.CheckoutSafe})
	if checkoutErr != nil {
		return fmt.Errorf("checkout: %w", checkoutErr)
	}

	moved, err := head.SetTarget(target, fastForwardMessage)
	if err != nil {
		return fmt.Errorf("move branch: %w", err)
	}
	defer moved.Free()

	return nil
}
