package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/memory"
	"go.uber.org/zap"

	"github.com/openrail/provision-agent/internal/models"
)

// releaseTag matches the version tag scheme product repositories use.
var releaseTag = regexp.MustCompile(`^v(\d+)\.(\d+)\.(\d+)-(Prod|Devel)$`)

// VersionControl mirrors product repositories under the agent's data
// folder and checks out selected releases. Remote operations are bounded
// by timeout so a stalled peer surfaces as a retryable error instead of
// hanging until the user cancels.
type VersionControl struct {
	dir     string
	timeout time.Duration
}

func NewVersionControl(dir string, timeout time.Duration) *VersionControl {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &VersionControl{dir: dir, timeout: timeout}
}

func (v *VersionControl) netContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, v.timeout)
}

// repoPath is where product's working copy lives.
func (v *VersionControl) repoPath(product string) string {
	return filepath.Join(v.dir, "repos", product)
}

// ListReleases queries the remote for version tags without cloning and
// returns them newest first. Tags outside the vX.Y.Z-Prod|Devel scheme
// are silently excluded.
func (v *VersionControl) ListReleases(ctx context.Context, repoURL string) ([]models.Release, error) {
	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "origin",
		URLs: []string{repoURL},
	})
	listCtx, cancel := v.netContext(ctx)
	defer cancel()
	refs, err := remote.ListContext(listCtx, &git.ListOptions{})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classifyGit("list releases", err)
	}

	type tagged struct {
		release models.Release
		version *semver.Version
	}
	var tags []tagged
	for _, ref := range refs {
		if !ref.Name().IsTag() {
			continue
		}
		name := ref.Name().Short()
		m := releaseTag.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		version, err := semver.NewVersion(fmt.Sprintf("%s.%s.%s", m[1], m[2], m[3]))
		if err != nil {
			continue
		}
		tags = append(tags, tagged{
			release: models.Release{Tag: name, Channel: models.ReleaseChannel(m[4])},
			version: version,
		})
	}

	sort.Slice(tags, func(i, j int) bool {
		if tags[i].version.Equal(tags[j].version) {
			// Prod sorts before Devel at the same version.
			return tags[i].release.Channel == models.ChannelProduction
		}
		return tags[i].version.GreaterThan(tags[j].version)
	})

	releases := make([]models.Release, 0, len(tags))
	for _, t := range tags {
		releases = append(releases, t.release)
	}
	zap.S().Debugw("listed releases", "repo", repoURL, "count", len(releases))
	return releases, nil
}

// CloneOrUpdate ensures a healthy working copy of repoURL for product
// and returns its path. A broken or foreign clone at the target path is
// removed and cloned fresh.
func (v *VersionControl) CloneOrUpdate(ctx context.Context, rep ProgressReporter, product, repoURL string) (string, error) {
	path := v.repoPath(product)

	repo, err := v.open(path, repoURL)
	if err != nil {
		Logf(rep, "cloning %s", repoURL)
		if err := os.RemoveAll(path); err != nil {
			return "", classifyFS("replace repository", err)
		}
		rep.Indeterminate()
		// A fresh clone moves the whole history, so it gets a more
		// generous bound than a ref listing or an incremental fetch.
		cloneCtx, cancel := context.WithTimeout(ctx, 4*v.timeout)
		defer cancel()
		repo, err = git.PlainCloneContext(cloneCtx, path, false, &git.CloneOptions{
			URL:  repoURL,
			Tags: git.AllTags,
		})
		if err != nil {
			os.RemoveAll(path)
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", classifyGit("clone repository", err)
		}
		zap.S().Infow("repository cloned", "product", product, "path", path)
		return path, nil
	}

	Logf(rep, "fetching %s", repoURL)
	rep.Indeterminate()
	fetchCtx, cancel := v.netContext(ctx)
	defer cancel()
	err = repo.FetchContext(fetchCtx, &git.FetchOptions{
		RemoteName: "origin",
		Tags:       git.AllTags,
		Force:      true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", classifyGit("fetch repository", err)
	}
	zap.S().Infow("repository updated", "product", product, "path", path)
	return path, nil
}

// open validates an existing clone: it must open, have a HEAD, and its
// origin must point at repoURL.
func (v *VersionControl) open(path, repoURL string) (*git.Repository, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, err
	}
	if _, err := repo.Head(); err != nil {
		return nil, fmt.Errorf("repository has no usable HEAD: %w", err)
	}
	remote, err := repo.Remote("origin")
	if err != nil {
		return nil, err
	}
	urls := remote.Config().URLs
	if len(urls) == 0 || !strings.EqualFold(urls[0], repoURL) {
		return nil, fmt.Errorf("origin points elsewhere: %v", urls)
	}
	return repo, nil
}

// Checkout switches product's working copy to ref, which may be a
// release tag or a branch name. A missing ref leaves the prior checkout
// untouched.
func (v *VersionControl) Checkout(ctx context.Context, product, ref string) (string, error) {
	path := v.repoPath(product)
	repo, err := git.PlainOpen(path)
	if err != nil {
		return "", classifyGit("open repository", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", classifyGit("open worktree", err)
	}

	hash, err := resolveRef(repo, ref)
	if err != nil {
		return "", models.NewTaskError(models.ErrKindRepositoryState, "checkout "+ref, err)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	// Non-force checkout so generated configuration files in the
	// worktree survive version switches.
	if err := wt.Checkout(&git.CheckoutOptions{Hash: hash}); err != nil {
		return "", classifyGit("checkout "+ref, err)
	}
	zap.S().Infow("checked out", "product", product, "ref", ref, "hash", hash.String())
	return path, nil
}

// resolveRef tries ref as a tag first, then as a remote branch.
func resolveRef(repo *git.Repository, ref string) (plumbing.Hash, error) {
	if tagRef, err := repo.Reference(plumbing.NewTagReferenceName(ref), true); err == nil {
		// Annotated tags point at a tag object, not the commit.
		if tag, terr := repo.TagObject(tagRef.Hash()); terr == nil {
			return tag.Target, nil
		}
		return tagRef.Hash(), nil
	}
	if branchRef, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", ref), true); err == nil {
		return branchRef.Hash(), nil
	}
	if branchRef, err := repo.Reference(plumbing.NewBranchReferenceName(ref), true); err == nil {
		return branchRef.Hash(), nil
	}
	return plumbing.ZeroHash, fmt.Errorf("ref %q not found", ref)
}

// classifyGit maps go-git failures onto the wizard's error kinds.
func classifyGit(step string, err error) *models.TaskError {
	switch {
	case errors.Is(err, transport.ErrRepositoryNotFound),
		errors.Is(err, git.ErrRepositoryNotExists),
		errors.Is(err, plumbing.ErrReferenceNotFound):
		return models.NewTaskError(models.ErrKindRepositoryState, step, err)
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewTaskError(models.ErrKindTimeout, step, err)
	default:
		return classifyNet(step, err)
	}
}
