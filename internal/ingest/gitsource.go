package ingest

import (
	"context"
	"io"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/google/go-github/v45/github"

	"github.com/ferg-cod3s/contextcore/internal/coreerrors"
)

// GitSource discovers files from a shallow clone of a remote repository,
// mining the teacher's go-git usage in internal/mcp/git_helper.go (which
// opened an existing local clone to mine ticket history) into a standalone
// clone-then-walk source, and adding go-github lookups for PR/issue
// provenance the teacher never needed.
type GitSource struct {
	client *github.Client
}

// NewGitSource constructs a GitSource. client may be nil when PR/issue
// provenance enrichment is not needed.
func NewGitSource(client *github.Client) *GitSource {
	return &GitSource{client: client}
}

// CloneOptions carries the remote location the orchestrator resolves before
// calling Discover; RootPath in Options becomes the local clone directory.
type CloneOptions struct {
	RemoteURL string
	Branch    string
	Depth     int
}

// Clone shallow-clones a remote repository into dir, mirroring the
// teacher's PlainOpen-based flow but for a fresh checkout instead of an
// existing working copy.
func (g *GitSource) Clone(ctx context.Context, dir string, opts CloneOptions) error {
	depth := opts.Depth
	if depth <= 0 {
		depth = 1
	}
	cloneOpts := &git.CloneOptions{
		URL:   opts.RemoteURL,
		Depth: depth,
	}
	if opts.Branch != "" {
		cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(opts.Branch)
	}
	if _, err := git.PlainCloneContext(ctx, dir, false, cloneOpts); err != nil {
		return coreerrors.Wrap(coreerrors.KindIO, "clone repository "+opts.RemoteURL, err)
	}
	return nil
}

// Discover walks the already-cloned working tree at opts.RootPath, same as
// LocalSource — the clone step is a separate, explicit call so the
// orchestrator can reuse one clone across multiple dataset bindings.
func (g *GitSource) Discover(ctx context.Context, opts Options) (map[string][]byte, error) {
	return NewLocalSource(0).Discover(ctx, opts)
}

// PullRequestProvenance resolves the PR numbers a commit belongs to, new
// enrichment the teacher's own git_helper.go did not do — it only mined
// local commit history, never called the GitHub API.
func (g *GitSource) PullRequestProvenance(ctx context.Context, owner, repo, commitSHA string) ([]int, error) {
	if g.client == nil {
		return nil, coreerrors.New(coreerrors.KindInternal, "git source has no configured GitHub client")
	}
	prs, _, err := g.client.PullRequests.ListPullRequestsWithCommit(ctx, owner, repo, commitSHA, nil)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIO, "list pull requests for commit", err)
	}
	numbers := make([]int, 0, len(prs))
	for _, pr := range prs {
		numbers = append(numbers, pr.GetNumber())
	}
	return numbers, nil
}

// ReadFileAtRef reads path's content as of a specific git ref without
// touching the working tree, used when diffing a branch other than the
// checked-out one.
func ReadFileAtRef(repoPath, ref, path string) ([]byte, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIO, "open repository", err)
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindNotFound, "resolve ref "+ref, err)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIO, "load commit", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIO, "load tree", err)
	}
	f, err := tree.File(path)
	if err != nil {
		return nil, coreerrors.New(coreerrors.KindNotFound, "file not found at ref").WithResource(path)
	}
	reader, err := f.Reader()
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindIO, "open blob reader", err)
	}
	defer reader.Close()
	return io.ReadAll(reader)
}
