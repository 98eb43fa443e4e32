package remediation

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
)

// PullRequestSpec describes the PR to open for a fix
type PullRequestSpec struct {
	Title      string
	Body       string
	BranchName string
	BaseBranch string
	FilePath   string
	Content    string
	CommitMsg  string
}

// VCSClient creates fix branches and pull requests
type VCSClient interface {
	GetFileContent(ctx context.Context, owner, repo, path, ref string) (string, error)
	CreateFixPR(ctx context.Context, owner, repo string, spec PullRequestSpec) (string, error)
}

// GitHubClient implements VCSClient against the GitHub API
type GitHubClient struct {
	client *github.Client
}

// NewGitHubClient creates a client authenticated with a personal access
// token. Returns nil if no token is configured.
func NewGitHubClient(token string) *GitHubClient {
	if token == "" {
		log.Printf("GitHubClient: No token configured, PR creation disabled")
		return nil
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)
	return &GitHubClient{client: github.NewClient(tc)}
}

// GetFileContent fetches a file's content at the given ref
func (g *GitHubClient) GetFileContent(ctx context.Context, owner, repo, path, ref string) (string, error) {
	file, _, _, err := g.client.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s@%s: %w", path, ref, err)
	}
	if file == nil {
		return "", fmt.Errorf("%s is a directory, not a file", path)
	}

	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("failed to decode content of %s: %w", path, err)
	}
	return content, nil
}

// CreateFixPR creates a branch off the base, commits the fixed file, and
// opens a pull request. Returns the PR URL.
func (g *GitHubClient) CreateFixPR(ctx context.Context, owner, repo string, spec PullRequestSpec) (string, error) {
	baseRef, _, err := g.client.Git.GetRef(ctx, owner, repo, "refs/heads/"+spec.BaseBranch)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base branch %s: %w", spec.BaseBranch, err)
	}

	newRef := &github.Reference{
		Ref:    github.String("refs/heads/" + spec.BranchName),
		Object: &github.GitObject{SHA: baseRef.Object.SHA},
	}
	if _, _, err := g.client.Git.CreateRef(ctx, owner, repo, newRef); err != nil {
		return "", fmt.Errorf("failed to create branch %s: %w", spec.BranchName, err)
	}

	// Need the file's current SHA on the new branch to update it
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(spec.CommitMsg),
		Content: []byte(spec.Content),
		Branch:  github.String(spec.BranchName),
	}
	existing, _, _, err := g.client.Repositories.GetContents(ctx, owner, repo, spec.FilePath, &github.RepositoryContentGetOptions{Ref: spec.BranchName})
	if err == nil && existing != nil {
		opts.SHA = existing.SHA
	}

	if _, _, err := g.client.Repositories.UpdateFile(ctx, owner, repo, spec.FilePath, opts); err != nil {
		return "", fmt.Errorf("failed to commit fix to %s: %w", spec.FilePath, err)
	}

	pr, _, err := g.client.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
		Title: github.String(spec.Title),
		Body:  github.String(spec.Body),
		Head:  github.String(spec.BranchName),
		Base:  github.String(spec.BaseBranch),
	})
	if err != nil {
		return "", fmt.Errorf("failed to open pull request: %w", err)
	}

	log.Printf("GitHubClient: Opened PR %s", pr.GetHTMLURL())
	return pr.GetHTMLURL(), nil
}

// FixBranchName generates a unique branch name for an incident fix
func FixBranchName(incidentID string) string {
	short := incidentID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("autoremedy/fix-%s-%d", short, time.Now().Unix())
}
