package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"

	"github.com/google/go-github/v66/github"
)

// GitHubStore keeps each document as <dir>/<name>.json on one branch of a repository.
// The file's blob SHA is the revision; the contents API rejects a PUT carrying a stale
// SHA, which gives the compare-and-swap the Store contract needs.
type GitHubStore struct {
	client *github.Client
	owner  string
	repo   string
	branch string
	dir    string
}

// NewGitHubClient returns an API client authenticated with a personal access token.
// httpClient may be nil; its Timeout bounds every call.
func NewGitHubClient(token string, httpClient *http.Client) *github.Client {
	c := github.NewClient(httpClient)
	if token != "" {
		c = c.WithAuthToken(token)
	}
	return c
}

func NewGitHubStore(client *github.Client, owner, repo, branch, dir string) *GitHubStore {
	return &GitHubStore{client: client, owner: owner, repo: repo, branch: branch, dir: dir}
}

func (s *GitHubStore) filePath(name string) string {
	return path.Join(s.dir, name+".json")
}

func (s *GitHubStore) Fetch(ctx context.Context, name string) (Document, error) {
	if err := validName(name); err != nil {
		return Document{}, err
	}
	p := s.filePath(name)
	var opts *github.RepositoryContentGetOptions
	if s.branch != "" {
		opts = &github.RepositoryContentGetOptions{Ref: s.branch}
	}
	file, _, resp, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, p, opts)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return Document{Name: name}, nil
		}
		return Document{}, fmt.Errorf("%w: fetch %s: %w", ErrStoreUnavailable, p, err)
	}
	if file == nil {
		return Document{}, fmt.Errorf("%w: %s is a directory", ErrStoreUnavailable, p)
	}
	raw, err := file.GetContent()
	if err != nil {
		return Document{}, fmt.Errorf("%w: decode %s: %w", ErrStoreUnavailable, p, err)
	}
	if !json.Valid([]byte(raw)) {
		return Document{}, fmt.Errorf("%w: %s does not hold valid JSON", ErrStoreUnavailable, p)
	}
	return Document{Name: name, Content: json.RawMessage(raw), Revision: Revision(file.GetSHA())}, nil
}

func (s *GitHubStore) Put(ctx context.Context, name string, content json.RawMessage, expected Revision, message string) (Revision, error) {
	if err := validName(name); err != nil {
		return NoRevision, err
	}
	body, err := Encode(content)
	if err != nil {
		return NoRevision, err
	}
	if message == "" {
		message = "Update " + name
	}
	p := s.filePath(name)
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: body,
	}
	if s.branch != "" {
		opts.Branch = github.String(s.branch)
	}
	if expected != NoRevision {
		opts.SHA = github.String(string(expected))
	}

	res, resp, err := s.client.Repositories.UpdateFile(ctx, s.owner, s.repo, p, opts)
	if err != nil {
		if resp != nil && isConflictStatus(resp.StatusCode, expected) && s.fileGone(ctx, resp.StatusCode) {
			return NoRevision, fmt.Errorf("%w: %s at %q: %w", ErrRevisionConflict, p, expected, err)
		}
		return NoRevision, fmt.Errorf("%w: put %s: %w", ErrStoreUnavailable, p, err)
	}
	if res == nil || res.Content == nil || res.Content.GetSHA() == "" {
		return NoRevision, fmt.Errorf("%w: put %s: response carries no revision", ErrStoreUnavailable, p)
	}
	return Revision(res.Content.GetSHA()), nil
}

// fileGone tells a removed file from a repository the token can no longer see: GitHub
// answers 404 for both. Other statuses need no confirmation.
func (s *GitHubStore) fileGone(ctx context.Context, status int) bool {
	if status != http.StatusNotFound {
		return true
	}
	_, _, err := s.client.Repositories.Get(ctx, s.owner, s.repo)
	return err == nil
}

// isConflictStatus maps contents API rejections to a revision conflict:
// 409 is a stale SHA, 422 is a create (no SHA) over an existing file and 404 is an
// update of a file that has since been removed.
func isConflictStatus(code int, expected Revision) bool {
	switch code {
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return true
	case http.StatusNotFound:
		return expected != NoRevision
	}
	return false
}

// IsRateLimited reports whether err came from the GitHub API rate limiter.
func IsRateLimited(err error) bool {
	var rl *github.RateLimitError
	var ab *github.AbuseRateLimitError
	return errors.As(err, &rl) || errors.As(err, &ab)
}
