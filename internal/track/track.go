// Package track publishes tracking records for hierarchy nodes through
// the GitHub CLI. The engine only emits issue requests and stores the
// returned handles; everything else about the tracker stays external.
package track

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/cairnhq/cairn/internal/exec"
	"github.com/cairnhq/cairn/pkg/models"
)

// ghBinary is the GitHub CLI binary name.
const ghBinary = "gh"

// Tracker is the issue tracker collaborator consulted during planning.
type Tracker interface {
	// CreateIssue publishes a tracking record and returns its handle.
	CreateIssue(ctx context.Context, req models.IssueRequest) (*models.IssueRef, error)
	// CloseIssue closes a previously created record.
	CloseIssue(ctx context.Context, ref *models.IssueRef) error
	// Available reports whether the tracker can accept calls.
	Available() bool
}

// GHTracker shells out to gh for issue operations.
type GHTracker struct {
	exec   exec.CommandRunner
	repo   string
	labels []string
}

// NewGHTracker creates a tracker targeting the given owner/repo slug.
// An empty repo lets gh resolve the repository from the git remote.
// Labels are applied to every created issue in addition to per-request
// labels.
func NewGHTracker(cmdRunner exec.CommandRunner, repo string, labels []string) *GHTracker {
	return &GHTracker{
		exec:   cmdRunner,
		repo:   repo,
		labels: labels,
	}
}

// Available reports whether the gh binary is on PATH.
func (t *GHTracker) Available() bool {
	return t.exec.Installed(ghBinary)
}

// CreateIssue runs gh issue create and parses the issue number from
// the URL gh prints on success.
func (t *GHTracker) CreateIssue(ctx context.Context, req models.IssueRequest) (*models.IssueRef, error) {
	if req.Title == "" {
		return nil, errors.New("issue title is required")
	}

	args := []string{"issue", "create", "--title", req.Title, "--body", req.Body}
	if t.repo != "" {
		args = append(args, "--repo", t.repo)
	}
	for _, label := range mergeLabels(t.labels, req.Labels) {
		args = append(args, "--label", label)
	}

	out, err := t.exec.Output(ctx, "", ghBinary, args...)
	if err != nil {
		return nil, fmt.Errorf("gh issue create: %w", err)
	}

	url := strings.TrimSpace(string(out))
	number, err := issueNumberFromURL(url)
	if err != nil {
		return nil, err
	}

	log.Printf("[track] created issue #%d: %s", number, req.Title)
	return &models.IssueRef{IssueNumber: number, IssueURL: url}, nil
}

// CloseIssue runs gh issue close for the referenced issue. A nil ref
// is a no-op.
func (t *GHTracker) CloseIssue(ctx context.Context, ref *models.IssueRef) error {
	if ref == nil {
		return nil
	}

	args := []string{"issue", "close", strconv.Itoa(ref.IssueNumber)}
	if t.repo != "" {
		args = append(args, "--repo", t.repo)
	}

	if _, err := t.exec.Run(ctx, "", ghBinary, args...); err != nil {
		return fmt.Errorf("gh issue close #%d: %w", ref.IssueNumber, err)
	}

	log.Printf("[track] closed issue #%d", ref.IssueNumber)
	return nil
}

// DetectRepo resolves the owner/repo slug for tracking records. An
// explicitly configured repo wins; otherwise gh reads the git remote.
// Returns empty when neither yields a repository.
func DetectRepo(ctx context.Context, cmdRunner exec.CommandRunner, configured, workDir string) string {
	if configured != "" {
		return configured
	}

	out, err := cmdRunner.Output(ctx, workDir, ghBinary,
		"repo", "view", "--json", "nameWithOwner", "-q", ".nameWithOwner")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// issueNumberFromURL parses the trailing number from a gh issue URL
// such as https://github.com/owner/repo/issues/123.
func issueNumberFromURL(url string) (int, error) {
	if url == "" {
		return 0, errors.New("parsing gh issue create output: empty URL")
	}
	parts := strings.Split(url, "/")
	number, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || number == 0 {
		return 0, fmt.Errorf("parsing gh issue create output: could not extract number from %q", url)
	}
	return number, nil
}

// mergeLabels combines default and per-request labels, first
// occurrence wins.
func mergeLabels(defaults, extra []string) []string {
	seen := make(map[string]bool, len(defaults)+len(extra))
	var merged []string
	for _, label := range append(append([]string(nil), defaults...), extra...) {
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		merged = append(merged, label)
	}
	return merged
}

// NopTracker discards tracking requests. Used when tracking is
// disabled or gh is not installed.
type NopTracker struct{}

// CreateIssue returns no handle.
func (NopTracker) CreateIssue(context.Context, models.IssueRequest) (*models.IssueRef, error) {
	return nil, nil
}

// CloseIssue does nothing.
func (NopTracker) CloseIssue(context.Context, *models.IssueRef) error { return nil }

// Available reports that no tracker is wired.
func (NopTracker) Available() bool { return false }

// Verify implementations at compile time.
var (
	_ Tracker = (*GHTracker)(nil)
	_ Tracker = NopTracker{}
)
