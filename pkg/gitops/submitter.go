// Package gitops submits signed execution plans as pull requests against an
// external GitOps configuration repository. No GitHub SDK appears anywhere
// in the retrieved corpus, so this client follows the teacher's own
// external-HTTP-client idiom (see pkg/pdp's OPA adapter): a bare
// *http.Client against a documented REST surface, context-threaded,
// fail-soft rather than fail-closed (PR submission errors are non-fatal to
// the orchestrator per spec.md §4.7).
package gitops

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/julian-najas/clinical-agentic-control-plane/pkg/contracts"
)

const defaultTimeout = 10 * time.Second

// Config configures the GitHub-flavored GitOps submitter.
type Config struct {
	// APIBaseURL is the GitHub REST API base, e.g. "https://api.github.com".
	APIBaseURL string
	// Owner and Repo identify the target GitOps configuration repository.
	Owner string
	Repo  string
	// Token is a bearer token with contents + pull-request write scope.
	Token   string
	Timeout time.Duration
}

// Submitter opens pull requests carrying a signed execution plan.
type Submitter struct {
	cfg    Config
	client *http.Client
}

// NewSubmitter constructs a Submitter.
func NewSubmitter(cfg Config) *Submitter {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.github.com"
	}
	return &Submitter{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// Result is the outcome of a PR submission attempt.
type Result struct {
	PRURL  string
	Branch string
}

// Submit branches from the repository's default branch head, commits the
// signed plan as environments/<env>/plans/<plan_id>.json, and opens a PR
// labelled "automated" and "hmac-verified". Any non-2xx response from
// GitHub surfaces as a returned error; callers treat this as non-fatal.
func (s *Submitter) Submit(ctx context.Context, plan contracts.ExecutionPlan, environment string) (*Result, error) {
	branch := fmt.Sprintf("proposal/%s", shortID(plan.PlanID))

	defaultBranch, baseSHA, err := s.defaultBranchHead(ctx)
	if err != nil {
		return nil, fmt.Errorf("gitops: read default branch head: %w", err)
	}

	if err := s.createBranch(ctx, branch, baseSHA); err != nil {
		return nil, fmt.Errorf("gitops: create branch: %w", err)
	}

	planJSON, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("gitops: marshal plan: %w", err)
	}
	path := fmt.Sprintf("environments/%s/plans/%s.json", environment, plan.PlanID)
	if err := s.putFile(ctx, branch, path, planJSON); err != nil {
		return nil, fmt.Errorf("gitops: commit plan: %w", err)
	}

	prURL, err := s.openPullRequest(ctx, branch, defaultBranch, plan)
	if err != nil {
		return nil, fmt.Errorf("gitops: open pull request: %w", err)
	}

	return &Result{PRURL: prURL, Branch: branch}, nil
}

func shortID(planID string) string {
	if len(planID) <= 8 {
		return planID
	}
	return planID[:8]
}

func (s *Submitter) defaultBranchHead(ctx context.Context) (branch, sha string, err error) {
	var repoInfo struct {
		DefaultBranch string `json:"default_branch"`
	}
	if err := s.get(ctx, fmt.Sprintf("/repos/%s/%s", s.cfg.Owner, s.cfg.Repo), &repoInfo); err != nil {
		return "", "", err
	}

	var ref struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	path := fmt.Sprintf("/repos/%s/%s/git/ref/heads/%s", s.cfg.Owner, s.cfg.Repo, repoInfo.DefaultBranch)
	if err := s.get(ctx, path, &ref); err != nil {
		return "", "", err
	}
	return repoInfo.DefaultBranch, ref.Object.SHA, nil
}

func (s *Submitter) createBranch(ctx context.Context, branch, baseSHA string) error {
	body := map[string]string{
		"ref": "refs/heads/" + branch,
		"sha": baseSHA,
	}
	path := fmt.Sprintf("/repos/%s/%s/git/refs", s.cfg.Owner, s.cfg.Repo)
	return s.post(ctx, path, body, nil)
}

func (s *Submitter) putFile(ctx context.Context, branch, path string, content []byte) error {
	body := map[string]any{
		"message": fmt.Sprintf("chore(cacp): submit execution plan %s", path),
		"content": base64.StdEncoding.EncodeToString(content),
		"branch":  branch,
	}
	apiPath := fmt.Sprintf("/repos/%s/%s/contents/%s", s.cfg.Owner, s.cfg.Repo, path)
	return s.put(ctx, apiPath, body, nil)
}

func (s *Submitter) openPullRequest(ctx context.Context, branch, base string, plan contracts.ExecutionPlan) (string, error) {
	body := map[string]any{
		"title": fmt.Sprintf("CACP: proposal %s (%s risk, %d actions)", plan.PlanID, plan.RiskLevel, len(plan.Actions)),
		"head":  branch,
		"base":  base,
		"body":  fmt.Sprintf("appointment_id: %s\n\nSigned execution plan proposed by the clinical agentic control plane.", firstAppointmentID(plan)),
	}
	var created struct {
		HTMLURL string `json:"html_url"`
		Number  int    `json:"number"`
	}
	path := fmt.Sprintf("/repos/%s/%s/pulls", s.cfg.Owner, s.cfg.Repo)
	if err := s.post(ctx, path, body, &created); err != nil {
		return "", err
	}

	labelPath := fmt.Sprintf("/repos/%s/%s/issues/%d/labels", s.cfg.Owner, s.cfg.Repo, created.Number)
	if err := s.post(ctx, labelPath, map[string][]string{"labels": {"automated", "hmac-verified"}}, nil); err != nil {
		return "", fmt.Errorf("label pull request: %w", err)
	}

	return created.HTMLURL, nil
}

func firstAppointmentID(plan contracts.ExecutionPlan) string {
	if len(plan.Actions) == 0 {
		return ""
	}
	return plan.Actions[0].AppointmentID
}

func (s *Submitter) get(ctx context.Context, path string, out any) error {
	return s.do(ctx, http.MethodGet, path, nil, out)
}

func (s *Submitter) post(ctx context.Context, path string, body, out any) error {
	return s.do(ctx, http.MethodPost, path, body, out)
}

func (s *Submitter) put(ctx context.Context, path string, body, out any) error {
	return s.do(ctx, http.MethodPut, path, body, out)
}

func (s *Submitter) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.cfg.APIBaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gitops: %s %s returned %d: %s", method, path, resp.StatusCode, string(respBody))
	}
	if out != nil {
		return json.Unmarshal(respBody, out)
	}
	return nil
}
