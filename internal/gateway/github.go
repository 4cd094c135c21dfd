// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/naka-gawa/github-traffic/internal/domain"
)

// ErrMissingOwner is returned when no account is configured.
var ErrMissingOwner = errors.New("owner is required")

// TrafficFetcher defines the behavior of a gateway for fetching traffic from GitHub.
type TrafficFetcher interface {
	// ListRepositories returns the owned, public, non-fork repositories of the account.
	ListRepositories(ctx context.Context) ([]string, error)
	// FetchDailyCounts returns the views and clones of repo on date.
	FetchDailyCounts(ctx context.Context, repo string, date domain.Date) (domain.Cell, error)
}

// Options configures a GitHubGateway.
type Options struct {
	Token string
	Owner string
	// APIURL and GraphQLURL point the clients at a GitHub Enterprise server when set.
	APIURL     string
	GraphQLURL string
	// MaxRateLimitSleep bounds a single secondary rate limit sleep.
	MaxRateLimitSleep time.Duration
}

// GitHubGateway is the concrete implementation of the TrafficFetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	owner         string
	logger        *slog.Logger
}

// ownedRepositoriesQuery pages through the public, non-fork repositories owned by an account.
type ownedRepositoriesQuery struct {
	RepositoryOwner struct {
		Repositories struct {
			PageInfo struct {
				HasNextPage bool
				EndCursor   githubv4.String
			}
			Nodes []struct {
				Name      string
				IsFork    bool
				IsPrivate bool
			}
		} `graphql:"repositories(first: 100, after: $cursor, ownerAffiliations: OWNER, privacy: PUBLIC, isFork: false, orderBy: {field: NAME, direction: ASC})"`
	} `graphql:"repositoryOwner(login: $login)"`
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(opts Options, logger *slog.Logger) (*GitHubGateway, error) {
	if opts.Owner == "" {
		return nil, ErrMissingOwner
	}
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(opts.MaxRateLimitSleep, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}

	restClient := github.NewClient(httpClient)
	graphqlClient := githubv4.NewClient(httpClient)
	if opts.APIURL != "" {
		restClient, err = restClient.WithEnterpriseURLs(opts.APIURL, opts.APIURL)
		if err != nil {
			return nil, fmt.Errorf("failed to configure enterprise API URL: %w", err)
		}
	}
	if opts.GraphQLURL != "" {
		graphqlClient = githubv4.NewEnterpriseClient(opts.GraphQLURL, httpClient)
	}

	return &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		owner:         opts.Owner,
		logger:        logger,
	}, nil
}

// ListRepositories enumerates repositories in the order GitHub returns them (by name).
func (g *GitHubGateway) ListRepositories(ctx context.Context) ([]string, error) {
	g.logger.Debug("listing repositories", "owner", g.owner)
	variables := map[string]interface{}{
		"login":  githubv4.String(g.owner),
		"cursor": (*githubv4.String)(nil),
	}

	var repos []string
	for {
		var q ownedRepositoriesQuery
		if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
			return nil, fmt.Errorf("failed to execute GraphQL query for repositories: %w", err)
		}
		for _, node := range q.RepositoryOwner.Repositories.Nodes {
			if node.IsFork || node.IsPrivate || node.Name == "" {
				continue
			}
			repos = append(repos, node.Name)
		}
		if !q.RepositoryOwner.Repositories.PageInfo.HasNextPage {
			break
		}
		variables["cursor"] = githubv4.NewString(q.RepositoryOwner.Repositories.PageInfo.EndCursor)
		g.logger.Debug("fetching next page of repositories")
	}
	g.logger.Info("listed repositories", "owner", g.owner, "count", len(repos))
	return repos, nil
}

// FetchDailyCounts queries the daily views and clones series of repo and picks the point on date.
// A date outside the returned window counts as zero.
func (g *GitHubGateway) FetchDailyCounts(ctx context.Context, repo string, date domain.Date) (domain.Cell, error) {
	opts := &github.TrafficBreakdownOptions{Per: "day"}

	views, _, err := g.restClient.Repositories.ListTrafficViews(ctx, g.owner, repo, opts)
	if err != nil {
		return domain.Cell{}, fmt.Errorf("failed to fetch views of %s: %w", repo, err)
	}
	clones, _, err := g.restClient.Repositories.ListTrafficClones(ctx, g.owner, repo, opts)
	if err != nil {
		return domain.Cell{}, fmt.Errorf("failed to fetch clones of %s: %w", repo, err)
	}

	cell := domain.Cell{
		Views:  countOn(views.Views, date),
		Clones: countOn(clones.Clones, date),
	}
	g.logger.Debug("fetched traffic", "repo", repo, "date", date, "cell", cell.String())
	return cell, nil
}

// countOn compares only the date portion of each timestamp as reported by GitHub.
func countOn(points []*github.TrafficData, date domain.Date) int {
	for _, p := range points {
		if domain.DateOf(p.GetTimestamp().Time) == date {
			return p.GetCount()
		}
	}
	return 0
}
