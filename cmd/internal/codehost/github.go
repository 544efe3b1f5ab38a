package codehost

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/go-github/v66/github"
)

// maxPages bounds list pagination.
const maxPages = 20

// GitHubAPI implements API with go-github.
type GitHubAPI struct {
	client *github.Client
}

// NewGitHubAPI builds a client; an empty token makes unauthenticated calls.
func NewGitHubAPI(httpClient *http.Client, token string) *GitHubAPI {
	c := github.NewClient(httpClient)
	if token = strings.TrimSpace(token); token != "" {
		c = c.WithAuthToken(token)
	}
	return &GitHubAPI{client: c}
}

func mapErr(err error) error {
	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Response != nil && er.Response.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return err
}

func (g *GitHubAPI) GetRepo(ctx context.Context, org, name string) (Repo, error) {
	r, _, err := g.client.Repositories.Get(ctx, org, name)
	if err != nil {
		return Repo{}, mapErr(err)
	}
	return Repo{
		Name:         r.GetName(),
		FullName:     r.GetFullName(),
		URL:          r.GetHTMLURL(),
		Description:  r.GetDescription(),
		Stars:        r.GetStargazersCount(),
		Forks:        r.GetForksCount(),
		Watchers:     r.GetSubscribersCount(),
		OpenIssues:   r.GetOpenIssuesCount(),
		CreatedAt:    r.GetCreatedAt().Time,
		UpdatedAt:    r.GetUpdatedAt().Time,
		OrgAvatarURL: r.GetOrganization().GetAvatarURL(),
	}, nil
}

func (g *GitHubAPI) ListOrgRepos(ctx context.Context, org string) ([]string, error) {
	opt := &github.RepositoryListByOrgOptions{ListOptions: github.ListOptions{PerPage: 100}}
	var out []string
	for range maxPages {
		repos, resp, err := g.client.Repositories.ListByOrg(ctx, org, opt)
		if err != nil {
			return nil, mapErr(err)
		}
		for _, r := range repos {
			out = append(out, r.GetName())
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return out, nil
}

func (g *GitHubAPI) ListOrgMembers(ctx context.Context, org string) ([]Account, error) {
	opt := &github.ListMembersOptions{ListOptions: github.ListOptions{PerPage: 100}}
	var out []Account
	for range maxPages {
		users, resp, err := g.client.Organizations.ListMembers(ctx, org, opt)
		if err != nil {
			return nil, mapErr(err)
		}
		for _, u := range users {
			out = append(out, toAccount(u))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return out, nil
}

func (g *GitHubAPI) GetUserByID(ctx context.Context, id int64) (Account, error) {
	u, _, err := g.client.Users.GetByID(ctx, id)
	if err != nil {
		return Account{}, mapErr(err)
	}
	return toAccount(u), nil
}

func toAccount(u *github.User) Account {
	return Account{
		ID:        u.GetID(),
		Login:     u.GetLogin(),
		URL:       u.GetHTMLURL(),
		AvatarURL: u.GetAvatarURL(),
		Bio:       u.GetBio(),
		CreatedAt: u.GetCreatedAt().Time,
	}
}
