package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v57/github"
	"github.com/rs/zerolog"
	"github.com/slobbe/zap/internal/logging"
	models "github.com/slobbe/zap/internal/types"
	"golang.org/x/oauth2"
)

// releasesPerPage is the single page fetched per repository. Older releases
// beyond it are not offered.
const releasesPerPage = 100

type Asset struct {
	Name string
	URL  string
}

type Release struct {
	Tag    string
	Assets []Asset
}

// ReleaseLister lists the releases of a repository, newest first.
type ReleaseLister interface {
	ListReleases(ctx context.Context, owner, repo string, perPage int) ([]Release, error)
}

// Chooser asks the user to pick one of items and returns its index.
type Chooser func(prompt string, items []string) (int, error)

// ReleaseResolver turns an owner/repo slug into the download URL of one
// AppImage asset, asking the user to pick a release and, when needed, an asset.
type ReleaseResolver struct {
	lister ReleaseLister
	choose Chooser
	log    zerolog.Logger
}

func NewReleaseResolver(lister ReleaseLister, choose Chooser) *ReleaseResolver {
	return &ReleaseResolver{
		lister: lister,
		choose: choose,
		log:    logging.GetLogger("releases"),
	}
}

// SplitSlug splits an owner/repo slug. Both parts must be non-empty and free
// of further slashes, colons and whitespace, so URLs of any scheme fail.
func SplitSlug(slug string) (string, string, error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(slug), "/")
	if !ok || !validSlugPart(owner) || !validSlugPart(repo) {
		return "", "", &models.InvalidSlugError{Slug: slug}
	}
	return owner, repo, nil
}

func validSlugPart(part string) bool {
	return part != "" && !strings.ContainsAny(part, "/: \t")
}

func (r *ReleaseResolver) Resolve(ctx context.Context, slug string) (string, error) {
	owner, repo, err := SplitSlug(slug)
	if err != nil {
		return "", err
	}

	releases, err := r.lister.ListReleases(ctx, owner, repo, releasesPerPage)
	if err != nil {
		return "", err
	}

	var tags []string
	for _, release := range releases {
		if len(appImageAssets(release.Assets)) > 0 {
			tags = append(tags, release.Tag)
		}
	}
	r.log.Debug().Str("slug", slug).Int("releases", len(releases)).Int("installable", len(tags)).Msg("listed releases")

	if len(tags) == 0 {
		return "", fmt.Errorf("%s: %w", slug, models.ErrNoReleasesFound)
	}

	tagIdx, err := r.pick("Select a release", tags)
	if err != nil {
		return "", err
	}
	tag := tags[tagIdx]

	var assets []Asset
	for _, release := range releases {
		if release.Tag == tag {
			assets = append(assets, appImageAssets(release.Assets)...)
		}
	}

	asset := assets[0]
	if len(assets) > 1 {
		names := make([]string, len(assets))
		for i, a := range assets {
			names[i] = a.Name
		}
		assetIdx, err := r.pick("Select an asset", names)
		if err != nil {
			return "", err
		}
		asset = assets[assetIdx]
	}

	r.log.Info().Str("tag", tag).Str("asset", asset.Name).Msg("resolved release asset")
	return asset.URL, nil
}

func (r *ReleaseResolver) pick(prompt string, items []string) (int, error) {
	idx, err := r.choose(prompt, items)
	if err != nil {
		return 0, err
	}
	if idx < 0 || idx >= len(items) {
		return 0, fmt.Errorf("selection %d out of range", idx)
	}
	return idx, nil
}

func appImageAssets(assets []Asset) []Asset {
	var out []Asset
	for _, a := range assets {
		if strings.HasSuffix(strings.ToLower(a.Name), strings.ToLower(appImageExt)) {
			out = append(out, a)
		}
	}
	return out
}

// GitHubLister lists releases through the GitHub REST API.
type GitHubLister struct {
	client        *github.Client
	authenticated bool
}

// NewGitHubLister builds a lister on top of base. A non-empty token
// authenticates every request.
func NewGitHubLister(base *http.Client, token string) *GitHubLister {
	httpClient := base
	if token != "" {
		ctx := context.Background()
		if base != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
		}
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(ctx, ts)
	}

	return &GitHubLister{
		client:        github.NewClient(httpClient),
		authenticated: token != "",
	}
}

func (g *GitHubLister) ListReleases(ctx context.Context, owner, repo string, perPage int) ([]Release, error) {
	releases, _, err := g.client.Repositories.ListReleases(ctx, owner, repo, &github.ListOptions{PerPage: perPage})
	if err != nil {
		return nil, g.wrapError(owner, repo, err)
	}

	out := make([]Release, 0, len(releases))
	for _, release := range releases {
		r := Release{Tag: release.GetTagName()}
		for _, asset := range release.Assets {
			r.Assets = append(r.Assets, Asset{
				Name: asset.GetName(),
				URL:  asset.GetBrowserDownloadURL(),
			})
		}
		out = append(out, r)
	}
	return out, nil
}

func (g *GitHubLister) wrapError(owner, repo string, err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &models.RateLimitError{
			Reset:         rateErr.Rate.Reset.Time,
			Authenticated: g.authenticated,
			Err:           err,
		}
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode == http.StatusNotFound {
		return &models.RepoNotFoundError{Owner: owner, Repo: repo, Err: err}
	}

	return fmt.Errorf("failed to list releases of %s/%s: %w", owner, repo, err)
}
