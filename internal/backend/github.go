package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/glowlabs/hangar/internal/config"
	"github.com/glowlabs/hangar/internal/model"
	"go.uber.org/zap"
)

const userAgent = "hangar/1.0"

// releasesPerPage is the GitHub API maximum.
const releasesPerPage = 100

// GitHub serves releases from the GitHub releases API of a single repository.
type GitHub struct {
	endpoint string
	owner    string
	repo     string
	tokenEnv string
	client   *http.Client
	logger   *zap.Logger
}

// NewGitHub creates a GitHub backend from config.
func NewGitHub(cfg *config.Config, logger *zap.Logger) *GitHub {
	return &GitHub{
		endpoint: strings.TrimSuffix(cfg.GitHub.Endpoint, "/"),
		owner:    cfg.GitHub.Owner,
		repo:     cfg.GitHub.Repo,
		tokenEnv: cfg.GitHub.TokenEnv,
		client:   &http.Client{Timeout: cfg.GitHub.Timeout},
		logger:   logger,
	}
}

// ghRelease is the subset of the GitHub release payload that hangar uses.
type ghRelease struct {
	TagName     string    `json:"tag_name"`
	Draft       bool      `json:"draft"`
	Body        string    `json:"body"`
	PublishedAt time.Time `json:"published_at"`
	Assets      []ghAsset `json:"assets"`
}

// ghAsset is the subset of the GitHub release asset payload that hangar uses.
type ghAsset struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// ListReleases pages through /repos/{owner}/{repo}/releases. Drafts and
// releases whose tag is not a semantic version are skipped.
func (g *GitHub) ListReleases(ctx context.Context) ([]*model.Release, error) {
	var releases []*model.Release
	for page := 1; ; page++ {
		url := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=%d&page=%d",
			g.endpoint, g.owner, g.repo, releasesPerPage, page)

		body, err := g.get(ctx, url, "application/vnd.github+json")
		if err != nil {
			return nil, err
		}

		var batch []ghRelease
		err = json.NewDecoder(body).Decode(&batch)
		body.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: decode release list: %v", model.ErrUpstream, err)
		}

		for _, gr := range batch {
			if gr.Draft {
				continue
			}
			assets := make([]*model.Asset, 0, len(gr.Assets))
			for _, ga := range gr.Assets {
				assets = append(assets, &model.Asset{
					ID:          ga.ID,
					Filename:    ga.Name,
					Size:        ga.Size,
					DownloadURL: ga.URL,
				})
			}
			rel, ok := model.NewRelease(gr.TagName, gr.PublishedAt, gr.Body, assets)
			if !ok {
				g.logger.Debug("skipping release with non-semver tag", zap.String("tag", gr.TagName))
				continue
			}
			releases = append(releases, rel)
		}

		if len(batch) < releasesPerPage {
			break
		}
	}
	return releases, nil
}

// FetchAsset streams the asset bytes via the API asset URL, which follows the
// storage redirect when asked for octet-stream.
func (g *GitHub) FetchAsset(ctx context.Context, asset *model.Asset) (io.ReadCloser, int64, error) {
	body, err := g.get(ctx, asset.DownloadURL, "application/octet-stream")
	if err != nil {
		return nil, 0, err
	}
	return body, asset.Size, nil
}

func (g *GitHub) get(ctx context.Context, url, accept string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUpstream, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)
	if tok := strings.TrimSpace(os.Getenv(g.tokenEnv)); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: GET %s: status %d", model.ErrUpstream, url, resp.StatusCode)
	}
	return resp.Body, nil
}
