package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/glowlabs/hangar/internal/cache"
	"github.com/glowlabs/hangar/internal/config"
	"github.com/glowlabs/hangar/internal/feed"
	"github.com/glowlabs/hangar/internal/index"
	"github.com/glowlabs/hangar/internal/model"
	"github.com/glowlabs/hangar/internal/notes"
	"github.com/glowlabs/hangar/internal/platform"
	"github.com/glowlabs/hangar/internal/resolver"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// manifestFilename is the Windows update feed asset as published upstream.
const manifestFilename = "RELEASES"

// API handles HTTP requests
type API struct {
	cfg         *config.Config
	logger      *zap.Logger
	index       *index.Index
	cache       *cache.Cache
	rateLimiter *RateLimiter
}

// NewAPI creates a new API instance
func NewAPI(cfg *config.Config, logger *zap.Logger, idx *index.Index, c *cache.Cache) *API {
	return &API{
		cfg:         cfg,
		logger:      logger,
		index:       idx,
		cache:       c,
		rateLimiter: NewRateLimiter(float64(cfg.RateLimit.RPS), cfg.RateLimit.Burst),
	}
}

// Close closes the API and its resources
func (a *API) Close() error {
	a.rateLimiter.Close()
	return nil
}

// RegisterRoutes registers the API routes
func (a *API) RegisterRoutes(r chi.Router) {
	// Middleware. PeerAddr must come before RealIP so LocalOnly still sees
	// the real TCP peer.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(PeerAddr)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Get("/", a.root)

	// Download and update routes with rate limiting
	r.Group(func(r chi.Router) {
		r.Use(a.rateLimiter.RateLimit)
		r.Use(SecureHeaders)

		r.Route("/download", func(r chi.Router) {
			r.Get("/", a.downloadLatest)
			r.Get("/latest", a.downloadLatest)
			r.Get("/channel/{channel}", a.downloadChannel)
			r.Get("/channel/{channel}/{platform}", a.downloadChannel)
			r.Get("/{tag}", a.downloadTag)
			r.Get("/{tag}/{filename}", a.downloadFile)
		})

		r.Route("/update", func(r chi.Router) {
			r.Get("/{platform}/{version}", a.updateCheck)
			r.Get("/{platform}/{version}/RELEASES", a.updateFeed)
		})
	})

	r.Get("/notes", a.releaseNotes)
	r.Get("/notes/{version}", a.releaseNotes)

	// Webhook from the release host: invalidate and refresh the index.
	r.Post("/refresh", a.webhookRefresh)

	// Admin routes (localhost only)
	r.Route("/admin", func(r chi.Router) {
		r.Use(LocalOnly)
		r.Post("/refresh", a.adminRefresh)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/releases", a.listReleases)
		r.Get("/releases/{tag}", a.getRelease)
	})
}

// root returns a small service descriptor with the latest tag per channel.
func (a *API) root(w http.ResponseWriter, r *http.Request) {
	releases := a.index.Releases()

	latest := ""
	channels := make(map[string]string)
	for _, rel := range releases {
		if latest == "" {
			latest = rel.Tag
		}
		if _, ok := channels[rel.Channel]; !ok {
			channels[rel.Channel] = rel.Tag
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":     "hangar",
		"latest":   latest,
		"channels": channels,
	})
}

// downloadLatest serves the newest matching asset; platform comes from the
// query string or the client User-Agent.
func (a *API) downloadLatest(w http.ResponseWriter, r *http.Request) {
	plat, err := a.requestPlatform(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.serveDownload(w, r, resolver.Query{
		Channel:  queryDefault(r, "channel", model.ChannelStable),
		Platform: plat,
		Tag:      resolver.TagLatest,
	})
}

// downloadChannel serves the newest asset on an explicit channel.
func (a *API) downloadChannel(w http.ResponseWriter, r *http.Request) {
	plat := chi.URLParam(r, "platform")
	if plat == "" {
		var err error
		plat, err = a.requestPlatform(r)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
	}
	a.serveDownload(w, r, resolver.Query{
		Channel:  chi.URLParam(r, "channel"),
		Platform: plat,
		Tag:      resolver.TagLatest,
	})
}

// downloadTag serves an asset of a specific release tag (or version range).
func (a *API) downloadTag(w http.ResponseWriter, r *http.Request) {
	plat, err := a.requestPlatform(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.serveDownload(w, r, resolver.Query{
		Channel:  model.ChannelAny,
		Platform: plat,
		Tag:      chi.URLParam(r, "tag"),
	})
}

// downloadFile serves one named asset of a release, bypassing platform
// classification.
func (a *API) downloadFile(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	filename := chi.URLParam(r, "filename")

	rel, err := resolver.Resolve(a.index.Releases(), resolver.Query{
		Channel: model.ChannelAny,
		Tag:     tag,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	asset, ok := platform.ResolveFilename(rel, filename)
	if !ok {
		a.writeError(w, r, fmt.Errorf("%w: release %s has no asset %q", model.ErrNotFound, rel.Tag, filename))
		return
	}
	a.streamAsset(w, r, asset)
}

func (a *API) serveDownload(w http.ResponseWriter, r *http.Request, q resolver.Query) {
	if _, ok := platform.Normalize(q.Platform); !ok {
		a.writeError(w, r, fmt.Errorf("%w: unknown platform %q", model.ErrBadRequest, q.Platform))
		return
	}

	rel, err := resolver.ResolveForDownload(a.index.Releases(), q)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	asset, ok := platform.Resolve(rel, q.Platform, r.URL.Query().Get("filetype"))
	if !ok {
		a.writeError(w, r, fmt.Errorf("%w: no download available for platform %q in release %s",
			model.ErrNotFound, q.Platform, rel.Tag))
		return
	}
	a.streamAsset(w, r, asset)
}

// streamAsset sends asset bytes through the content cache.
func (a *API) streamAsset(w http.ResponseWriter, r *http.Request, asset *model.Asset) {
	body, size, err := a.cache.Get(r.Context(), asset)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", asset.Filename))
	if _, err := io.Copy(w, body); err != nil {
		// Client went away mid-stream; the cache entry is already complete.
		a.logger.Debug("download aborted by client",
			zap.String("filename", asset.Filename),
			zap.Error(err),
		)
	}
}

// updateCheck is the Mac-style update endpoint: 204 when the client is
// current, otherwise JSON with the download URL, new tag, merged notes and
// publish date.
func (a *API) updateCheck(w http.ResponseWriter, r *http.Request) {
	platformID := chi.URLParam(r, "platform")
	versionTag := chi.URLParam(r, "version")

	if _, ok := platform.Normalize(platformID); !ok {
		a.writeError(w, r, fmt.Errorf("%w: unknown platform %q", model.ErrBadRequest, platformID))
		return
	}
	current, err := semver.NewVersion(strings.TrimPrefix(versionTag, "v"))
	if err != nil {
		a.writeError(w, r, fmt.Errorf("%w: invalid version %q", model.ErrBadRequest, versionTag))
		return
	}
	channel, _ := model.ChannelOfTag(versionTag)

	releases := a.index.Releases()
	rel, err := resolver.ResolveForDownload(releases, resolver.Query{
		Channel:  channel,
		Platform: platformID,
		Tag:      resolver.TagLatest,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	if rel.Version().Compare(current) <= 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	asset, ok := platform.Resolve(rel, platformID, "")
	if !ok {
		a.writeError(w, r, fmt.Errorf("%w: no asset for platform %q in release %s",
			model.ErrNotFound, platformID, rel.Tag))
		return
	}

	// Notes cover everything newer than the client's version, up to and
	// including the release being offered, excluding the queried tag itself.
	var newer []*model.Release
	for _, candidate := range releases {
		v := candidate.Version()
		if v.Compare(current) > 0 && v.Compare(rel.Version()) <= 0 {
			newer = append(newer, candidate)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"url":      a.downloadURL(rel.Tag, asset.Filename),
		"name":     rel.Tag,
		"notes":    notes.Merge(newer, len(newer) > 1),
		"pub_date": rel.PublishedAt.Format(time.RFC3339),
	})
}

// updateFeed is the Windows-style endpoint: the latest RELEASES manifest,
// re-pointed at this server's download routes.
func (a *API) updateFeed(w http.ResponseWriter, r *http.Request) {
	platformID := chi.URLParam(r, "platform")
	versionTag := chi.URLParam(r, "version")

	if _, ok := platform.Normalize(platformID); !ok {
		a.writeError(w, r, fmt.Errorf("%w: unknown platform %q", model.ErrBadRequest, platformID))
		return
	}
	channel, ok := model.ChannelOfTag(versionTag)
	if !ok {
		a.writeError(w, r, fmt.Errorf("%w: invalid version %q", model.ErrBadRequest, versionTag))
		return
	}

	rel, err := resolver.ResolveForDownload(a.index.Releases(), resolver.Query{
		Channel:  channel,
		Platform: platformID,
		Tag:      resolver.TagLatest,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	manifest, ok := platform.ResolveFilename(rel, manifestFilename)
	if !ok {
		a.writeError(w, r, fmt.Errorf("%w: release %s has no %s manifest", model.ErrNotFound, rel.Tag, manifestFilename))
		return
	}

	body, _, err := a.cache.Get(r.Context(), manifest)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	raw, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		a.writeError(w, r, fmt.Errorf("%w: reading manifest: %v", model.ErrUpstream, err))
		return
	}

	entries, err := feed.Decode(raw)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	out := feed.Encode(feed.Rewrite(entries, a.cfg.Download.BaseURL, rel.Tag))

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", manifestFilename))
	w.Write(out)
}

// releaseNotes serves merged notes, optionally floored at a version, as
// text/plain or JSON depending on the Accept header.
func (a *API) releaseNotes(w http.ResponseWriter, r *http.Request) {
	releases := a.index.Releases()

	if floorTag := chi.URLParam(r, "version"); floorTag != "" {
		floor, err := semver.NewVersion(strings.TrimPrefix(floorTag, "v"))
		if err != nil {
			a.writeError(w, r, fmt.Errorf("%w: invalid version %q", model.ErrBadRequest, floorTag))
			return
		}
		var kept []*model.Release
		for _, rel := range releases {
			if rel.Version().Compare(floor) >= 0 {
				kept = append(kept, rel)
			}
		}
		releases = kept
	}

	if len(releases) == 0 {
		a.writeError(w, r, fmt.Errorf("%w: no releases", model.ErrNotFound))
		return
	}

	merged := notes.Merge(releases, true)
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"notes":    merged,
			"pub_date": releases[0].PublishedAt.Format(time.RFC3339),
		})
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(merged))
}

// webhookRefresh handles the release-host notification: mark the snapshot
// stale and refresh in the background.
func (a *API) webhookRefresh(w http.ResponseWriter, r *http.Request) {
	a.logger.Info("refresh webhook received")
	a.index.Invalidate()

	go func() {
		if err := a.index.Refresh(context.Background()); err != nil {
			a.logger.Error("webhook refresh failed", zap.Error(err))
		}
	}()

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "refresh started",
	})
}

// adminRefresh refreshes synchronously and reports the outcome.
func (a *API) adminRefresh(w http.ResponseWriter, r *http.Request) {
	if err := a.index.Refresh(r.Context()); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

// releaseView is the JSON listing shape for the api/v1 routes.
type releaseView struct {
	Tag         string      `json:"tag"`
	Channel     string      `json:"channel"`
	Notes       string      `json:"notes"`
	PublishedAt time.Time   `json:"published_at"`
	Assets      []assetView `json:"assets"`
}

type assetView struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Download string `json:"download"`
}

func (a *API) listReleases(w http.ResponseWriter, r *http.Request) {
	releases := a.index.Releases()
	views := make([]releaseView, 0, len(releases))
	for _, rel := range releases {
		views = append(views, a.viewOf(rel))
	}
	writeJSON(w, http.StatusOK, views)
}

func (a *API) getRelease(w http.ResponseWriter, r *http.Request) {
	rel, err := resolver.Resolve(a.index.Releases(), resolver.Query{
		Channel: model.ChannelAny,
		Tag:     chi.URLParam(r, "tag"),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.viewOf(rel))
}

func (a *API) viewOf(rel *model.Release) releaseView {
	view := releaseView{
		Tag:         rel.Tag,
		Channel:     rel.Channel,
		Notes:       rel.Notes,
		PublishedAt: rel.PublishedAt,
		Assets:      make([]assetView, 0, len(rel.Assets)),
	}
	for _, asset := range rel.Assets {
		view.Assets = append(view.Assets, assetView{
			Filename: asset.Filename,
			Size:     asset.Size,
			Download: a.downloadURL(rel.Tag, asset.Filename),
		})
	}
	return view
}

// requestPlatform reads the platform from the query string, falling back to
// User-Agent detection.
func (a *API) requestPlatform(r *http.Request) (string, error) {
	if p := r.URL.Query().Get("platform"); p != "" {
		if _, ok := platform.Normalize(p); !ok {
			return "", fmt.Errorf("%w: unknown platform %q", model.ErrBadRequest, p)
		}
		return p, nil
	}
	if p := platform.FromUserAgent(r.Header.Get("User-Agent")); p != "" {
		return p, nil
	}
	return "", fmt.Errorf("%w: platform is required", model.ErrBadRequest)
}

func (a *API) downloadURL(tag, filename string) string {
	return fmt.Sprintf("%s/download/%s/%s", strings.TrimSuffix(a.cfg.Download.BaseURL, "/"), tag, filename)
}

// writeError maps the error taxonomy to HTTP statuses. Upstream failures are
// reported as 502, never masked as not-found.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrUpstream):
		status = http.StatusBadGateway
	case errors.Is(err, model.ErrMalformedFeed):
		// Corrupt upstream manifest data; worth alerting on.
		status = http.StatusBadGateway
		a.logger.Error("manifest decode failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	if status == http.StatusInternalServerError {
		a.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func queryDefault(r *http.Request, key, fallback string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return fallback
}
