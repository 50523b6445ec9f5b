// Package resolver looks up quiz results recorded outside the widget: first in the
// published site manifest, then in the site-wide results map.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"confetti-quiz/internal/domain"
	"golang.org/x/sync/singleflight"
)

// DefaultManifestPath is resolved against the widget base URL.
const DefaultManifestPath = "../site.json"

const maxManifestBytes = 4 << 20

// ResultsMap is the secondary lookup tier keyed by page slug.
// Lookup returns nil, nil when nothing is recorded.
type ResultsMap interface {
	Lookup(ctx context.Context, slug string) (json.RawMessage, error)
}

type Options struct {
	// BaseURL is the URL the widget was served from. Empty disables the manifest tier.
	BaseURL      string
	ManifestPath string
	Timeout      time.Duration
	Client       *http.Client
	Results      ResultsMap
}

// Resolver implements app.ResultResolver.
type Resolver struct {
	manifestURL string
	client      *http.Client
	results     ResultsMap
	sf          singleflight.Group
}

type manifest struct {
	Items []manifestItem `json:"items"`
}

type manifestItem struct {
	Slug     string `json:"slug"`
	Metadata struct {
		Quiz       json.RawMessage `json:"quiz"`
		QuizResult json.RawMessage `json:"quizResult"`
	} `json:"metadata"`
}

func New(opts Options) (*Resolver, error) {
	r := &Resolver{client: opts.Client, results: opts.Results}
	if r.client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		r.client = &http.Client{Timeout: timeout}
	}
	if opts.BaseURL != "" {
		u, err := ManifestURL(opts.BaseURL, opts.ManifestPath)
		if err != nil {
			return nil, err
		}
		r.manifestURL = u
	}
	return r, nil
}

// ManifestURL resolves the manifest path against base.
func ManifestURL(base, path string) (string, error) {
	if path == "" {
		path = DefaultManifestPath
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse manifest path: %w", err)
	}
	return b.ResolveReference(ref).String(), nil
}

// Resolve tries each tier once. Failures are logged and reported as absent.
func (r *Resolver) Resolve(ctx context.Context, identity domain.PageIdentity) (domain.ExternalResult, bool) {
	slug := normalizeSlug(identity.Slug)
	if r.manifestURL != "" {
		if raw, ok := r.fromManifest(ctx, slug); ok {
			if result, ok := ParseResult(raw); ok {
				return result, true
			}
		}
	}
	if r.results != nil {
		raw, err := r.results.Lookup(ctx, slug)
		if err != nil {
			log.Printf("resolver: results map %s: %v", slug, err)
			return domain.ExternalResult{}, false
		}
		if raw != nil {
			return ParseResult(raw)
		}
	}
	return domain.ExternalResult{}, false
}

func (r *Resolver) fromManifest(ctx context.Context, slug string) (json.RawMessage, bool) {
	v, err, _ := r.sf.Do(r.manifestURL, func() (interface{}, error) {
		return r.fetchManifest(ctx)
	})
	if err != nil {
		log.Printf("resolver: manifest %s: %v", r.manifestURL, err)
		return nil, false
	}
	for _, item := range v.(manifest).Items {
		if normalizeSlug(item.Slug) != slug {
			continue
		}
		if len(item.Metadata.Quiz) > 0 {
			return item.Metadata.Quiz, true
		}
		if len(item.Metadata.QuizResult) > 0 {
			return item.Metadata.QuizResult, true
		}
		return nil, false
	}
	return nil, false
}

func (r *Resolver) fetchManifest(ctx context.Context) (manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.manifestURL, nil)
	if err != nil {
		return manifest{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return manifest{}, fmt.Errorf("%w: %v", domain.ErrResultUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return manifest{}, fmt.Errorf("%w: status %d", domain.ErrResultUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
	if err != nil {
		return manifest{}, fmt.Errorf("%w: %v", domain.ErrResultUnavailable, err)
	}
	var doc manifest
	if err := json.Unmarshal(body, &doc); err != nil {
		return manifest{}, fmt.Errorf("%w: decode: %v", domain.ErrResultUnavailable, err)
	}
	return doc, nil
}

func normalizeSlug(slug string) string {
	return strings.Trim(strings.TrimSpace(slug), "/")
}
