package research

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"narrativ/internal/logging"
	"narrativ/internal/storyplan"
)

const (
	maxFacts          = 15
	maxSources        = 10
	resultsPerQuery   = 3
	minSnippetLength  = 50
	researchCacheName = "research"
)

// Findings is the gathered research for one topic.
type Findings struct {
	Facts   []string
	Sources []storyplan.Source
}

// Content joins the facts into the block embedded in planning prompts.
func (f Findings) Content() string {
	return strings.Join(f.Facts, "\n\n")
}

// CacheKey returns the cache key for a topic.
func CacheKey(topic string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(topic))))
	return researchCacheName + ":" + hex.EncodeToString(sum[:])
}

// Gather searches the web for topic, or returns empty findings when no
// searcher is configured. Non-empty findings are cached.
func (p *Planner) Gather(ctx context.Context, topic string) Findings {
	key := CacheKey(topic)
	if cached, ok := p.cache.Get(key); ok {
		if findings, ok := cached.(Findings); ok {
			return findings
		}
	}
	if p.search == nil {
		return Findings{}
	}

	logger := logging.WithContext(ctx, p.logger)
	year := p.clock().Year()
	queries := []string{
		fmt.Sprintf("%s %d", topic, year),
		fmt.Sprintf("%s latest news %d", topic, year),
	}

	results := make([][]SearchResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, query := range queries {
		g.Go(func() error {
			hits, err := p.search.Search(gctx, query, resultsPerQuery)
			if err != nil {
				logging.WarnWithContext(logger, "research query failed",
					"research_query_failed",
					logging.String("query", query),
					logging.Error(err),
					logging.String(logging.FieldImpact, "plan uses fewer facts"),
				)
				return nil
			}
			results[i] = hits
			return nil
		})
	}
	_ = g.Wait()

	findings := collect(results)
	logger.Info("research gathered",
		logging.String(logging.FieldTopic, topic),
		logging.Int("facts", len(findings.Facts)),
		logging.Int("sources", len(findings.Sources)),
	)
	if len(findings.Facts) > 0 {
		p.cache.SetDefault(key, findings)
	}
	return findings
}

// collect flattens query results in order, deduplicating facts and URLs.
func collect(results [][]SearchResult) Findings {
	var findings Findings
	seenFacts := make(map[string]struct{})
	seenURLs := make(map[string]struct{})
	for _, hits := range results {
		for _, hit := range hits {
			content := strings.TrimSpace(hit.Content)
			if len(content) <= minSnippetLength {
				continue
			}
			fact := fmt.Sprintf("[%s]: %s", strings.TrimSpace(hit.Title), content)
			if _, dup := seenFacts[fact]; !dup && len(findings.Facts) < maxFacts {
				seenFacts[fact] = struct{}{}
				findings.Facts = append(findings.Facts, fact)
			}
			url := strings.TrimSpace(hit.URL)
			if url == "" {
				continue
			}
			if _, dup := seenURLs[url]; dup || len(findings.Sources) >= maxSources {
				continue
			}
			seenURLs[url] = struct{}{}
			findings.Sources = append(findings.Sources, storyplan.Source{Title: strings.TrimSpace(hit.Title), URL: url})
		}
	}
	return findings
}
