// Package search locates the official municipal disaster-preparedness
// manual for a place via the Custom Search API.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/kuri-sun/bous-ai/internal/domain"
	"github.com/kuri-sun/bous-ai/internal/ocr"
	"github.com/kuri-sun/bous-ai/internal/storage"
)

const searchAPIURL = "https://www.googleapis.com/customsearch/v1"

// ManualSearcher finds the official manual for a place. A nil context result
// with a nil error means nothing was found.
type ManualSearcher interface {
	SearchOfficialManual(ctx context.Context, city, prefecture string, place *domain.Place) (*domain.SearchContext, error)
}

// Google implements ManualSearcher on the Custom Search JSON API. When the
// top hit is a PDF it is downloaded, cached in the object store, and OCRed
// so the conversation can be grounded on the manual's actual text.
type Google struct {
	apiKey    string
	cx        string
	bucket    string
	client    *http.Client
	store     storage.ObjectStore
	extractor ocr.Extractor
}

// NewGoogle creates a Custom Search backed manual searcher. store and
// extractor may be nil when reference-text caching is not wanted.
func NewGoogle(apiKey, cx, bucket string, store storage.ObjectStore, extractor ocr.Extractor) *Google {
	return &Google{
		apiKey:    apiKey,
		cx:        cx,
		bucket:    bucket,
		client:    &http.Client{Timeout: 10 * time.Second},
		store:     store,
		extractor: extractor,
	}
}

type searchItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type searchResponse struct {
	Items []searchItem `json:"items"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type scopedQuery struct {
	scope string
	query string
}

// SearchOfficialManual walks the query ladder (city-scoped first, then
// prefecture) and returns the best-scoring hit of the first query with
// results. Returns (nil, nil) when every query comes back empty.
func (g *Google) SearchOfficialManual(ctx context.Context, city, prefecture string, place *domain.Place) (*domain.SearchContext, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is not set")
	}
	if g.cx == "" {
		return nil, fmt.Errorf("GOOGLE_SEARCH_CX is not set")
	}

	citySlug, prefSlug := extractSlugs(city, prefecture, place)

	for _, sq := range buildQueries(city, prefecture, citySlug, prefSlug) {
		items, err := g.fetch(ctx, sq.query)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			continue
		}

		var keywords []string
		if sq.scope == "city" && city != "" {
			keywords = append(keywords, city)
		}
		if prefecture != "" {
			keywords = append(keywords, prefecture)
		}
		sort.SliceStable(items, func(i, j int) bool {
			return scoreItem(items[i], keywords, city, citySlug, prefSlug) >
				scoreItem(items[j], keywords, city, citySlug, prefSlug)
		})

		var item *searchItem
		for i := range items {
			if items[i].Link != "" {
				item = &items[i]
				break
			}
		}
		if item == nil {
			continue
		}

		result := &domain.SearchContext{
			Query: sq.query,
			Scope: sq.scope,
			Result: &domain.SearchResult{
				Title:   item.Title,
				Link:    item.Link,
				Snippet: item.Snippet,
			},
		}
		result.ReferenceText = g.cacheReferenceText(ctx, sq, item.Link)
		return result, nil
	}
	return nil, nil
}

func (g *Google) fetch(ctx context.Context, query string) ([]searchItem, error) {
	params := url.Values{}
	params.Set("key", g.apiKey)
	params.Set("cx", g.cx)
	params.Set("q", query)
	params.Set("num", "3")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchAPIURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("custom search request: %w", err)
	}
	defer resp.Body.Close()

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if payload.Error != nil {
		message := payload.Error.Message
		if message == "" {
			message = "Google search failed"
		}
		return nil, fmt.Errorf("custom search: %s", message)
	}
	return payload.Items, nil
}

// cacheReferenceText downloads a PDF hit, caches it in the object store and
// OCRs it. Best effort: any failure just leaves the reference text empty.
func (g *Google) cacheReferenceText(ctx context.Context, sq scopedQuery, link string) string {
	if !strings.HasSuffix(link, ".pdf") || g.bucket == "" || g.store == nil || g.extractor == nil {
		return ""
	}

	fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, link, nil)
	if err != nil {
		return ""
	}
	resp, err := g.client.Do(req)
	if err != nil {
		slog.Warn("reference manual download failed", "link", link, "error", err)
		return ""
	}
	defer resp.Body.Close()
	fileBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return ""
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}

	blobName := fmt.Sprintf("search_cache/%s/%s/manual.pdf", sq.scope, url.QueryEscape(sq.query))
	gcsURI, err := g.store.Upload(ctx, g.bucket, blobName, fileBytes, contentType)
	if err != nil {
		slog.Warn("reference manual cache upload failed", "blob", blobName, "error", err)
		return ""
	}
	text, err := g.extractor.DetectText(ctx, fileBytes, blobName, contentType, gcsURI)
	if err != nil {
		slog.Warn("reference manual ocr failed", "blob", blobName, "error", err)
		return ""
	}
	return text
}

func buildQueries(city, prefecture, citySlug, prefSlug string) []scopedQuery {
	var queries []scopedQuery
	if city != "" {
		queries = append(queries, scopedQuery{
			scope: "city",
			query: fmt.Sprintf("%s マンション 防災マニュアル filetype:pdf", city),
		})
		if citySlug != "" && prefSlug != "" {
			queries = append(queries, scopedQuery{
				scope: "city",
				query: fmt.Sprintf("%s マンション 防災マニュアル site:%s.%s.jp filetype:pdf", city, citySlug, prefSlug),
			})
			queries = append(queries, scopedQuery{
				scope: "city",
				query: fmt.Sprintf("%s マンション 防災マニュアル site:city.%s.%s.jp filetype:pdf", city, citySlug, prefSlug),
			})
		}
	}
	if prefecture != "" {
		queries = append(queries, scopedQuery{
			scope: "prefecture",
			query: fmt.Sprintf("%s 防災マニュアル filetype:pdf", prefecture),
		})
	}
	return queries
}

// scoreItem ranks a hit by how strongly it looks like the official manual of
// the target municipality.
func scoreItem(item searchItem, keywords []string, city, citySlug, prefSlug string) int {
	title := strings.ToLower(item.Title)
	snippet := strings.ToLower(item.Snippet)
	link := strings.ToLower(item.Link)
	text := strings.Join([]string{title, snippet, link}, " ")

	score := 0
	for _, keyword := range keywords {
		if keyword != "" && strings.Contains(text, strings.ToLower(keyword)) {
			score += 5
		}
	}

	var host, path string
	if parsed, err := url.Parse(item.Link); err == nil {
		host = strings.ToLower(parsed.Host)
		path = strings.ToLower(parsed.Path)
	}
	if strings.Contains(host, ".city.") {
		score += 4
	}
	if strings.HasSuffix(host, ".lg.jp") || strings.Contains(host, ".lg.jp") {
		score += 3
	}
	if city != "" && isASCII(city) {
		cityLower := strings.ToLower(city)
		if strings.Contains(host, cityLower) || strings.Contains(path, cityLower) {
			score += 6
		}
	}
	if citySlug != "" && strings.Contains(host, citySlug) {
		score += 6
	}
	if prefSlug != "" && strings.Contains(host, prefSlug) {
		score += 2
	}
	if strings.Contains(text, "マンション") {
		score += 3
	}
	if strings.Contains(text, "防災") {
		score += 2
	}
	if strings.Contains(text, "マニュアル") {
		score += 2
	}
	if strings.HasSuffix(text, ".pdf") || strings.Contains(text, "filetype:pdf") {
		score++
	}
	return score
}

// extractSlugs derives ASCII host slugs for site-scoped queries, preferring
// the romanized short names from the place's address components.
func extractSlugs(city, prefecture string, place *domain.Place) (string, string) {
	citySlug := slugifyASCII(city)
	prefSlug := slugifyASCII(prefecture)
	if place == nil {
		return citySlug, prefSlug
	}
	for _, component := range place.AddressComponents {
		for _, t := range component.Types {
			switch t {
			case "administrative_area_level_2", "locality":
				if citySlug == "" {
					citySlug = slugifyASCII(component.ShortName)
				}
			case "administrative_area_level_1":
				if prefSlug == "" {
					prefSlug = slugifyASCII(component.ShortName)
				}
			}
		}
	}
	return citySlug, prefSlug
}

func slugifyASCII(text string) string {
	var b strings.Builder
	for _, r := range text {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func isASCII(s string) bool {
	for _, r := range s {
		if r >= unicode.MaxASCII {
			return false
		}
	}
	return true
}
