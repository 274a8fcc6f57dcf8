package scrapers

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"leetbot/torrentManager"
	"leetbot/types"
)

const (
	IndexerTimeout = 30 * time.Second
	DefaultBaseURL = "https://1337x.to"

	maxBodySize = 4 << 20
)

// SearchCache interface for caching fetched pages
type SearchCache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration)
}

// LeetxScraper scrapes search results and detail pages from 1337x
type LeetxScraper struct {
	client    *http.Client
	baseURL   string
	userAgent string
	cache     SearchCache
	cacheTTL  time.Duration
}

// NewLeetxScraper creates a new 1337x scraper. cache may be nil.
func NewLeetxScraper(baseURL string, cache SearchCache, cacheTTL time.Duration) *LeetxScraper {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &LeetxScraper{
		client: &http.Client{
			Timeout: IndexerTimeout,
		},
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "Mozilla/5.0",
		cache:     cache,
		cacheTTL:  cacheTTL,
	}
}

// searchURL mirrors the four URL shapes the site uses for category and sort
func (l *LeetxScraper) searchURL(req types.SearchRequest) string {
	query := url.QueryEscape(strings.TrimSpace(req.Query))
	page := req.Page
	if page < 1 {
		page = 1
	}
	order := req.Order
	if order == "" {
		order = "desc"
	}

	switch {
	case req.Category != "" && req.SortBy != "":
		return fmt.Sprintf("%s/sort-category-search/%s/%s/%s/%s/%d/", l.baseURL, query, capitalize(req.Category), req.SortBy, order, page)
	case req.Category != "":
		return fmt.Sprintf("%s/category-search/%s/%s/%d/", l.baseURL, query, capitalize(req.Category), page)
	case req.SortBy != "":
		return fmt.Sprintf("%s/sort-search/%s/%s/%s/%d/", l.baseURL, query, req.SortBy, order, page)
	default:
		return fmt.Sprintf("%s/search/%s/%d/", l.baseURL, query, page)
	}
}

// Search runs one query and returns the rows of the first result table.
// progress may be nil.
func (l *LeetxScraper) Search(ctx context.Context, req types.SearchRequest, progress types.ProgressFunc) ([]types.SearchResultItem, error) {
	if progress == nil {
		progress = func(string) {}
	}

	pageURL := l.searchURL(req)
	zap.S().Infof("🔍 1337x search: %s", req.Query)

	body, cached, err := l.fetchPage(ctx, pageURL)
	if err != nil {
		return nil, errors.Wrap(err, "search request failed")
	}
	if cached {
		progress("📦 Loaded results from cache")
	} else {
		progress("📄 Results page fetched")
	}

	items, err := parseSearchPage(body, l.baseURL)
	if err != nil {
		return nil, err
	}
	progress(fmt.Sprintf("🧾 Parsed %d results", len(items)))

	zap.S().Infof("✅ 1337x returned %d results for query: %s", len(items), req.Query)
	return items, nil
}

// Info fetches the detail page behind a search result link. When the page
// has no magnet anchor, the .torrent mirrors are tried in order.
func (l *LeetxScraper) Info(ctx context.Context, link string) (types.TorrentDetail, error) {
	detailURL := l.absolute(link)

	body, _, err := l.fetchPage(ctx, detailURL)
	if err != nil {
		return types.TorrentDetail{}, errors.Wrap(err, "detail request failed")
	}

	detail, err := parseDetailPage(body)
	if err != nil {
		return types.TorrentDetail{}, err
	}

	if !detail.HasMagnet() {
		for _, torrentLink := range detail.TorrentLinks {
			magnet, err := l.magnetFromTorrentFile(ctx, torrentLink)
			if err != nil {
				zap.S().Debugf("⚠️  Torrent file fallback failed for %s: %v", torrentLink, err)
				continue
			}
			detail.MagnetLink = magnet
			break
		}
	}

	return detail, nil
}

func (l *LeetxScraper) magnetFromTorrentFile(ctx context.Context, link string) (string, error) {
	content, err := l.get(ctx, l.absolute(link))
	if err != nil {
		return "", err
	}
	return torrentManager.MagnetFromTorrent(content)
}

func (l *LeetxScraper) absolute(link string) string {
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	return l.baseURL + "/" + strings.TrimLeft(link, "/")
}

// generateCacheKey generates a cache key for a page URL
func (l *LeetxScraper) generateCacheKey(pageURL string) string {
	hash := sha256.Sum256([]byte(pageURL))
	return fmt.Sprintf("leetx_page_%x", hash)
}

// fetchPage returns the page body, serving it from the cache when possible
func (l *LeetxScraper) fetchPage(ctx context.Context, pageURL string) (string, bool, error) {
	cacheKey := l.generateCacheKey(pageURL)
	if l.cache != nil {
		if cached, found := l.cache.Get(cacheKey); found {
			if body, ok := cached.(string); ok {
				zap.S().Debugf("📦 Cache hit for %s", pageURL)
				return body, true, nil
			}
		}
	}

	content, err := l.get(ctx, pageURL)
	if err != nil {
		return "", false, err
	}
	body := string(content)

	if l.cache != nil && l.cacheTTL > 0 {
		l.cache.Set(cacheKey, body, l.cacheTTL)
	}
	return body, false, nil
}

func (l *LeetxScraper) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", l.userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}
	return content, nil
}

func parseSearchPage(body, baseURL string) ([]types.SearchResultItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse search page")
	}

	var items []types.SearchResultItem
	doc.Find("table.table-list tbody tr").Each(func(_ int, row *goquery.Selection) {
		anchor := row.Find(`td.coll-1 a[href^="/torrent/"]`).First()
		href, ok := anchor.Attr("href")
		if !ok {
			return
		}

		items = append(items, types.SearchResultItem{
			Name:     strings.TrimSpace(anchor.Text()),
			Link:     baseURL + href,
			Seeders:  parseInt(row.Find("td.coll-2").Text()),
			Leechers: parseInt(row.Find("td.coll-3").Text()),
			Size:     strings.TrimSpace(row.Find("td.coll-4").Contents().Not("span").Text()),
			Uploader: strings.TrimSpace(row.Find("td.coll-5").Text()),
		})
	})

	return items, nil
}

func parseDetailPage(body string) (types.TorrentDetail, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return types.TorrentDetail{}, errors.Wrap(err, "failed to parse detail page")
	}

	detail := types.TorrentDetail{
		Name:     strings.TrimSpace(doc.Find("div.box-info-heading h1").First().Text()),
		InfoHash: strings.ToLower(strings.TrimSpace(doc.Find("div.infohash-box span").First().Text())),
	}

	if magnet, ok := doc.Find(`a[href^="magnet:"]`).First().Attr("href"); ok {
		detail.MagnetLink = strings.TrimSpace(magnet)
	}

	seen := make(map[string]bool)
	doc.Find(`a[href$=".torrent"]`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if href != "" && !seen[href] {
			seen[href] = true
			detail.TorrentLinks = append(detail.TorrentLinks, href)
		}
	})

	return detail, nil
}

// parseInt tolerates thousands separators and surrounding whitespace
func parseInt(s string) int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
