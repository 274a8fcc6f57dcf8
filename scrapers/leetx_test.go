package scrapers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IncSW/go-bencode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leetbot/caching"
	"leetbot/types"
)

const searchPage = `<html><body>
<table class="table-list table table-responsive table-striped">
<thead><tr><th class="coll-1 name">name</th></tr></thead>
<tbody>
<tr>
  <td class="coll-1 name"><a href="/sub/42/0/" class="icon"><i class="flaticon-hd"></i></a><a href="/torrent/111/Inception-2010-1080p/">Inception 2010 1080p</a></td>
  <td class="coll-2 seeds">1,204</td>
  <td class="coll-3 leeches">87</td>
  <td class="coll-date">Oct. 1st '24</td>
  <td class="coll-4 size mob-uploader">2.1 GB<span class="seeds">1,204</span></td>
  <td class="coll-5 uploader"><a href="/user/YTS/">YTS</a></td>
</tr>
<tr>
  <td class="coll-1 name"><a href="/sub/42/0/" class="icon"></a><a href="/torrent/222/Inception-2010-720p/">Inception 2010 720p</a></td>
  <td class="coll-2 seeds">640</td>
  <td class="coll-3 leeches">12</td>
  <td class="coll-4 size">1.0 GB<span class="seeds">640</span></td>
  <td class="coll-5 uploader">anon</td>
</tr>
<tr><td class="coll-1 name">broken row</td></tr>
</tbody>
</table>
</body></html>`

const detailPage = `<html><body>
<div class="box-info-heading clearfix"><h1> Inception 2010 1080p </h1></div>
<ul class="dropdown-menu">
  <li><a href="http://itorrents.org/torrent/ABC.torrent">ITORRENTS MIRROR</a></li>
</ul>
<a class="torrentdown1" href="magnet:?xt=urn:btih:ABCDEF&dn=Inception">Magnet Download</a>
<div class="infohash-box"><p>Infohash : <span>ABCDEF0123</span></p></div>
</body></html>`

const detailPageNoMagnet = `<html><body>
<div class="box-info-heading clearfix"><h1>No Magnet Here</h1></div>
<ul class="dropdown-menu">
  <li><a href="/dl/missing.torrent">DEAD MIRROR</a></li>
  <li><a href="/dl/good.torrent">GOOD MIRROR</a></li>
</ul>
</body></html>`

func newTestServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()

	torrentFile, err := bencode.Marshal(map[string]interface{}{
		"announce": "udp://tracker.example:1337/announce",
		"info": map[string]interface{}{
			"name":         "No.Magnet.Here.mkv",
			"piece length": int64(262144),
			"pieces":       "12345678901234567890",
			"length":       int64(1024),
		},
	})
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/sort-category-search/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		_, _ = w.Write([]byte(searchPage))
	})
	mux.HandleFunc("/torrent/111/Inception-2010-1080p/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(detailPage))
	})
	mux.HandleFunc("/torrent/333/no-magnet/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(detailPageNoMagnet))
	})
	mux.HandleFunc("/dl/good.torrent", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(torrentFile)
	})
	mux.HandleFunc("/down/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSearchURL(t *testing.T) {
	l := NewLeetxScraper("https://1337x.to/", nil, 0)

	tests := []struct {
		name     string
		req      types.SearchRequest
		expected string
	}{
		{
			name:     "Category and sort",
			req:      types.SearchRequest{Query: "The Matrix", Category: "movies", SortBy: "seeders", Order: "desc"},
			expected: "https://1337x.to/sort-category-search/The+Matrix/Movies/seeders/desc/1/",
		},
		{
			name:     "Category only",
			req:      types.SearchRequest{Query: "ubuntu", Category: "apps", Page: 2},
			expected: "https://1337x.to/category-search/ubuntu/Apps/2/",
		},
		{
			name:     "Sort only defaults order",
			req:      types.SearchRequest{Query: "ubuntu", SortBy: "size"},
			expected: "https://1337x.to/sort-search/ubuntu/size/desc/1/",
		},
		{
			name:     "Plain",
			req:      types.SearchRequest{Query: "  ubuntu  "},
			expected: "https://1337x.to/search/ubuntu/1/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, l.searchURL(tt.req))
		})
	}
}

func TestSearchParsesRowsAndCaches(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)

	cache := caching.NewCache(caching.Options{})
	defer cache.Close()

	l := NewLeetxScraper(srv.URL, cache, time.Minute)
	req := types.SearchRequest{Query: "Inception", Category: "movies", SortBy: "seeders", Order: "desc"}

	var stages []string
	items, err := l.Search(t.Context(), req, func(stage string) { stages = append(stages, stage) })
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, types.SearchResultItem{
		Name:     "Inception 2010 1080p",
		Link:     srv.URL + "/torrent/111/Inception-2010-1080p/",
		Seeders:  1204,
		Leechers: 87,
		Size:     "2.1 GB",
		Uploader: "YTS",
	}, items[0])
	assert.Equal(t, 640, items[1].Seeders)
	assert.Equal(t, []string{"📄 Results page fetched", "🧾 Parsed 2 results"}, stages)

	stages = nil
	again, err := l.Search(t.Context(), req, func(stage string) { stages = append(stages, stage) })
	require.NoError(t, err)
	assert.Equal(t, items, again)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "second search must be served from cache")
	assert.Equal(t, "📦 Loaded results from cache", stages[0])
}

func TestSearchErrorStatus(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)

	l := NewLeetxScraper(srv.URL+"/down", nil, 0)
	_, err := l.Search(t.Context(), types.SearchRequest{Query: "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code: 503")
}

func TestInfo(t *testing.T) {
	var hits int32
	srv := newTestServer(t, &hits)
	l := NewLeetxScraper(srv.URL, nil, 0)

	t.Run("Magnet on page", func(t *testing.T) {
		detail, err := l.Info(t.Context(), srv.URL+"/torrent/111/Inception-2010-1080p/")
		require.NoError(t, err)
		assert.Equal(t, "Inception 2010 1080p", detail.Name)
		assert.Equal(t, "magnet:?xt=urn:btih:ABCDEF&dn=Inception", detail.MagnetLink)
		assert.Equal(t, "abcdef0123", detail.InfoHash)
		assert.Equal(t, []string{"http://itorrents.org/torrent/ABC.torrent"}, detail.TorrentLinks)
	})

	t.Run("Relative link", func(t *testing.T) {
		detail, err := l.Info(t.Context(), "/torrent/111/Inception-2010-1080p/")
		require.NoError(t, err)
		assert.True(t, detail.HasMagnet())
	})

	t.Run("Torrent file fallback", func(t *testing.T) {
		detail, err := l.Info(t.Context(), "/torrent/333/no-magnet/")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(detail.MagnetLink, "magnet:?xt=urn:btih:"))
		assert.Contains(t, detail.MagnetLink, "dn=No.Magnet.Here.mkv")
	})
}

func TestParseInt(t *testing.T) {
	assert.Equal(t, 1204, parseInt(" 1,204 "))
	assert.Equal(t, 0, parseInt("n/a"))
	assert.Equal(t, 0, parseInt(""))
}
