package types

// SearchRequest represents a search against the torrent index
type SearchRequest struct {
	Query    string
	Category string
	SortBy   string
	Order    string
	Page     int
}

// SearchResultItem represents one row of an index search
type SearchResultItem struct {
	Name     string `json:"name"`
	Link     string `json:"link"`
	Seeders  int    `json:"seeders"`
	Leechers int    `json:"leechers"`
	Size     string `json:"size"`
	Uploader string `json:"uploader"`
}

// TorrentDetail represents the detail page of a single torrent
type TorrentDetail struct {
	Name         string   `json:"name"`
	MagnetLink   string   `json:"magnetLink"`
	InfoHash     string   `json:"infoHash"`
	TorrentLinks []string `json:"torrentLinks"`
}

// HasMagnet reports whether the detail carries a magnet link
func (d TorrentDetail) HasMagnet() bool {
	return d.MagnetLink != ""
}

// ProgressFunc receives human readable search stages as they happen
type ProgressFunc func(stage string)
