package torrentManager

import (
	"crypto/sha1"
	"fmt"
	"net/url"
	"strings"

	"github.com/IncSW/go-bencode"
	"github.com/pkg/errors"
)

// Metadata is what a magnet link needs from a .torrent file
type Metadata struct {
	InfoHash string
	Name     string
	Trackers []string
}

// ParseTorrent decodes a .torrent file and hashes its info dictionary
func ParseTorrent(content []byte) (*Metadata, error) {
	if len(content) == 0 {
		return nil, errors.New("empty content")
	}

	torrentData, err := bencode.Unmarshal(content)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal torrent")
	}

	torrentMap, ok := torrentData.(map[string]interface{})
	if !ok {
		return nil, errors.New("invalid torrent structure")
	}

	infoDict, ok := torrentMap["info"]
	if !ok {
		return nil, errors.New("info dictionary not found")
	}

	// Re-encoding yields the canonical (sorted keys) form the hash is defined over
	infoBencoded, err := bencode.Marshal(infoDict)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal info dict")
	}

	meta := &Metadata{
		InfoHash: fmt.Sprintf("%x", sha1.Sum(infoBencoded)),
		Trackers: extractTrackers(torrentMap),
	}
	if info, ok := infoDict.(map[string]interface{}); ok {
		meta.Name = asString(info["name"])
	}

	return meta, nil
}

// MagnetFromTorrent builds a magnet link out of a .torrent file
func MagnetFromTorrent(content []byte) (string, error) {
	meta, err := ParseTorrent(content)
	if err != nil {
		return "", err
	}
	return BuildMagnet(meta.InfoHash, meta.Name, meta.Trackers), nil
}

// BuildMagnet assembles a magnet URI. Name and trackers are optional.
func BuildMagnet(infoHash, name string, trackers []string) string {
	var b strings.Builder
	b.WriteString("magnet:?xt=urn:btih:")
	b.WriteString(strings.ToLower(infoHash))
	if name != "" {
		b.WriteString("&dn=")
		b.WriteString(url.QueryEscape(name))
	}
	for _, tr := range trackers {
		b.WriteString("&tr=")
		b.WriteString(url.QueryEscape(tr))
	}
	return b.String()
}

// extractTrackers extracts all tracker URLs from the torrent
func extractTrackers(torrent map[string]interface{}) []string {
	trackerSet := make(map[string]bool)
	var trackers []string

	add := func(tracker string) {
		if tracker != "" && !trackerSet[tracker] {
			trackerSet[tracker] = true
			trackers = append(trackers, tracker)
		}
	}

	add(asString(torrent["announce"]))

	tiers, _ := torrent["announce-list"].([]interface{})
	for _, tier := range tiers {
		list, _ := tier.([]interface{})
		for _, tracker := range list {
			add(asString(tracker))
		}
	}

	return trackers
}

// bencode strings may come back as []byte or string depending on the value
func asString(v interface{}) string {
	switch s := v.(type) {
	case []byte:
		return string(s)
	case string:
		return s
	default:
		return ""
	}
}
