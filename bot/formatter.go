package bot

import (
	"context"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"leetbot/types"
)

// MagnetPlaceholder stands in for a magnet the detail page did not yield
const MagnetPlaceholder = "N/A"

// Block is one formatted result
type Block struct {
	Index  int // 1-based position in the result list
	Item   types.SearchResultItem
	Magnet string // empty when unavailable
	Text   string
}

// Formatter renders results as Telegram HTML blocks, fetching magnets
// through the searcher's detail lookup.
type Formatter struct {
	searcher Searcher
}

func NewFormatter(searcher Searcher) *Formatter {
	return &Formatter{searcher: searcher}
}

// Blocks formats results[start:end]. Bounds are clamped to the list, and an
// empty range yields no blocks. A failed detail lookup produces a block with
// the placeholder instead of failing the whole range.
func (f *Formatter) Blocks(ctx context.Context, results []types.SearchResultItem, start, end int) []Block {
	start = max(start, 0)
	end = min(end, len(results))
	if start >= end {
		return nil
	}

	blocks := make([]Block, 0, end-start)
	for i := start; i < end; i++ {
		item := results[i]
		magnet := ""

		detail, err := f.searcher.Info(ctx, item.Link)
		if err != nil {
			zap.S().Warnf("⚠️ Failed to fetch details for %s: %v", item.Link, err)
		} else {
			magnet = detail.MagnetLink
		}

		blocks = append(blocks, Block{
			Index:  i + 1,
			Item:   item,
			Magnet: magnet,
			Text:   formatBlock(i+1, item, magnet),
		})
	}
	return blocks
}

// Format concatenates the blocks for results[start:end]
func (f *Formatter) Format(ctx context.Context, results []types.SearchResultItem, start, end int) string {
	var b strings.Builder
	for _, block := range f.Blocks(ctx, results, start, end) {
		b.WriteString(block.Text)
	}
	return b.String()
}

func formatBlock(idx int, item types.SearchResultItem, magnet string) string {
	if magnet == "" {
		magnet = MagnetPlaceholder
	}
	return fmt.Sprintf("🎬 <b>%d. %s</b>\n⚙️ Seeders: %d | Leechers: %d\n🔗 <code>%s</code>\n\n",
		idx, html.EscapeString(item.Name), item.Seeders, item.Leechers, html.EscapeString(magnet))
}
