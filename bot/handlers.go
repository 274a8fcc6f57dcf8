package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"leetbot/types"
)

// handleSearch runs /search <query>: progress in a status message, the top
// results one message each, then a prompt with the navigation buttons.
func (r *Router) handleSearch(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	query := strings.TrimSpace(msg.CommandArguments())
	if query == "" {
		return r.reply(msg, usageText)
	}

	zap.S().Infof("🔎 Search from chat %d: %q", chatID, query)

	results, err := r.searchWithProgress(ctx, msg, query)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		r.sessions.End(chatID)
		return r.reply(msg, noResultsText)
	}

	session := r.sessions.Start(chatID, query, results)
	zap.S().Debugf("Session %d started for chat %d with %d results", session.ID, chatID, len(results))

	shown := min(PageSize, len(results))
	for i := 0; i < shown; i++ {
		block := r.formatter.Blocks(ctx, results, i, i+1)[0]

		item := tgbotapi.NewMessage(chatID, block.Text)
		item.ParseMode = tgbotapi.ModeHTML
		item.DisableWebPagePreview = true
		if block.Magnet != "" {
			session.SetMirror(block.Index, block.Magnet)
			if r.mirrorEnabled() {
				item.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
					tgbotapi.NewInlineKeyboardRow(mirrorButtonFor(block.Index, mirrorButton)),
				)
			}
		}
		if _, err := r.send(item); err != nil {
			return err
		}
	}

	prompt := tgbotapi.NewMessage(chatID, viewAllPromptText)
	prompt.ReplyMarkup = promptKeyboard(pageCount(len(results)))
	_, err = r.send(prompt)
	return err
}

// searchWithProgress keeps a status message up to date while the scraper
// works. A failed search is reported in the status message and yields no
// results; only Telegram failures are returned.
func (r *Router) searchWithProgress(ctx context.Context, msg *tgbotapi.Message, query string) ([]types.SearchResultItem, error) {
	chatID := msg.Chat.ID

	statusMsg := tgbotapi.NewMessage(chatID, fmt.Sprintf(searchStatusText, query))
	statusMsg.ReplyToMessageID = msg.MessageID
	status, err := r.send(statusMsg)
	if err != nil {
		return nil, err
	}

	edit := func(text string) {
		if _, err := r.messenger.Send(tgbotapi.NewEditMessageText(chatID, status.MessageID, text)); err != nil {
			zap.S().Warnf("⚠️ Failed to update status message in chat %d: %v", chatID, err)
		}
	}

	results, err := r.searcher.Search(ctx, types.SearchRequest{
		Query:    query,
		Category: "movies",
		SortBy:   "seeders",
		Order:    "desc",
		Page:     1,
	}, func(stage string) {
		edit(fmt.Sprintf(searchProgressText, query, stage))
	})
	if err != nil {
		zap.S().Errorf("❌ Search for %q failed: %v", query, err)
		edit(searchFailedText)
		return nil, nil
	}

	if len(results) > MaxResults {
		results = results[:MaxResults]
	}
	edit(fmt.Sprintf(searchCompletedText, len(results)))
	return results, nil
}

func (r *Router) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if _, err := r.messenger.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		zap.S().Warnf("⚠️ Failed to answer callback %s: %v", q.ID, err)
	}
	if q.Message == nil || q.Message.Chat == nil {
		zap.S().Debugf("Ignoring callback %q without a message", q.Data)
		return nil
	}

	switch data := q.Data; {
	case data == showTelegraphData:
		return r.handleShowTelegraph(ctx, q.Message)
	case strings.HasPrefix(data, showPagePrefix):
		page, err := strconv.Atoi(strings.TrimPrefix(data, showPagePrefix))
		if err != nil {
			return errors.Wrapf(err, "bad page callback %q", data)
		}
		return r.handleShowPage(ctx, q.Message, page)
	case strings.HasPrefix(data, mirrorPrefix):
		idx, err := strconv.Atoi(strings.TrimPrefix(data, mirrorPrefix))
		if err != nil {
			return errors.Wrapf(err, "bad mirror callback %q", data)
		}
		return r.handleMirror(ctx, q.Message, idx)
	default:
		zap.S().Debugf("Ignoring unknown callback %q", data)
		return nil
	}
}

// handleShowTelegraph publishes every result of the session and replaces
// the prompt with a link to the page
func (r *Router) handleShowTelegraph(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	session, ok := r.sessions.Get(chatID)
	if !ok {
		return r.editText(msg, resultsNotFoundText, "")
	}

	content := r.formatter.Format(ctx, session.Results, 0, len(session.Results))
	page, err := r.publisher.CreatePage(ctx, pageTitle, content)
	if err != nil {
		return errors.Wrap(err, "publish results")
	}
	zap.S().Infof("📰 Published session %d (%d results for %q, %v old) at %s",
		session.ID, len(session.Results), session.Query, time.Since(session.CreatedAt).Round(time.Second), page.URL)

	return r.editText(msg, fmt.Sprintf(publishedText, page.URL), tgbotapi.ModeMarkdown)
}

// handleShowPage replaces the prompt with one page of results
func (r *Router) handleShowPage(ctx context.Context, msg *tgbotapi.Message, page int) error {
	chatID := msg.Chat.ID
	session, ok := r.sessions.Get(chatID)
	if !ok {
		return r.editText(msg, resultsNotFoundText, "")
	}

	pages := pageCount(len(session.Results))
	if page < 1 || page > pages {
		return r.editText(msg, resultsNotFoundText, "")
	}

	start := (page - 1) * PageSize
	blocks := r.formatter.Blocks(ctx, session.Results, start, start+PageSize)

	var b strings.Builder
	b.WriteString(fmt.Sprintf(pageHeaderText, page, pages, escapeHTML(session.Query)))
	var mirrorable []int
	for i, block := range blocks {
		if b.Len()+len(block.Text)+len(pageTruncatedText) > maxMessageLength {
			zap.S().Debugf("Page %d truncated after %d of %d results", page, i, len(blocks))
			b.WriteString(pageTruncatedText)
			break
		}
		b.WriteString(block.Text)
		if block.Magnet != "" {
			session.SetMirror(block.Index, block.Magnet)
			mirrorable = append(mirrorable, block.Index)
		}
	}
	if !r.mirrorEnabled() {
		mirrorable = nil
	}

	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, msg.MessageID, b.String(), pageKeyboard(page, pages, mirrorable))
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = true
	_, err := r.send(edit)
	return err
}

// handleMirror submits the magnet behind a mirror button and reports the
// outcome as a reply to the message holding the button
func (r *Router) handleMirror(ctx context.Context, msg *tgbotapi.Message, idx int) error {
	chatID := msg.Chat.ID

	var magnet string
	if session, ok := r.sessions.Get(chatID); ok {
		magnet, _ = session.Mirror(idx)
	}
	if magnet == "" {
		return r.replyTo(msg, torrentNotFoundText)
	}

	if !r.mirrorEnabled() {
		zap.S().Warnf("⚠️ Mirror requested in chat %d but mirroring is disabled", chatID)
		return r.replyTo(msg, mirrorFailedText)
	}

	if err := r.replyTo(msg, fmt.Sprintf(mirrorStartedText, idx)); err != nil {
		return err
	}

	folderURL, err := r.mirrorer.Mirror(ctx, magnet)
	if err != nil {
		return r.replyTo(msg, mirrorFailedText)
	}
	zap.S().Infof("☁️ Mirrored torrent %d for chat %d: %s", idx, chatID, folderURL)
	return r.replyTo(msg, fmt.Sprintf(mirroredText, folderURL))
}

func (r *Router) replyTo(msg *tgbotapi.Message, text string) error {
	m := tgbotapi.NewMessage(msg.Chat.ID, text)
	m.ReplyToMessageID = msg.MessageID
	_, err := r.send(m)
	return err
}

func (r *Router) editText(msg *tgbotapi.Message, text, parseMode string) error {
	edit := tgbotapi.NewEditMessageText(msg.Chat.ID, msg.MessageID, text)
	edit.ParseMode = parseMode
	_, err := r.send(edit)
	return err
}
