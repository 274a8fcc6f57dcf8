package bot

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"leetbot/caching"
	"leetbot/telegraph"
	"leetbot/types"
)

type fakeMessenger struct {
	mu       sync.Mutex
	nextID   int
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	failSend bool
}

func (m *fakeMessenger) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSend {
		return tgbotapi.Message{}, errors.New("telegram is down")
	}
	m.nextID++
	m.sent = append(m.sent, c)
	return tgbotapi.Message{MessageID: 1000 + m.nextID}, nil
}

func (m *fakeMessenger) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (m *fakeMessenger) messages() []tgbotapi.MessageConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range m.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, msg)
		}
	}
	return out
}

func (m *fakeMessenger) edits() []tgbotapi.EditMessageTextConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []tgbotapi.EditMessageTextConfig
	for _, c := range m.sent {
		if edit, ok := c.(tgbotapi.EditMessageTextConfig); ok {
			out = append(out, edit)
		}
	}
	return out
}

func (m *fakeMessenger) texts() []string {
	var out []string
	for _, msg := range m.messages() {
		out = append(out, msg.Text)
	}
	return out
}

func (m *fakeMessenger) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
	m.requests = nil
}

type fakeSearcher struct {
	mu       sync.Mutex
	results  []types.SearchResultItem
	details  map[string]types.TorrentDetail
	err      error
	panics   bool
	searches []types.SearchRequest
	infos    int
}

func (s *fakeSearcher) Search(_ context.Context, req types.SearchRequest, progress types.ProgressFunc) ([]types.SearchResultItem, error) {
	s.mu.Lock()
	s.searches = append(s.searches, req)
	s.mu.Unlock()

	if s.panics {
		panic("scraper exploded")
	}
	progress("📄 Results page fetched")
	if s.err != nil {
		return nil, s.err
	}
	progress(fmt.Sprintf("🧾 Parsed %d results", len(s.results)))
	return s.results, nil
}

func (s *fakeSearcher) Info(_ context.Context, link string) (types.TorrentDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infos++
	detail, ok := s.details[link]
	if !ok {
		return types.TorrentDetail{}, errors.Errorf("no details for %s", link)
	}
	return detail, nil
}

func (s *fakeSearcher) searchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.searches)
}

type fakePublisher struct {
	mu      sync.Mutex
	title   string
	content string
	err     error
}

func (p *fakePublisher) CreatePage(_ context.Context, title, htmlContent string) (*telegraph.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.title = title
	p.content = htmlContent
	return &telegraph.Page{Path: "Search-Results-10-17", URL: "https://telegra.ph/Search-Results-10-17", Title: title}, nil
}

type fakeMirrorer struct {
	mu       sync.Mutex
	disabled bool
	err      error
	magnets  []string
}

func (m *fakeMirrorer) Enabled() bool { return !m.disabled }

func (m *fakeMirrorer) Mirror(_ context.Context, magnet string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.magnets = append(m.magnets, magnet)
	if m.err != nil {
		return "", m.err
	}
	return "https://www.seedr.cc/files/42", nil
}

func magnetFor(i int) string {
	return fmt.Sprintf("magnet:?xt=urn:btih:%040d&dn=Inception.%d", i, i)
}

// inceptionResults builds n results, all with magnets except the indexes
// (1-based) listed in missing
func inceptionResults(n int, missing ...int) ([]types.SearchResultItem, map[string]types.TorrentDetail) {
	skip := make(map[int]bool)
	for _, i := range missing {
		skip[i] = true
	}

	items := make([]types.SearchResultItem, 0, n)
	details := make(map[string]types.TorrentDetail)
	for i := 1; i <= n; i++ {
		item := types.SearchResultItem{
			Name:     fmt.Sprintf("Inception 2010 Part %d", i),
			Link:     fmt.Sprintf("https://1337x.to/torrent/%d/inception-2010-%d/", 5000+i, i),
			Seeders:  100 - i,
			Leechers: i,
		}
		items = append(items, item)
		if !skip[i] {
			details[item.Link] = types.TorrentDetail{Name: item.Name, MagnetLink: magnetFor(i)}
		}
	}
	return items, details
}

type harness struct {
	router    *Router
	messenger *fakeMessenger
	searcher  *fakeSearcher
	publisher *fakePublisher
	mirrorer  *fakeMirrorer
	sessions  *SessionStore
}

func newHarness(t *testing.T, results []types.SearchResultItem, details map[string]types.TorrentDetail) *harness {
	t.Helper()

	cache := caching.NewCache(caching.Options{})
	t.Cleanup(cache.Close)

	h := &harness{
		messenger: &fakeMessenger{},
		searcher:  &fakeSearcher{results: results, details: details},
		publisher: &fakePublisher{},
		mirrorer:  &fakeMirrorer{},
		sessions:  NewSessionStore(cache, time.Hour),
	}
	h.router = NewRouter(Options{
		Messenger:      h.messenger,
		Searcher:       h.searcher,
		Publisher:      h.publisher,
		Mirrorer:       h.mirrorer,
		Sessions:       h.sessions,
		HandlerTimeout: 5 * time.Second,
	})
	return h
}

func (h *harness) handle(t *testing.T, update tgbotapi.Update) {
	t.Helper()
	h.router.HandleUpdate(t.Context(), update)
}

func commandUpdate(chatID int64, text string) tgbotapi.Update {
	cmdLen := len(text)
	for i, r := range text {
		if r == ' ' {
			cmdLen = i
			break
		}
	}
	return tgbotapi.Update{
		UpdateID: int(chatID),
		Message: &tgbotapi.Message{
			MessageID: 1,
			Chat:      &tgbotapi.Chat{ID: chatID},
			Text:      text,
			Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
		},
	}
}

func callbackUpdate(chatID int64, messageID int, data string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: int(chatID) + messageID,
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      fmt.Sprintf("cb-%d-%s", messageID, data),
			Data:    data,
			Message: &tgbotapi.Message{MessageID: messageID, Chat: &tgbotapi.Chat{ID: chatID}},
		},
	}
}

func callbackData(t *testing.T, markup interface{}) [][]string {
	t.Helper()

	var kb tgbotapi.InlineKeyboardMarkup
	switch m := markup.(type) {
	case tgbotapi.InlineKeyboardMarkup:
		kb = m
	case *tgbotapi.InlineKeyboardMarkup:
		require.NotNil(t, m)
		kb = *m
	default:
		t.Fatalf("unexpected markup %T", markup)
	}

	var rows [][]string
	for _, row := range kb.InlineKeyboard {
		var data []string
		for _, button := range row {
			require.NotNil(t, button.CallbackData)
			data = append(data, *button.CallbackData)
		}
		rows = append(rows, data)
	}
	return rows
}
