package telegraph

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	tph "gitlab.com/toby3d/telegraph"
)

const (
	DefaultPageURL   = "https://telegra.ph"
	DefaultShortName = "1337x_bot"
)

// API is the part of the Telegraph API the client calls
type API interface {
	CreateAccount(account tph.Account) (*tph.Account, error)
	CreatePage(account *tph.Account, page tph.Page) (*tph.Page, error)
}

// remoteAPI talks to api.telegra.ph
type remoteAPI struct{}

func (remoteAPI) CreateAccount(account tph.Account) (*tph.Account, error) {
	return tph.CreateAccount(account)
}

func (remoteAPI) CreatePage(account *tph.Account, page tph.Page) (*tph.Page, error) {
	return account.CreatePage(page, false)
}

// Config holds configuration for the Telegraph client
type Config struct {
	PageURL     string
	ShortName   string
	AuthorName  string
	AccessToken string
	// nil uses api.telegra.ph
	API API
}

// Client publishes read-only pages on Telegraph
type Client struct {
	api        API
	pageURL    string
	shortName  string
	authorName string

	mu      sync.Mutex
	account *tph.Account
}

// Page is a published page
type Page struct {
	Path  string
	URL   string
	Title string
}

// NewClient creates a new Telegraph client. Without an access token an
// account is created on the first publish.
func NewClient(config Config) *Client {
	if config.API == nil {
		config.API = remoteAPI{}
	}
	if config.PageURL == "" {
		config.PageURL = DefaultPageURL
	}
	if config.ShortName == "" {
		config.ShortName = DefaultShortName
	}

	c := &Client{
		api:        config.API,
		pageURL:    strings.TrimRight(config.PageURL, "/"),
		shortName:  config.ShortName,
		authorName: config.AuthorName,
	}
	if config.AccessToken != "" {
		c.account = &tph.Account{
			AccessToken: config.AccessToken,
			ShortName:   config.ShortName,
			AuthorName:  config.AuthorName,
		}
	}
	return c
}

// withContext runs a blocking Telegraph call and gives up when ctx ends
// first. The call itself keeps running until the HTTP round trip returns.
func withContext[T any](ctx context.Context, call func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := call()
		done <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-done:
		return r.value, r.err
	}
}

// CreateAccount registers a new account
func (c *Client) CreateAccount(ctx context.Context) (*tph.Account, error) {
	account, err := withContext(ctx, func() (*tph.Account, error) {
		return c.api.CreateAccount(tph.Account{ShortName: c.shortName, AuthorName: c.authorName})
	})
	if err != nil {
		return nil, errors.Wrap(err, "telegraph createAccount")
	}
	if account == nil || account.AccessToken == "" {
		return nil, errors.New("telegraph createAccount returned no access token")
	}

	zap.S().Infof("✅ Telegraph account %q created", account.ShortName)
	return account, nil
}

// session returns the account pages are published under, creating it once
func (c *Client) session(ctx context.Context) (*tph.Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.account != nil {
		return c.account, nil
	}

	account, err := c.CreateAccount(ctx)
	if err != nil {
		return nil, err
	}
	c.account = account
	return c.account, nil
}

// CreatePage publishes text as a page. Newlines become <br> and the HTML is
// converted to Telegraph content nodes.
func (c *Client) CreatePage(ctx context.Context, title, htmlContent string) (*Page, error) {
	account, err := c.session(ctx)
	if err != nil {
		return nil, err
	}

	content, err := tph.ContentFormat(strings.ReplaceAll(htmlContent, "\n", "<br>"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert page content")
	}
	content = bodyNodes(content)

	page, err := withContext(ctx, func() (*tph.Page, error) {
		return c.api.CreatePage(account, tph.Page{
			Title:      title,
			AuthorName: account.AuthorName,
			Content:    content,
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "telegraph createPage")
	}
	if page == nil || page.Path == "" {
		return nil, errors.New("telegraph createPage returned no path")
	}

	published := &Page{
		Path:  page.Path,
		URL:   c.pageURL + "/" + page.Path,
		Title: page.Title,
	}
	zap.S().Infof("📰 Published Telegraph page %s", published.URL)
	return published, nil
}

// bodyNodes strips the html, head and body wrappers the HTML parser adds
// around a fragment; Telegraph rejects those tags
func bodyNodes(nodes []tph.Node) []tph.Node {
	out := make([]tph.Node, 0, len(nodes))
	for _, n := range nodes {
		var el tph.NodeElement
		switch v := n.(type) {
		case tph.NodeElement:
			el = v
		case *tph.NodeElement:
			if v == nil {
				continue
			}
			el = *v
		case nil:
			continue
		default:
			out = append(out, n)
			continue
		}

		switch el.Tag {
		case "head":
		case "html", "body":
			out = append(out, bodyNodes(el.Children)...)
		default:
			out = append(out, n)
		}
	}
	return out
}
