package debrid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	baseURL  = "https://www.seedr.cc"
	clientID = "seedr_chrome"
)

// API endpoints
const (
	tokenPath    = "/oauth_test/token.php"
	resourcePath = "/oauth_test/resource.php"
	filesPath    = "/files/%d"
)

var (
	// ErrDisabled is returned when no credentials are configured
	ErrDisabled = errors.New("mirroring is not configured")
	// ErrAuth wraps failures of the password grant
	ErrAuth = errors.New("seedr authentication failed")
	// ErrSubmit wraps failures of the add_torrent call
	ErrSubmit = errors.New("seedr submission failed")
)

// Client represents a Seedr API client
type Client struct {
	name       string
	baseURL    string
	username   string
	password   string
	userAgent  string
	httpClient *http.Client
	oauth      oauth2.Config
}

// Config holds configuration for the Seedr client
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// AddTorrentResponse is the resource.php answer to func=add_torrent
type AddTorrentResponse struct {
	Result        interface{} `json:"result"`
	Code          int         `json:"code"`
	Error         string      `json:"error,omitempty"`
	UserTorrentID int64       `json:"user_torrent_id"`
	FolderID      int64       `json:"folder_id"`
	Title         string      `json:"title"`
	TorrentHash   string      `json:"torrent_hash"`
}

// ok reports success. Seedr answers result=true on success and a reason
// string such as "not_enough_space_added_to_wishlist" otherwise.
func (r AddTorrentResponse) ok() bool {
	b, isBool := r.Result.(bool)
	return isBool && b
}

// NewClient creates a new Seedr client
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = baseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	base := strings.TrimRight(config.BaseURL, "/")

	return &Client{
		name:      "Seedr",
		baseURL:   base,
		username:  config.Username,
		password:  config.Password,
		userAgent: "Mozilla/5.0",
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		oauth: oauth2.Config{
			ClientID: clientID,
			Endpoint: oauth2.Endpoint{
				TokenURL:  base + tokenPath,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
}

// Enabled reports whether credentials are configured
func (c *Client) Enabled() bool {
	return c.username != "" && c.password != ""
}

// Authenticate exchanges the username and password for a bearer token.
// Tokens are not cached; every mirror starts a fresh grant.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauth.PasswordCredentialsToken(ctx, c.username, c.password)
	if err != nil {
		return "", errors.Wrap(ErrAuth, err.Error())
	}
	if token.AccessToken == "" {
		return "", errors.Wrap(ErrAuth, "empty access token")
	}

	return token.AccessToken, nil
}

// AddMagnet submits a magnet link and returns the created folder id
func (c *Client) AddMagnet(ctx context.Context, accessToken, magnet string) (int64, error) {
	params := url.Values{}
	params.Set("access_token", accessToken)

	form := url.Values{}
	form.Set("func", "add_torrent")
	form.Set("torrent_magnet", magnet)

	data, err := c.post(ctx, resourcePath, params, form)
	if err != nil {
		return 0, errors.Wrap(ErrSubmit, err.Error())
	}

	var response AddTorrentResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return 0, errors.Wrap(ErrSubmit, "failed to unmarshal response: "+err.Error())
	}
	if !response.ok() {
		reason := response.Error
		if reason == "" {
			reason = fmt.Sprintf("%v", response.Result)
		}
		return 0, errors.Wrap(ErrSubmit, reason)
	}

	id := response.FolderID
	if id == 0 {
		id = response.UserTorrentID
	}
	if id == 0 {
		return 0, errors.Wrap(ErrSubmit, "no folder id in response")
	}

	zap.S().Infof("☁️ %s accepted %q (id %d)", c.name, response.Title, id)
	return id, nil
}

// FolderURL composes the browsable URL of a folder
func (c *Client) FolderURL(id int64) string {
	return c.baseURL + fmt.Sprintf(filesPath, id)
}

// Mirror runs the two-step flow: authenticate, then submit the magnet.
// It returns the URL of the remote folder.
func (c *Client) Mirror(ctx context.Context, magnet string) (string, error) {
	token, err := c.Authenticate(ctx)
	if err != nil {
		zap.S().Errorf("❌ %s login failed: %v", c.name, err)
		return "", err
	}

	id, err := c.AddMagnet(ctx, token, magnet)
	if err != nil {
		zap.S().Errorf("❌ %s submit failed: %v", c.name, err)
		return "", err
	}

	return c.FolderURL(id), nil
}

// post makes a form POST against the Seedr API
func (c *Client) post(ctx context.Context, path string, params url.Values, formData url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, strings.NewReader(formData.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
