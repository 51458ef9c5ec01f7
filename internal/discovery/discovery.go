// Package discovery implements the small HTTP dance CDP layers over a
// browser's debug port before any WebSocket is opened: listing tabs,
// creating a tab, activating or closing one, and reading version info.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/duskline/cdpwire/internal/logging"
)

// Tab is a CDP target record as returned by /json/list and /json/new.
// The wire format carries a handful of other fields (faviconUrl,
// parentId, …); they are treated as opaque and simply dropped by the
// json.Unmarshal call rather than modeled.
type Tab struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	Description  string `json:"description,omitempty"`
	WebSocketURL string `json:"webSocketDebuggerUrl"`
}

// VersionInfo is the response shape of /json/version.
type VersionInfo struct {
	Browser       string `json:"Browser"`
	ProtocolVer   string `json:"Protocol-Version"`
	UserAgent     string `json:"User-Agent"`
	V8Version     string `json:"V8-Version"`
	WebKitVersion string `json:"WebKit-Version"`
	WebSocketURL  string `json:"webSocketDebuggerUrl"`
}

// Client issues /json/* requests against a single browser debug port.
// Uses http.DefaultClient unless New is given another client; callers
// set timeouts via context, matching
// CDP's expectation that this is a local, low-latency loopback call.
type Client struct {
	httpClient *http.Client
	base       string
	log        *zap.Logger
}

// New creates a discovery client for the given host and port. A nil
// httpClient falls back to http.DefaultClient; a nil logger discards
// everything.
func New(host string, port int, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		base:       fmt.Sprintf("http://%s:%d", host, port),
		log:        logging.Named(log, "discovery"),
	}
}

// VersionInfo fetches GET /json/version.
func (c *Client) VersionInfo(ctx context.Context) (*VersionInfo, error) {
	var info VersionInfo
	if err := c.getJSON(ctx, "/json/version", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListTabs fetches GET /json/list, filtering by a case-insensitive
// substring match on each tab's Type field. An empty typeFilter means
// "caller didn't specify one" and defaults to "page"; to see workers,
// extensions, or other target kinds, pass their type substring
// explicitly.
func (c *Client) ListTabs(ctx context.Context, typeFilter string) ([]Tab, error) {
	if typeFilter == "" {
		typeFilter = "page"
	}

	var tabs []Tab
	if err := c.getJSON(ctx, "/json/list", &tabs); err != nil {
		return nil, err
	}

	needle := strings.ToLower(typeFilter)
	filtered := tabs[:0]
	for _, tab := range tabs {
		if strings.Contains(strings.ToLower(tab.Type), needle) {
			filtered = append(filtered, tab)
		}
	}
	return filtered, nil
}

// NewTab creates a new tab, optionally navigating it to targetURL.
func (c *Client) NewTab(ctx context.Context, targetURL string) (*Tab, error) {
	path := "/json/new"
	if targetURL != "" {
		path += "?" + targetURL
	}

	var tab Tab
	if err := c.getJSON(ctx, path, &tab); err != nil {
		return nil, err
	}
	return &tab, nil
}

// ActivateTab brings the tab with the given id to the foreground. The
// response body is ignored; only transport-level failure is reported.
func (c *Client) ActivateTab(ctx context.Context, id string) error {
	_, err := c.get(ctx, "/json/activate/"+url.PathEscape(id))
	return err
}

// CloseTab closes the tab with the given id. CDP sometimes resets the
// connection instead of replying 200 once the tab is actually gone;
// both are treated as success since the caller's goal (a closed tab)
// is met either way.
func (c *Client) CloseTab(ctx context.Context, id string) error {
	_, err := c.get(ctx, "/json/close/"+url.PathEscape(id))
	if err != nil {
		c.log.Debug("closeTab error swallowed", zap.String("id", id), zap.Error(err))
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("discovery: parse %s: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: build request for %s: %w", path, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discovery: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("discovery: read body of %s: %w", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery: %s returned status %d", path, resp.StatusCode)
	}

	return body, nil
}
