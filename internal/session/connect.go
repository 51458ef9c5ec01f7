package session

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/duskline/cdpwire/internal/discovery"
)

// TabSelector picks which browser target Connect dials, replacing the
// source language's runtime type-dispatch on the tab argument with a
// small tagged union (§9). The four concrete types are unexported;
// callers build one with ByIndex/ByTitle/ByID/ByRecord.
type TabSelector interface {
	isTabSelector()
}

type tabIndex int

func (tabIndex) isTabSelector() {}

// ByIndex selects the i'th tab in discovery order.
func ByIndex(i int) TabSelector { return tabIndex(i) }

type tabTitle struct{ re *regexp.Regexp }

func (tabTitle) isTabSelector() {}

// ByTitle selects the first tab whose title matches re.
func ByTitle(re *regexp.Regexp) TabSelector { return tabTitle{re: re} }

type tabID string

func (tabID) isTabSelector() {}

// ByID selects the tab with the given exact id.
func ByID(id string) TabSelector { return tabID(id) }

type tabRecord struct{ tab discovery.Tab }

func (tabRecord) isTabSelector() {}

// ByRecord selects the tab whose id matches t.ID, useful when the
// caller already holds a Tab from a prior ListTabs call.
func ByRecord(t discovery.Tab) TabSelector { return tabRecord{tab: t} }

// resolveTarget implements steps 3-8 of the endpoint resolution policy
// in §4.G. Steps 1 (pipe) and 2 (explicit endpoint) are handled by the
// caller before this is reached, since neither needs a discovery
// round-trip.
func resolveTarget(ctx context.Context, disc *discovery.Client, sel TabSelector, newTab bool) (*discovery.Tab, error) {
	switch s := sel.(type) {
	case tabIndex:
		tabs, err := disc.ListTabs(ctx, "")
		if err != nil {
			return nil, err
		}
		if int(s) < 0 || int(s) >= len(tabs) {
			return nil, &NotFoundError{Reason: fmt.Sprintf("index %d out of range (%d tabs)", s, len(tabs))}
		}
		return &tabs[s], nil

	case tabTitle:
		tabs, err := disc.ListTabs(ctx, "")
		if err != nil {
			return nil, err
		}
		for i := range tabs {
			if s.re.MatchString(tabs[i].Title) {
				if tabs[i].WebSocketURL == "" {
					return nil, &MissingWebSocketURLError{TabID: tabs[i].ID}
				}
				return &tabs[i], nil
			}
		}
		return nil, &NotFoundError{Reason: "no tab title matches " + s.re.String()}

	case tabRecord:
		tabs, err := disc.ListTabs(ctx, "")
		if err != nil {
			return nil, err
		}
		for i := range tabs {
			if tabs[i].ID == s.tab.ID {
				return &tabs[i], nil
			}
		}
		return nil, &NotFoundError{Reason: "no tab with id " + s.tab.ID}

	case tabID:
		tabs, err := disc.ListTabs(ctx, "")
		if err != nil {
			return nil, err
		}
		for i := range tabs {
			if tabs[i].ID == string(s) {
				return &tabs[i], nil
			}
		}
		return nil, &NotFoundError{Reason: "no tab with id " + string(s)}

	case nil:
		if newTab {
			tab, err := disc.NewTab(ctx, "")
			if err != nil {
				return nil, err
			}
			return tab, nil
		}

		tabs, err := disc.ListTabs(ctx, "")
		if err != nil {
			return nil, err
		}
		for i := range tabs {
			if tabs[i].WebSocketURL != "" {
				return &tabs[i], nil
			}
		}
		return nil, &NotFoundError{Reason: "no tab with a webSocketDebuggerUrl"}

	default:
		return nil, fmt.Errorf("session: unknown tab selector %T", sel)
	}
}

// extractTabID pulls the trailing path segment off an explicit
// endpoint URL to use as the tab id, e.g.
// "ws://127.0.0.1:9222/devtools/page/ABC123" -> "ABC123". Fails with
// *MalformedEndpointError if there is no non-empty final segment.
func extractTabID(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", &MalformedEndpointError{Endpoint: endpoint}
	}

	trimmed := strings.TrimRight(u.Path, "/")
	idx := strings.LastIndex(trimmed, "/")
	id := trimmed[idx+1:]
	if id == "" {
		return "", &MalformedEndpointError{Endpoint: endpoint}
	}
	return id, nil
}
