package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/duskline/cdpwire/internal/discovery"
)

// secondsToDuration converts the fractional-second durations the
// high-level API takes (matching the browser's own Runtime.evaluate
// timeout conventions) into a time.Duration.
func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// evalParams mirrors the subset of Runtime.evaluate's parameters this
// library exposes directly; callers needing the rest issue
// SendRequest("Runtime.evaluate", ...) themselves.
type evalParams struct {
	Expression    string `json:"expression"`
	ReturnByValue bool   `json:"returnByValue"`
	AwaitPromise  bool   `json:"awaitPromise"`
}

type remoteObject struct {
	Type        string          `json:"type"`
	Subtype     string          `json:"subtype,omitempty"`
	ClassName   string          `json:"className,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
	Description string          `json:"description,omitempty"`
	ObjectID    string          `json:"objectId,omitempty"`
}

type exceptionDetails struct {
	Text string `json:"text"`
}

type evaluateResult struct {
	Result           remoteObject      `json:"result"`
	ExceptionDetails *exceptionDetails `json:"exceptionDetails,omitempty"`
}

// Evaluate runs expression via Runtime.evaluate with returnByValue
// always true and returns the resulting remote object (marshaled
// back to JSON) so the caller can inspect type/subtype/value/objectId
// itself. awaitPromise controls whether a returned promise is awaited
// before the call completes; it is the only parameter the caller can
// set.
func (s *Session) Evaluate(ctx context.Context, expression string, awaitPromise bool) (json.RawMessage, error) {
	raw, err := s.SendRequest(ctx, "Runtime.evaluate", evalParams{
		Expression:    expression,
		ReturnByValue: true,
		AwaitPromise:  awaitPromise,
	})
	if err != nil {
		return nil, err
	}

	var res evaluateResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("session: parse Runtime.evaluate result: %w", err)
	}
	if res.ExceptionDetails != nil {
		return nil, fmt.Errorf("session: evaluate threw: %s", res.ExceptionDetails.Text)
	}

	obj, err := json.Marshal(res.Result)
	if err != nil {
		return nil, fmt.Errorf("session: remarshal remote object: %w", err)
	}
	return obj, nil
}

// Eval calls Evaluate with awaitPromise true and projects the
// resulting remote object's value field, the common case of "run this
// expression and give me back a plain JSON value" that most callers
// want.
func (s *Session) Eval(ctx context.Context, expression string) (json.RawMessage, error) {
	raw, err := s.Evaluate(ctx, expression, true)
	if err != nil {
		return nil, err
	}

	var obj remoteObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("session: parse remote object: %w", err)
	}
	return obj.Value, nil
}

type callFunctionOnParams struct {
	FunctionDeclaration string    `json:"functionDeclaration"`
	ObjectID            string    `json:"objectId,omitempty"`
	Arguments           []callArg `json:"arguments,omitempty"`
	ReturnByValue       bool      `json:"returnByValue"`
	AwaitPromise        bool      `json:"awaitPromise"`
}

type callArg struct {
	Value json.RawMessage `json:"value,omitempty"`
}

// CallFunctionOn invokes functionDeclaration (a JS function literal)
// with args marshaled as by-value arguments, optionally bound to
// objectID (empty means call it with no receiver, in the global
// context).
func (s *Session) CallFunctionOn(ctx context.Context, functionDeclaration, objectID string, args []any) (json.RawMessage, error) {
	callArgs := make([]callArg, len(args))
	for i, a := range args {
		v, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("session: marshal callFunctionOn argument %d: %w", i, err)
		}
		callArgs[i] = callArg{Value: v}
	}

	raw, err := s.SendRequest(ctx, "Runtime.callFunctionOn", callFunctionOnParams{
		FunctionDeclaration: functionDeclaration,
		ObjectID:            objectID,
		Arguments:           callArgs,
		ReturnByValue:       true,
		AwaitPromise:        true,
	})
	if err != nil {
		return nil, err
	}

	var res evaluateResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("session: parse Runtime.callFunctionOn result: %w", err)
	}
	if res.ExceptionDetails != nil {
		return nil, fmt.Errorf("session: callFunctionOn threw: %s", res.ExceptionDetails.Text)
	}
	return res.Result.Value, nil
}

// ProtocolVersion returns the Protocol-Version field of the browser's
// /json/version response.
func (s *Session) ProtocolVersion(ctx context.Context) (string, error) {
	if s.disc == nil {
		return "", fmt.Errorf("session: no discovery client (connected via pipe or explicit endpoint)")
	}
	info, err := s.disc.VersionInfo(ctx)
	if err != nil {
		return "", err
	}
	return info.ProtocolVer, nil
}

// GetDomains asks the browser which CDP domains it implements, via
// Schema.getDomains — a call every target supports regardless of
// which domains it has enabled.
func (s *Session) GetDomains(ctx context.Context) (json.RawMessage, error) {
	return s.SendRequest(ctx, "Schema.getDomains", nil)
}

// ListTabs passes through to the discovery client used at Connect
// time, so callers can enumerate targets without constructing their
// own discovery.Client.
func (s *Session) ListTabs(ctx context.Context, typeFilter string) ([]discovery.Tab, error) {
	if s.disc == nil {
		return nil, fmt.Errorf("session: no discovery client (connected via pipe or explicit endpoint)")
	}
	return s.disc.ListTabs(ctx, typeFilter)
}

// NewTabRemote opens a new tab on the same browser this session is
// connected to, without switching this session's own target.
func (s *Session) NewTabRemote(ctx context.Context, targetURL string) (*discovery.Tab, error) {
	if s.disc == nil {
		return nil, fmt.Errorf("session: no discovery client (connected via pipe or explicit endpoint)")
	}
	return s.disc.NewTab(ctx, targetURL)
}

// ActivateTabRemote brings another tab on the same browser to the
// foreground.
func (s *Session) ActivateTabRemote(ctx context.Context, id string) error {
	if s.disc == nil {
		return fmt.Errorf("session: no discovery client (connected via pipe or explicit endpoint)")
	}
	return s.disc.ActivateTab(ctx, id)
}

// CloseTabRemote closes another tab on the same browser.
func (s *Session) CloseTabRemote(ctx context.Context, id string) error {
	if s.disc == nil {
		return fmt.Errorf("session: no discovery client (connected via pipe or explicit endpoint)")
	}
	return s.disc.CloseTab(ctx, id)
}
