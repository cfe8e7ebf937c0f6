package nico

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	httpclient "nicotools/http"
)

// FlvParams are the per-content session parameters.
type FlvParams struct {
	ThreadID         string
	Length           string
	VideoURL         string
	MessageServer    string
	MessageServerSub string
	UserID           string
	IsPremium        bool
	Nickname         string
	UserKey          string

	// Present for official content only.
	OptionalThreadID string
	NeedsKey         string
}

var requiredFlvKeys = []string{"thread_id", "url", "ms", "user_id"}

// ParseFlv decodes a URL-encoded parameter blob. An "error" key, as in
// "error=access_locked&done=true", yields ErrAccessLocked.
func ParseFlv(body string) (*FlvParams, error) {
	q, err := url.ParseQuery(strings.TrimSpace(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if v, ok := q["error"]; ok {
		reason := ""
		if len(v) > 0 {
			reason = v[0]
		}
		return nil, fmt.Errorf("%w (%s)", ErrAccessLocked, reason)
	}
	for _, k := range requiredFlvKeys {
		if q.Get(k) == "" {
			return nil, fmt.Errorf("%w: session parameters missing %q", ErrMalformedResponse, k)
		}
	}

	return &FlvParams{
		ThreadID:         q.Get("thread_id"),
		Length:           q.Get("l"),
		VideoURL:         q.Get("url"),
		MessageServer:    q.Get("ms"),
		MessageServerSub: q.Get("ms_sub"),
		UserID:           q.Get("user_id"),
		IsPremium:        q.Get("is_premium") == "1",
		Nickname:         q.Get("nickname"),
		UserKey:          q.Get("userkey"),
		OptionalThreadID: q.Get("optional_thread_id"),
		NeedsKey:         q.Get("needs_key"),
	}, nil
}

// fetchFlv requests session parameters for a working ID.
func fetchFlv(ctx context.Context, client *httpclient.Client, ep Endpoints, workingID string) (*FlvParams, error) {
	var params url.Values
	if Classify(workingID) == ClassNM {
		params = url.Values{"as3": {"1"}}
	}
	resp, err := client.GetQuery(ctx, ep.GetFlv+workingID, params)
	if err != nil {
		return nil, fmt.Errorf("session parameters: %w", err)
	}
	return ParseFlv(string(resp.Body))
}

// fetchThreadKey returns the thread key and force_184 flag for official
// content, asked for by working ID. When needsKey is not "1" no request is made.
func fetchThreadKey(ctx context.Context, client *httpclient.Client, ep Endpoints, workingID, needsKey string) (key, force184 string, err error) {
	if needsKey != "1" {
		return "", "0", nil
	}
	resp, err := client.GetQuery(ctx, ep.ThreadKey, url.Values{"thread": {workingID}})
	if err != nil {
		return "", "", fmt.Errorf("thread key: %w", err)
	}
	q, err := url.ParseQuery(strings.TrimSpace(string(resp.Body)))
	if err != nil {
		return "", "", fmt.Errorf("%w: thread key: %v", ErrMalformedResponse, err)
	}
	if _, ok := q["threadkey"]; !ok {
		return "", "", fmt.Errorf("%w: thread key response missing threadkey", ErrMalformedResponse)
	}
	return q.Get("threadkey"), q.Get("force_184"), nil
}
