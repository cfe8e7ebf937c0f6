package nico

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	httpclient "nicotools/http"
	"nicotools/internal/storage"
)

const (
	commentInterval = 1500 * time.Millisecond
	threadVersion   = "20090904"
	leavesContent   = "0-99999:9999,1000"
)

// CommentOptions configures a CommentFetcher.
type CommentOptions struct {
	FetchOptions
	// XML selects the legacy packet format. Only user content supports it;
	// everything else is always fetched as JSON.
	XML bool
}

// CommentFetcher downloads comment threads.
type CommentFetcher struct {
	client    *httpclient.Client
	endpoints Endpoints
	opts      CommentOptions
	log       zerolog.Logger
}

func NewCommentFetcher(s *Session, opts CommentOptions) *CommentFetcher {
	return &CommentFetcher{
		client:    s.Client,
		endpoints: s.Endpoints,
		opts:      opts,
		log:       opts.Logger.With().Str("component", "comment").Logger(),
	}
}

// Run downloads the comments of every record of db into dest.
func (f *CommentFetcher) Run(ctx context.Context, db *Database, dest string) (*BatchResult, error) {
	return runBatch(ctx, f.log, "comment", db, dest, f.opts.interval(commentInterval), f.fetch)
}

func (f *CommentFetcher) fetch(ctx context.Context, rec *VideoRecord, dest string) (string, error) {
	t, params, err := prepare(ctx, f.client, f.endpoints, rec, f.opts.lock(), f.log)
	if err != nil {
		return "", err
	}

	var (
		body []byte
		ext  string
	)
	userContent := Classify(t.DisplayID).UserContent()
	if f.opts.XML && userContent {
		body, err = f.fetchXML(ctx, params)
		ext = "xml"
	} else {
		body, err = f.fetchJSON(ctx, t, params, !userContent)
		ext = "json"
	}
	if err != nil {
		return "", err
	}

	path := outputPath(dest, t.DisplayID, rec.Title, ext)
	if err := storage.WriteFile(path, body); err != nil {
		return "", err
	}
	return path, nil
}

func (f *CommentFetcher) fetchXML(ctx context.Context, params *FlvParams) ([]byte, error) {
	packet, err := BuildXMLPacket(params.ThreadID, params.UserID)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.PostBody(ctx, params.MessageServer, "text/xml", packet)
	if err != nil {
		return nil, fmt.Errorf("comment packet: %w", err)
	}
	return []byte(FormatXMLComments(string(resp.Body))), nil
}

// fetchJSON posts the JSON command list. Official content first needs a
// thread key, which is looked up by the working ID.
func (f *CommentFetcher) fetchJSON(ctx context.Context, t Target, params *FlvParams, official bool) ([]byte, error) {
	var key, force184 string
	if official {
		var err error
		key, force184, err = fetchThreadKey(ctx, f.client, f.endpoints, t.WorkingID, params.NeedsKey)
		if err != nil {
			return nil, err
		}
	}
	resp, err := f.client.PostJSON(ctx, f.endpoints.MessageJSON, jsonCommands(params, official, key, force184))
	if err != nil {
		return nil, fmt.Errorf("comment request: %w", err)
	}
	return []byte(FormatJSONComments(string(resp.Body))), nil
}

type xmlThread struct {
	XMLName xml.Name `xml:"thread"`
	Thread  string   `xml:"thread,attr"`
	UserID  string   `xml:"user_id,attr"`
	Version string   `xml:"version,attr"`
	Scores  string   `xml:"scores,attr"`
	Fork    string   `xml:"fork,attr,omitempty"`
	ResFrom string   `xml:"res_from,attr,omitempty"`
}

type xmlLeaves struct {
	XMLName xml.Name `xml:"thread_leaves"`
	Thread  string   `xml:"thread,attr"`
	UserID  string   `xml:"user_id,attr"`
	Scores  string   `xml:"scores,attr"`
	Content string   `xml:",chardata"`
}

type xmlPacket struct {
	XMLName xml.Name `xml:"packet"`
	Threads []xmlThread
	Leaves  xmlLeaves
}

// BuildXMLPacket returns the legacy request: the main thread, the owner fork
// and the leaves query.
func BuildXMLPacket(threadID, userID string) ([]byte, error) {
	p := xmlPacket{
		Threads: []xmlThread{
			{Thread: threadID, UserID: userID, Version: threadVersion, Scores: "1"},
			{Thread: threadID, UserID: userID, Version: threadVersion, Scores: "1", Fork: "1", ResFrom: "-1000"},
		},
		Leaves: xmlLeaves{Thread: threadID, UserID: userID, Scores: "1", Content: leavesContent},
	}
	out, err := xml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("comment packet: %w", err)
	}
	return out, nil
}

// BuildJSONRequest returns the ordered command array for the JSON message
// endpoint. Official content gets a second thread/leaves pair carrying the
// thread key.
func BuildJSONRequest(params *FlvParams, official bool, threadKey, force184 string) ([]byte, error) {
	out, err := json.Marshal(jsonCommands(params, official, threadKey, force184))
	if err != nil {
		return nil, fmt.Errorf("comment request: %w", err)
	}
	return out, nil
}

func jsonCommands(params *FlvParams, official bool, threadKey, force184 string) []map[string]any {
	ping := func(content string) map[string]any {
		return map[string]any{"ping": map[string]any{"content": content}}
	}

	first := params.ThreadID
	if params.OptionalThreadID != "" {
		first = params.OptionalThreadID
	}

	cmds := []map[string]any{
		ping("rs:0"),
		ping("ps:0"),
		{"thread": map[string]any{
			"thread":      first,
			"version":     threadVersion,
			"language":    0,
			"user_id":     params.UserID,
			"with_global": 1,
			"scores":      1,
			"nicoru":      0,
			"userkey":     params.UserKey,
		}},
		ping("pf:0"),
		ping("ps:1"),
		{"thread_leaves": map[string]any{
			"thread":   first,
			"language": 0,
			"user_id":  params.UserID,
			"content":  leavesContent,
			"scores":   1,
			"nicoru":   0,
			"userkey":  params.UserKey,
		}},
		ping("pf:1"),
	}

	if official {
		cmds = append(cmds,
			ping("ps:2"),
			map[string]any{"thread": map[string]any{
				"thread":      params.ThreadID,
				"version":     threadVersion,
				"language":    0,
				"user_id":     params.UserID,
				"force_184":   force184,
				"with_global": 1,
				"scores":      1,
				"nicoru":      0,
				"threadkey":   threadKey,
			}},
			ping("pf:2"),
			ping("ps:3"),
			map[string]any{"thread_leaves": map[string]any{
				"thread":    params.ThreadID,
				"language":  0,
				"user_id":   params.UserID,
				"content":   leavesContent,
				"scores":    1,
				"nicoru":    0,
				"force_184": force184,
				"threadkey": threadKey,
			}},
			ping("pf:3"),
		)
	}
	return append(cmds, ping("rf:0"))
}

var jsonBreaks = strings.NewReplacer("}, ", "},\n", "},{", "},\n{")

// FormatXMLComments puts every element on its own line.
func FormatXMLComments(body string) string {
	return withNewline(strings.ReplaceAll(body, "><", ">\n<"))
}

// FormatJSONComments puts every top-level object on its own line.
func FormatJSONComments(body string) string {
	return withNewline(jsonBreaks.Replace(body))
}

func withNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
