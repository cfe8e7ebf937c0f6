package nico

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	httpclient "nicotools/http"
)

// OwnerKind tells an uploader from a channel.
type OwnerKind int

const (
	OwnerUser OwnerKind = iota
	OwnerChannel
)

// Owner is the uploader of user content or the channel of official content.
// It is implemented only by Uploader and Channel.
type Owner interface {
	Kind() OwnerKind
	Name() string
	owner()
}

type Uploader struct {
	UserID   int64
	UserName string
	IconURL  string
}

func (Uploader) Kind() OwnerKind { return OwnerUser }
func (u Uploader) Name() string  { return u.UserName }
func (Uploader) owner()          {}

type Channel struct {
	ChannelID   int64
	ChannelName string
	IconURL     string
}

func (Channel) Kind() OwnerKind { return OwnerChannel }
func (c Channel) Name() string  { return c.ChannelName }
func (Channel) owner()          {}

// VideoRecord is the descriptor of one live content item.
type VideoRecord struct {
	ID            string
	WatchID       string // last segment of WatchURL; the thread ID for some official content
	Title         string
	Description   string
	Tags          []string
	ViewCounter   int64
	CommentNum    int64
	MylistCounter int64
	Length        string
	LengthSeconds int
	MovieType     string
	SizeHigh      int64
	SizeLow       int64
	ThumbnailURL  string
	FirstRetrieve string // YYYY-MM-DD
	LastResBody   string
	Embeddable    bool
	NoLivePlay    bool
	WatchURL      string
	Owner         Owner
}

// JoinedTags is the comma separated tag list.
func (r *VideoRecord) JoinedTags() string {
	return strings.Join(r.Tags, ", ")
}

// Database holds descriptors in the order the IDs were requested.
type Database struct {
	order   []string
	records map[string]*VideoRecord
}

func NewDatabase() *Database {
	return &Database{records: make(map[string]*VideoRecord)}
}

// Add stores rec, replacing a previous record with the same ID in place.
func (d *Database) Add(rec *VideoRecord) {
	if _, ok := d.records[rec.ID]; !ok {
		d.order = append(d.order, rec.ID)
	}
	d.records[rec.ID] = rec
}

func (d *Database) Get(id string) (*VideoRecord, bool) {
	rec, ok := d.records[id]
	return rec, ok
}

func (d *Database) IDs() []string {
	return append([]string(nil), d.order...)
}

func (d *Database) Len() int {
	return len(d.order)
}

// Each calls fn for every record in order until fn returns false.
func (d *Database) Each(fn func(i int, rec *VideoRecord) bool) {
	for i, id := range d.order {
		if !fn(i, d.records[id]) {
			return
		}
	}
}

// InfoFetcher retrieves content descriptors.
type InfoFetcher struct {
	client    *httpclient.Client
	endpoints Endpoints
	log       zerolog.Logger
}

func NewInfoFetcher(client *httpclient.Client, endpoints Endpoints, log zerolog.Logger) *InfoFetcher {
	return &InfoFetcher{client: client, endpoints: endpoints, log: log}
}

// Fetch requests a descriptor for every ID and returns the live ones. Dead
// content and per-ID transport failures are logged and left out. The only
// error returned is the context's.
func (f *InfoFetcher) Fetch(ctx context.Context, ids []string) (*Database, error) {
	db := NewDatabase()
	f.log.Info().Int("count", len(ids)).Msg("fetching descriptors")

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return db, err
		}
		if Classify(id) == ClassWildcard {
			continue
		}

		resp, err := f.client.Get(ctx, f.endpoints.Info+id)
		if err != nil {
			if ctx.Err() != nil {
				return db, ctx.Err()
			}
			f.log.Error().Err(err).Str("id", id).Msg("descriptor request failed")
			continue
		}

		rec, err := ParseDescriptor(id, resp.Body)
		if err != nil {
			f.log.Warn().Err(err).Str("id", id).Msg("skipping")
			continue
		}
		db.Add(rec)
	}
	return db, nil
}

// Raw writes the unparsed descriptor documents for ids, separated by blank lines.
func (f *InfoFetcher) Raw(ctx context.Context, ids []string, w io.Writer) error {
	docs := make([]string, 0, len(ids))
	for _, id := range ids {
		resp, err := f.client.Get(ctx, f.endpoints.Info+id)
		if err != nil {
			return fmt.Errorf("descriptor %s: %w", id, err)
		}
		docs = append(docs, strings.TrimRight(string(resp.Body), "\n"))
	}
	_, err := io.WriteString(w, strings.Join(docs, "\n\n")+"\n")
	return err
}

type thumbResponse struct {
	XMLName xml.Name `xml:"nicovideo_thumb_response"`
	Status  string   `xml:"status,attr"`
	Error   struct {
		Code        string `xml:"code"`
		Description string `xml:"description"`
	} `xml:"error"`
	Thumb thumbXML `xml:"thumb"`
}

type thumbXML struct {
	VideoID       string   `xml:"video_id"`
	Title         string   `xml:"title"`
	Description   string   `xml:"description"`
	ThumbnailURL  string   `xml:"thumbnail_url"`
	FirstRetrieve string   `xml:"first_retrieve"`
	Length        string   `xml:"length"`
	MovieType     string   `xml:"movie_type"`
	SizeHigh      string   `xml:"size_high"`
	SizeLow       string   `xml:"size_low"`
	ViewCounter   string   `xml:"view_counter"`
	CommentNum    string   `xml:"comment_num"`
	MylistCounter string   `xml:"mylist_counter"`
	LastResBody   string   `xml:"last_res_body"`
	WatchURL      string   `xml:"watch_url"`
	Embeddable    string   `xml:"embeddable"`
	NoLivePlay    string   `xml:"no_live_play"`
	Tags          []string `xml:"tags>tag"`
	UserID        string   `xml:"user_id"`
	UserNickname  string   `xml:"user_nickname"`
	UserIconURL   string   `xml:"user_icon_url"`
	ChID          string   `xml:"ch_id"`
	ChName        string   `xml:"ch_name"`
	ChIconURL     string   `xml:"ch_icon_url"`
}

// ParseDescriptor decodes one descriptor document. A failure status yields
// an error wrapping ErrDeadContent.
func ParseDescriptor(id string, body []byte) (*VideoRecord, error) {
	var doc thumbResponse
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !strings.EqualFold(doc.Status, "ok") {
		code := doc.Error.Code
		if code == "" {
			code = doc.Status
		}
		return nil, fmt.Errorf("%w (%s)", ErrDeadContent, code)
	}

	t := doc.Thumb
	seconds, err := ParseLength(t.Length)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	tags := make([]string, 0, len(t.Tags))
	for _, tag := range t.Tags {
		tags = append(tags, html.UnescapeString(tag))
	}

	rec := &VideoRecord{
		ID:            id,
		WatchID:       lastSegment(t.WatchURL),
		Title:         html.UnescapeString(t.Title),
		Description:   html.UnescapeString(t.Description),
		Tags:          tags,
		ViewCounter:   atoi64(t.ViewCounter),
		CommentNum:    atoi64(t.CommentNum),
		MylistCounter: atoi64(t.MylistCounter),
		Length:        strings.TrimSpace(t.Length),
		LengthSeconds: seconds,
		MovieType:     strings.ToLower(strings.TrimSpace(t.MovieType)),
		SizeHigh:      atoi64(t.SizeHigh),
		SizeLow:       atoi64(t.SizeLow),
		ThumbnailURL:  strings.TrimSpace(t.ThumbnailURL),
		FirstRetrieve: firstN(strings.TrimSpace(t.FirstRetrieve), 10),
		LastResBody:   t.LastResBody,
		Embeddable:    strings.TrimSpace(t.Embeddable) == "1",
		NoLivePlay:    strings.TrimSpace(t.NoLivePlay) == "1",
		WatchURL:      strings.TrimSpace(t.WatchURL),
	}
	if rec.WatchID == "" {
		rec.WatchID = id
	}

	if Classify(id).UserContent() {
		rec.Owner = Uploader{
			UserID:   atoi64(t.UserID),
			UserName: html.UnescapeString(t.UserNickname),
			IconURL:  t.UserIconURL,
		}
	} else {
		rec.Owner = Channel{
			ChannelID:   atoi64(t.ChID),
			ChannelName: html.UnescapeString(t.ChName),
			IconURL:     t.ChIconURL,
		}
	}
	return rec, nil
}

// ParseLength converts "M:S" (or "H:M:S") into seconds. Minutes may exceed 59.
func ParseLength(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("length %q is not M:S", s)
	}
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("length %q is not M:S", s)
		}
		total = total*60 + n
	}
	return total, nil
}

func atoi64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
