package mylist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nicotools/nico"
)

// flexInt accepts a JSON number or a string holding one. The API is not
// consistent about which it sends.
type flexInt int64

func (n *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("not an integer: %s", b)
	}
	*n = flexInt(v)
	return nil
}

type apiStatus struct {
	Status string `json:"status"`
	Error  *struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// err returns nil for an "ok" status and an *APIError otherwise.
func (s apiStatus) err() error {
	if s.Status == "ok" {
		return nil
	}
	if s.Error == nil {
		return &APIError{Code: Code(strings.ToUpper(s.Status))}
	}
	return &APIError{Code: Code(s.Error.Code), Description: s.Error.Description}
}

type groupList struct {
	apiStatus
	Groups []struct {
		ID          flexInt `json:"id"`
		Name        string  `json:"name"`
		Description string  `json:"description"`
		Public      flexInt `json:"public"`
		CreateTime  flexInt `json:"create_time"`
	} `json:"mylistgroup"`
}

type itemList struct {
	apiStatus
	Items []struct {
		ItemID      string `json:"item_id"`
		Description string `json:"description"`
		Data        struct {
			VideoID       string  `json:"video_id"`
			Title         string  `json:"title"`
			FirstRetrieve flexInt `json:"first_retrieve"`
			ViewCounter   flexInt `json:"view_counter"`
			NumRes        flexInt `json:"num_res"`
			MylistCounter flexInt `json:"mylist_counter"`
			LengthSeconds flexInt `json:"length_seconds"`
			Deleted       flexInt `json:"deleted"`
		} `json:"item_data"`
	} `json:"mylistitem"`
}

type createResult struct {
	apiStatus
	ID flexInt `json:"id"`
}

var jst = time.FixedZone("JST", 9*60*60)

func fromUnix(sec flexInt) time.Time {
	return time.Unix(int64(sec), 0).In(jst)
}

// cleanText undoes the escaping the API applies to names and memos.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, `\/`, "/")
	s = strings.NewReplacer("\r", "", "\n", " ").Replace(s)
	return html.UnescapeString(strings.TrimSpace(s))
}

// get calls an API path and decodes the body into out. When withToken is set
// the session's token is added to the query and the call is a mutation: it is
// sent once, never retried.
func (e *Engine) get(ctx context.Context, path string, params url.Values, withToken bool, out any) error {
	if params == nil {
		params = url.Values{}
	}
	client := e.client
	if withToken {
		params.Set("token", e.token)
		client = e.mutator
	}
	resp, err := client.GetQuery(ctx, e.endpoints.API+path, params)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("%w: %s: %v", nico.ErrMalformedResponse, path, err)
	}
	return nil
}

func (e *Engine) fetchGroups(ctx context.Context) (map[int64]Descriptor, error) {
	var res groupList
	if err := e.get(ctx, "mylistgroup/list", nil, false, &res); err != nil {
		return nil, err
	}
	if err := res.err(); err != nil {
		return nil, err
	}

	lists := make(map[int64]Descriptor, len(res.Groups))
	for _, g := range res.Groups {
		lists[int64(g.ID)] = Descriptor{
			ID:          int64(g.ID),
			Name:        cleanText(g.Name),
			Public:      g.Public == 1,
			Since:       fromUnix(g.CreateTime),
			Description: cleanText(g.Description),
		}
	}
	return lists, nil
}

func (e *Engine) fetchItems(ctx context.Context, list Descriptor) ([]Item, error) {
	var (
		res    itemList
		path   = "mylist/list"
		params = url.Values{"group_id": {strconv.FormatInt(list.ID, 10)}}
	)
	if list.IsDefault() {
		path, params = "deflist/list", nil
	}
	if err := e.get(ctx, path, params, false, &res); err != nil {
		return nil, err
	}
	if err := res.err(); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(res.Items))
	for _, it := range res.Items {
		d := it.Data
		items = append(items, Item{
			VideoID:       d.VideoID,
			ItemID:        it.ItemID,
			Liveness:      Liveness(d.Deleted),
			Title:         cleanText(d.Title),
			FirstRetrieve: fromUnix(d.FirstRetrieve),
			ViewCounter:   int64(d.ViewCounter),
			NumRes:        int64(d.NumRes),
			MylistCounter: int64(d.MylistCounter),
			LengthSeconds: int(d.LengthSeconds),
			Description:   cleanText(it.Description),
			List:          list.Name,
		})
	}
	return items, nil
}
