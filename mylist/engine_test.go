package mylist

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	httpclient "nicotools/http"
	"nicotools/internal/retry"
	"nicotools/nico"
)

const groupsJSON = `{"mylistgroup":[
{"id":"100","name":"music","description":"songs \/ more","public":"1","create_time":1471084020},
{"id":"200","name":"games","description":"","public":"0","create_time":1471084030},
{"id":"300","name":"games","description":"","public":"0","create_time":1471084040},
{"id":"400","name":"empty","description":"","public":"0","create_time":1471084050}
],"status":"ok"}`

const musicItems = `{"mylistitem":[
{"item_type":"0","item_id":"1001","description":"memo &amp; more","item_data":{"video_id":"sm1","title":"one","first_retrieve":1173108780,"view_counter":"10","num_res":"2","mylist_counter":"3","length_seconds":"319","deleted":"0"}},
{"item_type":"0","item_id":"1002","description":"","item_data":{"video_id":"sm2","title":"two","first_retrieve":1173108781,"view_counter":5,"num_res":0,"mylist_counter":0,"length_seconds":60,"deleted":"1"}},
{"item_type":"0","item_id":"1003","description":"","item_data":{"video_id":"sm3","title":"three","first_retrieve":1173108782,"view_counter":"0","num_res":"0","mylist_counter":"0","length_seconds":"5","deleted":"0"}}
],"status":"ok"}`

const defaultItems = `{"mylistitem":[
{"item_type":"0","item_id":"9001","description":"","item_data":{"video_id":"sm9","title":"nine","first_retrieve":1173108780,"view_counter":"1","num_res":"1","mylist_counter":"1","length_seconds":"10","deleted":"0"}}
],"status":"ok"}`

const emptyItems = `{"mylistitem":[],"status":"ok"}`

type apiCall struct {
	path  string
	query url.Values
}

// fakeAPI serves the mylist API. Mutating calls are recorded and answered
// from replies in order, then with "ok".
type fakeAPI struct {
	*httptest.Server

	mu      sync.Mutex
	calls   []apiCall
	replies []string
}

func newFakeAPI(t *testing.T, replies ...string) *fakeAPI {
	api := &fakeAPI{replies: replies}
	api.Server = httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(api.Close)
	return api
}

func (a *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/")
	q := r.URL.Query()

	switch {
	case strings.HasPrefix(path, "getthumbinfo/"):
		id := strings.TrimPrefix(path, "getthumbinfo/")
		w.Write([]byte(`<nicovideo_thumb_response status="ok"><thumb><video_id>` + id +
			`</video_id><title>title of ` + id + `</title><length>1:00</length></thumb></nicovideo_thumb_response>`))
		return
	case path == "mylistgroup/list":
		w.Write([]byte(groupsJSON))
		return
	case path == "deflist/list":
		w.Write([]byte(defaultItems))
		return
	case path == "mylist/list":
		if q.Get("group_id") == "100" {
			w.Write([]byte(musicItems))
		} else {
			w.Write([]byte(emptyItems))
		}
		return
	}

	a.mu.Lock()
	a.calls = append(a.calls, apiCall{path: path, query: q})
	reply := `{"status":"ok"}`
	if len(a.replies) > 0 {
		reply, a.replies = a.replies[0], a.replies[1:]
	}
	a.mu.Unlock()
	if reply == badGateway {
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	w.Write([]byte(reply))
}

// badGateway as a reply makes the fake answer 502 instead of a JSON body.
const badGateway = "502"

func (a *fakeAPI) mutations() []apiCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]apiCall(nil), a.calls...)
}

func failure(code string) string {
	return `{"status":"fail","error":{"code":"` + code + `","description":"` + strings.ToLower(code) + `"}}`
}

func testSession(api *fakeAPI) *nico.Session {
	return sessionWithRetry(api, retry.None())
}

func sessionWithRetry(api *fakeAPI, rc retry.Config) *nico.Session {
	cfg := httpclient.DefaultConfig()
	cfg.RateLimiter.DefaultRPS = 0
	cfg.RateLimiter.HostRates = nil
	cfg.RateLimiter.EnableDynamicBackoff = false
	cfg.Retry = rc
	return &nico.Session{
		Client:    httpclient.New(cfg),
		Endpoints: nico.LocalEndpoints(api.URL),
		Token:     "tok",
	}
}

func newTestEngine(t *testing.T, api *fakeAPI, opts Options) *Engine {
	t.Helper()
	opts.Logger = zerolog.Nop()
	e, err := New(context.Background(), testSession(api), opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

// answer is a scripted Confirmer.
type answer struct {
	yes    bool
	asked  int
	detail []string
}

func (a *answer) Confirm(prompt string, detail []string) (bool, error) {
	a.asked++
	a.detail = detail
	return a.yes, nil
}

func byName(name string) Ref { return Ref{Target: name} }

func TestResolve(t *testing.T) {
	e := newTestEngine(t, newFakeAPI(t), Options{})

	tests := []struct {
		name     string
		target   string
		byID     bool
		wantID   int64
		wantErr  any
		wantCand int
	}{
		{"default by name", DefaultListName, false, 0, nil, 0},
		{"default by id", "0", true, 0, nil, 0},
		{"by id", "100", true, 100, nil, 0},
		{"unknown id", "999", true, 0, &NotFoundError{}, 0},
		{"by name", "music", false, 100, nil, 0},
		{"non-decimal with id flag", "music", true, 100, nil, 0},
		{"decimal without id flag", "100", false, 0, &NotFoundError{}, 0},
		{"ambiguous", "games", false, 0, &AmbiguousError{}, 2},
		{"unknown name", "nope", false, 0, &NotFoundError{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := e.Resolve(tt.target, tt.byID)
			switch want := tt.wantErr.(type) {
			case nil:
				if err != nil {
					t.Fatalf("Resolve() error = %v", err)
				}
				if d.ID != tt.wantID {
					t.Errorf("ID = %d, want %d", d.ID, tt.wantID)
				}
			case *NotFoundError:
				if !errors.As(err, &want) {
					t.Fatalf("Resolve() error = %v, want *NotFoundError", err)
				}
				if want.ByID != tt.byID || want.Target != tt.target {
					t.Errorf("NotFoundError = %+v", want)
				}
			case *AmbiguousError:
				if !errors.As(err, &want) {
					t.Fatalf("Resolve() error = %v, want *AmbiguousError", err)
				}
				if len(want.Candidates) != tt.wantCand || want.Candidates[0].ID != 200 || want.Candidates[1].ID != 300 {
					t.Errorf("Candidates = %+v", want.Candidates)
				}
			}
		})
	}
}

func TestNewDecodesDescriptors(t *testing.T) {
	e := newTestEngine(t, newFakeAPI(t), Options{})
	d, _ := e.Resolve("music", false)
	if d.Description != "songs / more" || !d.Public {
		t.Errorf("descriptor = %+v", d)
	}
	if got := d.Since.Format(timeLayout); got != "2016-08-13 19:27:00" {
		t.Errorf("Since = %s, want JST 2016-08-13 19:27:00", got)
	}
	if lists := e.Lists(); len(lists) != 4 || lists[0].ID != 100 || lists[3].ID != 400 {
		t.Errorf("Lists() order = %+v", lists)
	}
}

func TestItemIDs(t *testing.T) {
	e := newTestEngine(t, newFakeAPI(t), Options{})
	music, _ := e.Resolve("music", false)

	t.Run("whole list keeps unavailable items", func(t *testing.T) {
		for _, sel := range [][]string{nil, {"*"}} {
			set, err := e.ItemIDs(context.Background(), music, sel...)
			if err != nil {
				t.Fatal(err)
			}
			if want := []string{"sm1", "sm2", "sm3"}; !reflect.DeepEqual(set.VideoIDs(), want) {
				t.Errorf("VideoIDs() = %v, want %v", set.VideoIDs(), want)
			}
		}
	})

	t.Run("selection drops unavailable and unknown items", func(t *testing.T) {
		set, err := e.ItemIDs(context.Background(), music, "sm3", "sm2", "sm7", "sm1")
		if err != nil {
			t.Fatal(err)
		}
		if want := []string{"sm3", "sm1"}; !reflect.DeepEqual(set.VideoIDs(), want) {
			t.Errorf("VideoIDs() = %v, want %v", set.VideoIDs(), want)
		}
		if want := []string{"sm2", "sm7"}; !reflect.DeepEqual(set.Excluded, want) {
			t.Errorf("Excluded = %v, want %v", set.Excluded, want)
		}
		if set.Items[0].ItemID != "1003" {
			t.Errorf("ItemID = %s", set.Items[0].ItemID)
		}
	})

	t.Run("nothing selected", func(t *testing.T) {
		if _, err := e.ItemIDs(context.Background(), music, "sm2"); !errors.Is(err, ErrNoItems) {
			t.Errorf("error = %v, want ErrNoItems", err)
		}
	})

	t.Run("default list", func(t *testing.T) {
		set, err := e.ItemIDs(context.Background(), defaultList())
		if err != nil {
			t.Fatal(err)
		}
		if set.Items[0].VideoID != "sm9" || set.Items[0].ItemID != "9001" {
			t.Errorf("Items = %+v", set.Items)
		}
	})
}

func TestAddToleratesContinuableCodes(t *testing.T) {
	api := newFakeAPI(t, `{"status":"ok"}`, failure("EXIST"), `{"status":"ok"}`)
	var looked []string
	e := newTestEngine(t, api, Options{Titles: func(ctx context.Context, id string) (string, error) {
		looked = append(looked, id)
		return "title", nil
	}})

	rep, err := e.Add(context.Background(), byName("music"), "sm1", "sm2", "sm3")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if want := []string{"sm1", "sm3"}; !reflect.DeepEqual(rep.Done, want) {
		t.Errorf("Done = %v, want %v", rep.Done, want)
	}
	if rep.Skipped["sm2"] != CodeExist {
		t.Errorf("Skipped = %v", rep.Skipped)
	}
	if !reflect.DeepEqual(looked, []string{"sm2"}) {
		t.Errorf("title lookups = %v", looked)
	}

	calls := api.mutations()
	if len(calls) != 3 {
		t.Fatalf("calls = %d, want 3", len(calls))
	}
	for i, id := range []string{"sm1", "sm2", "sm3"} {
		c := calls[i]
		if c.path != "mylist/add" || c.query.Get("item_id") != id || c.query.Get("group_id") != "100" ||
			c.query.Get("token") != "tok" || c.query.Get("item_type") != "0" {
			t.Errorf("call %d = %s %v", i, c.path, c.query)
		}
	}
}

func TestAddAbortsOnFatalCode(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		code  Code
	}{
		{"internal", failure("INTERNAL"), CodeInternal},
		{"maintenance", failure("MAINTENANCE"), CodeMaintenance},
		{"max", failure("MAXERROR"), CodeMaxError},
		{"expired token", failure("EXPIRETOKEN"), CodeExpireToken},
		{"unknown", failure("SOMETHINGNEW"), Code("SOMETHINGNEW")},
		{"no error object", `{"status":"fail"}`, Code("FAIL")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(t, `{"status":"ok"}`, tt.reply, `{"status":"ok"}`)
			e := newTestEngine(t, api, Options{})

			rep, err := e.Add(context.Background(), byName("music"), "sm1", "sm2", "sm3")
			var abort *AbortError
			if !errors.As(err, &abort) {
				t.Fatalf("Add() error = %v, want *AbortError", err)
			}
			if abort.Op != OpAdd || abort.Code != tt.code {
				t.Errorf("AbortError = %+v", abort)
			}
			if want := []string{"sm2", "sm3"}; !reflect.DeepEqual(abort.Remaining, want) {
				t.Errorf("Remaining = %v, want %v", abort.Remaining, want)
			}
			if !reflect.DeepEqual(rep.Done, []string{"sm1"}) {
				t.Errorf("Done = %v", rep.Done)
			}
			if n := len(api.mutations()); n != 2 {
				t.Errorf("calls = %d, want 2; the third item must not be sent", n)
			}
		})
	}
}

func TestMutationsAreSentOnce(t *testing.T) {
	tests := []struct {
		name string
		run  func(e *Engine) (*Report, error)
	}{
		{"add", func(e *Engine) (*Report, error) {
			return e.Add(context.Background(), byName("music"), "sm1", "sm3")
		}},
		{"delete", func(e *Engine) (*Report, error) {
			return e.Delete(context.Background(), byName("music"), "sm1", "sm3")
		}},
		{"copy", func(e *Engine) (*Report, error) {
			return e.Copy(context.Background(), byName("music"), byName("empty"), "sm1", "sm3")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// A retry would see EXIST/NONEXIST and report the item as skipped.
			api := newFakeAPI(t, badGateway, failure("EXIST"), failure("NONEXIST"))
			sess := sessionWithRetry(api, retry.Config{
				MaxRetries:     3,
				InitialBackoff: time.Millisecond,
				MaxBackoff:     2 * time.Millisecond,
				Multiplier:     2,
			})
			e, err := New(context.Background(), sess, Options{Logger: zerolog.Nop()})
			if err != nil {
				t.Fatal(err)
			}

			rep, err := tt.run(e)
			var abort *AbortError
			if !errors.As(err, &abort) {
				t.Fatalf("error = %v, want *AbortError", err)
			}
			if httpclient.StatusCode(err) != http.StatusBadGateway {
				t.Errorf("error = %v, want the 502 to surface", err)
			}
			if want := []string{"sm1", "sm3"}; !reflect.DeepEqual(abort.Remaining, want) {
				t.Errorf("Remaining = %v, want %v", abort.Remaining, want)
			}
			if len(rep.Done) != 0 || len(rep.Skipped) != 0 {
				t.Errorf("report = %+v", rep)
			}
			if n := len(api.mutations()); n != 1 {
				t.Errorf("requests sent = %d, want 1", n)
			}
		})
	}
}

func TestAddDefaultList(t *testing.T) {
	api := newFakeAPI(t)
	e := newTestEngine(t, api, Options{AddInterval: time.Millisecond})

	if _, err := e.Add(context.Background(), byName(DefaultListName), "sm1"); err != nil {
		t.Fatal(err)
	}
	c := api.mutations()[0]
	if c.path != "deflist/add" || c.query.Has("group_id") {
		t.Errorf("call = %s %v", c.path, c.query)
	}
}

func TestMutationGuards(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		run  func(e *Engine) error
		want error
	}{
		{"add to wildcard", func(e *Engine) error {
			_, err := e.Add(ctx, byName("*"), "sm1")
			return err
		}, nico.ErrBadArgument},
		{"add nothing", func(e *Engine) error {
			_, err := e.Add(ctx, byName("music"))
			return err
		}, nico.ErrBadArgument},
		{"move to itself", func(e *Engine) error {
			_, err := e.Move(ctx, byName("music"), byName("music"), "sm1")
			return err
		}, ErrSameList},
		{"copy to itself", func(e *Engine) error {
			_, err := e.Copy(ctx, byName("music"), byName("music"), "sm1")
			return err
		}, ErrSameList},
		{"copy to itself by id", func(e *Engine) error {
			_, err := e.Copy(ctx, Ref{Target: "100", ByID: true}, byName("music"), "sm1")
			return err
		}, ErrSameList},
		{"copy without destination", func(e *Engine) error {
			_, err := e.Copy(ctx, byName("music"), Ref{}, "sm1")
			return err
		}, nico.ErrBadArgument},
		{"move to default", func(e *Engine) error {
			_, err := e.Move(ctx, byName("music"), byName(DefaultListName), "sm1")
			return err
		}, nico.ErrBadArgument},
		{"wildcard mixed in move", func(e *Engine) error {
			_, err := e.Move(ctx, byName("music"), byName("empty"), "*", "sm1")
			return err
		}, nico.ErrBadArgument},
		{"wildcard mixed in delete", func(e *Engine) error {
			_, err := e.Delete(ctx, byName("music"), "sm1", "*")
			return err
		}, nico.ErrBadArgument},
		{"create wildcard", func(e *Engine) error {
			_, err := e.Create(ctx, "*", false, "")
			return err
		}, nico.ErrBadArgument},
		{"create default", func(e *Engine) error {
			_, err := e.Create(ctx, DefaultListName, false, "")
			return err
		}, nico.ErrBadArgument},
		{"purge wildcard", func(e *Engine) error {
			return e.Purge(ctx, byName("*"))
		}, nico.ErrBadArgument},
		{"purge default", func(e *Engine) error {
			return e.Purge(ctx, Ref{Target: "0", ByID: true})
		}, nico.ErrBadArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(t)
			e := newTestEngine(t, api, Options{Force: true})
			if err := tt.run(e); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if n := len(api.mutations()); n != 0 {
				t.Errorf("%d requests sent despite the guard", n)
			}
		})
	}
}

func TestCopySelected(t *testing.T) {
	api := newFakeAPI(t)
	e := newTestEngine(t, api, Options{})

	rep, err := e.Copy(context.Background(), byName("music"), byName("empty"), "sm1", "sm2", "sm7")
	if err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if !reflect.DeepEqual(rep.Done, []string{"sm1"}) || rep.List != "empty" {
		t.Errorf("Report = %+v", rep)
	}
	calls := api.mutations()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	q := calls[0].query
	if calls[0].path != "mylist/copy" || q.Get("id_list[0][]") != "1001" ||
		q.Get("target_group_id") != "400" || q.Get("group_id") != "100" {
		t.Errorf("call = %s %v", calls[0].path, q)
	}
}

func TestMoveFromDefaultList(t *testing.T) {
	api := newFakeAPI(t)
	e := newTestEngine(t, api, Options{})

	if _, err := e.Move(context.Background(), byName(DefaultListName), byName("music"), "*"); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	c := api.mutations()[0]
	if c.path != "deflist/move" || c.query.Has("group_id") || c.query.Get("id_list[0][]") != "9001" {
		t.Errorf("call = %s %v", c.path, c.query)
	}
}

func TestDeleteWholeListConfirmation(t *testing.T) {
	t.Run("declined", func(t *testing.T) {
		api := newFakeAPI(t)
		ans := &answer{yes: false}
		e := newTestEngine(t, api, Options{Confirmer: ans})

		if _, err := e.Delete(context.Background(), byName("music"), "*"); !errors.Is(err, ErrDeclined) {
			t.Fatalf("Delete() error = %v, want ErrDeclined", err)
		}
		if ans.asked != 1 || !reflect.DeepEqual(ans.detail, []string{"sm1", "sm2", "sm3"}) {
			t.Errorf("confirmation = %+v", ans)
		}
		if n := len(api.mutations()); n != 0 {
			t.Errorf("%d deletes sent after declining", n)
		}
	})

	t.Run("accepted", func(t *testing.T) {
		api := newFakeAPI(t)
		e := newTestEngine(t, api, Options{Confirmer: &answer{yes: true}})

		rep, err := e.Delete(context.Background(), byName("music"), "*")
		if err != nil {
			t.Fatal(err)
		}
		if len(rep.Done) != 3 {
			t.Errorf("Done = %v", rep.Done)
		}
		if c := api.mutations()[1]; c.path != "mylist/delete" || c.query.Get("id_list[0][]") != "1002" {
			t.Errorf("call = %s %v", c.path, c.query)
		}
	})

	t.Run("forced", func(t *testing.T) {
		ans := &answer{}
		e := newTestEngine(t, newFakeAPI(t), Options{Confirmer: ans, Force: true})
		if _, err := e.Delete(context.Background(), byName("music"), "*"); err != nil {
			t.Fatal(err)
		}
		if ans.asked != 0 {
			t.Error("Force should skip confirmation")
		}
	})

	t.Run("selected items need no confirmation", func(t *testing.T) {
		ans := &answer{}
		e := newTestEngine(t, newFakeAPI(t), Options{Confirmer: ans})
		if _, err := e.Delete(context.Background(), byName("music"), "sm1"); err != nil {
			t.Fatal(err)
		}
		if ans.asked != 0 {
			t.Error("selective delete asked for confirmation")
		}
	})
}

func TestDeleteToleratesNonExist(t *testing.T) {
	api := newFakeAPI(t, failure("NONEXIST"))
	e := newTestEngine(t, api, Options{})

	rep, err := e.Delete(context.Background(), byName("music"), "sm1", "sm3")
	if err != nil {
		t.Fatal(err)
	}
	if rep.Skipped["sm1"] != CodeNonExist || !reflect.DeepEqual(rep.Done, []string{"sm3"}) {
		t.Errorf("Report = %+v", rep)
	}
}

func TestCreate(t *testing.T) {
	api := newFakeAPI(t, `{"id":500,"status":"ok"}`)
	e := newTestEngine(t, api, Options{})

	d, err := e.Create(context.Background(), "new list", true, "about")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if d.ID != 500 || d.Name != "new list" || !d.Public {
		t.Errorf("Descriptor = %+v", d)
	}
	q := api.mutations()[0].query
	if q.Get("name") != "new list" || q.Get("public") != "1" || q.Get("description") != "about" || q.Get("token") != "tok" {
		t.Errorf("query = %v", q)
	}
}

func TestCreateFailure(t *testing.T) {
	e := newTestEngine(t, newFakeAPI(t, failure("MAXERROR")), Options{})
	_, err := e.Create(context.Background(), "one too many", false, "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != CodeMaxError {
		t.Errorf("Create() error = %v, want APIError MAXERROR", err)
	}
}

func TestPurge(t *testing.T) {
	t.Run("declined", func(t *testing.T) {
		api := newFakeAPI(t)
		e := newTestEngine(t, api, Options{Confirmer: &answer{yes: false}})
		if err := e.Purge(context.Background(), byName("music")); !errors.Is(err, ErrDeclined) {
			t.Errorf("Purge() error = %v, want ErrDeclined", err)
		}
		if len(api.mutations()) != 0 {
			t.Error("purge sent after declining")
		}
	})

	t.Run("no confirmer", func(t *testing.T) {
		e := newTestEngine(t, newFakeAPI(t), Options{})
		if err := e.Purge(context.Background(), byName("music")); !errors.Is(err, ErrDeclined) {
			t.Errorf("Purge() error = %v, want ErrDeclined", err)
		}
	})

	t.Run("confirmed", func(t *testing.T) {
		api := newFakeAPI(t)
		e := newTestEngine(t, api, Options{Confirmer: &answer{yes: true}})
		if err := e.Purge(context.Background(), byName("music")); err != nil {
			t.Fatal(err)
		}
		c := api.mutations()[0]
		if c.path != "mylistgroup/delete" || c.query.Get("group_id") != "100" {
			t.Errorf("call = %s %v", c.path, c.query)
		}
		var nf *NotFoundError
		if _, err := e.Resolve("music", false); !errors.As(err, &nf) {
			t.Errorf("purged list still resolves: %v", err)
		}
	})
}

func TestTitleCache(t *testing.T) {
	api := newFakeAPI(t)
	e := newTestEngine(t, api, Options{})

	if got := e.title(context.Background(), "sm5"); got != "title of sm5" {
		t.Errorf("title() = %q", got)
	}
	e.opts.Titles = func(context.Context, string) (string, error) {
		t.Error("cached title looked up again")
		return "", nil
	}
	if got := e.title(context.Background(), "sm5"); got != "title of sm5" {
		t.Errorf("cached title() = %q", got)
	}
}

func TestFlexInt(t *testing.T) {
	tests := map[string]int64{`12`: 12, `"34"`: 34, `""`: 0, `null`: 0}
	for in, want := range tests {
		var n flexInt
		if err := n.UnmarshalJSON([]byte(in)); err != nil {
			t.Errorf("UnmarshalJSON(%s) error = %v", in, err)
			continue
		}
		if int64(n) != want {
			t.Errorf("UnmarshalJSON(%s) = %d, want %d", in, n, want)
		}
	}
	var n flexInt
	if err := n.UnmarshalJSON([]byte(`"x"`)); err == nil {
		t.Error("non-numeric string accepted")
	}
}
