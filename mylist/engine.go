// Package mylist manages the account's mylists: resolving them by name or ID,
// listing their items, and adding, copying, moving and deleting entries.
package mylist

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	httpclient "nicotools/http"
	"nicotools/nico"
)

const (
	DefaultListID   int64 = 0
	DefaultListName       = "とりあえずマイリスト"
)

// Descriptor describes one mylist.
type Descriptor struct {
	ID          int64
	Name        string
	Public      bool
	Since       time.Time // creation time, JST
	Description string
}

// IsDefault reports whether d is the account's default list.
func (d Descriptor) IsDefault() bool { return d.ID == DefaultListID }

func defaultList() Descriptor {
	return Descriptor{ID: DefaultListID, Name: DefaultListName}
}

// Liveness is the state of a listed video.
type Liveness int

const (
	LivePublic                Liveness = 0
	LiveDeletedByUploader     Liveness = 1
	LiveDeletedByOperator     Liveness = 2
	LiveDeletedByRightsHolder Liveness = 3
	LivePrivate               Liveness = 8
)

func (l Liveness) String() string {
	switch l {
	case LivePublic:
		return "public"
	case LiveDeletedByUploader:
		return "deleted"
	case LiveDeletedByOperator:
		return "deleted by operator"
	case LiveDeletedByRightsHolder:
		return "deleted by rights holder"
	case LivePrivate:
		return "private"
	}
	return "unknown"
}

// Item is one entry of a mylist. ItemID is the list-specific handle the copy,
// move and delete calls take; it differs from VideoID.
type Item struct {
	VideoID  string
	ItemID   string
	Liveness Liveness

	Title         string
	FirstRetrieve time.Time
	ViewCounter   int64
	NumRes        int64
	MylistCounter int64
	LengthSeconds int
	Description   string // the owner's memo
	List          string
}

// Ref names a mylist as the user typed it. With ByID a decimal Target is a
// list ID; otherwise Target is a name.
type Ref struct {
	Target string
	ByID   bool
}

func (r Ref) String() string { return r.Target }

// Wildcard reports whether the ref is "*".
func (r Ref) Wildcard() bool { return r.Target == nico.Wildcard }

// Confirmer asks the user to approve a destructive operation.
type Confirmer interface {
	Confirm(prompt string, detail []string) (bool, error)
}

// TitleFunc looks up a content title for log lines.
type TitleFunc func(ctx context.Context, id string) (string, error)

// Options configures an Engine.
type Options struct {
	Logger zerolog.Logger

	// Confirmer approves purges and whole-list deletes. Required unless Force.
	Confirmer Confirmer
	Force     bool

	// AddInterval spaces out consecutive add requests.
	AddInterval time.Duration

	// Titles overrides the descriptor lookup used for "already listed" logs.
	Titles TitleFunc
}

// Engine runs mylist operations for one session.
type Engine struct {
	client *httpclient.Client
	// mutator sends token-bearing calls exactly once.
	mutator   *httpclient.Client
	endpoints nico.Endpoints
	token     string
	opts      Options
	log       zerolog.Logger

	lists  map[int64]Descriptor
	titles *lru.Cache[string, string]
}

// New loads the account's mylists and returns an engine over them.
func New(ctx context.Context, s *nico.Session, opts Options) (*Engine, error) {
	cache, err := lru.New[string, string](256)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		client:    s.Client,
		mutator:   s.Client.Once(),
		endpoints: s.Endpoints,
		token:     s.Token,
		opts:      opts,
		log:       opts.Logger.With().Str("component", "mylist").Logger(),
		titles:    cache,
	}
	if e.opts.Titles == nil {
		e.opts.Titles = e.descriptorTitle
	}
	if err := e.Refresh(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Refresh reloads the mylist descriptors.
func (e *Engine) Refresh(ctx context.Context) error {
	lists, err := e.fetchGroups(ctx)
	if err != nil {
		return fmt.Errorf("load mylists: %w", err)
	}
	e.lists = lists
	e.log.Debug().Int("count", len(lists)).Msg("mylists loaded")
	return nil
}

// Lists returns every non-default mylist ordered by creation time.
func (e *Engine) Lists() []Descriptor {
	out := make([]Descriptor, 0, len(e.lists))
	for _, d := range e.lists {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Since.Equal(out[j].Since) {
			return out[i].ID < out[j].ID
		}
		return out[i].Since.Before(out[j].Since)
	})
	return out
}

// Resolve finds a mylist by name, or by ID when byID is set and target is a
// decimal number. The default list matches its name and ID 0.
func (e *Engine) Resolve(target string, byID bool) (Descriptor, error) {
	if target == DefaultListName {
		return defaultList(), nil
	}

	if byID {
		if id, err := strconv.ParseInt(target, 10, 64); err == nil {
			if id == DefaultListID {
				return defaultList(), nil
			}
			d, ok := e.lists[id]
			if !ok {
				return Descriptor{}, &NotFoundError{Target: target, ByID: true}
			}
			return d, nil
		}
	}

	var matches []Descriptor
	for _, d := range e.Lists() {
		if d.Name == target {
			matches = append(matches, d)
		}
	}
	switch len(matches) {
	case 0:
		return Descriptor{}, &NotFoundError{Target: target}
	case 1:
		return matches[0], nil
	}
	return Descriptor{}, &AmbiguousError{Name: target, Candidates: matches}
}

func (e *Engine) resolveRef(r Ref) (Descriptor, error) {
	return e.Resolve(r.Target, r.ByID)
}

// ItemSet is the result of selecting items from a list.
type ItemSet struct {
	List  Descriptor
	Items []Item
	// Excluded lists selectors that matched no public item.
	Excluded []string
}

// VideoIDs returns the selected content IDs in order.
func (s *ItemSet) VideoIDs() []string {
	ids := make([]string, len(s.Items))
	for i, it := range s.Items {
		ids[i] = it.VideoID
	}
	return ids
}

// wholeList reports whether selectors ask for the entire list.
func wholeList(selectors []string) bool {
	return len(selectors) == 0 || (len(selectors) == 1 && selectors[0] == nico.Wildcard)
}

// ItemIDs selects items of list. With no selectors, or a lone "*", every item
// is returned. Otherwise only public items whose content ID was selected are
// returned, in selector order; selectors without such an item are reported in
// Excluded.
func (e *Engine) ItemIDs(ctx context.Context, list Descriptor, selectors ...string) (*ItemSet, error) {
	items, err := e.fetchItems(ctx, list)
	if err != nil {
		return nil, err
	}

	set := &ItemSet{List: list}
	if wholeList(selectors) {
		set.Items = items
	} else {
		live := make(map[string]Item, len(items))
		for _, it := range items {
			if it.Liveness != LivePublic {
				e.log.Debug().Str("id", it.VideoID).Stringer("state", it.Liveness).Msg("ignoring unavailable item")
				continue
			}
			live[it.VideoID] = it
		}
		for _, id := range selectors {
			if it, ok := live[id]; ok {
				set.Items = append(set.Items, it)
			} else {
				set.Excluded = append(set.Excluded, id)
			}
		}
		if len(set.Excluded) > 0 {
			e.log.Warn().Strs("ids", set.Excluded).Str("list", list.Name).Msg("not in the list")
		}
	}

	if len(set.Items) == 0 {
		return set, fmt.Errorf("%s: %w", list.Name, ErrNoItems)
	}
	return set, nil
}

// title returns the cached title of id, or "" when it cannot be found.
func (e *Engine) title(ctx context.Context, id string) string {
	if t, ok := e.titles.Get(id); ok {
		return t
	}
	t, err := e.opts.Titles(ctx, id)
	if err != nil {
		e.log.Debug().Err(err).Str("id", id).Msg("title lookup failed")
		return ""
	}
	e.titles.Add(id, t)
	return t
}

func (e *Engine) descriptorTitle(ctx context.Context, id string) (string, error) {
	resp, err := e.client.Get(ctx, e.endpoints.Info+id)
	if err != nil {
		return "", err
	}
	rec, err := nico.ParseDescriptor(id, resp.Body)
	if err != nil {
		return "", err
	}
	return rec.Title, nil
}
