package mylist

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"nicotools/internal/pace"
	"nicotools/nico"
)

// Report summarises a finished batch.
type Report struct {
	Op   Op
	List string
	Done []string
	// Skipped maps content IDs to the code that was tolerated for them.
	Skipped map[string]Code
}

// request is one API call of a batch, labelled with the content ID it acts on.
type request struct {
	videoID string
	path    string
	params  url.Values
}

// runBatch issues reqs in order. Tolerated codes are logged and recorded; any
// other failure stops the batch with an *AbortError naming the failing item and
// everything after it.
func (e *Engine) runBatch(ctx context.Context, op Op, list string, reqs []request, pacer *pace.Pacer) (*Report, error) {
	rep := &Report{Op: op, List: list, Skipped: map[string]Code{}}
	remaining := func(i int) []string {
		ids := make([]string, 0, len(reqs)-i)
		for _, r := range reqs[i:] {
			ids = append(ids, r.videoID)
		}
		return ids
	}

	for i, req := range reqs {
		if err := pacer.Wait(ctx); err != nil {
			return rep, &AbortError{Op: op, Remaining: remaining(i), Err: err}
		}

		var status apiStatus
		err := e.get(ctx, req.path, req.params, true, &status)
		if err == nil {
			err = status.err()
		}
		if err == nil {
			rep.Done = append(rep.Done, req.videoID)
			e.log.Info().Msgf("[%d/%d] %s %s: done", i+1, len(reqs), op, req.videoID)
			continue
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code.Continues() {
			rep.Skipped[req.videoID] = apiErr.Code
			e.logTolerated(ctx, op, list, req.videoID, apiErr)
			continue
		}

		abort := &AbortError{Op: op, Remaining: remaining(i), Err: err}
		if apiErr != nil {
			abort.Code = apiErr.Code
		}
		e.log.Error().Err(err).Str("id", req.videoID).Strs("remaining", abort.Remaining).Msgf("%s aborted", op)
		return rep, abort
	}
	return rep, nil
}

func (e *Engine) logTolerated(ctx context.Context, op Op, list, id string, apiErr *APIError) {
	switch apiErr.Code {
	case CodeExist:
		e.log.Warn().Str("id", id).Str("title", e.title(ctx, id)).Str("list", list).Msg("already in the list")
	case CodeNonExist:
		e.log.Warn().Str("id", id).Str("list", list).Msg("not in the list")
	default:
		e.log.Warn().Err(apiErr).Str("id", id).Msgf("%s skipped", op)
	}
}

func groupID(d Descriptor) string {
	return strconv.FormatInt(d.ID, 10)
}

func badArg(format string, args ...any) error {
	return fmt.Errorf("%w: %s", nico.ErrBadArgument, fmt.Sprintf(format, args...))
}

// Add puts content IDs into a list, in order, pausing AddInterval between
// requests.
func (e *Engine) Add(ctx context.Context, target Ref, ids ...string) (*Report, error) {
	if target.Wildcard() {
		return nil, badArg("cannot add to every list at once")
	}
	if len(ids) == 0 {
		return nil, badArg("no content IDs to add")
	}
	for _, id := range ids {
		if id == nico.Wildcard {
			return nil, badArg("%q is not a content ID", id)
		}
	}
	list, err := e.resolveRef(target)
	if err != nil {
		return nil, err
	}
	e.log.Info().Str("list", list.Name).Strs("ids", ids).Msg("adding")

	reqs := make([]request, len(ids))
	for i, id := range ids {
		params := url.Values{
			"item_type":   {"0"},
			"item_id":     {id},
			"description": {""},
		}
		path := "deflist/add"
		if !list.IsDefault() {
			path = "mylist/add"
			params.Set("group_id", groupID(list))
		}
		reqs[i] = request{videoID: id, path: path, params: params}
	}
	return e.runBatch(ctx, OpAdd, list.Name, reqs, pace.New(e.opts.AddInterval))
}

// Copy duplicates items of from into to.
func (e *Engine) Copy(ctx context.Context, from, to Ref, ids ...string) (*Report, error) {
	return e.transfer(ctx, OpCopy, from, to, ids)
}

// Move relocates items of from into to. The default list cannot be a
// destination.
func (e *Engine) Move(ctx context.Context, from, to Ref, ids ...string) (*Report, error) {
	return e.transfer(ctx, OpMove, from, to, ids)
}

func (e *Engine) transfer(ctx context.Context, op Op, from, to Ref, ids []string) (*Report, error) {
	if to.Target == "" {
		return nil, badArg("%s needs a destination list", op)
	}
	if from.Wildcard() || to.Wildcard() {
		return nil, badArg("%q is not a list", nico.Wildcard)
	}
	if err := checkSelectors(ids); err != nil {
		return nil, err
	}
	if from == to {
		return nil, ErrSameList
	}

	src, err := e.resolveRef(from)
	if err != nil {
		return nil, err
	}
	dst, err := e.resolveRef(to)
	if err != nil {
		return nil, err
	}
	if src.ID == dst.ID {
		return nil, ErrSameList
	}
	if op == OpMove && dst.IsDefault() {
		return nil, badArg("cannot move into %s", DefaultListName)
	}

	set, err := e.ItemIDs(ctx, src, ids...)
	if err != nil {
		return nil, err
	}
	e.log.Info().Str("from", src.Name).Str("to", dst.Name).Strs("ids", set.VideoIDs()).Msgf("%s", op)

	reqs := make([]request, len(set.Items))
	for i, it := range set.Items {
		params := url.Values{
			"target_group_id": {groupID(dst)},
			"id_list[0][]":    {it.ItemID},
		}
		path := "deflist/" + string(op)
		if !src.IsDefault() {
			path = "mylist/" + string(op)
			params.Set("group_id", groupID(src))
		}
		reqs[i] = request{videoID: it.VideoID, path: path, params: params}
	}
	return e.runBatch(ctx, op, dst.Name, reqs, nil)
}

// Delete removes items from a list. Emptying the whole list asks for
// confirmation unless Force is set.
func (e *Engine) Delete(ctx context.Context, target Ref, ids ...string) (*Report, error) {
	if target.Wildcard() {
		return nil, badArg("cannot delete from every list at once")
	}
	if len(ids) == 0 {
		return nil, badArg("no content IDs to delete")
	}
	if err := checkSelectors(ids); err != nil {
		return nil, err
	}
	list, err := e.resolveRef(target)
	if err != nil {
		return nil, err
	}

	set, err := e.ItemIDs(ctx, list, ids...)
	if err != nil {
		return nil, err
	}
	if wholeList(ids) {
		prompt := fmt.Sprintf("Delete every item of %s?", list.Name)
		if err := e.confirm(prompt, set.VideoIDs()); err != nil {
			return nil, err
		}
	}
	e.log.Info().Str("list", list.Name).Strs("ids", set.VideoIDs()).Msg("deleting")

	reqs := make([]request, len(set.Items))
	for i, it := range set.Items {
		params := url.Values{"id_list[0][]": {it.ItemID}}
		path := "deflist/delete"
		if !list.IsDefault() {
			path = "mylist/delete"
			params.Set("group_id", groupID(list))
		}
		reqs[i] = request{videoID: it.VideoID, path: path, params: params}
	}
	return e.runBatch(ctx, OpDelete, list.Name, reqs, nil)
}

// checkSelectors rejects "*" mixed with content IDs.
func checkSelectors(ids []string) error {
	if len(ids) < 2 {
		return nil
	}
	for _, id := range ids {
		if id == nico.Wildcard {
			return badArg("%q cannot be combined with content IDs", nico.Wildcard)
		}
	}
	return nil
}

func (e *Engine) confirm(prompt string, detail []string) error {
	if e.opts.Force {
		return nil
	}
	if e.opts.Confirmer == nil {
		return fmt.Errorf("%w: confirmation required, rerun with --yes", ErrDeclined)
	}
	ok, err := e.opts.Confirmer.Confirm(prompt, detail)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDeclined
	}
	return nil
}

// Create makes a new mylist and returns its descriptor.
func (e *Engine) Create(ctx context.Context, name string, public bool, description string) (Descriptor, error) {
	switch name {
	case "":
		return Descriptor{}, badArg("a new mylist needs a name")
	case nico.Wildcard:
		return Descriptor{}, badArg("%q is not a valid mylist name", name)
	case DefaultListName:
		return Descriptor{}, badArg("%s already exists", DefaultListName)
	}

	pub := "0"
	if public {
		pub = "1"
	}
	params := url.Values{
		"name":         {name},
		"description":  {description},
		"public":       {pub},
		"default_sort": {"0"},
		"icon_id":      {"0"},
	}
	var res createResult
	if err := e.get(ctx, "mylistgroup/add", params, true, &res); err != nil {
		return Descriptor{}, fmt.Errorf("%s %q: %w", OpCreate, name, err)
	}
	if err := res.err(); err != nil {
		return Descriptor{}, fmt.Errorf("%s %q: %w", OpCreate, name, err)
	}
	e.log.Info().Str("name", name).Bool("public", public).Msg("mylist created")

	if err := e.Refresh(ctx); err != nil {
		return Descriptor{}, err
	}
	if d, ok := e.lists[int64(res.ID)]; ok {
		return d, nil
	}
	return Descriptor{ID: int64(res.ID), Name: name, Public: public, Description: description}, nil
}

// Purge deletes a whole mylist after confirmation.
func (e *Engine) Purge(ctx context.Context, target Ref) error {
	if target.Wildcard() {
		return badArg("cannot purge every list at once")
	}
	list, err := e.resolveRef(target)
	if err != nil {
		return err
	}
	if list.IsDefault() {
		return badArg("%s cannot be purged", DefaultListName)
	}
	if err := e.confirm(fmt.Sprintf("Delete the mylist %s?", list.Name), nil); err != nil {
		return err
	}

	var status apiStatus
	params := url.Values{"group_id": {groupID(list)}}
	if err := e.get(ctx, "mylistgroup/delete", params, true, &status); err != nil {
		return fmt.Errorf("%s %s: %w", OpPurge, list.Name, err)
	}
	if err := status.err(); err != nil {
		return fmt.Errorf("%s %s: %w", OpPurge, list.Name, err)
	}
	delete(e.lists, list.ID)
	e.log.Info().Str("name", list.Name).Msg("mylist purged")
	return nil
}
