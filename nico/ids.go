// Package nico talks to the video site: it resolves content IDs, fetches
// their descriptors, logs in, and downloads videos, comments and thumbnails.
package nico

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Wildcard selects every item of a mylist.
const Wildcard = "*"

// IDClass is the kind of content an ID refers to.
type IDClass int

const (
	ClassInvalid IDClass = iota
	ClassSM              // user upload
	ClassNM              // user upload, legacy player
	ClassSO              // official channel content
	ClassNumeric         // bare thread ID of official content
	ClassWildcard
)

func (c IDClass) String() string {
	switch c {
	case ClassSM:
		return "sm"
	case ClassNM:
		return "nm"
	case ClassSO:
		return "so"
	case ClassNumeric:
		return "numeric"
	case ClassWildcard:
		return "wildcard"
	}
	return "invalid"
}

// RedirectOnly reports whether the ID must be resolved through the watch page
// before session parameters can be requested for it.
func (c IDClass) RedirectOnly() bool {
	return c == ClassSO || c == ClassNumeric
}

// UserContent reports whether the ID is a user upload rather than official
// channel content.
func (c IDClass) UserContent() bool {
	return c == ClassSM || c == ClassNM
}

var (
	idPattern  = regexp.MustCompile(`^(?:(?:https?://(?:www\.|sp\.)?nicovideo\.jp/)?watch/)?((?:sm|nm|so)?[0-9]+)$`)
	barePrefix = regexp.MustCompile(`^(sm|nm|so)?[0-9]+$`)
)

// Classify returns the class of an already normalised ID.
func Classify(id string) IDClass {
	if id == Wildcard {
		return ClassWildcard
	}
	if !barePrefix.MatchString(id) {
		return ClassInvalid
	}
	switch {
	case strings.HasPrefix(id, "sm"):
		return ClassSM
	case strings.HasPrefix(id, "nm"):
		return ClassNM
	case strings.HasPrefix(id, "so"):
		return ClassSO
	}
	return ClassNumeric
}

// Resolve normalises user tokens into content IDs. Whitespace is trimmed,
// watch-page URLs are reduced to their ID, unrecognised tokens are dropped,
// and duplicates are removed keeping the first occurrence. A lone "*" passes
// through. Resolve(Resolve(x)) == Resolve(x).
func Resolve(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))

	for _, tok := range tokens {
		id, ok := normalise(tok)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func normalise(tok string) (string, bool) {
	tok = strings.TrimSpace(tok)
	if tok == Wildcard {
		return tok, true
	}
	m := idPattern.FindStringSubmatch(tok)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ExpandArgs replaces every "+path" argument with the non-empty, non-comment
// lines of that file. Other arguments pass through unchanged.
func ExpandArgs(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		if !strings.HasPrefix(arg, "+") || len(arg) == 1 {
			out = append(out, arg)
			continue
		}
		lines, err := readListFile(arg[1:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadArgument, err)
		}
		out = append(out, lines...)
	}
	return out, nil
}

func readListFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, strings.Fields(line)...)
	}
	return lines, sc.Err()
}

// lastSegment returns the final path element of a URL, without query.
func lastSegment(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	rawURL = strings.TrimRight(rawURL, "/")
	if i := strings.LastIndex(rawURL, "/"); i >= 0 {
		return rawURL[i+1:]
	}
	return rawURL
}
