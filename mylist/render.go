package mylist

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const timeLayout = "2006-01-02 15:04:05"

// Summary is a mylist with its item count.
type Summary struct {
	Descriptor
	Count int
}

// Meta lists every mylist with its item count, the default list first and the
// rest by creation time.
func (e *Engine) Meta(ctx context.Context) ([]Summary, error) {
	lists := append([]Descriptor{defaultList()}, e.Lists()...)
	out := make([]Summary, 0, len(lists))
	for _, d := range lists {
		items, err := e.fetchItems(ctx, d)
		if err != nil {
			return nil, err
		}
		out = append(out, Summary{Descriptor: d, Count: len(items)})
	}
	return out, nil
}

// Items returns every item of one list.
func (e *Engine) Items(ctx context.Context, target Ref) ([]Item, error) {
	list, err := e.resolveRef(target)
	if err != nil {
		return nil, err
	}
	e.log.Info().Str("list", list.Name).Msg("reading mylist")
	return e.fetchItems(ctx, list)
}

// AllItems returns the items of every list, the default list first.
func (e *Engine) AllItems(ctx context.Context) ([]Item, error) {
	var all []Item
	for _, d := range append([]Descriptor{defaultList()}, e.Lists()...) {
		items, err := e.fetchItems(ctx, d)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
	}
	return all, nil
}

var (
	ItemHeader    = []string{"ID", "Title", "Posted", "Views", "Comments", "Mylists", "Length", "State", "Memo", "List"}
	SummaryHeader = []string{"ID", "Name", "Items", "Visibility", "Created", "Description"}
)

// ItemRows renders items as table rows matching ItemHeader.
func ItemRows(items []Item) [][]string {
	rows := make([][]string, len(items))
	for i, it := range items {
		rows[i] = []string{
			it.VideoID,
			it.Title,
			it.FirstRetrieve.Format(timeLayout),
			strconv.FormatInt(it.ViewCounter, 10),
			strconv.FormatInt(it.NumRes, 10),
			strconv.FormatInt(it.MylistCounter, 10),
			fmt.Sprintf("%d:%02d", it.LengthSeconds/60, it.LengthSeconds%60),
			it.Liveness.String(),
			it.Description,
			it.List,
		}
	}
	return rows
}

// SummaryRows renders summaries as table rows matching SummaryHeader.
func SummaryRows(lists []Summary) [][]string {
	rows := make([][]string, len(lists))
	for i, s := range lists {
		visibility, since := "private", "--"
		if s.Public {
			visibility = "public"
		}
		if !s.IsDefault() {
			since = s.Since.Format(timeLayout)
		}
		rows[i] = []string{
			strconv.FormatInt(s.ID, 10),
			s.Name,
			strconv.Itoa(s.Count),
			visibility,
			since,
			s.Description,
		}
	}
	return rows
}

// WriteIDs writes one content ID per line.
func WriteIDs(w io.Writer, items []Item) error {
	var b strings.Builder
	for _, it := range items {
		b.WriteString(it.VideoID)
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteTSV writes header and rows as tab-separated lines.
func WriteTSV(w io.Writer, header []string, rows [][]string) error {
	var b strings.Builder
	b.WriteString(strings.Join(header, "\t"))
	b.WriteByte('\n')
	for _, row := range rows {
		b.WriteString(strings.Join(row, "\t"))
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteTable writes header and rows as a bordered, left-aligned table.
func WriteTable(w io.Writer, header []string, rows [][]string) error {
	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(header...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	_, err := fmt.Fprintln(w, t.String())
	return err
}
