package nico

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// fullWidth swaps characters that are unsafe in file names for their
// full-width forms. "\/" is listed first so it collapses to one slash.
var fullWidth = strings.NewReplacer(
	`\/`, "／",
	"/", "／",
	"'", "’",
	`"`, "”",
	"<", "＜",
	">", "＞",
	"|", "｜",
	":", "：",
	"*", "＊",
	"?", "？",
	"~", "～",
	`\`, "＼",
)

// SanitizeTitle makes a title safe to embed in a file name.
func SanitizeTitle(title string) string {
	title = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, title)
	return norm.NFC.String(fullWidth.Replace(strings.TrimSpace(title)))
}

// FileName is "<id>_<title>.<ext>".
func FileName(id, title, ext string) string {
	return id + "_" + SanitizeTitle(title) + "." + ext
}

func outputPath(dir, id, title, ext string) string {
	return filepath.Join(dir, FileName(id, title, ext))
}
