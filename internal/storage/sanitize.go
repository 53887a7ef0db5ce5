package storage

import "strings"

var likeEscaper = strings.NewReplacer(
	`\`, `\\`,
	`%`, `\%`,
	`_`, `\_`,
)

// escapeLike escapes SQLite LIKE wildcards so user text matches literally.
// Queries must use ESCAPE '\'.
func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}
