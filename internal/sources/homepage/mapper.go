package homepage

import (
	"errors"
	"sort"
	"strings"

	"github.com/MrSnakeDoc/linkdeck/internal/domain"
)

// ErrNoBookmarks is returned when a config holds nothing importable.
var ErrNoBookmarks = errors.New("no valid bookmarks found in config")

// Entry is one importable bookmark.
type Entry struct {
	Category string
	Title    string
	URL      string
}

// MapBookmarks flattens a bookmarks.yaml config into title/url entries in file order.
// The bookmark name is the title; an entry without a name falls back to its abbr.
// Entries whose href is missing or not a valid http(s) URL are skipped, and so
// is any URL already seen.
func MapBookmarks(config BookmarksConfig) ([]Entry, error) {
	var (
		entries []Entry
		seen    = make(map[string]struct{})
	)

	for _, category := range config {
		for _, categoryName := range sortedKeys(category) {
			for _, bookmarkMap := range category[categoryName] {
				for _, bookmarkName := range sortedKeys(bookmarkMap) {
					entryList := bookmarkMap[bookmarkName]
					// Each bookmark has a list with a single entry
					if len(entryList) == 0 {
						continue
					}
					entry := entryList[0]

					title := strings.TrimSpace(bookmarkName)
					if title == "" {
						title = strings.TrimSpace(entry.Abbr)
					}

					input, err := domain.ValidateInput(title, entry.Href)
					if err != nil {
						continue
					}
					if _, dup := seen[input.URL]; dup {
						continue
					}
					seen[input.URL] = struct{}{}

					entries = append(entries, Entry{
						Category: categoryName,
						Title:    input.Title,
						URL:      input.URL,
					})
				}
			}
		}
	}

	if len(entries) == 0 {
		return nil, ErrNoBookmarks
	}
	return entries, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
