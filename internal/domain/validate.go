package domain

import (
	"net/url"
	"strings"
)

const (
	msgTitleRequired = "Title is required"
	msgURLRequired   = "URL is required"
	msgURLInvalid    = "Please enter a valid URL"
)

// NewBookmark is validated input for a store insert.
type NewBookmark struct {
	Title string
	URL   string
}

// ValidateInput trims and checks a title/url pair.
// A URL without an http:// or https:// prefix gets https:// prepended.
func ValidateInput(title, rawURL string) (NewBookmark, error) {
	title = strings.TrimSpace(title)
	rawURL = strings.TrimSpace(rawURL)

	if title == "" {
		return NewBookmark{}, &ValidationError{Field: "title", Message: msgTitleRequired}
	}
	if rawURL == "" {
		return NewBookmark{}, &ValidationError{Field: "url", Message: msgURLRequired}
	}

	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return NewBookmark{}, err
	}

	return NewBookmark{Title: title, URL: normalized}, nil
}

// NormalizeURL defaults the scheme to https and requires an absolute http(s) URL.
func NormalizeURL(raw string) (string, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "", &ValidationError{Field: "url", Message: msgURLInvalid}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", &ValidationError{Field: "url", Message: msgURLInvalid}
	}

	return raw, nil
}
