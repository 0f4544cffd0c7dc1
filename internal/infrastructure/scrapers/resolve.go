package scrapers

import "net/url"

// resolveHref makes a listing link absolute against the source's base URL,
// handling relative paths and protocol-relative links alike. An unparseable
// href is returned unchanged.
func resolveHref(base, href string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}
