package registry

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// htmlLink is one anchor tag from a PEP 503 simple-index page, along with
// its data-* attributes (PEP 700/714 extend the anchor format with these
// rather than inventing a new document).
type htmlLink struct {
	text      string
	href      string
	dataAttrs map[string]string
}

// visitHTML walks the node tree depth-first, invoking fn on every node.
func visitHTML(node *html.Node, fn func(*html.Node) error) error {
	if err := fn(node); err != nil {
		return err
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if err := visitHTML(child, fn); err != nil {
			return err
		}
	}
	return nil
}

// parseSimpleIndexHTML extracts every anchor from a PEP 503 simple-index
// document, resolving relative hrefs against base.
func parseSimpleIndexHTML(base *url.URL, body []byte) ([]htmlLink, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var links []htmlLink
	err = visitHTML(doc, func(node *html.Node) error {
		if node.Type != html.ElementNode || node.Data != "a" {
			return nil
		}
		link := htmlLink{dataAttrs: map[string]string{}}
		for _, attr := range node.Attr {
			switch {
			case attr.Key == "href":
				resolved, err := base.Parse(attr.Val)
				if err != nil {
					return err
				}
				link.href = resolved.String()
			case strings.HasPrefix(attr.Key, "data-"):
				link.dataAttrs[attr.Key] = attr.Val
			}
		}
		var text strings.Builder
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.TextNode {
				text.WriteString(child.Data)
			}
		}
		link.text = text.String()
		links = append(links, link)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return links, nil
}

func linksToListing(name string, links []htmlLink) Listing {
	listing := Listing{Name: name}
	for _, l := range links {
		rec := FileRecord{
			Filename:       l.text,
			URL:            l.href,
			RequiresPython: l.dataAttrs["data-requires-python"],
		}
		if sha, ok := hashFromFragment(l.href); ok {
			rec.SHA256 = sha
		}
		switch v, ok := l.dataAttrs["data-yanked"]; {
		case ok && v == "":
			rec.Yanked = true
		case ok:
			rec.Yanked = true
			rec.YankedReason = v
		}
		if v, ok := l.dataAttrs["data-core-metadata"]; ok && v != "false" {
			rec.CoreMetadataURL = l.href + ".metadata"
		}
		if v, ok := l.dataAttrs["data-dist-info-metadata"]; ok && v != "false" && rec.CoreMetadataURL == "" {
			rec.CoreMetadataURL = l.href + ".metadata"
		}
		listing.Files = append(listing.Files, rec)
	}
	return listing
}

// hashFromFragment extracts a sha256 digest from a simple-index href's
// #sha256=... fragment, the convention PEP 503 uses in lieu of a separate
// hashes field (which only the JSON flavor, PEP 691, carries natively).
func hashFromFragment(href string) (string, bool) {
	u, err := url.Parse(href)
	if err != nil || u.Fragment == "" {
		return "", false
	}
	vals, err := url.ParseQuery(u.Fragment)
	if err != nil {
		return "", false
	}
	if v := vals.Get("sha256"); v != "" {
		return v, true
	}
	return "", false
}
