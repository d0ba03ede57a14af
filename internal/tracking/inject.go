package tracking

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// DefaultPixelSrc is the pixel source used when no collector is configured.
const DefaultPixelSrc = "pixel.gif"

// Injector adds tracking attributes to email HTML. With a collector base URL
// the pixel and links point at the collector; without one the markup only
// carries data attributes.
type Injector struct {
	baseURL string
}

// NewInjector creates an injector; baseURL may be empty.
func NewInjector(baseURL string) *Injector {
	return &Injector{baseURL: strings.TrimRight(baseURL, "/")}
}

// OpenURL returns the collector URL that records an open.
func (i *Injector) OpenURL(leadID, emailID string) string {
	if i.baseURL == "" {
		return DefaultPixelSrc
	}
	return fmt.Sprintf("%s/t/o/%s/%s", i.baseURL, url.PathEscape(leadID), url.PathEscape(emailID))
}

// ClickURL returns the collector URL that records a click and redirects to
// target. Without a collector, or when target is not an absolute http(s)
// URL, it returns target.
func (i *Injector) ClickURL(leadID, emailID, target string) string {
	if i.baseURL == "" || !Redirectable(target) {
		return target
	}
	return fmt.Sprintf("%s/t/c/%s/%s?u=%s",
		i.baseURL, url.PathEscape(leadID), url.PathEscape(emailID), url.QueryEscape(target))
}

// Inject marks every trackable anchor and appends one hidden tracking pixel.
// Anchors whose href starts with "#" or "data-", or that are already marked,
// are left untouched. The output depends only on the inputs.
func (i *Injector) Inject(body, leadID, emailID string) string {
	var sb strings.Builder
	sb.Grow(len(body) + 256)

	z := html.NewTokenizer(strings.NewReader(body))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// A body ending in a partial tag leaves it in Raw.
			sb.Write(z.Raw())
			break
		}
		raw := z.Raw()
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			sb.Write(raw)
			continue
		}

		// Raw is only valid until the next call; copy before Token().
		rawCopy := string(raw)
		tok := z.Token()
		if tok.Data != "a" {
			sb.WriteString(rawCopy)
			continue
		}
		rewritten, ok := i.rewriteAnchor(tok, leadID, emailID)
		if !ok {
			sb.WriteString(rawCopy)
			continue
		}
		sb.WriteString(rewritten)
	}

	sb.WriteString(i.pixel(leadID, emailID))
	return sb.String()
}

func (i *Injector) rewriteAnchor(tok html.Token, leadID, emailID string) (string, bool) {
	href, hasHref := "", false
	for _, a := range tok.Attr {
		if a.Namespace != "" {
			continue
		}
		switch a.Key {
		case "href":
			href, hasHref = a.Val, true
		case "data-trackable-link":
			return "", false
		}
	}
	if !hasHref || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "data-") {
		return "", false
	}

	var sb strings.Builder
	sb.WriteString("<a")
	for _, a := range tok.Attr {
		if a.Key != "href" {
			writeAttr(&sb, a.Key, a.Val)
			continue
		}
		writeAttr(&sb, "href", i.ClickURL(leadID, emailID, href))
		writeAttr(&sb, "data-trackable-link", "true")
		writeAttr(&sb, "data-lead-id", leadID)
		writeAttr(&sb, "data-email-id", emailID)
		writeAttr(&sb, "data-original-url", EncodeURIComponent(href))
	}
	if tok.Type == html.SelfClosingTagToken {
		sb.WriteString(" />")
	} else {
		sb.WriteString(">")
	}
	return sb.String(), true
}

func (i *Injector) pixel(leadID, emailID string) string {
	var sb strings.Builder
	sb.WriteString("<img")
	writeAttr(&sb, "src", i.OpenURL(leadID, emailID))
	sb.WriteString(` width="1" height="1" alt="" style="display:none;" data-trackable-pixel="true"`)
	writeAttr(&sb, "data-lead-id", leadID)
	writeAttr(&sb, "data-email-id", emailID)
	sb.WriteString(" />")
	return sb.String()
}

// Redirectable reports whether target is an absolute http or https URL, the
// only kind the collector redirects to.
func Redirectable(target string) bool {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

// Links returns the original targets of the tracked anchors in body, in
// document order.
func Links(body string) []string {
	var links []string
	z := html.NewTokenizer(strings.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return links
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data != "a" {
				continue
			}
			for _, a := range tok.Attr {
				if a.Key != "data-original-url" {
					continue
				}
				if target, err := url.PathUnescape(a.Val); err == nil {
					links = append(links, target)
				}
			}
		}
	}
}

func writeAttr(sb *strings.Builder, key, val string) {
	sb.WriteByte(' ')
	sb.WriteString(key)
	sb.WriteString(`="`)
	sb.WriteString(html.EscapeString(val))
	sb.WriteByte('"')
}

// EncodeURIComponent percent-encodes s the way browsers encode a URI
// component: letters, digits and -_.!~*'() are kept.
func EncodeURIComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreservedComponent(c) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(hex[c>>4])
		sb.WriteByte(hex[c&15])
	}
	return sb.String()
}

func isUnreservedComponent(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
