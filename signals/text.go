package signals

import (
	"strings"

	"golang.org/x/net/html"
)

// DefaultKeywords are terms common in credential-phishing and scareware
// pages. The scan runs over the raw page source, so keywords hidden in
// markup, scripts, or attribute values still count.
var DefaultKeywords = []string{
	"login", "signin", "password", "bank", "paypal", "amazon", "google",
	"facebook", "apple", "microsoft", "secure", "verify", "account",
	"suspended", "urgent", "immediate", "click", "winner", "congratulations",
	"free", "prize", "offer", "limited", "expire", "confirm", "update",
	"billing", "payment", "credit", "card", "ssn", "social", "security",
	"phishing", "scam", "fraud", "malware", "virus", "trojan",
}

// CountKeywords returns the number of distinct configured keywords present
// in the lowercased page source. Repeats of the same keyword count once.
func (e *Extractor) CountKeywords(source string) int {
	lower := strings.ToLower(source)
	n := 0
	for _, kw := range e.keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

// Title returns the text of the document's <title> element, trimmed, or ""
// when the page has none. Tokenizes instead of parsing the full tree since
// the title sits near the top of the document.
func Title(source string) string {
	z := html.NewTokenizer(strings.NewReader(source))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			name, _ := z.TagName()
			if string(name) == "title" {
				if z.Next() == html.TextToken {
					return strings.TrimSpace(z.Token().Data)
				}
				return ""
			}
		}
	}
}
