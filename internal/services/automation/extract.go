package automation

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// referencePatterns are tried in order; labeled forms win over the generic
// digit-run fallback so a phone number in the transcript cannot shadow a
// properly announced reference.
var referencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)processed under reference[:\s]+(\d+)`),
	regexp.MustCompile(`(?i)under reference[:\s]+(\d+)`),
	regexp.MustCompile(`(?i)reference[:\s]+(\d+)`),
	regexp.MustCompile(`(?i)case number[:\s]*(\d+)`),
	regexp.MustCompile(`(?i)case[:\s]+(\d+)`),
	regexp.MustCompile(`(?i)claim[:\s]+(\d+)`),
}

// genericReference matches any plausible reference-length digit run. Kept
// deliberately broad: missing a real case number costs a manual replay,
// while a false positive is caught downstream when the claim is looked up.
var genericReference = regexp.MustCompile(`\b(\d{6,10})\b`)

// ExtractCaseNumber pulls the case reference out of the conversation text.
// The second return is false when nothing plausible was found.
func ExtractCaseNumber(text string) (string, bool) {
	for _, re := range referencePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}
	if m := genericReference.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	return "", false
}

// ConversationText flattens widget HTML into readable text, dropping
// script and style content so inline JS cannot feed the digit fallback.
func ConversationText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()

	var b strings.Builder
	doc.Find("body").Each(func(_ int, s *goquery.Selection) {
		b.WriteString(s.Text())
	})
	text := b.String()
	if text == "" {
		text = doc.Text()
	}
	return normalizeWhitespace(text), nil
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
