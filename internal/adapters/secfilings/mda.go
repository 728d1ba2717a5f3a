package secfilings

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
)

var (
	// mdaStart matches the Item 7 / Item 2 MD&A heading in 10-K and 10-Q
	// documents after markdown conversion.
	mdaStart = regexp.MustCompile(`(?i)item\s*[27]A?\s*[.:–-]?\s*management.?s\s+discussion\s+and\s+analysis`)

	// mdaEnd matches the heading that follows the MD&A section.
	mdaEnd = regexp.MustCompile(`(?i)item\s*[37]A?\s*[.:–-]?\s*(quantitative\s+and\s+qualitative|financial\s+statements|controls\s+and\s+procedures)`)

	multiBlank = regexp.MustCompile(`\n{3,}`)
)

// maxMDAChars bounds the extracted narrative before summarization.
const maxMDAChars = 60000

// MDAText fetches a filing document and extracts the Management's
// Discussion and Analysis narrative as markdown. When the section headings
// cannot be located, the whole document body is returned truncated so the
// summarizer still has material to work with.
func (c *Client) MDAText(ctx context.Context, filing models.FilingRef) (string, error) {
	if filing.URL == "" {
		return "", fmt.Errorf("filing has no document url: %w", interfaces.ErrKeyNotFound)
	}

	body, err := c.fetch(ctx, filing.URL)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("failed to parse filing document: %w", err)
	}

	// Strip non-content elements before conversion.
	doc.Find("script, style, head").Remove()

	html, err := doc.Find("body").Html()
	if err != nil || html == "" {
		html = string(body)
	}

	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert filing to markdown: %w", err)
	}

	markdown = multiBlank.ReplaceAllString(markdown, "\n\n")
	section := extractMDASection(markdown)
	if section == "" {
		section = markdown
	}

	if len(section) > maxMDAChars {
		section = section[:maxMDAChars]
	}
	section = strings.TrimSpace(section)
	if section == "" {
		return "", fmt.Errorf("filing %s has no extractable text: %w", filing.Accession, interfaces.ErrKeyNotFound)
	}
	return section, nil
}

// extractMDASection cuts the text between the MD&A heading and the next
// item heading. The table of contents repeats the headings, so the last
// start match before the end marker is used.
func extractMDASection(text string) string {
	starts := mdaStart.FindAllStringIndex(text, -1)
	if len(starts) == 0 {
		return ""
	}

	// Prefer the body occurrence over the table-of-contents one: pick the
	// last start that still has an end marker after it.
	for i := len(starts) - 1; i >= 0; i-- {
		begin := starts[i][0]
		rest := text[begin:]
		if end := mdaEnd.FindStringIndex(rest[1:]); end != nil {
			return rest[:end[0]+1]
		}
		if i == 0 {
			return rest
		}
	}
	return ""
}
