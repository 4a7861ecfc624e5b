package parser

import (
	"regexp"
	"strconv"
	"strings"

	pdfprocessor "github.com/alejochang/pdf-processor"
)

var (
	summaryHeading = regexp.MustCompile(`(?i)## Summary\s*\n`)
	pageMarker     = regexp.MustCompile(`---Page (\d+)---\s*\n?`)
)

// SplitMarkedPages splits model output that separates pages with
// "---Page N---" markers and ends with a "## Summary" section. Text
// without markers becomes a single page.
func SplitMarkedPages(content string) ([]pdfprocessor.Page, string) {
	var summary string
	if loc := summaryHeading.FindStringIndex(content); loc != nil {
		summary = strings.TrimSpace(content[loc[1]:])
		content = content[:loc[0]]
	}

	markers := pageMarker.FindAllStringSubmatchIndex(content, -1)
	if len(markers) == 0 {
		return []pdfprocessor.Page{{Number: 1, Text: strings.TrimSpace(content)}}, summary
	}

	pages := make([]pdfprocessor.Page, 0, len(markers))
	for i, m := range markers {
		n, _ := strconv.Atoi(content[m[2]:m[3]]) //nolint:errcheck // the pattern only matches digits
		end := len(content)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}
		pages = append(pages, pdfprocessor.Page{Number: n, Text: strings.TrimSpace(content[m[1]:end])})
	}
	return pages, summary
}
