package paginator

import (
	"regexp"
	"strconv"
	"strings"
)

// Continuation is what a "next page" control asks the server to do: submit the form
// with the page-number field set to TargetPage, triggered by the submit control.
// PageFieldID and SubmitID are element ids, not form names.
type Continuation struct {
	TargetPage  int
	PageFieldID string
	SubmitID    string
}

var continuationPattern = regexp.MustCompile(`changePageIndex\(\s*['"]([^'"]+)['"]\s*,\s*['"]([^'"]+)['"]\s*,\s*['"]([^'"]+)['"]`)

// ParseContinuation extracts the postback arguments from an onclick attribute such as
// changePageIndex('2', 'ctl00_PagerControl1_hdnCurrentPage', 'ctl00_PagerControl1_btnPaging').
// It reports false for anything that does not match, including non-numeric pages.
func ParseContinuation(raw string) (Continuation, bool) {
	m := continuationPattern.FindStringSubmatch(raw)
	if m == nil {
		return Continuation{}, false
	}
	page, err := strconv.Atoi(strings.TrimSpace(m[1]))
	if err != nil || page < 1 {
		return Continuation{}, false
	}
	c := Continuation{
		TargetPage:  page,
		PageFieldID: strings.TrimSpace(m[2]),
		SubmitID:    strings.TrimSpace(m[3]),
	}
	if c.PageFieldID == "" || c.SubmitID == "" {
		return Continuation{}, false
	}
	return c, true
}
