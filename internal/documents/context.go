package documents

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// PageSeparator splits prepared text into pages.
const PageSeparator = "\f"

const truncationMarker = "\n[... context truncated ...]\n"

// PreparedDocument is one document's prepared text split into pages.
type PreparedDocument struct {
	ID    uuid.UUID
	Name  string
	Pages []string
}

// PreparedContext is the rendered document context of an analysis together
// with the page index used to attribute citations.
type PreparedContext struct {
	Text      string
	Documents []PreparedDocument
	Truncated bool
}

// Span is a citation as the evaluation backend reported it.
type Span struct {
	DocumentID string
	Locator    string
	Text       string
}

// Attribution is a citation resolved to a user-facing source.
type Attribution struct {
	DocumentID   *uuid.UUID `json:"document_id,omitempty"`
	DocumentName string     `json:"document_name,omitempty"`
	PageNumber   *int       `json:"page_number,omitempty"`
}

// SplitPages splits prepared text on form feeds. Text without form feeds is
// a single page.
func SplitPages(text string) []string {
	return strings.Split(text, PageSeparator)
}

// NewPreparedContext renders docs into one context blob with a marker per
// document and per page. Rendering stops at maxBytes, cut on a rune boundary;
// maxBytes <= 0 disables the limit.
func NewPreparedContext(docs []PreparedDocument, maxBytes int64) *PreparedContext {
	var b strings.Builder
	for _, d := range docs {
		fmt.Fprintf(&b, "=== DOCUMENT %s | %s ===\n", d.ID, d.Name)
		for i, page := range d.Pages {
			fmt.Fprintf(&b, "--- PAGE %d ---\n", i+1)
			b.WriteString(strings.TrimSpace(page))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	pc := &PreparedContext{Text: b.String(), Documents: docs}
	if maxBytes > 0 && int64(len(pc.Text)) > maxBytes {
		cut := int(maxBytes)
		for cut > 0 && !utf8.RuneStart(pc.Text[cut]) {
			cut--
		}
		pc.Text = pc.Text[:cut] + truncationMarker
		pc.Truncated = true
	}
	return pc
}

var pageLocator = regexp.MustCompile(`(?i)\bp(?:age|g)?\.?\s*(\d+)`)

// Resolve attributes a citation to a document and, when determinable, a page.
// The document is matched by id, then by name. The page comes from a
// "page N" locator, or else from locating the quoted text in the pages.
func (c *PreparedContext) Resolve(span Span) Attribution {
	doc := c.findDocument(span.DocumentID)
	page := 0

	if doc != nil {
		page = parsePage(span.Locator, len(doc.Pages))
	}

	if page == 0 && strings.TrimSpace(span.Text) != "" {
		candidates := c.Documents
		if doc != nil {
			candidates = []PreparedDocument{*doc}
		}
		if d, p := locateText(candidates, span.Text); d != nil {
			doc, page = d, p
		}
	}

	if doc == nil && len(c.Documents) == 1 {
		doc = &c.Documents[0]
		page = parsePage(span.Locator, len(doc.Pages))
	}

	var a Attribution
	if doc != nil {
		id := doc.ID
		a.DocumentID = &id
		a.DocumentName = doc.Name
	}
	if page > 0 {
		a.PageNumber = &page
	}
	return a
}

func (c *PreparedContext) findDocument(ref string) *PreparedDocument {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}

	if id, err := uuid.Parse(ref); err == nil {
		for i := range c.Documents {
			if c.Documents[i].ID == id {
				return &c.Documents[i]
			}
		}
	}

	for i := range c.Documents {
		if strings.EqualFold(c.Documents[i].Name, ref) {
			return &c.Documents[i]
		}
	}
	return nil
}

func parsePage(locator string, pages int) int {
	m := pageLocator.FindStringSubmatch(locator)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 || n > pages {
		return 0
	}
	return n
}

func locateText(docs []PreparedDocument, quote string) (*PreparedDocument, int) {
	needle := normalize(quote)
	if needle == "" {
		return nil, 0
	}
	for i := range docs {
		for p, page := range docs[i].Pages {
			if strings.Contains(normalize(page), needle) {
				return &docs[i], p + 1
			}
		}
	}
	return nil, 0
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
