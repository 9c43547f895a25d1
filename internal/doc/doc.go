// Package doc defines the document record and match span shared by the
// scorer and the inverted index, kept separate from both so neither
// package has to import the other just to talk about a document (§3).
package doc

// Document is the unit of indexed content. Every field except id is
// replaced wholesale on upsert; id is the stable primary key.
type Document struct {
	ID       string
	Title    string
	Path     []string
	Tags     []string
	Headings []string
	Symbols  []string
	Body     string
	MTime    int64 // epoch milliseconds
	Size     int64
}

// Field names the searchable fields a query can restrict to or a scorer
// can weight.
type Field string

const (
	FieldTitle    Field = "title"
	FieldHeadings Field = "headings"
	FieldPath     Field = "path"
	FieldTags     Field = "tags"
	FieldSymbols  Field = "symbols"
	FieldBody     Field = "body"
)

// Fields lists every searchable field in the fixed order weights and
// aggregate scoring iterate over.
var Fields = []Field{FieldTitle, FieldHeadings, FieldPath, FieldTags, FieldSymbols, FieldBody}

// FlatField returns the flattened text of an array-valued field (tags,
// path, headings, symbols), joined with single spaces, or Title/Body
// directly for the two scalar fields (§4.4).
func (d *Document) FlatField(f Field) string {
	switch f {
	case FieldTitle:
		return d.Title
	case FieldBody:
		return d.Body
	case FieldPath:
		return joinSpace(d.Path)
	case FieldTags:
		return joinSpace(d.Tags)
	case FieldHeadings:
		return joinSpace(d.Headings)
	case FieldSymbols:
		return joinSpace(d.Symbols)
	default:
		return ""
	}
}

func joinSpace(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	total := len(parts) - 1
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for i, p := range parts {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, p...)
	}
	return string(out)
}

// MatchSpan is a half-open character range within a named field, used for
// highlight rendering. Invariant: 0 <= Start < End <= length(field).
type MatchSpan struct {
	Field Field
	Start int
	End   int
}
