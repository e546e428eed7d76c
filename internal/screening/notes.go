package screening

import (
	"strings"

	"litreview/internal/jsondoc"
	"litreview/internal/table"
)

// NormalizeNotes pretty-prints a Notes cell that holds JSON with a four-space
// indent. Blank cells become "" and anything that is not JSON is kept verbatim.
func NormalizeNotes(s string) string {
	if table.IsBlank(s) {
		return ""
	}
	v, err := jsondoc.Parse([]byte(strings.TrimSpace(s)))
	if err != nil {
		return s
	}
	return jsondoc.Indent(v, "    ")
}
