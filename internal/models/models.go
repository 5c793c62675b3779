// Package models defines the wire-level article representation shared by
// internal/nntp's client commands before internal/fnal converts it to its own
// cache-facing view types.
package models

// Article is the raw form of an NNTP article as parsed off the wire: full
// headers plus body, before FNAL strips it down to what callers see.
type Article struct {
	MessageID   string `json:"message_id"`
	Subject     string `json:"subject"`
	FromHeader  string `json:"from_header"`
	DateString  string `json:"date_string"`
	References  string `json:"references"`
	Bytes       int    `json:"bytes"`
	Lines       int    `json:"lines"`
	HeadersJSON string `json:"headers_json"`
	BodyText    string `json:"body_text"`
	Path        string `json:"path"` // headers network path

	// Temporary fields used only while parsing a freshly-read article.
	Headers  map[string][]string `json:"-"` // newsgroups/date/references/subject/from/path values, keyed by lowercase name
	RefSlice []string            `json:"-"` // parsed References header, oldest-to-newest
	NNTPhead []string            `json:"-"` // original header lines, kept for non-bulk callers
	NNTPbody []string            `json:"-"` // original body lines, kept for non-bulk callers
}
