package fnal

// Conversions between the wire-parsed internal/models.Article and the lean,
// cache-friendly view types this package exposes, plus the References-based
// thread assembly used by worker.go's full-window fetch (incremental.go's
// delta merge reuses the findKnownAncestor/latestDate helpers below).

import (
	"sort"
	"strings"
	"time"

	"github.com/go-while/fnal/internal/models"
)

// toArticle strips a models.Article down to the wire-facing view, dropping
// its parse-time fields (References, Bytes, Lines, Path, the header map and
// raw line slices).
func toArticle(m *models.Article) *Article {
	if m == nil {
		return nil
	}
	return &Article{
		MessageID:  m.MessageID,
		Subject:    m.Subject,
		FromHeader: m.FromHeader,
		DateSent:   m.DateString,
		Body:       m.BodyText,
		Headers:    m.HeadersJSON, // raw header lines as parsed, newline-joined
	}
}

// assembleThreads groups a flat slice of overview entries (as returned by a
// full-window XOVER) into Thread trees.
// An entry becomes a reply under the newest ancestor found among its
// References that is already present in the set; an entry with no matching
// ancestor becomes a new root thread. Entries are processed oldest-first so
// parents are always assembled before children reference them.
func assembleThreads(entries []OverviewEntry) []*Thread {
	ordered := make([]OverviewEntry, len(entries))
	copy(ordered, entries)
	sortEntriesByArticleNum(ordered)

	nodes := make(map[string]*ThreadNode, len(ordered))
	parentOf := make(map[string]string, len(ordered))
	var roots []string

	for _, e := range ordered {
		if _, dup := nodes[e.MessageID]; dup {
			continue
		}
		node := &ThreadNode{MessageID: e.MessageID, Article: &Article{
			MessageID:  e.MessageID,
			Subject:    e.Subject,
			FromHeader: e.FromHeader,
			DateSent:   e.Date,
		}}
		nodes[e.MessageID] = node

		parent := findKnownAncestor(e.References, nodes)
		if parent == "" {
			roots = append(roots, e.MessageID)
			continue
		}
		parentOf[e.MessageID] = parent
		nodes[parent].Children = append(nodes[parent].Children, node)
	}

	threads := make([]*Thread, 0, len(roots))
	byRoot := make(map[string]int64, len(roots))
	for _, e := range ordered {
		root := e.MessageID
		for {
			p, ok := parentOf[root]
			if !ok {
				break
			}
			root = p
		}
		byRoot[root]++
	}
	for _, r := range roots {
		root := nodes[r]
		subject := strings.TrimSpace(root.Article.Subject)
		threads = append(threads, &Thread{
			Subject:      subject,
			RootID:       r,
			ArticleCount: int(byRoot[r]),
			Root:         root,
			LastPostDate: latestDate(root),
		})
	}
	sortThreadsByDateDesc(threads)
	return threads
}

// findKnownAncestor walks references newest-first (RFC 5322 orders
// References oldest-to-newest, so the immediate parent is the last entry)
// and returns the first one already present in nodes.
func findKnownAncestor(references []string, nodes map[string]*ThreadNode) string {
	for i := len(references) - 1; i >= 0; i-- {
		if _, ok := nodes[references[i]]; ok {
			return references[i]
		}
	}
	return ""
}

// latestDate returns the chronologically latest DateSent among n and its
// descendants. Dates that don't parse as RFC1123Z never win over another
// date (bad dates sort last, same convention as sortThreadsByDateDesc); if
// n's own date is unparseable, any parseable descendant date replaces it.
func latestDate(n *ThreadNode) string {
	latest := ""
	if n.Article != nil {
		latest = n.Article.DateSent
	}
	for _, c := range n.Children {
		if d := latestDate(c); dateAfter(d, latest) {
			latest = d
		}
	}
	return latest
}

func dateAfter(a, b string) bool {
	ta, errA := time.Parse(time.RFC1123Z, strings.TrimSpace(a))
	tb, errB := time.Parse(time.RFC1123Z, strings.TrimSpace(b))
	if errA != nil {
		return false
	}
	if errB != nil {
		return true
	}
	return ta.After(tb)
}

func sortEntriesByArticleNum(entries []OverviewEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ArticleNumber < entries[j].ArticleNumber
	})
}
