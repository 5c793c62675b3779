package fnal

// Request is the tagged-union work item a Wire Worker pulls off a Server
// Service's priority queue. Grounded on original_source/src/nntp/messages.rs
// (NntpRequest/Priority), adapted to Go as a kind tag + field bag instead of
// an enum, and answered through a channel rather than a oneshot sender.

import (
	"context"

	"github.com/google/uuid"
)

// Priority orders requests within a Server Service's queue. Smaller value
// means higher priority, matching the Rust original's Ord derivation.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityNormal
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// Kind identifies which wire operation a Request carries.
type Kind int

const (
	KindGetGroups Kind = iota
	KindGetThreads
	KindGetThread
	KindGetArticle
	KindGetGroupStats
	KindGetNewArticles
	KindPostArticle
	KindCheckArticleExists
)

// PriorityOf returns the priority band for a request kind, per spec.md
// §4.6's table.
func (k Kind) PriorityOf() Priority {
	switch k {
	case KindGetArticle, KindPostArticle, KindCheckArticleExists:
		return PriorityHigh
	case KindGetThreads, KindGetGroups, KindGetThread:
		return PriorityNormal
	case KindGetGroupStats, KindGetNewArticles:
		return PriorityLow
	default:
		return PriorityNormal
	}
}

// postArticleArgs bundles PostArticle's two free-form inputs.
type postArticleArgs struct {
	group   string
	headers [][2]string
	body    string
}

// result is what a worker sends back on a Request's response channel.
type result struct {
	groups    []GroupView
	threads   []*Thread
	thread    *Thread
	article   *Article
	stats     GroupStats
	entries   []OverviewEntry
	exists    bool
	err       error
}

// Request is a single unit of work routed through a Server Service's queue
// to exactly one Wire Worker.
type Request struct {
	ID       string
	Kind     Kind
	Priority Priority
	Ctx      context.Context

	Group          string
	Count          int64
	RootMessageID  string
	MessageID      string
	SinceArticle   int64
	Post           postArticleArgs

	response chan result
}

func newRequest(ctx context.Context, kind Kind) *Request {
	return &Request{
		ID:       uuid.NewString(),
		Kind:     kind,
		Priority: kind.PriorityOf(),
		Ctx:      ctx,
		response: make(chan result, 1),
	}
}

// await blocks until the worker answers or ctx is cancelled, whichever comes
// first. A cancelled caller does not cancel the underlying call -- per
// spec.md §5, the worker still finishes and (where applicable) the result is
// cached for everyone else; this caller simply stops waiting for it.
func (r *Request) await() (result, error) {
	select {
	case res := <-r.response:
		return res, nil
	case <-r.Ctx.Done():
		return result{}, r.Ctx.Err()
	}
}

func (r *Request) respond(res result) {
	select {
	case r.response <- res:
	default:
	}
}
