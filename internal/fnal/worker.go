package fnal

// Wire Worker: owns one long-lived connection to one upstream server,
// repeatedly pulling a Request off the Server Service's priority queue and
// executing it. Grounded on original_source/src/nntp/worker.rs (NntpWorker)
// for control flow, and internal/nntp.BackendConn for the actual wire calls.

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-while/fnal/internal/nntp"
)

// worker drains one priorityQueue, dialing and redialing wireClient as
// needed.
type worker struct {
	id     int
	server ServerConfig
	queue  *priorityQueue
	newWC  func() wireClient // factory so tests can substitute a fake

	wc   wireClient
	caps *nntp.ServerCapabilities
}

func newWorker(id int, server ServerConfig, queue *priorityQueue, newWC func() wireClient) *worker {
	return &worker{id: id, server: server, queue: queue, newWC: newWC}
}

// run is the worker's lifetime loop: connect, then serve requests until a
// transport failure forces a reconnect. Exits only when ctx is cancelled.
func (w *worker) run(ctx context.Context) {
	backoff := defaultConnectErrSleep
	for {
		if ctx.Err() != nil {
			return
		}
		if err := w.connect(); err != nil {
			log.Printf("[FNAL-WORKER-%d] connect to %s failed: %v (retry in %s)", w.id, w.server.Name, err, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			if backoff < 60*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = defaultConnectErrSleep

		w.serve(ctx)
		// serve only returns on a transport failure or ctx cancellation.
		if w.wc != nil {
			w.wc.CloseFromPoolOnly()
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (w *worker) connect() error {
	wc := w.newWC()
	if err := wc.Connect(); err != nil {
		return err
	}
	caps, err := wc.Capabilities()
	if err != nil || caps == nil {
		caps = nntp.DefaultCapabilities()
	}
	w.wc = wc
	w.caps = caps
	return nil
}

// serve pops and executes requests until a transport-level failure occurs.
func (w *worker) serve(ctx context.Context) {
	for {
		req, err := w.queue.pop(ctx)
		if err != nil {
			return
		}
		res, transportErr := w.execute(req)
		req.respond(res)
		if transportErr {
			log.Printf("[FNAL-WORKER-%d] transport error on %s, reconnecting", w.id, w.server.Name)
			return
		}
	}
}

// execute dispatches a single request by kind. The returned bool reports
// whether the failure (if any) was a transport error requiring reconnection,
// per spec.md §4.1's failure classification.
func (w *worker) execute(req *Request) (result, bool) {
	switch req.Kind {
	case KindGetGroups:
		return w.doGetGroups(req)
	case KindGetThreads:
		return w.doGetThreads(req)
	case KindGetThread:
		return w.doGetThread(req)
	case KindGetArticle:
		return w.doGetArticle(req)
	case KindGetGroupStats:
		return w.doGetGroupStats(req)
	case KindGetNewArticles:
		return w.doGetNewArticles(req)
	case KindPostArticle:
		return w.doPostArticle(req)
	case KindCheckArticleExists:
		return w.doCheckArticleExists(req)
	default:
		return result{err: internalErr("fnal: unknown request kind %d", req.Kind)}, false
	}
}

func (w *worker) doGetGroups(req *Request) (result, bool) {
	for _, variant := range w.caps.GetListVariantsInOrder() {
		groups, err := w.wc.ListGroupsVariant(variant)
		if err == nil {
			views := make([]GroupView, 0, len(groups))
			for _, g := range groups {
				views = append(views, GroupView{
					Name:         g.Name,
					Description:  g.Description,
					ArticleCount: g.Count,
					HasCount:     true,
				})
			}
			return result{groups: views}, false
		}
		if isTransport(err) {
			return result{err: err}, true
		}
	}
	return result{err: unavailableErr("all LIST variants failed against %s", w.server.Name)}, false
}

func (w *worker) doGetThreads(req *Request) (result, bool) {
	threads, err := w.fetchRecentThreads(req.Group, req.Count)
	if err != nil {
		return result{err: err}, isTransport(err)
	}
	return result{threads: threads}, false
}

func (w *worker) doGetThread(req *Request) (result, bool) {
	threads, err := w.fetchRecentThreads(req.Group, 500)
	if err != nil {
		return result{err: err}, isTransport(err)
	}
	for _, t := range threads {
		if t.RootID == req.RootMessageID {
			populated, err := w.populateBodies(t)
			if err != nil {
				return result{err: err}, isTransport(err)
			}
			return result{thread: populated}, false
		}
	}
	return result{err: notFoundErr("thread %s not found in group %s", req.RootMessageID, req.Group)}, false
}

func (w *worker) doGetArticle(req *Request) (result, bool) {
	mid := req.MessageID
	art, err := w.wc.GetArticle(&mid, false)
	if err != nil {
		if isNotFoundWire(err) || errors.Is(err, nntp.ErrArticleNotFound) || errors.Is(err, nntp.ErrArticleRemoved) {
			return result{err: notFoundErr("article %s: %v", mid, err)}, false
		}
		return result{err: err}, isTransport(err)
	}
	return result{article: toArticle(art)}, false
}

func (w *worker) doGetGroupStats(req *Request) (result, bool) {
	info, code, err := w.wc.SelectGroup(req.Group)
	if err != nil && code != 411 {
		return result{err: err}, isTransport(err)
	}
	if info == nil || info.Last <= 0 {
		return result{stats: GroupStats{}}, false
	}
	date := w.fetchLastArticleDate(req.Group, info.Last)
	return result{stats: GroupStats{LastArticleNumber: info.Last, LastArticleDate: date}}, false
}

func (w *worker) doGetNewArticles(req *Request) (result, bool) {
	info, code, err := w.wc.SelectGroup(req.Group)
	if err != nil && code != 411 {
		return result{err: err}, isTransport(err)
	}
	if info == nil || info.Last <= req.SinceArticle {
		return result{entries: []OverviewEntry{}}, false
	}
	lines, err := w.wc.XOver(req.Group, req.SinceArticle+1, info.Last, false)
	if err != nil {
		return result{err: err}, isTransport(err)
	}
	entries := make([]OverviewEntry, 0, len(lines))
	for _, l := range lines {
		entries = append(entries, OverviewEntry{
			ArticleNumber: l.ArticleNum,
			MessageID:     l.MessageID,
			Subject:       l.Subject,
			FromHeader:    l.From,
			Date:          l.Date,
			References:    splitReferences(l.References),
		})
	}
	return result{entries: entries}, false
}

func (w *worker) doPostArticle(req *Request) (result, bool) {
	err := w.wc.PostArticle(req.Post.group, req.Post.headers, req.Post.body)
	if err != nil {
		return result{err: err}, isTransport(err)
	}
	return result{}, false
}

func (w *worker) doCheckArticleExists(req *Request) (result, bool) {
	exists, err := w.wc.StatArticle(req.MessageID)
	if err != nil {
		return result{err: err}, isTransport(err)
	}
	return result{exists: exists}, false
}

// fetchRecentThreads fetches up to `count` most-recent overview entries for
// group and assembles them into Thread trees via References-based ancestor
// lookup -- the same merge rule the incremental engine uses for deltas,
// applied once to a full window.
func (w *worker) fetchRecentThreads(group string, count int64) ([]*Thread, error) {
	info, code, err := w.wc.SelectGroup(group)
	if err != nil && code != 411 {
		return nil, err
	}
	if info == nil || info.Last <= 0 {
		return nil, nil
	}
	start := info.Last - count + 1
	if start < info.First {
		start = info.First
	}
	lines, err := w.wc.XOver(group, start, info.Last, false)
	if err != nil {
		return nil, err
	}
	entries := make([]OverviewEntry, 0, len(lines))
	for _, l := range lines {
		entries = append(entries, OverviewEntry{
			ArticleNumber: l.ArticleNum,
			MessageID:     l.MessageID,
			Subject:       l.Subject,
			FromHeader:    l.From,
			Date:          l.Date,
			References:    splitReferences(l.References),
		})
	}
	return assembleThreads(entries), nil
}

// populateBodies returns a cloned copy of t with every node's Article field
// filled in, fetched sequentially (the worker owns exactly one connection).
// Concurrent multi-id fetches happen one layer up, across workers, in
// federated.go's get_thread_paginated.
func (w *worker) populateBodies(t *Thread) (*Thread, error) {
	clone := &Thread{
		Subject:      t.Subject,
		RootID:       t.RootID,
		ArticleCount: t.ArticleCount,
		LastPostDate: t.LastPostDate,
		Root:         cloneTree(t.Root),
	}
	for _, id := range collectMessageIDs(clone.Root) {
		mid := id
		art, err := w.wc.GetArticle(&mid, false)
		if err != nil {
			if isNotFoundWire(err) || errors.Is(err, nntp.ErrArticleNotFound) || errors.Is(err, nntp.ErrArticleRemoved) {
				continue // article expired/removed upstream; node keeps its overview-only Article
			}
			return nil, err
		}
		if n := findNode(clone.Root, id); n != nil {
			n.Article = toArticle(art)
		}
	}
	return clone, nil
}

func (w *worker) fetchLastArticleDate(group string, last int64) string {
	hdrs, err := w.wc.XHdr(group, "Date", last, last)
	if err == nil && len(hdrs) > 0 {
		return hdrs[0].Value
	}
	head, err := w.wc.GetHead(strconv.FormatInt(last, 10))
	if err != nil || head == nil {
		return ""
	}
	return head.DateString
}

func isTransport(err error) bool {
	if err == nil {
		return false
	}
	if isNotFoundWire(err) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "not connected") ||
		strings.Contains(msg, "use of closed network connection")
}

func splitReferences(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Fields(raw)
}
