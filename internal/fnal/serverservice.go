package fnal

// Server Service: owns one priority queue and N Wire Workers talking to a
// single upstream NNTP server, and exposes the wire operations as typed
// methods that push a Request and await its answer. No caching or
// coalescing happens here -- that's Federated Service's job, one layer up
// (spec.md §4.2: "No in-Server coalescing"). Grounded on
// original_source/src/nntp/service.rs (NntpService) with its cache/pending
// bookkeeping stripped out.

import (
	"context"
	"fmt"

	"github.com/go-while/fnal/internal/nntp"
)

// serverService drives every request against exactly one upstream server.
type serverService struct {
	server  ServerConfig
	queue   *priorityQueue
	workers []*worker
	cancel  context.CancelFunc
}

func newServerService(server ServerConfig, workerCount int) *serverService {
	q := newPriorityQueue(defaultQueueCapacity)
	ss := &serverService{server: server, queue: q}
	for i := 0; i < workerCount; i++ {
		ss.workers = append(ss.workers, newWorker(i, server, q, ss.dialer()))
	}
	return ss
}

// dialer builds the wireClient factory workers use to (re)connect,
// producing a fresh backendConnAdapter over a fresh *nntp.BackendConn each
// time -- reconnection after a transport failure means a brand new
// connection, not resetting the old one.
func (ss *serverService) dialer() func() wireClient {
	server := ss.server
	return func() wireClient {
		return backendConnAdapter{nntp.NewConn(&nntp.BackendConfig{
			Host:           server.Host,
			Port:           server.Port,
			SSL:            server.TLSRequired,
			Username:       server.Username,
			Password:       server.Password,
			ConnectTimeout: server.Timeout,
		})}
	}
}

// spawnWorkers starts every worker's lifetime loop. Stopped by cancelling
// the context passed here, or by stop().
func (ss *serverService) spawnWorkers(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	ss.cancel = cancel
	for _, w := range ss.workers {
		go w.run(ctx)
	}
}

func (ss *serverService) stop() {
	if ss.cancel != nil {
		ss.cancel()
	}
}

// submit pushes req onto the queue and awaits its answer, translating
// queue-full/context-cancelled push failures into a transient error.
func (ss *serverService) submit(ctx context.Context, req *Request) (result, error) {
	if err := ss.queue.push(ctx, req); err != nil {
		return result{}, transientErr(fmt.Errorf("fnal: submit to %s: %w", ss.server.Name, err))
	}
	return req.await()
}

func (ss *serverService) GetGroups(ctx context.Context) ([]GroupView, error) {
	req := newRequest(ctx, KindGetGroups)
	res, err := ss.submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.groups, res.err
}

func (ss *serverService) GetThreads(ctx context.Context, group string, count int64) ([]*Thread, error) {
	req := newRequest(ctx, KindGetThreads)
	req.Group, req.Count = group, count
	res, err := ss.submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.threads, res.err
}

func (ss *serverService) GetThread(ctx context.Context, group, rootMessageID string) (*Thread, error) {
	req := newRequest(ctx, KindGetThread)
	req.Group, req.RootMessageID = group, rootMessageID
	res, err := ss.submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.thread, res.err
}

func (ss *serverService) GetArticle(ctx context.Context, messageID string) (*Article, error) {
	req := newRequest(ctx, KindGetArticle)
	req.MessageID = messageID
	res, err := ss.submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.article, res.err
}

func (ss *serverService) GetGroupStats(ctx context.Context, group string) (GroupStats, error) {
	req := newRequest(ctx, KindGetGroupStats)
	req.Group = group
	res, err := ss.submit(ctx, req)
	if err != nil {
		return GroupStats{}, err
	}
	return res.stats, res.err
}

func (ss *serverService) GetNewArticles(ctx context.Context, group string, sinceArticle int64) ([]OverviewEntry, error) {
	req := newRequest(ctx, KindGetNewArticles)
	req.Group, req.SinceArticle = group, sinceArticle
	res, err := ss.submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.entries, res.err
}

func (ss *serverService) PostArticle(ctx context.Context, group string, headers [][2]string, body string) error {
	req := newRequest(ctx, KindPostArticle)
	req.Post = postArticleArgs{group: group, headers: headers, body: body}
	res, err := ss.submit(ctx, req)
	if err != nil {
		return err
	}
	return res.err
}

func (ss *serverService) CheckArticleExists(ctx context.Context, messageID string) (bool, error) {
	req := newRequest(ctx, KindCheckArticleExists)
	req.MessageID = messageID
	res, err := ss.submit(ctx, req)
	if err != nil {
		return false, err
	}
	return res.exists, res.err
}
