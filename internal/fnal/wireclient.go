package fnal

// wireClient is the subset of internal/nntp.BackendConn a Wire Worker
// depends on. Abstracted out so worker.go is testable against a fake without
// a live NNTP socket -- the teacher's own BackendConn is the production
// implementation, wired in by serverService's dialer.

import (
	"github.com/go-while/fnal/internal/models"
	"github.com/go-while/fnal/internal/nntp"
)

type wireClient interface {
	Connect() error
	CloseFromPoolOnly() error
	Capabilities() (*nntp.ServerCapabilities, error)

	ListGroupsVariant(variant string) ([]nntp.GroupInfo, error)
	SelectGroup(group string) (*nntp.GroupInfo, int, error)
	XOver(group string, start, end int64, enforceLimit bool) ([]nntp.OverviewLine, error)
	XHdr(group, field string, start, end int64) ([]nntp.HeaderLine, error)
	GetArticle(messageID *string, bulkmode bool) (*models.Article, error)
	GetHead(messageID string) (*models.Article, error)
	StatArticle(messageID string) (bool, error)
	PostArticle(group string, headers [][2]string, body string) error
}

// backendConnAdapter adapts *nntp.BackendConn to wireClient. The teacher's
// BackendConn already implements everything except PostArticle (new) and
// ListGroupsVariant/Capabilities (new methods added to internal/nntp for
// this spec -- see DESIGN.md).
type backendConnAdapter struct {
	*nntp.BackendConn
}

func (a backendConnAdapter) PostArticle(group string, headers [][2]string, body string) error {
	return a.BackendConn.PostArticle(group, headers, body)
}
