package fnal

// Service is FNAL's single exported entry point: validate config, build one
// Server Service per upstream, wire them behind one Federated Service, and
// expose spec.md §6's operation table. Grounded on the teacher's
// cmd/nntp-server's "build everything, spawn, serve" construction sequence,
// generalized from one hard-coded backend to Config.Servers.

import "context"

// Service is the long-lived object a caller constructs once and shares
// across every request goroutine.
type Service struct {
	cfg       Config
	servers   []*serverService
	federated *Federated
	cancel    context.CancelFunc
}

// New validates cfg, builds a Server Service per configured upstream, and
// wires them behind a Federated Service. Call SpawnWorkers before issuing any
// request.
func New(ctx context.Context, cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	services := make([]*serverService, len(cfg.Servers))
	for i, sc := range cfg.Servers {
		services[i] = newServerService(sc, cfg.WorkerCountPerServer)
	}

	svcCtx, cancel := context.WithCancel(ctx)
	return &Service{
		cfg:       cfg,
		servers:   services,
		federated: newFederated(svcCtx, cfg, services),
		cancel:    cancel,
	}, nil
}

// SpawnWorkers starts every Server Service's Wire Workers. Idempotent per
// Service instance is not guaranteed -- call exactly once after New.
func (s *Service) SpawnWorkers(ctx context.Context) {
	for _, ss := range s.servers {
		ss.spawnWorkers(ctx)
	}
}

// Stop tears down every worker and background refresh task and releases
// cache resources. The Service is unusable afterward.
func (s *Service) Stop() {
	s.cancel()
	for _, ss := range s.servers {
		ss.stop()
	}
	s.federated.stop()
}

func (s *Service) GetArticle(ctx context.Context, messageID string) (*Article, error) {
	return s.federated.GetArticle(ctx, messageID)
}

func (s *Service) GetThreads(ctx context.Context, group string, count int64) ([]*Thread, error) {
	return s.federated.GetThreads(ctx, group, count)
}

func (s *Service) GetThreadsPaginated(ctx context.Context, group string, page, perPage int) ([]*Thread, PaginationInfo, error) {
	return s.federated.GetThreadsPaginated(ctx, group, page, perPage)
}

func (s *Service) GetThread(ctx context.Context, group, rootMessageID string) (*Thread, error) {
	return s.federated.GetThread(ctx, group, rootMessageID)
}

func (s *Service) GetThreadPaginated(ctx context.Context, group, rootMessageID string, page, perPage, collapseThreshold int) (*Thread, []FlatComment, PaginationInfo, error) {
	return s.federated.GetThreadPaginated(ctx, group, rootMessageID, page, perPage, collapseThreshold)
}

func (s *Service) GetGroups(ctx context.Context) ([]GroupView, error) {
	return s.federated.GetGroups(ctx)
}

func (s *Service) GetGroupStats(ctx context.Context, group string) (GroupStats, error) {
	return s.federated.GetGroupStats(ctx, group)
}

func (s *Service) PrefetchGroupStats(groups []string) {
	s.federated.PrefetchGroupStats(groups)
}

func (s *Service) PostArticle(ctx context.Context, group string, headers [][2]string, body string) error {
	return s.federated.PostArticle(ctx, group, headers, body)
}

func (s *Service) CheckArticleExists(ctx context.Context, messageID string) (bool, error) {
	return s.federated.CheckArticleExists(ctx, messageID)
}
