// Demo harness for the FNAL middleware: loads a server list from a YAML
// config file (path given by -config), spawns workers, and exercises a handful of operations
// against it with plain log output.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/go-while/fnal/internal/fnal"
	"github.com/spf13/viper"
)

func main() {
	configPath := flag.String("config", "fnal-demo.yaml", "path to config file")
	group := flag.String("group", "", "group to exercise after startup")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := fnal.New(ctx, cfg)
	if err != nil {
		log.Fatalf("fnal.New: %v", err)
	}
	svc.SpawnWorkers(ctx)
	defer svc.Stop()

	log.Printf("fnal-demo: %d server(s) configured, workers spawned", len(cfg.Servers))

	if *group == "" {
		log.Println("fnal-demo: no -group given, fetching group list only")
		groups, err := svc.GetGroups(ctx)
		if err != nil {
			log.Fatalf("GetGroups: %v", err)
		}
		log.Printf("fnal-demo: %d groups known", len(groups))
		return
	}

	exerciseGroup(ctx, svc, *group)
}

func exerciseGroup(ctx context.Context, svc *fnal.Service, group string) {
	stats, err := svc.GetGroupStats(ctx, group)
	if err != nil {
		log.Printf("GetGroupStats(%s): %v", group, err)
	} else {
		log.Printf("GetGroupStats(%s): last=%d date=%s", group, stats.LastArticleNumber, stats.LastArticleDate)
	}

	threads, err := svc.GetThreads(ctx, group, 30)
	if err != nil {
		log.Printf("GetThreads(%s): %v", group, err)
		return
	}
	log.Printf("GetThreads(%s): %d thread(s)", group, len(threads))
	for i, t := range threads {
		if i >= 5 {
			break
		}
		log.Printf("  [%d] %s (%d articles, last %s)", i, t.Subject, t.ArticleCount, t.LastPostDate)
	}

	if len(threads) == 0 {
		return
	}
	thread, comments, page, err := svc.GetThreadPaginated(ctx, group, threads[0].RootID, 1, 20, 3)
	if err != nil {
		log.Printf("GetThreadPaginated(%s, %s): %v", group, threads[0].RootID, err)
		return
	}
	log.Printf("GetThreadPaginated(%s): %q, page %d/%d, %d comment(s) on this page",
		group, thread.Subject, page.Page, page.Pages, len(comments))
}

func loadConfig(path string) (fnal.Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("worker_count_per_server", 4)
	v.SetDefault("max_articles_per_group", 500)

	if err := v.ReadInConfig(); err != nil {
		return fnal.Config{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var raw struct {
		Servers []struct {
			Name        string `mapstructure:"name"`
			Host        string `mapstructure:"host"`
			Port        int    `mapstructure:"port"`
			TimeoutSecs int    `mapstructure:"timeout_secs"`
			Username    string `mapstructure:"username"`
			Password    string `mapstructure:"password"`
			TLSRequired bool   `mapstructure:"tls_required"`
		} `mapstructure:"servers"`
		WorkerCountPerServer int `mapstructure:"worker_count_per_server"`
		MaxArticlesPerGroup  int `mapstructure:"max_articles_per_group"`
	}
	if err := v.Unmarshal(&raw); err != nil {
		return fnal.Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	cfg := fnal.Config{
		WorkerCountPerServer: raw.WorkerCountPerServer,
		MaxArticlesPerGroup:  raw.MaxArticlesPerGroup,
	}
	for _, s := range raw.Servers {
		timeout := time.Duration(s.TimeoutSecs) * time.Second
		cfg.Servers = append(cfg.Servers, fnal.ServerConfig{
			Name:        s.Name,
			Host:        s.Host,
			Port:        s.Port,
			Timeout:     timeout,
			Username:    s.Username,
			Password:    s.Password,
			TLSRequired: s.TLSRequired,
		})
	}
	return cfg, nil
}
