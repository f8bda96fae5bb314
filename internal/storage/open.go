package storage

import (
	"context"
	"fmt"
	"net/http"

	"github.com/yuvalaufer/students-calander/internal/config"
	"github.com/yuvalaufer/students-calander/internal/docstore"
	"github.com/yuvalaufer/students-calander/pkg/logger"
)

// Opened is the configured document store plus what the caller must release.
type Opened struct {
	Store docstore.Store
	// Archive is nil unless MinIO is configured.
	Archive *MinIOArchive
	// Ping checks backend connectivity for readiness probes; nil when there is nothing to ping.
	Ping  func(ctx context.Context) error
	close func(ctx context.Context) error
}

// Close releases backend connections.
func (o *Opened) Close(ctx context.Context) error {
	if o.close == nil {
		return nil
	}
	return o.close(ctx)
}

// OpenDocumentStore builds the backend selected by cfg.Store.Backend and layers the
// snapshot archive, per-call timeout and metrics on top of it.
func OpenDocumentStore(ctx context.Context, cfg *config.Config) (*Opened, error) {
	out := &Opened{}
	var backend docstore.Store

	switch cfg.Store.Backend {
	case config.BackendGitHub:
		client := docstore.NewGitHubClient(cfg.GitHub.Token, &http.Client{Timeout: cfg.Store.Timeout})
		backend = docstore.NewGitHubStore(client, cfg.GitHub.Owner, cfg.GitHub.Repo, cfg.GitHub.Branch, cfg.GitHub.DataDir)
		logger.Infof("document store: github %s/%s@%s dir=%q", cfg.GitHub.Owner, cfg.GitHub.Repo, cfg.GitHub.Branch, cfg.GitHub.DataDir)
	case config.BackendMongo:
		client, err := docstore.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if err != nil {
			return nil, err
		}
		ms := docstore.NewMongoStore(client.Database(cfg.MongoDB.Database).Collection("documents"))
		backend = ms
		out.Ping = ms.Ping
		out.close = client.Disconnect
		logger.Infof("document store: mongo db=%s", cfg.MongoDB.Database)
	case config.BackendMemory:
		backend = docstore.NewMemoryStore()
		logger.Warnf("document store: memory (state is lost on restart)")
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	if cfg.MinIO.Endpoint != "" {
		archive, err := NewMinIOArchive(cfg.MinIO)
		if err != nil {
			logger.Warnf("revision archive disabled: %v", err)
		} else {
			out.Archive = archive
			backend = docstore.Archived(backend, archive)
			logger.Infof("revision archive: minio bucket=%s", cfg.MinIO.Bucket)
		}
	}

	out.Store = docstore.Instrumented(docstore.WithTimeout(backend, cfg.Store.Timeout), cfg.Store.Backend)
	return out, nil
}
