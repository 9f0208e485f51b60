package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Qingzhee/rag-engine/internal/adapters/driving/api"
	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/services"
)

var (
	serveAddr     string
	serveSchedule string
	serveFolder   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve questions, ingestion and conversation memory over HTTP.

Routes:
  POST   /v1/query       {"session_id": "...", "question": "..."}
  POST   /v1/ingest      {"folder": "...", "extensions": [".md"], "force": false}
  GET    /v1/collection
  GET    /v1/memory?session_id=...
  DELETE /v1/memory?session_id=...

Each session keeps its own conversation memory. When server.jwt_secret is
set, requests need a bearer token whose subject is the session id (see
'ragengine token').

With --schedule, the folder given by --folder is re-indexed on a cron
schedule, e.g. "@every 1h" or "0 */6 * * *".`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: server.addr)")
	serveCmd.Flags().StringVar(&serveSchedule, "schedule", "", "cron schedule for re-indexing (default: server.schedule)")
	serveCmd.Flags().StringVar(&serveFolder, "folder", "", "folder re-indexed on schedule (default: server.folder)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	cfg := appConfig.Server
	addr := firstNonEmpty(serveAddr, cfg.Addr)
	schedule := firstNonEmpty(serveSchedule, cfg.Schedule)
	folder := firstNonEmpty(serveFolder, cfg.Folder)

	deps := api.Deps{
		Ingestion:   ingestionService,
		Extensions:  appConfig.Ingestion.Extensions,
		MaxSessions: cfg.MaxSessions,
	}
	if conversationFactory != nil {
		deps.Conversations = conversationFactory
	}
	if cfg.JWTSecret != "" {
		deps.JWTSecret = []byte(cfg.JWTSecret)
	}
	server, err := api.NewServer(deps)
	if err != nil {
		return err
	}

	scheduler, err := newIngestScheduler(schedule, folder)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	if scheduler != nil {
		g.Go(func() error {
			if err := scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		cmd.Printf("Serving on http://%s\n", addr)
		return server.Run(ctx, addr)
	})
	return g.Wait()
}

// newIngestScheduler returns nil when no schedule is set.
func newIngestScheduler(schedule, folder string) (*services.Scheduler, error) {
	if schedule == "" {
		return nil, nil
	}
	if folder == "" {
		return nil, fmt.Errorf("%w: --schedule needs --folder", domain.ErrInvalidInput)
	}
	scheduler := services.NewScheduler()
	task := services.IngestTask(ingestionService, domain.IngestOptions{
		Folder:     folder,
		Extensions: appConfig.Ingestion.Extensions,
	})
	if err := scheduler.AddJob(domain.TaskIDIngest, "Ingest "+folder, schedule, task); err != nil {
		return nil, err
	}
	return scheduler, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
