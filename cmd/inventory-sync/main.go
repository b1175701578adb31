// Command inventory-sync is the scheduled Lambda that reconciles every visible product
// with Printify and emails restock subscribers.
package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/jmoiron/sqlx"

	"xandcastle/internal/catalog"
	"xandcastle/internal/config"
	applog "xandcastle/internal/log"
	"xandcastle/internal/notify"
	"xandcastle/internal/repos"
	"xandcastle/internal/services"
)

type job struct {
	inv *services.InventoryService
}

func newJob(db *sqlx.DB, cfg config.Config, src services.CatalogSource, sender services.Sender) *job {
	inv := services.NewInventoryService(repos.NewProductRepo(db), repos.NewRestockRepo(db), src, sender)
	inv.FetchTimeout = cfg.CatalogTimeout
	inv.Concurrency = cfg.SyncConcurrency
	return &job{inv: inv}
}

// handle fails the invocation only when nothing could be synced at all, so a flaky
// product never makes the scheduler retry the whole batch.
func (j *job) handle(ctx context.Context, ev events.CloudWatchEvent) (services.BatchSyncResult, error) {
	applog.Info(nil, "job.inventory.sync.start", map[string]any{"event_id": ev.ID, "time": ev.Time})
	res, err := j.inv.SyncAll(ctx)
	if err != nil {
		applog.Error(nil, "job.inventory.sync.fail", err, map[string]any{"event_id": ev.ID})
		applog.Sync()
		return res, err
	}
	for _, e := range res.Errors {
		applog.Warn(nil, "job.inventory.sync.product", nil, map[string]any{"error": e})
	}
	applog.Sync()
	return res, nil
}

func main() {
	cfg := config.Load()

	db, err := repos.OpenDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		applog.Error(nil, "job.db.open.fail", err, nil)
		panic(fmt.Sprintf("open db: %v", err))
	}

	tmpl, err := notify.NewTemplates(cfg.StoreURL)
	if err != nil {
		panic(fmt.Sprintf("load email templates: %v", err))
	}
	var sender services.Sender = notify.NewLogSender(tmpl)
	if cfg.ResendAPIKey != "" {
		sender = notify.NewResendSender(cfg.ResendAPIKey, cfg.EmailFrom, tmpl)
	}

	src := catalog.NewPrintifyClient(cfg.PrintifyBaseURL, cfg.PrintifyShopID, cfg.PrintifyToken, cfg.CatalogTimeout)
	lambda.Start(newJob(db, cfg, src, sender).handle)
}
