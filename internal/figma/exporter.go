package figma

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"visual-regression/internal/artifacts"
	"visual-regression/internal/storage"
)

type Exported struct {
	Node     string `json:"node"`
	Page     string `json:"page"`
	Viewport string `json:"viewport"`
	Path     string `json:"path"`
}

type Exporter struct {
	client      *Client
	storage     storage.Storage
	config      Config
	logger      logr.Logger
	concurrency int
}

func NewExporter(client *Client, s storage.Storage, c Config, logger logr.Logger) (*Exporter, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &Exporter{
		client:      client,
		storage:     s,
		config:      c,
		logger:      logger,
		concurrency: 4,
	}, nil
}

// Export renders every configured node and stores it as the baseline of its
// page and viewport. Results are in node order.
func (e *Exporter) Export(ctx context.Context) ([]Exported, error) {
	ids := make([]string, 0, len(e.config.Nodes))
	for _, n := range e.config.Nodes {
		ids = append(ids, n.ID)
	}

	urls, err := e.client.ImageURLs(ctx, e.config.FileKey, ids, e.config.Format, e.config.Scale)
	if err != nil {
		return nil, xerrors.Errorf("failed to get image URLs: %w", err)
	}

	results := make([]Exported, len(e.config.Nodes))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.concurrency)
	for i, n := range e.config.Nodes {
		eg.Go(func() error {
			data, err := e.client.Download(ctx, urls[n.ID])
			if err != nil {
				return xerrors.Errorf("failed to download node %s: %w", n.Name, err)
			}

			page, v := n.Target()
			path, err := e.storage.Put(ctx, artifacts.BaselineKey(e.config.OutputDir, page, v), data)
			if err != nil {
				return xerrors.Errorf("failed to save baseline for node %s: %w", n.Name, err)
			}
			e.logger.Info("saved baseline", "node", n.Name, "path", path)

			results[i] = Exported{
				Node:     n.Name,
				Page:     page,
				Viewport: v.Name,
				Path:     path,
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ParseSchedule accepts standard five field cron expressions and
// descriptors such as "@daily".
func ParseSchedule(spec string) (cron.Schedule, error) {
	schedule, err := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor).Parse(spec)
	if err != nil {
		return nil, xerrors.Errorf("failed to parse schedule %q: %w", spec, err)
	}
	return schedule, nil
}

// Run exports at every activation of schedule until ctx is done. A failed
// export is logged and retried at the next activation.
func (e *Exporter) Run(ctx context.Context, schedule cron.Schedule) error {
	for {
		now := time.Now()
		next := schedule.Next(now)
		e.logger.V(1).Info("waiting for next export", "next", next)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if _, err := e.Export(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.Error(err, "failed to export baselines")
		}
	}
}
