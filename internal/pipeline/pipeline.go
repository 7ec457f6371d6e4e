// Package pipeline wires the stages together: load raw tables, reshape into
// per-site observations, write cleaned CSVs, render household viewers, and
// record the run in the catalog.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	"prismview/internal/artifact"
	"prismview/internal/catalog"
	"prismview/internal/cohort"
	"prismview/internal/config"
	"prismview/internal/metrics"
	"prismview/internal/render"
	"prismview/internal/reshape"
	"prismview/internal/source"
)

// Pipeline holds the stage dependencies for one process lifetime.
type Pipeline struct {
	cfg     config.Config
	store   artifact.Store
	catalog catalog.Store
	metrics *metrics.Metrics
	log     *zap.Logger
}

// New assembles a pipeline from its dependencies.
func New(cfg config.Config, store artifact.Store, cat catalog.Store, m *metrics.Metrics, log *zap.Logger) *Pipeline {
	if m == nil {
		m = metrics.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, store: store, catalog: cat, metrics: m, log: log}
}

// CSVKey is the artifact key of a site's cleaned observations.
func CSVKey(slug string) string { return path.Join("data", slug+".csv") }

// ViewerKey is the artifact key of a site's household viewer page.
func ViewerKey(slug string) string { return path.Join("viewers", slug+".html") }

// IndexKey is the artifact key of the landing page.
const IndexKey = "index.html"

// Reshape runs the reshaper stage: raw tables in, per-site cleaned CSVs out.
func (p *Pipeline) Reshape(ctx context.Context) error {
	return p.track(ctx, "reshape", func(ctx context.Context, run *catalog.Run) error {
		datasets, err := p.reshapeAndWrite(ctx, run)
		if err != nil {
			return err
		}
		for _, ds := range datasets {
			p.log.Info("site reshaped",
				zap.String("site", ds.Site),
				zap.Int("observations", ds.Stats.Observations),
				zap.Int("households", ds.Stats.Households),
				zap.Int("microscopy_positive", ds.Stats.MicroscopyPositive))
		}
		return nil
	})
}

// Render runs the renderer stage against previously written cleaned CSVs.
func (p *Pipeline) Render(ctx context.Context) error {
	return p.track(ctx, "render", func(ctx context.Context, run *catalog.Run) error {
		var entries []render.IndexEntry
		for _, site := range p.cfg.Sites {
			obs, err := p.readSiteCSV(ctx, site.Slug)
			if err != nil {
				return fmt.Errorf("site %s: %w", site.Name, err)
			}
			entry, result, err := p.renderSite(ctx, site, obs)
			if err != nil {
				return fmt.Errorf("site %s: %w", site.Name, err)
			}
			entries = append(entries, entry)
			run.Sites = append(run.Sites, result)
		}
		return p.writeIndex(ctx, entries)
	})
}

// Run executes both stages in one pass, reusing the in-memory datasets so the
// renderer never re-reads what the reshaper just wrote.
func (p *Pipeline) Run(ctx context.Context) error {
	return p.track(ctx, "run", func(ctx context.Context, run *catalog.Run) error {
		datasets, err := p.reshapeAndWrite(ctx, run)
		if err != nil {
			return err
		}
		var entries []render.IndexEntry
		for i, ds := range datasets {
			site := p.cfg.Sites[i]
			entry, result, err := p.renderSite(ctx, site, ds.Observations)
			if err != nil {
				return fmt.Errorf("site %s: %w", site.Name, err)
			}
			entries = append(entries, entry)
			// One record per artifact: the reshape entry keeps the CSV
			// key/etag, the render entry carries the viewer's.
			run.Sites = append(run.Sites, result)
		}
		return p.writeIndex(ctx, entries)
	})
}

// track wraps a stage with catalog bookkeeping, metrics and the textfile
// flush. The run record is saved as running first, then updated with the
// outcome; a catalog failure fails the stage.
func (p *Pipeline) track(ctx context.Context, stage string, fn func(context.Context, *catalog.Run) error) error {
	run := catalog.Run{
		ID:        catalog.NewRunID(),
		Stage:     stage,
		Status:    catalog.StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := p.catalog.Save(ctx, run); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	p.log.Info("stage started", zap.String("stage", stage), zap.String("run_id", run.ID))

	start := time.Now()
	stageErr := fn(ctx, &run)
	elapsed := time.Since(start)

	finished := time.Now().UTC()
	run.FinishedAt = &finished
	if stageErr != nil {
		run.Status = catalog.StatusFailed
		run.Error = stageErr.Error()
		p.metrics.RecordRun(stage, "failed")
		p.log.Error("stage failed", zap.String("stage", stage), zap.String("run_id", run.ID), zap.Error(stageErr))
	} else {
		run.Status = catalog.StatusSucceeded
		p.metrics.RecordRun(stage, "succeeded")
		p.log.Info("stage finished", zap.String("stage", stage), zap.String("run_id", run.ID), zap.Duration("elapsed", elapsed))
	}
	p.metrics.ObserveStage(stage, elapsed.Seconds())

	if err := p.catalog.Save(ctx, run); err != nil {
		p.log.Error("record run outcome", zap.String("run_id", run.ID), zap.Error(err))
		if stageErr == nil {
			stageErr = fmt.Errorf("record run outcome: %w", err)
		}
	}
	if err := p.metrics.WriteTextfile(p.cfg.Metrics.TextfilePath); err != nil {
		p.log.Error("write metrics textfile", zap.Error(err))
		if stageErr == nil {
			stageErr = fmt.Errorf("write metrics textfile: %w", err)
		}
	}
	return stageErr
}

// reshapeAndWrite loads the raw tables, builds every configured site and
// writes each site's cleaned CSV, appending one SiteResult per site to run.
func (p *Pipeline) reshapeAndWrite(ctx context.Context, run *catalog.Run) ([]reshape.SiteDataset, error) {
	tables, err := source.Load(p.cfg.DataDir, p.log)
	if err != nil {
		return nil, err
	}
	p.metrics.SetSourceRows(source.HouseholdsFile, len(tables.Households))
	p.metrics.SetSourceRows(source.ParticipantsFile, len(tables.Participants))
	p.metrics.SetSourceRows(source.VisitsFile, len(tables.Visits))
	p.metrics.SetSourceRows(source.SamplesFile, len(tables.Samples))

	datasets, err := reshape.Build(tables, p.cfg.SiteNames())
	if err != nil {
		return nil, err
	}

	for _, ds := range datasets {
		slug := p.cfg.SlugFor(ds.Site)
		var buf bytes.Buffer
		if err := reshape.WriteObservations(&buf, ds.Observations); err != nil {
			return nil, fmt.Errorf("site %s: %w", ds.Site, err)
		}
		key := CSVKey(slug)
		info, err := p.store.Put(ctx, key, bytes.NewReader(buf.Bytes()), artifact.PutOptions{
			ContentType: "text/csv",
			Metadata:    map[string]string{"site": ds.Site},
		})
		if err != nil {
			return nil, fmt.Errorf("site %s: write %s: %w", ds.Site, key, err)
		}
		p.metrics.SetArtifactBytes(key, info.Size)
		p.metrics.SetSiteStats(ds.Site, ds.Stats.Observations, ds.Stats.Households, ds.Stats.MicroscopyPositive)
		run.Sites = append(run.Sites, catalog.SiteResult{
			Site:               ds.Site,
			Households:         ds.Stats.Households,
			Participants:       ds.Stats.Participants,
			Observations:       ds.Stats.Observations,
			MicroscopyPositive: ds.Stats.MicroscopyPositive,
			ArtifactKey:        key,
			ETag:               info.ETag,
		})
	}
	return datasets, nil
}

// readSiteCSV loads a site's cleaned observations back from the store.
func (p *Pipeline) readSiteCSV(ctx context.Context, slug string) ([]cohort.Observation, error) {
	key := CSVKey(slug)
	_, rc, err := p.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	defer rc.Close()
	obs, err := reshape.ReadObservations(rc)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", key, err)
	}
	return obs, nil
}

// renderSite builds one site's viewer and writes it to the store.
func (p *Pipeline) renderSite(ctx context.Context, site config.Site, obs []cohort.Observation) (render.IndexEntry, catalog.SiteResult, error) {
	page, summaries, err := render.RenderSite(site.Name, obs)
	if err != nil {
		return render.IndexEntry{}, catalog.SiteResult{}, err
	}
	key := ViewerKey(site.Slug)
	info, err := p.store.Put(ctx, key, bytes.NewReader(page), artifact.PutOptions{
		ContentType: "text/html; charset=utf-8",
		Metadata:    map[string]string{"site": site.Name},
	})
	if err != nil {
		return render.IndexEntry{}, catalog.SiteResult{}, fmt.Errorf("write %s: %w", key, err)
	}
	p.metrics.SetArtifactBytes(key, info.Size)

	positives := 0
	for _, o := range obs {
		if o.MicroscopyPositive() {
			positives++
		}
	}
	p.log.Info("site rendered",
		zap.String("site", site.Name),
		zap.Int("households_shown", len(summaries)),
		zap.String("key", key))

	entry := render.IndexEntry{
		Site:         site.Name,
		Href:         "viewers/" + site.Slug + ".html",
		Households:   len(summaries),
		Observations: len(obs),
		Positives:    positives,
	}
	result := catalog.SiteResult{
		Site:               site.Name,
		Observations:       len(obs),
		Households:         len(summaries),
		MicroscopyPositive: positives,
		ArtifactKey:        key,
		ETag:               info.ETag,
	}
	return entry, result, nil
}

// writeIndex writes the landing page linking every rendered viewer.
func (p *Pipeline) writeIndex(ctx context.Context, entries []render.IndexEntry) error {
	page, err := render.BuildIndexPage(entries)
	if err != nil {
		return err
	}
	info, err := p.store.Put(ctx, IndexKey, bytes.NewReader(page), artifact.PutOptions{
		ContentType: "text/html; charset=utf-8",
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", IndexKey, err)
	}
	p.metrics.SetArtifactBytes(IndexKey, info.Size)
	return nil
}
