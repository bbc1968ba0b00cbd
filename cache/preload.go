package cache

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/KOMKZ/go-yogan-tiercache/logger"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// PreloadJob one warm-up source
type PreloadJob struct {
	Name      string
	Category  Category
	Policy    Policy
	Source    iter.Seq2[Item, error]
	BatchSize int
}

// PreloadResult 单个任务结果
type PreloadResult struct {
	Name     string
	Loaded   int
	Err      error
	Duration time.Duration
}

// Preloader runs preload jobs concurrently on a bounded goroutine pool
type Preloader struct {
	loader  *BatchLoader
	workers int
	log     *logger.CtxZapLogger
}

// NewPreloader workers <= 0 means 4
func NewPreloader(loader *BatchLoader, workers int, log *logger.CtxZapLogger) *Preloader {
	if workers <= 0 {
		workers = 4
	}
	if log == nil {
		log = logger.GetLogger(LogModule)
	}
	return &Preloader{loader: loader, workers: workers, log: log}
}

// Run waits for every job. Results keep the order of jobs; the error combines
// every failed job.
func (p *Preloader) Run(ctx context.Context, jobs ...PreloadJob) ([]PreloadResult, error) {
	results := make([]PreloadResult, len(jobs))
	if len(jobs) == 0 {
		return results, nil
	}

	pool, err := ants.NewPool(min(p.workers, len(jobs)))
	if err != nil {
		return nil, ErrInvalidArgument.Wrapf(err, "create preload pool")
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			results[i] = p.runJob(ctx, job)
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			results[i] = PreloadResult{Name: job.Name, Err: err}
		}
	}
	wg.Wait()

	var errs error
	for _, r := range results {
		if r.Err != nil {
			errs = multierr.Append(errs, fmt.Errorf("preload %s: %w", r.Name, r.Err))
		}
	}
	return results, errs
}

func (p *Preloader) runJob(ctx context.Context, job PreloadJob) PreloadResult {
	start := time.Now()
	loaded, err := p.loader.LoadChecked(ctx, job.Category, job.Policy, job.Source, job.BatchSize)
	res := PreloadResult{Name: job.Name, Loaded: loaded, Err: err, Duration: time.Since(start)}

	if err != nil {
		p.log.WarnCtx(ctx, "cache preload failed",
			zap.String("job", job.Name),
			zap.Int("loaded", loaded),
			zap.Error(err),
		)
	} else {
		p.log.InfoCtx(ctx, "cache preload finished",
			zap.String("job", job.Name),
			zap.String("category", string(job.Category)),
			zap.Int("loaded", loaded),
			zap.Duration("duration", res.Duration),
		)
	}
	return res
}
