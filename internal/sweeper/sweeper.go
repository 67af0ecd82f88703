package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"picstash/internal/repository"
	"picstash/internal/storage"
)

// Sweeper periodically reconciles the object store against image metadata,
// deleting objects that have no backing record. Such orphans appear when an
// upload's metadata insert fails after the object write already succeeded.
type Sweeper interface {
	Start(ctx context.Context)
	Shutdown()
}

type Config struct {
	Bucket    string
	KeyPrefix string
	Interval  time.Duration
	// MinAge protects objects from uploads still in flight.
	MinAge time.Duration
	Logger *logrus.Logger
}

type sweeper struct {
	cfg    Config
	images repository.ImageRepository
	store  storage.Service

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(cfg Config, images repository.ImageRepository, store storage.Service) Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Minute
	}
	if cfg.MinAge <= 0 {
		cfg.MinAge = 10 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &sweeper{
		cfg:    cfg,
		images: images,
		store:  store,
	}
}

func (s *sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.sweep(ctx); err != nil {
					s.cfg.Logger.WithError(err).Warn("orphan sweep failed")
				}
			}
		}
	}()

	s.cfg.Logger.Infof("orphan sweeper started, interval %s", s.cfg.Interval)
}

func (s *sweeper) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.cfg.Logger.Info("orphan sweeper stopped")
}

func (s *sweeper) sweep(ctx context.Context) error {
	keys, err := s.images.ListKeys(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		known[key] = struct{}{}
	}

	objects, err := s.store.ListObjects(ctx, s.cfg.Bucket, s.cfg.KeyPrefix)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-s.cfg.MinAge)
	var removed int
	for _, obj := range objects {
		if _, ok := known[obj.Key]; ok {
			continue
		}
		if obj.LastModified != nil && obj.LastModified.After(cutoff) {
			continue
		}
		if err := s.store.DeleteObject(ctx, s.cfg.Bucket, obj.Key); err != nil {
			s.cfg.Logger.WithError(err).WithField("key", obj.Key).Warn("delete orphan object")
			continue
		}
		removed++
	}

	if removed > 0 {
		s.cfg.Logger.WithField("removed", removed).Info("orphan objects removed")
	}
	return nil
}
