// Package scan parses many class files concurrently and hands each outcome
// to a Consumer.
package scan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"jclass/internal/classfile"
	"jclass/internal/classfmt"
	"jclass/internal/source"
)

// Result is the outcome of one file: Class on success, Err otherwise.
type Result struct {
	Path   string
	Size   int
	SHA256 string
	Class  *classfile.Class
	Err    error
}

// Kind returns the failure kind, "io" for read errors, or "" on success.
func (r *Result) Kind() string {
	if r.Err == nil {
		return ""
	}
	if k := classfmt.KindOf(r.Err); k != "" {
		return string(k)
	}
	return "io"
}

// Consumer receives results. Consume is never called concurrently.
type Consumer interface {
	Consume(ctx context.Context, r *Result) error
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(ctx context.Context, r *Result) error

func (f ConsumerFunc) Consume(ctx context.Context, r *Result) error { return f(ctx, r) }

// Consumers fans each result out to every consumer in order.
type Consumers []Consumer

func (cs Consumers) Consume(ctx context.Context, r *Result) error {
	for _, c := range cs {
		if err := c.Consume(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// Scanner runs parses over a source walk.
type Scanner struct {
	Walker   *source.Walker
	Options  classfmt.Options
	Workers  int // must be positive
	Consumer Consumer
	Log      commonlog.Logger // nil = jclass.scan logger
}

// Run walks roots and parses every class file found. Parse failures are
// results, not errors: Run fails only when the walk, a consumer or ctx
// does.
func (s *Scanner) Run(ctx context.Context, roots []string) (*Stats, error) {
	if s.Workers <= 0 {
		return nil, errors.New("scan: worker count must be positive")
	}
	log := s.Log
	if log == nil {
		log = commonlog.GetLogger("jclass.scan")
	}
	stats := newStats()
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	files := make(chan source.File, s.Workers)

	g.Go(func() error {
		defer close(files)
		return s.Walker.Walk(ctx, roots, func(f source.File) error {
			select {
			case files <- f:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})

	var mu sync.Mutex // serializes Consume
	for range s.Workers {
		g.Go(func() error {
			session := classfile.NewSession(s.Options)
			for f := range files {
				if err := ctx.Err(); err != nil {
					return err
				}
				r := parseFile(session, f)
				stats.add(r)
				if r.Err != nil {
					log.Warningf("%s: %s", r.Path, r.Err)
				} else {
					log.Debugf("%s: %s (%d methods)", r.Path, r.Class.Name, len(r.Class.Methods))
				}
				if s.Consumer == nil {
					continue
				}
				mu.Lock()
				err := s.Consumer.Consume(ctx, r)
				mu.Unlock()
				if err != nil {
					return err
				}
			}
			return nil
		})
	}

	err := g.Wait()
	stats.Elapsed = time.Since(start)
	log.Infof("scanned %d files: %d parsed, %d failed in %s", stats.Files, stats.Parsed, stats.Failed, stats.Elapsed)
	return stats, err
}

func parseFile(session *classfile.Session, f source.File) *Result {
	r := &Result{Path: f.Path, Size: len(f.Data), Err: f.Err}
	if r.Err != nil {
		return r
	}
	sum := sha256.Sum256(f.Data)
	r.SHA256 = hex.EncodeToString(sum[:])
	r.Class, r.Err = session.Parse(f.Data)
	return r
}
