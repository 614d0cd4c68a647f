package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/guttosm/isinmap/internal/domain/models"
	"github.com/guttosm/isinmap/internal/logger"
	"github.com/guttosm/isinmap/internal/secmaster"
	"github.com/guttosm/isinmap/internal/storage"
)

const DefaultBatchSize = 5000

// Stats summarizes a completed load.
type Stats struct {
	Rows       int // data rows copied
	Duplicates int // rows whose ISIN was already seen earlier in the file
}

// LoadFile replaces the stored security master with the rows of the TSV at path.
//
// Behavior:
//   - Validates the header before touching the destination.
//   - Streams rows in batches of batch into a single replacement; nothing is
//     visible to lookups until every row has been read and copied.
//   - Parsing and writing run as two errgroup stages; the first error cancels
//     both and the previous contents stay in place.
//   - Duplicate ISINs are kept (line order decides which one a lookup returns) and counted.
func LoadFile(ctx context.Context, path string, w storage.SecurityWriter, batch int) (Stats, error) {
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	r, err := secmaster.NewReader(f)
	if err != nil {
		return Stats{}, fmt.Errorf("%s: %w", path, err)
	}

	base := filepath.Base(path)
	start := time.Now()
	logger.L().Info().Str("file", base).Int("batch", batch).Msg("load start")

	var stats Stats
	err = w.ReplaceSecurities(ctx, func(ctx context.Context, bw storage.SecurityBatchWriter) error {
		s, err := copyRows(ctx, r, bw, base, batch)
		stats = s
		return err
	})
	if err != nil {
		logger.L().Error().Str("file", base).Int("lines_read", r.Line()).Dur("elapsed", time.Since(start)).Err(err).Msg("load failed")
		return Stats{}, err
	}

	ev := logger.L().Info()
	if stats.Duplicates > 0 {
		ev = logger.L().Warn()
	}
	ev.Str("file", base).Int("rows", stats.Rows).Int("duplicates", stats.Duplicates).Dur("elapsed", time.Since(start)).Msg("load done")

	return stats, nil
}

// copyRows pipes every row of r into bw in batches.
func copyRows(ctx context.Context, r *secmaster.Reader, bw storage.SecurityBatchWriter, base string, batch int) (Stats, error) {
	g, gctx := errgroup.WithContext(ctx)
	batches := make(chan []models.Security, 2)
	var stats Stats

	// Stage 1: parse
	g.Go(func() error {
		defer close(batches)
		seen := make(map[string]struct{})
		buf := make([]models.Security, 0, batch)

		send := func() error {
			if len(buf) == 0 {
				return nil
			}
			select {
			case batches <- buf:
			case <-gctx.Done():
				return gctx.Err()
			}
			buf = make([]models.Security, 0, batch)
			return nil
		}

		for {
			sec, err := r.Next()
			if errors.Is(err, io.EOF) {
				return send()
			}
			if err != nil {
				return fmt.Errorf("%s: %w", base, err)
			}
			if _, dup := seen[sec.ISIN]; dup {
				stats.Duplicates++
				logger.L().Debug().Str("isin", sec.ISIN).Int("line", sec.Line).Msg("duplicate isin")
			} else {
				seen[sec.ISIN] = struct{}{}
			}
			buf = append(buf, sec)
			if len(buf) >= batch {
				if err := send(); err != nil {
					return err
				}
			}
		}
	})

	// Stage 2: write
	g.Go(func() error {
		for rows := range batches {
			if err := bw.InsertSecuritiesBatch(gctx, rows); err != nil {
				return fmt.Errorf("insert batch ending line %d: %w", rows[len(rows)-1].Line, err)
			}
			stats.Rows += len(rows)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	return stats, nil
}
