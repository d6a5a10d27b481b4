// Command catalog-ingest imports supplier catalog dumps into the product
// table. Dumps are gzip-compressed JSONL files, one product per line,
// possibly overlapping between suppliers. Files are parsed concurrently;
// a bloom filter dedupes SKUs across feeds so the first occurrence wins.
// The filter's false-positive rate means a vanishingly small fraction of
// distinct SKUs may be skipped as duplicates; acceptable for bulk import,
// where a re-run with seed-db can patch individual products.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/merchkit/storefront/internal/domain/product"
	"github.com/merchkit/storefront/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.0001
	progressEvery = 100_000
)

// feedProduct is one line of a supplier dump.
type feedProduct struct {
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	Sizes       []string        `json:"sizes"`
	Colors      []string        `json:"colors"`
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.jsonl.gz catalog dumps")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "glob data dir")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.jsonl.gz files in %s", dataDir)
	}

	slog.Info("ingesting catalog dumps", slog.Int("files", len(files)))

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewProductRepository(pool)

	// Readers fan out per file; a single writer owns the bloom filter and
	// the upsert order, so dedupe needs no locking around the filter.
	lines := make(chan feedProduct, 1024)

	g, ctx := errgroup.WithContext(ctx)

	var readers sync.WaitGroup
	for _, f := range files {
		readers.Add(1)
		g.Go(readFeed(ctx, f, lines, &readers))
	}
	go func() {
		readers.Wait()
		close(lines)
	}()

	g.Go(func() error {
		return writeProducts(ctx, repo, lines)
	})

	return g.Wait()
}

func readFeed(ctx context.Context, path string, out chan<- feedProduct, done *sync.WaitGroup) func() error {
	return func() error {
		defer done.Done()

		var count uint64
		if err := streamGzLines(ctx, path, func(line []byte) error {
			var p feedProduct
			if err := json.Unmarshal(line, &p); err != nil {
				// One malformed line shouldn't sink a multi-million line
				// feed. Log and keep going.
				slog.Warn("skipping malformed line", slog.String("file", path), slog.String("error", err.Error()))
				return nil
			}
			p.SKU = strings.TrimSpace(p.SKU)
			if p.SKU == "" || p.Name == "" {
				return nil
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("read progress", slog.String("file", filepath.Base(path)), slog.Uint64("products", count))
			}

			select {
			case out <- p:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}); err != nil {
			return errors.Wrapf(err, "read feed %s", path)
		}

		slog.Info("feed complete", slog.String("file", filepath.Base(path)), slog.Uint64("products", count))
		return nil
	}
}

// writeProducts consumes parsed products, drops SKUs already seen, and
// upserts the rest.
func writeProducts(ctx context.Context, repo *postgres.ProductRepository, in <-chan feedProduct) error {
	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	var written, skipped uint64

	for p := range in {
		if seen.TestAndAddString(p.SKU) {
			skipped++
			continue
		}

		if err := repo.UpsertBySKU(ctx, product.Product{
			ID:          uuid.New().String(),
			SKU:         p.SKU,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			Category:    p.Category,
			ImageURL:    p.Image,
			Sizes:       p.Sizes,
			Colors:      p.Colors,
		}); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.SKU)
		}

		written++
		if written%progressEvery == 0 {
			slog.Info("write progress", slog.Uint64("written", written), slog.Uint64("skipped", skipped))
		}
	}

	slog.Info("write complete", slog.Uint64("written", written), slog.Uint64("skipped", skipped))
	return nil
}

// streamGzLines opens a gzip-compressed file and calls fn for each line.
func streamGzLines(ctx context.Context, path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(scanner.Bytes()); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}
