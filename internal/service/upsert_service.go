package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/customer-import-api/internal/config"
	"github.com/customer-import-api/internal/models"
	"github.com/customer-import-api/internal/platform"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// maxCreateAttempts bounds the username-conflict retry loop: one initial
// create plus two retries with derived usernames.
const maxCreateAttempts = 3

// ErrEmptyBatch is returned when Upsert is invoked without rows. Per-row
// failures never surface as errors; this is a caller-contract violation.
var ErrEmptyBatch = errors.New("at least one import row is required")

// UpsertOptions tunes one batch run. Zero values fall back to the
// configured defaults for the chosen platform path.
type UpsertOptions struct {
	// ChunkSize is the number of rows visible to the pool at once. Chunks
	// run strictly sequentially.
	ChunkSize int
	// Concurrency is the worker-pool width within a chunk. Zero or
	// anything above the chunk size means full fan-out.
	Concurrency int
	// ChunkPause inserts a delay between consecutive chunks to avoid
	// hammering the remote platform. Zero disables the pause.
	ChunkPause time.Duration
}

// upsertService is the batch upsert engine. It drives rows through the
// per-row reconciliation state machine with bounded concurrency and
// collects exactly one outcome per input row.
type upsertService struct {
	users     platform.RecordClient
	customers platform.RecordClient
	cfg       *config.ImportConfig
	log       zerolog.Logger
}

func newUpsertService(users, customers platform.RecordClient, cfg *config.ImportConfig, log zerolog.Logger) *upsertService {
	return &upsertService{
		users:     users,
		customers: customers,
		cfg:       cfg,
		log:       log.With().Str("service", "upsert").Logger(),
	}
}

// UpsertUsers reconciles rows against the content-management user store.
func (s *upsertService) UpsertUsers(ctx context.Context, rows []models.ImportRow, chunkSize int) (*models.BatchReport, error) {
	if chunkSize <= 0 {
		chunkSize = s.cfg.UserChunkSize
	}
	return s.Run(ctx, s.users, rows, UpsertOptions{
		ChunkSize:   chunkSize,
		Concurrency: s.cfg.UserConcurrency,
		ChunkPause:  s.cfg.ChunkPause,
	})
}

// UpsertCustomers reconciles rows against the commerce customer store.
func (s *upsertService) UpsertCustomers(ctx context.Context, rows []models.ImportRow, chunkSize int) (*models.BatchReport, error) {
	if chunkSize <= 0 {
		chunkSize = s.cfg.CustomerChunkSize
	}
	return s.Run(ctx, s.customers, rows, UpsertOptions{ChunkSize: chunkSize})
}

// Run partitions rows into chunks and processes them strictly in order:
// no call for chunk N+1 is issued before every row of chunk N has an
// outcome. Cancellation stops dispatch; rows never started are reported
// as cancelled so the report still accounts for every input row.
func (s *upsertService) Run(ctx context.Context, client platform.RecordClient, rows []models.ImportRow, opts UpsertOptions) (*models.BatchReport, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyBatch
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = len(rows)
	}

	// The pause between chunks is a rate limiter with a one-chunk burst:
	// the first chunk spends the burst token and starts immediately, every
	// later chunk waits out the interval.
	var limiter *rate.Limiter
	if opts.ChunkPause > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.ChunkPause), 1)
	}

	log := s.log.With().Str("platform", client.Platform()).Logger()
	totalChunks := (len(rows) + opts.ChunkSize - 1) / opts.ChunkSize
	outcomes := make([]models.RowOutcome, 0, len(rows))

	chunkNo := 0
	for start := 0; start < len(rows); start += opts.ChunkSize {
		chunkNo++
		end := start + opts.ChunkSize
		if end > len(rows) {
			end = len(rows)
		}

		cancelled := ctx.Err() != nil
		if !cancelled && limiter != nil {
			cancelled = limiter.Wait(ctx) != nil
		}
		if cancelled {
			for _, row := range rows[start:] {
				outcomes = append(outcomes, models.RowOutcome{Email: row.Email, Status: models.RowCancelled})
			}
			log.Warn().
				Int("chunk", chunkNo).
				Int("skipped", len(rows)-start).
				Msg("Batch cancelled, remaining rows skipped")
			break
		}

		chunk := rows[start:end]
		outcomes = append(outcomes, s.processChunk(ctx, client, chunk, opts.Concurrency)...)

		log.Debug().
			Int("chunk", chunkNo).
			Int("chunks", totalChunks).
			Int("rows", len(chunk)).
			Msg("Chunk processed")
	}

	report := models.NewBatchReport(outcomes)
	log.Info().
		Int("rows", len(rows)).
		Int("created", report.Summary.Created).
		Int("updated", report.Summary.Updated).
		Int("failed", report.Summary.Failed).
		Int("cancelled", report.Summary.Cancelled).
		Msg("Upsert batch completed")
	return report, nil
}

// processChunk fans the chunk's rows over a fixed-width worker pool and
// gathers outcomes through a channel. Each row contributes exactly one
// outcome regardless of completion order.
func (s *upsertService) processChunk(ctx context.Context, client platform.RecordClient, chunk []models.ImportRow, width int) []models.RowOutcome {
	if width <= 0 || width > len(chunk) {
		width = len(chunk)
	}

	jobs := make(chan models.ImportRow)
	results := make(chan models.RowOutcome, len(chunk))

	var wg sync.WaitGroup
	for i := 0; i < width; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for row := range jobs {
				if ctx.Err() != nil {
					results <- models.RowOutcome{Email: row.Email, Status: models.RowCancelled}
					continue
				}
				results <- s.processRow(ctx, client, row)
			}
		}()
	}

	for i := range chunk {
		jobs <- chunk[i]
	}
	close(jobs)
	wg.Wait()
	close(results)

	outcomes := make([]models.RowOutcome, 0, len(chunk))
	for outcome := range results {
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// processRow resolves one row: lookup by email, then update the existing
// record or create a new one. Creates hitting a username collision are
// retried with derived usernames up to the attempt budget. All failures
// are captured as outcomes; nothing propagates past this boundary.
func (s *upsertService) processRow(ctx context.Context, client platform.RecordClient, row models.ImportRow) models.RowOutcome {
	existing, err := client.FindByEmail(ctx, row.Email)
	if err != nil {
		return failedOutcome(row.Email, err)
	}

	if existing != nil {
		if _, err := client.Update(ctx, existing.ID, &row); err != nil {
			return failedOutcome(row.Email, err)
		}
		return models.RowOutcome{Email: row.Email, Status: models.RowUpdated, RemoteID: existing.ID}
	}

	var created *platform.Record
	policy := retryPolicy{maxAttempts: maxCreateAttempts, retryable: platform.IsUsernameConflict}
	attempts, err := policy.run(ctx, func(attempt int) error {
		username := ""
		if attempt > 0 {
			username = deriveUsername(row.UsernameBase(), attempt)
		}
		record, createErr := client.Create(ctx, &row, username)
		created = record
		return createErr
	})
	if err != nil {
		if platform.IsUsernameConflict(err) {
			return models.RowOutcome{
				Email:  row.Email,
				Status: models.RowFailed,
				Error:  fmt.Sprintf("username conflict persisted after %d attempts", attempts),
			}
		}
		return failedOutcome(row.Email, err)
	}
	return models.RowOutcome{Email: row.Email, Status: models.RowCreated, RemoteID: created.ID}
}

func failedOutcome(email string, err error) models.RowOutcome {
	return models.RowOutcome{Email: email, Status: models.RowFailed, Error: err.Error()}
}
