package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/services"
)

const (
	IngestionQueue = "queue:material-ingestion"

	defaultMaxRetries = 3
	jobLockTTL        = 10 * time.Minute
	jobTimeout        = 5 * time.Minute
	popTimeout        = 5 * time.Second
)

// Enqueue pushes a job onto the ingestion queue.
func Enqueue(ctx context.Context, rdb *redis.Client, job *models.Job) error {
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return rdb.LPush(ctx, IngestionQueue, string(b)).Err()
}

type Pool struct {
	redis       *redis.Client
	courses     *services.CourseService
	content     *services.ContentUpdateService
	fileExtract *services.FileExtractService
	jobs        services.JobStore
	publisher   services.Publisher
	storagePath string
	workerCount int
	log         *logger.Logger

	// requeue schedules a retry; replaced in tests.
	requeue func(job *models.Job, delay time.Duration)
}

func NewPool(
	redisClient *redis.Client,
	courses *services.CourseService,
	content *services.ContentUpdateService,
	fileExtract *services.FileExtractService,
	jobs services.JobStore,
	publisher services.Publisher,
	storagePath string,
	workerCount int,
	log *logger.Logger,
) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	p := &Pool{
		redis:       redisClient,
		courses:     courses,
		content:     content,
		fileExtract: fileExtract,
		jobs:        jobs,
		publisher:   publisher,
		storagePath: storagePath,
		workerCount: workerCount,
		log:         log.With("component", "worker"),
	}
	p.requeue = p.requeueAfter
	return p
}

// Run starts the workers and blocks until ctx is cancelled. A job in
// flight when ctx ends is allowed to finish.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workerCount; i++ {
		id := i
		g.Go(func() error {
			p.worker(ctx, id)
			return nil
		})
	}
	p.log.Info("started ingestion workers", "count", p.workerCount)
	return g.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	log := p.log.With("worker", id)
	for {
		if ctx.Err() != nil {
			log.Debug("worker shutting down")
			return
		}

		result, err := p.redis.BLPop(ctx, popTimeout, IngestionQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			log.Warn("blpop failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Error("failed to parse job", "error", err)
			continue
		}

		lockKey := fmt.Sprintf("job_lock:%s", job.ID)
		locked, err := p.redis.SetNX(ctx, lockKey, id, jobLockTTL).Result()
		if err != nil || !locked {
			continue
		}

		jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), jobTimeout)
		p.handle(jobCtx, &job)
		cancel()

		p.redis.Del(context.WithoutCancel(ctx), lockKey)
	}
}

// handle runs one job attempt and records its outcome.
func (p *Pool) handle(ctx context.Context, job *models.Job) {
	log := p.log.With("job_id", job.ID, "user_id", job.UserID)
	log.Info("processing job", "type", job.Type, "attempt", job.RetryCount+1)

	if err := p.jobs.UpdateStatus(ctx, job.ID, models.JobStatusProcessing); err != nil {
		log.Warn("failed to mark job processing", "error", err)
	}

	var material *models.Material
	var err error
	switch job.Type {
	case models.JobTypeMaterialIngestion:
		material, err = p.ingest(ctx, job)
	default:
		err = &services.ValidationError{Fields: map[string]string{"type": "unknown job type " + job.Type}}
	}

	if err != nil {
		p.handleFailure(ctx, job, err)
		return
	}
	p.handleSuccess(ctx, job, material)
}

func (p *Pool) status(ctx context.Context, job *models.Job, step int, name string) {
	p.publisher.Publish(ctx, job.UserID, models.WSTypeStatusUpdate, models.StatusUpdate{
		JobID:    job.ID,
		Step:     step,
		StepName: name,
	})
}

// ingest extracts the uploaded file, stores it as a material and runs the
// content-arrival update for its week. A retry after the material was
// stored only repeats the update.
func (p *Pool) ingest(ctx context.Context, job *models.Job) (*models.Material, error) {
	var cfg models.IngestionConfig
	if err := json.Unmarshal(job.ConfigJSON, &cfg); err != nil {
		return nil, &services.ValidationError{Fields: map[string]string{"config": "invalid ingestion config"}}
	}

	material, err := p.storedMaterial(ctx, job)
	if err != nil {
		return nil, err
	}

	if material == nil {
		p.status(ctx, job, 1, "Extracting text")
		doc, err := p.fileExtract.ExtractDocument(filepath.Join(p.storagePath, cfg.FilePath), cfg.Filename)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", cfg.Filename, err)
		}

		p.status(ctx, job, 2, "Saving material")
		meta, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("marshal document metadata: %w", err)
		}
		title := strings.TrimSpace(cfg.Title)
		if title == "" {
			title = strings.TrimSuffix(cfg.Filename, filepath.Ext(cfg.Filename))
		}
		filePath := cfg.FilePath
		material, err = p.courses.AddMaterial(ctx, job.UserID, job.CourseID, models.AddMaterialRequest{
			Title:       title,
			ContentType: strings.TrimPrefix(doc.FileExtension, "."),
			ContentText: doc.Text,
			FilePath:    &filePath,
			WeekNumber:  cfg.WeekNumber,
			Topics:      cfg.Topics,
			Metadata:    meta,
		})
		if err != nil {
			return nil, err
		}
		job.MaterialID = &material.ID
		if err := p.jobs.SetMaterial(ctx, job.ID, material.ID); err != nil {
			p.log.Warn("failed to link material to job", "job_id", job.ID, "error", err)
		}
	}

	if material.WeekNumber != nil {
		p.status(ctx, job, 3, "Updating study plan")
	}
	if _, err := p.content.OnMaterialAdded(ctx, material); err != nil {
		return material, err
	}
	return material, nil
}

func (p *Pool) storedMaterial(ctx context.Context, job *models.Job) (*models.Material, error) {
	if job.MaterialID == nil {
		return nil, nil
	}
	m, err := p.courses.GetMaterial(ctx, job.UserID, *job.MaterialID)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.Job, material *models.Material) {
	if err := p.jobs.UpdateStatus(ctx, job.ID, models.JobStatusCompleted); err != nil {
		p.log.Warn("failed to mark job completed", "job_id", job.ID, "error", err)
	}

	var resultID uuid.UUID
	if material != nil {
		resultID = material.ID
	}
	p.publisher.Publish(ctx, job.UserID, models.WSTypeJobCompleted, models.CompletedEvent{
		JobID:      job.ID,
		ResultID:   resultID,
		ResultType: "material",
	})

	p.log.Info("job completed", "job_id", job.ID, "material_id", resultID)
}

// retryable reports whether another attempt could succeed. Input and
// ownership errors never do; a held plan lock clears on its own.
func retryable(err error) bool {
	switch services.ErrorCode(err) {
	case services.CodeInternal, services.CodeConflict:
		return true
	}
	return false
}

// backoff is the delay before attempt n+1: 2s, 4s, ...
func backoff(retryCount int) time.Duration {
	return time.Duration(1<<uint(retryCount)) * time.Second
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()
	maxRetries := job.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	if retryable(err) && job.RetryCount < maxRetries {
		delay := backoff(job.RetryCount)
		p.log.Warn("job failed, retrying", "job_id", job.ID, "attempt", job.RetryCount, "backoff", delay, "error", errMsg)
		p.recordFailure(ctx, job, models.JobStatusPending, errMsg)
		p.requeue(job, delay)
		return
	}

	p.log.Error("job failed permanently", "job_id", job.ID, "attempts", job.RetryCount, "error", errMsg)
	p.recordFailure(ctx, job, models.JobStatusFailed, errMsg)

	code := services.ErrorCode(err)
	if code == services.CodeInternal {
		code = "JOB_FAILED"
	}
	p.publisher.Publish(ctx, job.UserID, models.WSTypeJobFailed, models.ErrorEvent{
		JobID:        job.ID,
		ErrorCode:    code,
		ErrorMessage: errMsg,
	})
}

func (p *Pool) recordFailure(ctx context.Context, job *models.Job, status, errMsg string) {
	if err := p.jobs.UpdateStatus(ctx, job.ID, status); err != nil {
		p.log.Warn("failed to update job status", "job_id", job.ID, "status", status, "error", err)
	}
	if err := p.jobs.UpdateError(ctx, job.ID, errMsg, job.RetryCount); err != nil {
		p.log.Warn("failed to record job error", "job_id", job.ID, "error", err)
	}
}

func (p *Pool) requeueAfter(job *models.Job, delay time.Duration) {
	b, err := json.Marshal(job)
	if err != nil {
		p.log.Error("failed to marshal job for retry", "job_id", job.ID, "error", err)
		return
	}
	time.AfterFunc(delay, func() {
		if err := p.redis.LPush(context.Background(), IngestionQueue, string(b)).Err(); err != nil {
			p.log.Error("failed to requeue job", "job_id", job.ID, "error", err)
		}
	})
}
