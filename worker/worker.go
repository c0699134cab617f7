// Package worker drains the job queue and runs the extraction pipeline:
// fetch content, extract bibliographic fields with the structured service,
// fall back to the pattern parser when the quality gate rejects the result,
// enrich against CrossRef and persist the document.
package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"ref-mill/config"
	"ref-mill/models"
	"ref-mill/pdftext"
	"ref-mill/providers/crossref"
	"ref-mill/queue"
	"ref-mill/services"
	"ref-mill/storage"
)

// Progress milestones within one job run.
const (
	progressFetched   = 20
	progressText      = 30
	progressExtracted = 70
	progressEnriched  = 80
	progressPersisted = 95
)

// retryBackoff is the base delay before a transiently failed message
// becomes visible again; it doubles per receive.
const retryBackoff = 30 * time.Second

// errUnsupportedKind marks a content kind the pipeline cannot process.
// Retrying cannot change the kind, so the failure is permanent.
var errUnsupportedKind = errors.New("unsupported content kind")

// StructuredExtractor is the structured extraction dependency (GROBID).
type StructuredExtractor interface {
	IsAlive(ctx context.Context) bool
	ExtractHeader(ctx context.Context, pdf []byte) (services.Fields, error)
	ExtractReferences(ctx context.Context, pdf []byte) ([]services.Fields, error)
}

// Enricher is the bibliographic enrichment dependency (CrossRef).
type Enricher interface {
	LookupDOI(ctx context.Context, doi string) (services.Fields, error)
	SearchTitleAuthor(ctx context.Context, title, authors string) (services.Fields, error)
}

// Pool runs a fixed number of workers against the queue.
type Pool struct {
	Config   *config.Config
	Queue    *queue.Queue
	Jobs     *services.JobService
	Docs     *services.DocumentService
	Store    storage.ContentStore
	Grobid   StructuredExtractor // nil when disabled
	Enrich   Enricher            // nil when disabled
	Selector *services.Selector
	Parser   *services.ReferenceParser
	Splitter *services.ReferenceSplitter
	Logger   *zap.Logger

	// ExtractText and ExtractPages are swappable for tests; they default
	// to pdftext.Extract and pdftext.ExtractPages.
	ExtractText  func([]byte) (string, error)
	ExtractPages func([]byte) ([]string, error)
}

// Run starts the worker pool and blocks until ctx is cancelled.
func (p *Pool) Run(ctx context.Context) {
	p.setDefaults()

	var wg sync.WaitGroup
	for i := 0; i < p.Config.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.loop(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) loop(ctx context.Context, id int) {
	log := p.Logger.With(zap.Int("worker", id))
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := p.Queue.Receive()
		if err != nil {
			log.Error("queue receive failed", zap.Error(err))
			p.sleep(ctx, p.Config.PollInterval)
			continue
		}
		if msg == nil {
			p.sleep(ctx, p.Config.PollInterval)
			continue
		}
		p.Process(ctx, msg)
	}
}

func (p *Pool) setDefaults() {
	if p.ExtractText == nil {
		p.ExtractText = pdftext.Extract
	}
	if p.ExtractPages == nil {
		p.ExtractPages = pdftext.ExtractPages
	}
}

func (p *Pool) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

// Process runs one message end to end: at-least-once delivery means the
// job may already be done, in which case the message is acknowledged and
// nothing else happens.
func (p *Pool) Process(ctx context.Context, msg *models.QueueMessage) {
	p.setDefaults()
	log := p.Logger.With(zap.String("job_id", msg.JobID))

	job, err := p.Jobs.Get(msg.JobID)
	if errors.Is(err, services.ErrJobNotFound) {
		log.Warn("message for unknown job, dropping")
		p.ack(msg, log)
		return
	}
	if err != nil {
		log.Error("job lookup failed", zap.Error(err))
		p.release(msg, log)
		return
	}
	if job.Terminal() {
		log.Info("job already terminal, dropping redelivery", zap.String("status", job.Status))
		p.ack(msg, log)
		return
	}

	if err := p.Jobs.MarkProcessing(job.JobID); err != nil {
		log.Error("marking job processing failed", zap.Error(err))
		p.release(msg, log)
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, p.Config.JobTimeout)
	defer cancel()

	var resultSeq *int
	switch job.ContentKind {
	case models.ContentKindPDF:
		resultSeq, err = p.processPDF(jobCtx, job)
	case models.ContentKindReferencesPDF:
		err = p.processReferencesPDF(jobCtx, job)
	case models.ContentKindReferenceText:
		resultSeq, err = p.processReferenceText(jobCtx, job)
	default:
		err = fmt.Errorf("%w %q", errUnsupportedKind, job.ContentKind)
	}

	if err != nil {
		p.finishWithError(msg, job, err, log)
		return
	}

	if err := p.Jobs.Complete(job.JobID, resultSeq); err != nil {
		log.Error("completing job failed", zap.Error(err))
		p.release(msg, log)
		return
	}
	jobsCompleted.Inc()
	p.ack(msg, log)
}

// finishWithError routes a failure: transient errors release the message
// for another attempt, permanent ones fail the job. A transient error on
// the last allowed attempt also fails the job, and the released message is
// parked as a dead letter on its next receive.
func (p *Pool) finishWithError(msg *models.QueueMessage, job *models.Job, err error, log *zap.Logger) {
	if isTransient(err) {
		if msg.ReceiveCount < p.Queue.MaxReceiveCount {
			log.Warn("transient failure, releasing for retry",
				zap.Error(err),
				zap.Int("receive_count", msg.ReceiveCount))
			jobsRetried.Inc()
			p.release(msg, log)
			return
		}
		log.Error("retry budget exhausted", zap.Error(err))
		err = fmt.Errorf("retries exhausted: %w", err)
		if failErr := p.Jobs.Fail(job.JobID, err.Error()); failErr != nil {
			log.Error("failing job failed", zap.Error(failErr))
		}
		jobsFailed.Inc()
		// Released rather than acked so the message lands in the
		// dead-letter set for inspection.
		if relErr := p.Queue.Release(msg.ID, 0); relErr != nil {
			log.Error("release failed", zap.Error(relErr))
		}
		return
	}

	log.Error("permanent failure", zap.Error(err))
	if failErr := p.Jobs.Fail(job.JobID, err.Error()); failErr != nil {
		log.Error("failing job failed", zap.Error(failErr))
	}
	jobsFailed.Inc()
	p.ack(msg, log)
}

func isTransient(err error) bool {
	if errors.Is(err, pdftext.ErrCorrupt) || errors.Is(err, storage.ErrNotFound) || errors.Is(err, errUnsupportedKind) {
		return false
	}
	return true
}

func (p *Pool) ack(msg *models.QueueMessage, log *zap.Logger) {
	if err := p.Queue.Ack(msg.ID); err != nil {
		log.Error("ack failed", zap.Error(err))
	}
}

func (p *Pool) release(msg *models.QueueMessage, log *zap.Logger) {
	delay := retryBackoff << uint(msg.ReceiveCount-1)
	if err := p.Queue.Release(msg.ID, delay); err != nil {
		log.Error("release failed", zap.Error(err))
	}
}

// processPDF extracts the document's own bibliographic record.
func (p *Pool) processPDF(ctx context.Context, job *models.Job) (*int, error) {
	data, err := p.Store.Fetch(ctx, job.ContentKey)
	if err != nil {
		return nil, err
	}
	p.progress(job.JobID, progressFetched)

	text, err := p.ExtractText(data)
	if err != nil {
		return nil, err
	}
	p.progress(job.JobID, progressText)

	var structured *services.ExtractionCandidate
	if p.Grobid != nil {
		if err := p.Jobs.MarkAnalyzing(job.JobID); err != nil {
			return nil, err
		}
		fields, err := p.Grobid.ExtractHeader(ctx, data)
		if err != nil {
			// An unreachable extractor is not fatal, the pattern
			// parser takes over.
			p.Logger.Warn("structured extraction failed, falling back",
				zap.String("job_id", job.JobID),
				zap.Error(err))
		}
		if err == nil && !fields.Empty() {
			structured = &services.ExtractionCandidate{
				Strategy: services.StrategyStructured,
				Fields:   fields,
			}
		}
	}

	// The pattern parser only runs when the structured result misses the
	// quality gate.
	var heuristic *services.ExtractionCandidate
	if structured == nil || p.Selector.Score(structured) < p.Config.QualityThreshold {
		heuristic = &services.ExtractionCandidate{
			Strategy: services.StrategyHeuristic,
			Fields:   p.Parser.ParseHeader(text),
		}
	}

	chosen, lowConfidence := p.Selector.Select(structured, heuristic)
	if lowConfidence {
		heuristicFallbacks.Inc()
	}

	// Extraction finding nothing is not an error. The record is still
	// persisted, and the heuristic choice already carries the
	// low-confidence flag.
	var fields services.Fields
	if chosen != nil {
		fields = chosen.Fields
	}

	// A DOI found in the document beats having none at all. The first
	// page is where journals print it, so it is scanned first.
	if fields.DOI == "" {
		fields.DOI = p.scanDOI(data, text)
	}
	p.progress(job.JobID, progressExtracted)

	fields, enriched := p.enrich(ctx, fields)
	p.progress(job.JobID, progressEnriched)

	doc, err := p.Docs.Upsert(fields, contentHash(data), job.JobID, enriched, lowConfidence)
	if err != nil {
		return nil, err
	}
	documentsStored.Inc()
	p.progress(job.JobID, progressPersisted)
	return &doc.SeqNum, nil
}

// processReferencesPDF extracts every entry of a reference-bearing PDF and
// fans each one out into its own sub-job and document.
func (p *Pool) processReferencesPDF(ctx context.Context, job *models.Job) error {
	data, err := p.Store.Fetch(ctx, job.ContentKey)
	if err != nil {
		return err
	}
	p.progress(job.JobID, progressFetched)

	text, err := p.ExtractText(data)
	if err != nil {
		return err
	}
	p.progress(job.JobID, progressText)

	var structured *services.ExtractionCandidate
	if p.Grobid != nil {
		if err := p.Jobs.MarkAnalyzing(job.JobID); err != nil {
			return err
		}
		refs, err := p.Grobid.ExtractReferences(ctx, data)
		if err != nil {
			p.Logger.Warn("structured extraction failed, falling back",
				zap.String("job_id", job.JobID),
				zap.Error(err))
		}
		if err == nil && len(refs) > 0 {
			structured = &services.ExtractionCandidate{
				Strategy:   services.StrategyStructured,
				References: refs,
			}
		}
	}

	var heuristic *services.ExtractionCandidate
	if structured == nil || p.Selector.Score(structured) < p.Config.QualityThreshold {
		var refs []services.Fields
		for _, raw := range p.Splitter.Split(text) {
			refs = append(refs, p.Parser.Parse(raw))
		}
		if len(refs) > 0 {
			heuristic = &services.ExtractionCandidate{
				Strategy:   services.StrategyHeuristic,
				References: refs,
			}
		}
	}

	chosen, lowConfidence := p.Selector.Select(structured, heuristic)
	if chosen == nil || len(chosen.References) == 0 {
		// A document without a recognizable reference list completes
		// with zero entries rather than failing.
		p.Logger.Warn("no references could be extracted",
			zap.String("job_id", job.JobID))
		p.progress(job.JobID, progressPersisted)
		return nil
	}
	if lowConfidence {
		heuristicFallbacks.Inc()
	}
	p.progress(job.JobID, progressExtracted)

	total := len(chosen.References)
	for i, fields := range chosen.References {
		sub, err := p.Jobs.Create("", job.Filename, models.ContentKindReferenceText, job.JobID)
		if err != nil {
			return err
		}
		if err := p.Jobs.MarkProcessing(sub.JobID); err != nil {
			return err
		}

		fields, enriched := p.enrich(ctx, fields)
		doc, err := p.Docs.Upsert(fields, referenceHash(job.ContentKey, i, fields), sub.JobID, enriched, lowConfidence)
		if err != nil {
			if failErr := p.Jobs.Fail(sub.JobID, err.Error()); failErr != nil {
				p.Logger.Error("failing sub-job failed", zap.Error(failErr))
			}
			return err
		}
		documentsStored.Inc()
		if err := p.Jobs.Complete(sub.JobID, &doc.SeqNum); err != nil {
			return err
		}

		p.progress(job.JobID, progressExtracted+(i+1)*(progressPersisted-progressExtracted)/total)
	}
	return nil
}

// processReferenceText parses one free-text citation submitted directly.
func (p *Pool) processReferenceText(ctx context.Context, job *models.Job) (*int, error) {
	data, err := p.Store.Fetch(ctx, job.ContentKey)
	if err != nil {
		return nil, err
	}
	p.progress(job.JobID, progressFetched)

	fields := p.Parser.Parse(string(data))
	lowConfidence := fields.Empty()
	p.progress(job.JobID, progressExtracted)

	fields, enriched := p.enrich(ctx, fields)
	p.progress(job.JobID, progressEnriched)

	doc, err := p.Docs.Upsert(fields, contentHash(data), job.JobID, enriched, lowConfidence)
	if err != nil {
		return nil, err
	}
	documentsStored.Inc()
	p.progress(job.JobID, progressPersisted)
	return &doc.SeqNum, nil
}

// scanDOI looks for a DOI on the first page, then in the full text when
// page extraction finds nothing.
func (p *Pool) scanDOI(data []byte, text string) string {
	if pages, err := p.ExtractPages(data); err == nil && len(pages) > 0 {
		if doi := services.ExtractDOI(pages[0]); doi != "" {
			return doi
		}
	}
	return services.ExtractDOI(text)
}

// enrich fills gaps from CrossRef. Enrichment never fails a job: lookup
// errors degrade to an unenriched record.
func (p *Pool) enrich(ctx context.Context, fields services.Fields) (services.Fields, bool) {
	if p.Enrich == nil {
		return fields, false
	}

	var remote services.Fields
	var err error
	switch {
	case services.IsCompleteDOI(fields.DOI):
		remote, err = p.Enrich.LookupDOI(ctx, fields.DOI)
	case fields.Title != "":
		remote, err = p.Enrich.SearchTitleAuthor(ctx, fields.Title, fields.Authors)
	default:
		return fields, false
	}

	if errors.Is(err, crossref.ErrNotFound) {
		enrichmentMisses.Inc()
		return fields, false
	}
	if err != nil {
		p.Logger.Warn("enrichment lookup failed, continuing without", zap.Error(err))
		return fields, false
	}

	merged, enriched := services.Merge(fields, remote)
	if enriched {
		enrichmentHits.Inc()
	}
	return merged, enriched
}

func (p *Pool) progress(jobID string, value int) {
	if err := p.Jobs.UpdateProgress(jobID, value); err != nil {
		p.Logger.Warn("progress update failed",
			zap.String("job_id", jobID),
			zap.Error(err))
	}
}

// contentHash is the idempotence key for content-backed jobs.
func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// referenceHash keys one reference out of a reference-bearing PDF. It is
// derived from the source object, the entry's position and its identity,
// so redelivery of the parent job converges on the same rows while two
// sparse entries from the same list stay distinct.
func referenceHash(contentKey string, index int, f services.Fields) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s|%d|%s", contentKey, index, f.Title, f.Year, f.DOI)))
	return hex.EncodeToString(sum[:])
}
