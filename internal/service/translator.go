package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"lingobridge/internal/audit"
	"lingobridge/internal/constants"
	apperrors "lingobridge/internal/errors"
	"lingobridge/internal/metrics"
	"lingobridge/internal/models"
	"lingobridge/internal/retry"
	"lingobridge/internal/tracing"
	"lingobridge/pkg/translation"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// AuditRecorder persists translation attempts for auditability. Recording
// failures are logged, never propagated.
type AuditRecorder interface {
	RecordAttempt(ctx context.Context, a *audit.Attempt) error
}

// TranslationRequest is one text fragment to translate for one target.
type TranslationRequest struct {
	MessageID  string
	Text       string
	SourceLang string
	TargetLang string
	Context    []translation.ContextMessage
}

// TranslationResult carries the translated text and which path produced it.
// ContextUsed is false when the fallback path served the request; the
// caller appends the fallback marker in that case.
type TranslationResult struct {
	Text        string
	ContextUsed bool
}

// TranslatorConfig tunes the orchestrator. Zero values fall back to the
// package defaults.
type TranslatorConfig struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	MinInterval    time.Duration
	MaxTextLength  int
	StandardBase   time.Duration
	TimeoutBase    time.Duration
}

// TranslationOrchestrator translates one fragment to one target language:
// context-aware primary path first, bounded retries with class-aware
// backoff, then a single plain-MT fallback attempt. All calls to the
// primary translator, from however many concurrent targets, are serialized
// through one dispatch queue that enforces a minimum inter-call interval.
type TranslationOrchestrator struct {
	primary   translation.ContextTranslator
	secondary translation.PlainTranslator
	auditor   AuditRecorder
	backoff   *retry.Backoff
	config    TranslatorConfig
	logger    *logrus.Logger

	jobs      chan *translationJob
	startOnce sync.Once
}

type translationJob struct {
	ctx    context.Context
	req    *TranslationRequest
	result chan primaryOutcome
}

type primaryOutcome struct {
	text     string
	prompt   string
	duration time.Duration
	err      error
}

// NewTranslationOrchestrator wires the two translation paths together.
func NewTranslationOrchestrator(primary translation.ContextTranslator, secondary translation.PlainTranslator, auditor AuditRecorder, cfg TranslatorConfig, logger *logrus.Logger) *TranslationOrchestrator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = constants.DefaultPrimaryMaxAttempts
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = constants.DefaultPrimaryTimeoutSec * time.Second
	}
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = constants.DefaultMaxMessageLength
	}
	if cfg.StandardBase <= 0 {
		cfg.StandardBase = constants.ProviderBackoffBaseSec * time.Second
	}
	if cfg.TimeoutBase <= 0 {
		cfg.TimeoutBase = constants.TimeoutBackoffBaseSec * time.Second
	}

	return &TranslationOrchestrator{
		primary:   primary,
		secondary: secondary,
		auditor:   auditor,
		backoff: retry.NewBackoff(retry.Policy{
			StandardBase: cfg.StandardBase,
			TimeoutBase:  cfg.TimeoutBase,
			MaxDelay:     constants.MaxBackoffSec * time.Second,
			MaxAttempts:  cfg.MaxAttempts,
			Jitter:       false,
		}),
		config: cfg,
		logger: logger,
		jobs:   make(chan *translationJob),
	}
}

// Start launches the dispatch worker. It must be called once before
// Translate; the worker exits when ctx is cancelled.
func (o *TranslationOrchestrator) Start(ctx context.Context) {
	o.startOnce.Do(func() {
		go o.dispatchLoop(ctx)
	})
}

// dispatchLoop is the single consumer of the global primary-translator
// queue. Serialization and the minimum inter-call interval both live here
// so they hold under any fan-out concurrency.
func (o *TranslationOrchestrator) dispatchLoop(ctx context.Context) {
	var lastDispatch time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-o.jobs:
			if !lastDispatch.IsZero() {
				if wait := o.config.MinInterval - time.Since(lastDispatch); wait > 0 {
					select {
					case <-ctx.Done():
						job.result <- primaryOutcome{err: ctx.Err()}
						continue
					case <-time.After(wait):
					}
				}
			}
			lastDispatch = time.Now()

			attemptCtx, cancel := context.WithTimeout(job.ctx, o.config.AttemptTimeout)
			start := time.Now()
			text, prompt, err := o.primary.TranslateWithContext(attemptCtx, job.req.Text, job.req.SourceLang, job.req.TargetLang, job.req.Context)
			cancel()

			job.result <- primaryOutcome{
				text:     text,
				prompt:   prompt,
				duration: time.Since(start),
				err:      err,
			}
		}
	}
}

// Translate runs the full primary-with-retries-then-fallback sequence. It
// never substitutes content on failure; callers decide the degraded
// delivery policy.
func (o *TranslationOrchestrator) Translate(ctx context.Context, req *TranslationRequest) (*TranslationResult, error) {
	ctx, span := tracing.StartSpan(ctx, "translate",
		attribute.String("target_language", req.TargetLang),
	)
	defer span.End()

	if err := o.validate(req); err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	start := time.Now()
	result, err := o.translatePrimary(ctx, req)
	if err == nil {
		metrics.IncrementCounter("translations_total", map[string]string{"provider": "primary", "outcome": "ok"})
		metrics.ObserveTimer("translation_duration", time.Since(start))
		return result, nil
	}

	o.logger.WithFields(logrus.Fields{
		"messageId":      req.MessageID,
		"targetLanguage": req.TargetLang,
	}).WithError(err).Warn("Primary translation exhausted, falling back to plain translation")
	metrics.IncrementCounter("translations_total", map[string]string{"provider": "primary", "outcome": "failed"})

	result, err = o.translateSecondary(ctx, req)
	if err != nil {
		metrics.IncrementCounter("translations_total", map[string]string{"provider": "secondary", "outcome": "failed"})
		tracing.RecordError(ctx, err)
		return nil, apperrors.Wrap(err, apperrors.ErrCodeTranslationFailed, "both translation paths failed")
	}

	metrics.IncrementCounter("translations_total", map[string]string{"provider": "secondary", "outcome": "ok"})
	metrics.ObserveTimer("translation_duration", time.Since(start))
	return result, nil
}

func (o *TranslationOrchestrator) validate(req *TranslationRequest) error {
	if strings.TrimSpace(req.Text) == "" {
		return apperrors.New(apperrors.ErrCodeValidationFailed, "text is empty")
	}
	if len(req.Text) > o.config.MaxTextLength {
		return apperrors.New(apperrors.ErrCodeValidationFailed,
			fmt.Sprintf("text exceeds %d characters", o.config.MaxTextLength))
	}
	if !models.IsSupportedSourceLanguage(req.SourceLang) {
		return apperrors.New(apperrors.ErrCodeValidationFailed,
			fmt.Sprintf("unsupported source language: %s", req.SourceLang))
	}
	if !models.IsSupportedLanguage(req.TargetLang) {
		return apperrors.New(apperrors.ErrCodeValidationFailed,
			fmt.Sprintf("unsupported target language: %s", req.TargetLang))
	}
	return nil
}

func (o *TranslationOrchestrator) translatePrimary(ctx context.Context, req *TranslationRequest) (*TranslationResult, error) {
	var lastErr error

	for attempt := 1; attempt <= o.config.MaxAttempts; attempt++ {
		outcome, err := o.dispatch(ctx, req)
		if err != nil {
			return nil, err
		}

		o.recordAttempt(ctx, req, "primary", attempt, outcome)

		if outcome.err == nil {
			return &TranslationResult{Text: outcome.text, ContextUsed: true}, nil
		}
		lastErr = outcome.err

		if apperrors.IsValidation(outcome.err) {
			return nil, outcome.err
		}
		if attempt == o.config.MaxAttempts {
			break
		}

		class := retry.ClassStandard
		if apperrors.IsTimeout(outcome.err) {
			class = retry.ClassTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(o.backoff.Delay(class, attempt)):
		}
	}

	return nil, lastErr
}

// dispatch submits one primary attempt to the global queue and waits for
// the worker to run it.
func (o *TranslationOrchestrator) dispatch(ctx context.Context, req *TranslationRequest) (primaryOutcome, error) {
	job := &translationJob{
		ctx:    ctx,
		req:    req,
		result: make(chan primaryOutcome, 1),
	}

	select {
	case <-ctx.Done():
		return primaryOutcome{}, ctx.Err()
	case o.jobs <- job:
	}

	select {
	case <-ctx.Done():
		return primaryOutcome{}, ctx.Err()
	case outcome := <-job.result:
		return outcome, nil
	}
}

func (o *TranslationOrchestrator) translateSecondary(ctx context.Context, req *TranslationRequest) (*TranslationResult, error) {
	start := time.Now()
	text, err := o.secondary.TranslatePlain(ctx, req.Text, req.SourceLang, req.TargetLang)

	outcome := primaryOutcome{text: text, prompt: req.Text, duration: time.Since(start), err: err}
	o.recordAttempt(ctx, req, "secondary", 1, outcome)

	if err != nil {
		return nil, err
	}
	return &TranslationResult{Text: text, ContextUsed: false}, nil
}

func (o *TranslationOrchestrator) recordAttempt(ctx context.Context, req *TranslationRequest, provider string, attempt int, outcome primaryOutcome) {
	if o.auditor == nil {
		return
	}

	record := &audit.Attempt{
		MessageID:      req.MessageID,
		TargetLanguage: req.TargetLang,
		Provider:       provider,
		Attempt:        attempt,
		Prompt:         outcome.prompt,
		Response:       outcome.text,
		Duration:       outcome.duration,
	}
	if outcome.err != nil {
		record.Error = outcome.err.Error()
	}

	if err := o.auditor.RecordAttempt(ctx, record); err != nil {
		o.logger.WithFields(logrus.Fields{
			"messageId": req.MessageID,
			"provider":  provider,
			"attempt":   attempt,
		}).WithError(err).Warn("Failed to record translation attempt")
	}
}
