package duplicates

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("requisitions/duplicates")

// Subject is the requisition being written or inspected.
type Subject struct {
	// CurrentID is nil on create.
	CurrentID *int
	Header    HeaderIDs
	Items     []ItemRow
	Reason    string
}

// WriteOptions carry the per-request knobs of a guarded write.
type WriteOptions struct {
	Transition Transition
	WindowDays int
	Requester  Requester
	// ForceBypass skips the check on explicit caller request only.
	ForceBypass   bool
	CorrelationId string
}

type Evaluator struct {
	finder  *Finder
	matcher Matcher
	cfg     Config
	logger  *logrus.Logger
}

func NewEvaluator(source CandidateSource, cfg Config, logger *logrus.Logger) *Evaluator {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Evaluator{
		finder:  NewFinder(source, cfg),
		matcher: NewMatcher(cfg),
		cfg:     cfg,
		logger:  logger,
	}
}

// EvaluateForWrite runs the guard for a create or update. It returns a
// *ConflictError when duplicates are found and wraps ErrStorageUnavailable
// when candidates cannot be loaded. A nil error means the write may proceed.
func (e *Evaluator) EvaluateForWrite(ctx context.Context, subject Subject, opts WriteOptions) (*Result, error) {
	ctx, span := tracer.Start(ctx, "duplicates.EvaluateForWrite")
	defer span.End()

	if !opts.Transition.RequiresCheck() {
		span.SetAttributes(attribute.Bool("duplicates.applies", false))
		return &Result{WindowDays: e.cfg.ClampWindow(opts.WindowDays), Criteria: e.criteria(subject)}, nil
	}

	if opts.ForceBypass {
		e.logger.WithFields(logrus.Fields{
			"module":         "duplicates",
			"funcName":       "EvaluateForWrite",
			"requisition_id": idOrZero(subject.CurrentID),
			"user_id":        opts.Requester.UserID,
			"write":          opts.Transition.Kind.String(),
			"target_status":  string(opts.Transition.Resolved()),
			"correlation_id": opts.CorrelationId,
		}).Warn("duplicate check bypassed by caller")
		span.SetAttributes(attribute.Bool("duplicates.forced", true))
		return &Result{Forced: true, WindowDays: e.cfg.ClampWindow(opts.WindowDays), Criteria: e.criteria(subject)}, nil
	}

	result, err := e.run(ctx, span, subject, opts.WindowDays, opts.Requester)
	if err != nil {
		return nil, err
	}
	if result.HasDuplicates {
		return result, &ConflictError{Response: result.Conflict()}
	}
	return result, nil
}

// Check runs the same algorithm as a read-only probe; it never blocks.
func (e *Evaluator) Check(ctx context.Context, subject Subject, windowDays int, requester Requester) (*Result, error) {
	ctx, span := tracer.Start(ctx, "duplicates.Check")
	defer span.End()
	return e.run(ctx, span, subject, windowDays, requester)
}

func (e *Evaluator) run(ctx context.Context, span trace.Span, subject Subject, windowDays int, requester Requester) (*Result, error) {
	days := e.cfg.ClampWindow(windowDays)
	candidates, err := e.finder.Find(ctx, subject.CurrentID, subject.Header, days, requester)
	if err != nil {
		span.RecordError(err)
		e.logger.WithFields(logrus.Fields{
			"module":         "duplicates",
			"funcName":       "run",
			"requisition_id": idOrZero(subject.CurrentID),
			"user_id":        requester.UserID,
		}).Error(err.Error())
		return nil, err
	}

	matches := e.matcher.Match(NewSignatureSet(subject.Items), Normalize(subject.Reason), candidates)
	if matches == nil {
		matches = []Match{}
	}
	span.SetAttributes(
		attribute.Int("duplicates.window_days", days),
		attribute.Int("duplicates.candidates", len(candidates)),
		attribute.Int("duplicates.matches", len(matches)),
	)

	return &Result{
		Checked:       true,
		HasDuplicates: len(matches) > 0,
		WindowDays:    days,
		Criteria:      e.criteria(subject),
		Duplicates:    matches,
	}, nil
}

func (e *Evaluator) criteria(subject Subject) Criteria {
	return Criteria{
		HeaderIDs:     subject.Header,
		ItemsCount:    len(subject.Items),
		MinMatchRatio: e.cfg.MinMatchRatio,
	}
}

func idOrZero(id *int) int {
	if id == nil {
		return 0
	}
	return *id
}
