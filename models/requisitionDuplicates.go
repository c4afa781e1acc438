package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/uniadq/requisitions_backend/config"
	"bitbucket.org/uniadq/requisitions_backend/duplicates"
	"bitbucket.org/uniadq/requisitions_backend/utils"
	"gorm.io/gorm"
)

// CandidateSource answers duplicate lookups from the requisitions table.
type CandidateSource struct {
	db *gorm.DB
}

func NewCandidateSource(db *gorm.DB) *CandidateSource {
	return &CandidateSource{db: db}
}

type headerColumn struct {
	column string
	value  *int
}

func headerColumns(h duplicates.HeaderIDs) []headerColumn {
	return []headerColumn{
		{"requesting_department_id", h.RequestingDepartment},
		{"project_id", h.Project},
		{"funding_source_id", h.FundingSource},
		{"budget_unit_id", h.BudgetUnit},
		{"agreement_id", h.Agreement},
		{"tender_id", h.Tender},
		{"external_service_id", h.ExternalService},
	}
}

func (s *CandidateSource) FindCandidates(ctx context.Context, q duplicates.CandidateQuery) ([]duplicates.Candidate, error) {
	if s == nil || s.db == nil {
		return nil, utils.ErrorServiceNotReady
	}

	dbCtx := s.db.WithContext(ctx).
		Where("created_at >= ? AND created_at <= ?", q.Since, q.Until)
	if len(q.ExcludeStatuses) > 0 {
		statuses := make([]string, len(q.ExcludeStatuses))
		for i, st := range q.ExcludeStatuses {
			statuses[i] = string(st)
		}
		dbCtx = dbCtx.Where("status NOT IN ?", statuses)
	}
	if q.ExcludeID != nil {
		dbCtx = dbCtx.Where("id <> ?", *q.ExcludeID)
	}
	if q.OwnerID != nil {
		dbCtx = dbCtx.Where("user_id = ?", *q.OwnerID)
	}
	for _, h := range headerColumns(q.Header) {
		if h.value == nil {
			dbCtx = dbCtx.Where(h.column + " IS NULL")
		} else {
			dbCtx = dbCtx.Where(h.column+" = ?", *h.value)
		}
	}

	var rows []*Requisition
	err := dbCtx.
		Preload("Items").Preload("Items.Description").Preload("Items.Product").
		Order("created_at DESC, id DESC").
		Limit(q.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find duplicate candidates: %w", err)
	}

	candidates := make([]duplicates.Candidate, 0, len(rows))
	for _, r := range rows {
		candidates = append(candidates, duplicates.Candidate{
			ID:        r.ID,
			Status:    r.Status,
			CreatedAt: r.CreatedAt,
			OwnerID:   r.UserId,
			Header:    r.Header(),
			Reason:    r.Reason,
			Items:     itemRows(r.Items),
		})
	}
	return candidates, nil
}

func requesterFromContext(ctx context.Context) duplicates.Requester {
	userId, _ := utils.GetUserIdFromContext(ctx)
	return duplicates.Requester{UserID: userId, Privileged: utils.IsAdmin(ctx)}
}

func newEvaluator(db *gorm.DB) *duplicates.Evaluator {
	return duplicates.NewEvaluator(NewCandidateSource(db), config.DuplicateSettings(), config.GetLogger())
}

// guardDuplicates runs the duplicate check for a write inside tx. A
// *duplicates.ConflictError aborts the transaction.
func guardDuplicates(ctx context.Context, tx *gorm.DB, subject duplicates.Subject, transition duplicates.Transition, opts WriteOptions) (*duplicates.Result, error) {
	force := opts.ForceDuplicates
	if force && !config.ForceDuplicatesAllowed() {
		config.GetLogger().WithField("requisition_id", subject.CurrentID).
			Info("force_duplicates ignored, bypass is disabled")
		force = false
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

	return newEvaluator(tx).EvaluateForWrite(ctx, subject, duplicates.WriteOptions{
		Transition:    transition,
		WindowDays:    opts.WindowDays,
		Requester:     requesterFromContext(ctx),
		ForceBypass:   force,
		CorrelationId: correlationId,
	})
}

// recordForcedBypass leaves an audit row and event when a write skipped the
// duplicate check on request.
func recordForcedBypass(ctx context.Context, tx *gorm.DB, requisition *Requisition, result *duplicates.Result) error {
	if result == nil || !result.Forced {
		return nil
	}
	description := fmt.Sprintf("Duplicate check bypassed for requisition #%d (window %d days).", requisition.ID, result.WindowDays)
	if err := createHistory(tx, HistoryActionForce, requisition.ID, nil, result.Criteria, description); err != nil {
		return err
	}
	return recordRequisitionEvent(ctx, tx, requisition.ID, RequisitionEventForce, nil, requisition)
}

// CheckRequisitionDuplicates runs the duplicate check for a stored
// requisition without blocking anything.
func CheckRequisitionDuplicates(ctx context.Context, id int, windowDays int) (*duplicates.Result, error) {
	requisition, err := GetRequisition(ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if db == nil {
		return nil, utils.ErrorServiceNotReady
	}
	return newEvaluator(db).Check(ctx, requisition.subject(), windowDays, requesterFromContext(ctx))
}

// DuplicatePair is one (requisition, earlier look-alike) hit of an audit scan.
type DuplicatePair struct {
	RequisitionId int
	CreatedAt     time.Time
	UserId        int
	Reason        string
	Match         duplicates.Match
}

// AuditDuplicates re-runs the check over every live requisition created
// since the given time and returns all pairs it would have flagged. Meant for
// offline reporting with an administrator context.
func AuditDuplicates(ctx context.Context, since time.Time, windowDays int) ([]DuplicatePair, error) {
	if !utils.IsAdmin(ctx) {
		return nil, utils.ErrorForbidden
	}
	db := config.GetDB()
	if db == nil {
		return nil, utils.ErrorServiceNotReady
	}

	var rows []*Requisition
	if err := db.WithContext(ctx).
		Where("created_at >= ? AND status <> ?", since, string(RequisitionStatusCancelled)).
		Preload("Items").Preload("Items.Description").Preload("Items.Product").
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	evaluator := newEvaluator(db)
	requester := requesterFromContext(ctx)
	var pairs []DuplicatePair
	for _, r := range rows {
		result, err := evaluator.Check(ctx, r.subject(), windowDays, requester)
		if err != nil {
			return nil, err
		}
		for _, m := range result.Duplicates {
			pairs = append(pairs, DuplicatePair{
				RequisitionId: r.ID,
				CreatedAt:     r.CreatedAt,
				UserId:        r.UserId,
				Reason:        r.Reason,
				Match:         m,
			})
		}
	}
	return pairs, nil
}
