package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/wilsonmesquita03/licitahub-sub000/internal/domain/event"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/domain/model"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/metrics"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/pipeline/resolver"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/pncp"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/store"
	redisstream "github.com/wilsonmesquita03/licitahub-sub000/internal/store/redis"
)

// Mode selects which reconciliation path a page takes.
type Mode string

const (
	// ModeCreate is the first-ingest path driven by the publication
	// endpoint: every accepted record goes through the collision-skip
	// bulk insert.
	ModeCreate Mode = "create"
	// ModeDelta is the update-endpoint path: known control numbers are
	// compared on globalUpdateDate, unknown ones are routed to creation.
	ModeDelta Mode = "delta"
)

// Rejection reasons surfaced as metric labels. A rejected row is excluded
// from the batch; it never aborts the page.
const (
	ReasonMissingControlNumber    = "missing_control_number"
	ReasonMissingUnit             = "missing_unit"
	ReasonMissingEntity           = "missing_entity"
	ReasonMissingLegalBasis       = "missing_legal_basis"
	ReasonMonetaryOutOfRange      = "monetary_out_of_range"
	ReasonInvalidGlobalUpdateDate = "invalid_global_update_date"
)

// Result aggregates what happened to one page's records.
type Result struct {
	Created   int
	Updated   int
	Unchanged int
	Rejected  map[string]int
}

func (r *Result) reject(reason string) {
	if r.Rejected == nil {
		r.Rejected = make(map[string]int)
	}
	r.Rejected[reason]++
	metrics.ReconcilerRowsRejected.WithLabelValues(reason).Inc()
}

// RejectedTotal is the number of rows excluded from the page's batch.
func (r *Result) RejectedTotal() int {
	total := 0
	for _, n := range r.Rejected {
		total += n
	}
	return total
}

// Reconciler converts raw records into persisted tenders with
// create-or-update semantics. Change notifications leave through the
// message transport and never influence persistence success.
type Reconciler struct {
	tenders   store.TenderRepository
	followers store.FollowerRepository
	transport redisstream.MessageTransport
	logger    *slog.Logger
}

func New(
	tenders store.TenderRepository,
	followers store.FollowerRepository,
	transport redisstream.MessageTransport,
	logger *slog.Logger,
) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		tenders:   tenders,
		followers: followers,
		transport: transport,
		logger:    logger.With("component", "reconciler"),
	}
}

// ReconcilePage vets and maps every record on the page, then applies the
// batch according to mode. The batch is idempotent per control number: a
// retried identical page is a no-op on rows already present.
func (c *Reconciler) ReconcilePage(ctx context.Context, records []pncp.Record, res *resolver.Resolution, mode Mode) (*Result, error) {
	result := &Result{}

	accepted := make([]*model.Tender, 0, len(records))
	for i := range records {
		t, reason := vet(&records[i], res)
		if reason != "" {
			result.reject(reason)
			continue
		}
		accepted = append(accepted, t)
	}

	if len(accepted) == 0 {
		return result, nil
	}

	switch mode {
	case ModeCreate:
		inserted, err := c.tenders.BulkInsert(ctx, accepted)
		if err != nil {
			return result, fmt.Errorf("bulk insert tenders: %w", err)
		}
		result.Created = inserted
		metrics.ReconcilerTendersCreated.Add(float64(inserted))
		return result, nil

	case ModeDelta:
		return c.reconcileDelta(ctx, accepted, result)

	default:
		return result, fmt.Errorf("unknown reconcile mode %q", mode)
	}
}

func (c *Reconciler) reconcileDelta(ctx context.Context, accepted []*model.Tender, result *Result) (*Result, error) {
	controlNumbers := make([]string, len(accepted))
	for i, t := range accepted {
		controlNumbers[i] = t.ControlNumber
	}

	existing, err := c.tenders.ExistingByControlNumbers(ctx, controlNumbers)
	if err != nil {
		return result, fmt.Errorf("lookup existing tenders: %w", err)
	}

	toCreate := make([]*model.Tender, 0)
	for _, t := range accepted {
		ref, known := existing[t.ControlNumber]
		if !known {
			toCreate = append(toCreate, t)
			continue
		}
		if ref.GlobalUpdateDate.Equal(t.GlobalUpdateDate) {
			result.Unchanged++
			metrics.ReconcilerTendersUnchanged.Inc()
			continue
		}
		t.ID = ref.ID
		if err := c.tenders.Update(ctx, t); err != nil {
			return result, fmt.Errorf("update tender %s: %w", t.ControlNumber, err)
		}
		result.Updated++
		metrics.ReconcilerTendersUpdated.Inc()
		c.emitChanged(ctx, t)
	}

	if len(toCreate) > 0 {
		inserted, err := c.tenders.BulkInsert(ctx, toCreate)
		if err != nil {
			return result, fmt.Errorf("bulk insert new tenders: %w", err)
		}
		result.Created = inserted
		metrics.ReconcilerTendersCreated.Add(float64(inserted))
	}

	return result, nil
}

// emitChanged publishes a TenderChanged event for an updated tender.
// Failures here are logged and counted, never propagated: notification is
// best-effort by contract.
func (c *Reconciler) emitChanged(ctx context.Context, t *model.Tender) {
	followers, err := c.followers.EligibleByControlNumber(ctx, t.ControlNumber)
	if err != nil {
		metrics.ReconcilerEventEmitErrors.Inc()
		c.logger.Warn("follower lookup failed, skipping change event",
			"control_number", t.ControlNumber,
			"error", err,
		)
		return
	}

	recipients := make([]event.Recipient, len(followers))
	for i, f := range followers {
		recipients[i] = event.Recipient{Name: f.Name, Email: f.Email}
	}

	ev := event.TenderChanged{
		TenderID:         t.ID,
		ControlNumber:    t.ControlNumber,
		PurchaseObject:   t.PurchaseObject,
		ModalityName:     t.ModalityName,
		GlobalUpdateDate: t.GlobalUpdateDate,
		Followers:        recipients,
	}

	if err := c.transport.Publish(ctx, ev); err != nil {
		metrics.ReconcilerEventEmitErrors.Inc()
		c.logger.Warn("change event publish failed",
			"control_number", t.ControlNumber,
			"error", err,
		)
		return
	}
	metrics.ReconcilerEventsEmitted.Inc()
}

// vet maps one raw record to the internal form or names the reason it is
// excluded. Exclusion is all-or-nothing: a row missing any of its three
// references is dropped entirely, never partially inserted.
func vet(rec *pncp.Record, res *resolver.Resolution) (*model.Tender, string) {
	if rec.ControlNumber == "" {
		return nil, ReasonMissingControlNumber
	}

	if !monetaryValueOK(rec.EstimatedTotalValue) || !monetaryValueOK(rec.ApprovedTotalValue) {
		return nil, ReasonMonetaryOutOfRange
	}

	if rec.Unit == nil || rec.Unit.UnitCode == "" {
		return nil, ReasonMissingUnit
	}
	unitID, ok := res.UnitIDs[rec.Unit.UnitCode]
	if !ok {
		return nil, ReasonMissingUnit
	}

	if rec.Entity == nil || rec.Entity.TaxID == "" {
		return nil, ReasonMissingEntity
	}
	entityID, ok := res.EntityIDs[rec.Entity.TaxID]
	if !ok {
		return nil, ReasonMissingEntity
	}

	if rec.LegalBasis == nil || rec.LegalBasis.Code == 0 {
		return nil, ReasonMissingLegalBasis
	}
	basisID, ok := res.BasisIDs[rec.LegalBasis.Code]
	if !ok {
		return nil, ReasonMissingLegalBasis
	}

	globalUpdate := parseSourceTime(rec.GlobalUpdateDate)
	if globalUpdate == nil {
		return nil, ReasonInvalidGlobalUpdateDate
	}

	return &model.Tender{
		ControlNumber:        rec.ControlNumber,
		PurchaseNumber:       rec.PurchaseNumber,
		PurchaseYear:         rec.PurchaseYear,
		PurchaseSequence:     rec.PurchaseSequence,
		Process:              rec.Process,
		ModalityID:           rec.ModalityID,
		ModalityName:         rec.ModalityName,
		InstrumentTypeName:   rec.InstrumentTypeName,
		StatusID:             rec.StatusID,
		StatusName:           rec.StatusName,
		PurchaseObject:       rec.PurchaseObject,
		EstimatedTotalValue:  rec.EstimatedTotalValue,
		ApprovedTotalValue:   rec.ApprovedTotalValue,
		InclusionDate:        parseSourceTime(rec.InclusionDate),
		PublicationDate:      parseSourceTime(rec.PublicationDate),
		UpdateDate:           parseSourceTime(rec.UpdateDate),
		ProposalOpeningDate:  parseSourceTime(rec.ProposalOpeningDate),
		ProposalClosingDate:  parseSourceTime(rec.ProposalClosingDate),
		DisputeModeID:        rec.DisputeModeID,
		DisputeModeName:      rec.DisputeModeName,
		SRP:                  rec.SRP,
		UserName:             rec.UserName,
		SourceSystemLink:     rec.SourceSystemLink,
		EProcessLink:         rec.EProcessLink,
		GlobalUpdateDate:     *globalUpdate,
		OrganizationalUnitID: unitID,
		ContractingEntityID:  entityID,
		LegalBasisID:         basisID,
	}, ""
}

// monetaryValueOK bounds monetary fields to the storage column's range.
// Absent values are fine; non-finite or out-of-range ones exclude the row.
func monetaryValueOK(v *float64) bool {
	if v == nil {
		return true
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return false
	}
	return *v >= math.MinInt32 && *v <= math.MaxInt32
}

var sourceTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339,
	"2006-01-02",
}

// parseSourceTime reads the source's timestamp formats. Absent or
// unparsable values come back nil; optional dates store as null, never as
// an invalid date.
func parseSourceTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range sourceTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
