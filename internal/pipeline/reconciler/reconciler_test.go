package reconciler

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilsonmesquita03/licitahub-sub000/internal/domain/event"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/domain/model"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/pipeline/resolver"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/pncp"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/store"
)

type fakeTenderRepo struct {
	existing  map[string]store.TenderRef
	inserted  [][]*model.Tender
	updated   []*model.Tender
	insertErr error
	// skipOnInsert simulates collision-skip: rows already present are not
	// counted as inserted.
	skipOnInsert map[string]bool
}

func (f *fakeTenderRepo) ExistingByControlNumbers(_ context.Context, controlNumbers []string) (map[string]store.TenderRef, error) {
	out := make(map[string]store.TenderRef)
	for _, cn := range controlNumbers {
		if ref, ok := f.existing[cn]; ok {
			out[cn] = ref
		}
	}
	return out, nil
}

func (f *fakeTenderRepo) BulkInsert(_ context.Context, tenders []*model.Tender) (int, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.inserted = append(f.inserted, tenders)
	n := 0
	for _, t := range tenders {
		if !f.skipOnInsert[t.ControlNumber] {
			n++
		}
	}
	return n, nil
}

func (f *fakeTenderRepo) Update(_ context.Context, t *model.Tender) error {
	f.updated = append(f.updated, t)
	return nil
}

type fakeFollowerRepo struct {
	followers map[string][]model.TenderFollower
	err       error
}

func (f *fakeFollowerRepo) EligibleByControlNumber(_ context.Context, controlNumber string) ([]model.TenderFollower, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.followers[controlNumber], nil
}

type fakeTransport struct {
	published []event.TenderChanged
	err       error
}

func (f *fakeTransport) Publish(_ context.Context, ev event.TenderChanged) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, ev)
	return nil
}

func (f *fakeTransport) Consume(ctx context.Context) (event.TenderChanged, error) {
	<-ctx.Done()
	return event.TenderChanged{}, ctx.Err()
}

func (f *fakeTransport) Close() error { return nil }

func fullResolution(unitCode, taxID string, basisCode int) *resolver.Resolution {
	return &resolver.Resolution{
		UnitIDs:   map[string]uuid.UUID{unitCode: uuid.New()},
		EntityIDs: map[string]uuid.UUID{taxID: uuid.New()},
		BasisIDs:  map[int]uuid.UUID{basisCode: uuid.New()},
	}
}

func validRecord(control string) pncp.Record {
	v := 150000.50
	return pncp.Record{
		ControlNumber:       control,
		PurchaseObject:      "Aquisição de material de escritório",
		ModalityName:        "Pregão - Eletrônico",
		EstimatedTotalValue: &v,
		GlobalUpdateDate:    "2024-01-15T10:30:00",
		Unit:                &pncp.UnitRef{UnitCode: "1234"},
		Entity:              &pncp.EntityRef{TaxID: "00394460000141"},
		LegalBasis:          &pncp.LegalBasisRef{Code: 1},
	}
}

func newReconciler(tenders *fakeTenderRepo, followers *fakeFollowerRepo, transport *fakeTransport) *Reconciler {
	return New(tenders, followers, transport, nil)
}

func TestReconcilePage_CreateMode(t *testing.T) {
	tenders := &fakeTenderRepo{}
	rec := newReconciler(tenders, &fakeFollowerRepo{}, &fakeTransport{})

	result, err := rec.ReconcilePage(context.Background(),
		[]pncp.Record{validRecord("c-1"), validRecord("c-2")},
		fullResolution("1234", "00394460000141", 1),
		ModeCreate,
	)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Created)
	assert.Zero(t, result.Updated)
	require.Len(t, tenders.inserted, 1)
	assert.Len(t, tenders.inserted[0], 2)
}

func TestReconcilePage_CreateModeCollisionSkipNotCounted(t *testing.T) {
	tenders := &fakeTenderRepo{skipOnInsert: map[string]bool{"c-1": true}}
	rec := newReconciler(tenders, &fakeFollowerRepo{}, &fakeTransport{})

	result, err := rec.ReconcilePage(context.Background(),
		[]pncp.Record{validRecord("c-1"), validRecord("c-2")},
		fullResolution("1234", "00394460000141", 1),
		ModeCreate,
	)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
}

func TestReconcilePage_RejectionReasons(t *testing.T) {
	res := fullResolution("1234", "00394460000141", 1)

	noControl := validRecord("")

	huge := validRecord("c-huge")
	v := 1e20
	huge.EstimatedTotalValue = &v

	nan := validRecord("c-nan")
	n := math.NaN()
	nan.ApprovedTotalValue = &n

	noUnit := validRecord("c-nounit")
	noUnit.Unit = nil

	unknownUnit := validRecord("c-badunit")
	unknownUnit.Unit = &pncp.UnitRef{UnitCode: "9999"}

	noEntity := validRecord("c-noentity")
	noEntity.Entity = nil

	noBasis := validRecord("c-nobasis")
	noBasis.LegalBasis = nil

	badDate := validRecord("c-baddate")
	badDate.GlobalUpdateDate = "15/01/2024"

	tenders := &fakeTenderRepo{}
	rec := newReconciler(tenders, &fakeFollowerRepo{}, &fakeTransport{})

	result, err := rec.ReconcilePage(context.Background(),
		[]pncp.Record{noControl, huge, nan, noUnit, unknownUnit, noEntity, noBasis, badDate},
		res, ModeCreate,
	)
	require.NoError(t, err)

	assert.Zero(t, result.Created)
	assert.Empty(t, tenders.inserted)
	assert.Equal(t, 1, result.Rejected[ReasonMissingControlNumber])
	assert.Equal(t, 2, result.Rejected[ReasonMonetaryOutOfRange])
	assert.Equal(t, 2, result.Rejected[ReasonMissingUnit])
	assert.Equal(t, 1, result.Rejected[ReasonMissingEntity])
	assert.Equal(t, 1, result.Rejected[ReasonMissingLegalBasis])
	assert.Equal(t, 1, result.Rejected[ReasonInvalidGlobalUpdateDate])
	assert.Equal(t, 8, result.RejectedTotal())
}

func TestReconcilePage_RejectionDoesNotAbortPage(t *testing.T) {
	tenders := &fakeTenderRepo{}
	rec := newReconciler(tenders, &fakeFollowerRepo{}, &fakeTransport{})

	bad := validRecord("c-bad")
	v := math.Inf(1)
	bad.EstimatedTotalValue = &v

	result, err := rec.ReconcilePage(context.Background(),
		[]pncp.Record{bad, validRecord("c-ok")},
		fullResolution("1234", "00394460000141", 1),
		ModeCreate,
	)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.RejectedTotal())
}

func TestReconcilePage_MonetaryBoundaryAccepted(t *testing.T) {
	tenders := &fakeTenderRepo{}
	rec := newReconciler(tenders, &fakeFollowerRepo{}, &fakeTransport{})

	r := validRecord("c-1")
	v := float64(math.MaxInt32)
	r.EstimatedTotalValue = &v
	r.ApprovedTotalValue = nil

	result, err := rec.ReconcilePage(context.Background(),
		[]pncp.Record{r},
		fullResolution("1234", "00394460000141", 1),
		ModeCreate,
	)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
}

func TestReconcilePage_DeltaUnchangedEmitsNothing(t *testing.T) {
	sameDate, err := time.Parse("2006-01-02T15:04:05", "2024-01-15T10:30:00")
	require.NoError(t, err)

	tenders := &fakeTenderRepo{
		existing: map[string]store.TenderRef{
			"c-1": {ID: uuid.New(), GlobalUpdateDate: sameDate},
		},
	}
	transport := &fakeTransport{}
	rec := newReconciler(tenders, &fakeFollowerRepo{}, transport)

	result, err := rec.ReconcilePage(context.Background(),
		[]pncp.Record{validRecord("c-1")},
		fullResolution("1234", "00394460000141", 1),
		ModeDelta,
	)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Unchanged)
	assert.Zero(t, result.Updated)
	assert.Empty(t, tenders.updated)
	assert.Empty(t, transport.published)
}

func TestReconcilePage_DeltaChangedUpdatesAndEmits(t *testing.T) {
	oldDate, err := time.Parse("2006-01-02T15:04:05", "2024-01-10T08:00:00")
	require.NoError(t, err)
	existingID := uuid.New()

	tenders := &fakeTenderRepo{
		existing: map[string]store.TenderRef{
			"c-1": {ID: existingID, GlobalUpdateDate: oldDate},
		},
	}
	followers := &fakeFollowerRepo{
		followers: map[string][]model.TenderFollower{
			"c-1": {{Name: "Maria", Email: "maria@example.com", Notify: true}},
		},
	}
	transport := &fakeTransport{}
	rec := newReconciler(tenders, followers, transport)

	result, err := rec.ReconcilePage(context.Background(),
		[]pncp.Record{validRecord("c-1")},
		fullResolution("1234", "00394460000141", 1),
		ModeDelta,
	)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Updated)
	require.Len(t, tenders.updated, 1)
	assert.Equal(t, existingID, tenders.updated[0].ID)

	require.Len(t, transport.published, 1)
	ev := transport.published[0]
	assert.Equal(t, existingID, ev.TenderID)
	assert.Equal(t, "c-1", ev.ControlNumber)
	require.Len(t, ev.Followers, 1)
	assert.Equal(t, "maria@example.com", ev.Followers[0].Email)
}

func TestReconcilePage_DeltaUnknownControlNumberCreated(t *testing.T) {
	tenders := &fakeTenderRepo{existing: map[string]store.TenderRef{}}
	rec := newReconciler(tenders, &fakeFollowerRepo{}, &fakeTransport{})

	result, err := rec.ReconcilePage(context.Background(),
		[]pncp.Record{validRecord("c-new")},
		fullResolution("1234", "00394460000141", 1),
		ModeDelta,
	)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	assert.Zero(t, result.Updated)
	require.Len(t, tenders.inserted, 1)
}

func TestReconcilePage_PublishFailureDoesNotFailUpdate(t *testing.T) {
	oldDate := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	tenders := &fakeTenderRepo{
		existing: map[string]store.TenderRef{
			"c-1": {ID: uuid.New(), GlobalUpdateDate: oldDate},
		},
	}
	transport := &fakeTransport{err: errors.New("stream down")}
	rec := newReconciler(tenders, &fakeFollowerRepo{}, transport)

	result, err := rec.ReconcilePage(context.Background(),
		[]pncp.Record{validRecord("c-1")},
		fullResolution("1234", "00394460000141", 1),
		ModeDelta,
	)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
}

func TestReconcilePage_FollowerLookupFailureDoesNotFailUpdate(t *testing.T) {
	oldDate := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	tenders := &fakeTenderRepo{
		existing: map[string]store.TenderRef{
			"c-1": {ID: uuid.New(), GlobalUpdateDate: oldDate},
		},
	}
	transport := &fakeTransport{}
	rec := newReconciler(tenders, &fakeFollowerRepo{err: errors.New("db gone")}, transport)

	result, err := rec.ReconcilePage(context.Background(),
		[]pncp.Record{validRecord("c-1")},
		fullResolution("1234", "00394460000141", 1),
		ModeDelta,
	)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Empty(t, transport.published)
}

func TestParseSourceTime(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"2024-01-15T10:30:00", true},
		{"2024-01-15T10:30:00.123456789", true},
		{"2024-01-15T10:30:00Z", true},
		{"2024-01-15", true},
		{"", false},
		{"15/01/2024", false},
		{"not a date", false},
	}
	for _, tt := range tests {
		got := parseSourceTime(tt.in)
		if tt.want {
			assert.NotNil(t, got, tt.in)
		} else {
			assert.Nil(t, got, tt.in)
		}
	}
}

func TestMonetaryValueOK(t *testing.T) {
	ok := func(v float64) bool { return monetaryValueOK(&v) }

	assert.True(t, monetaryValueOK(nil))
	assert.True(t, ok(0))
	assert.True(t, ok(150000.50))
	assert.True(t, ok(math.MaxInt32))
	assert.True(t, ok(math.MinInt32))
	assert.False(t, ok(math.MaxInt32+1))
	assert.False(t, ok(1e20))
	assert.False(t, ok(math.NaN()))
	assert.False(t, ok(math.Inf(-1)))
}
