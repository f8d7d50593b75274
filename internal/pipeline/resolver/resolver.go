package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/domain/model"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/metrics"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/pncp"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/store"
)

// EntityRepo is the shape shared by the three reference repositories,
// letting one ensure-exist routine serve every entity type.
type EntityRepo[K comparable, E any] interface {
	FindIDsByKeys(ctx context.Context, keys []K) (map[K]uuid.UUID, error)
	BulkInsertMissing(ctx context.Context, entities []E) error
}

// Resolution maps every natural key observed in a page to its internal id.
// A record whose key is absent from the relevant map failed resolution and
// must be excluded downstream.
type Resolution struct {
	UnitIDs   map[string]uuid.UUID
	EntityIDs map[string]uuid.UUID
	BasisIDs  map[int]uuid.UUID
}

// Resolver guarantees that every organizational unit, contracting entity
// and legal basis referenced by a page exists in storage before tenders
// referencing them are written.
type Resolver struct {
	units    store.OrganizationalUnitRepository
	entities store.ContractingEntityRepository
	bases    store.LegalBasisRepository
	logger   *slog.Logger
}

func New(
	units store.OrganizationalUnitRepository,
	entities store.ContractingEntityRepository,
	bases store.LegalBasisRepository,
	logger *slog.Logger,
) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		units:    units,
		entities: entities,
		bases:    bases,
		logger:   logger.With("component", "resolver"),
	}
}

// ResolvePage scans the page once, creates any missing reference rows and
// returns the natural-key lookup for all three entity types. Records
// without a control number are ignored here; the reconciler rejects them.
func (r *Resolver) ResolvePage(ctx context.Context, records []pncp.Record) (*Resolution, error) {
	wantedUnits := make(map[string]*model.OrganizationalUnit)
	wantedEntities := make(map[string]*model.ContractingEntity)
	wantedBases := make(map[int]*model.LegalBasis)

	for i := range records {
		rec := &records[i]
		if rec.ControlNumber == "" {
			continue
		}
		if u := rec.Unit; u != nil && u.UnitCode != "" {
			if _, seen := wantedUnits[u.UnitCode]; !seen {
				wantedUnits[u.UnitCode] = &model.OrganizationalUnit{
					UnitCode:  u.UnitCode,
					Name:      titleCase(u.Name),
					City:      titleCase(u.City),
					StateName: titleCase(u.StateName),
					StateAbbr: strings.ToUpper(u.StateAbbr),
					IBGECode:  u.IBGECode,
				}
			}
		}
		if e := rec.Entity; e != nil && e.TaxID != "" {
			if _, seen := wantedEntities[e.TaxID]; !seen {
				wantedEntities[e.TaxID] = &model.ContractingEntity{
					TaxID:      e.TaxID,
					Name:       titleCase(e.Name),
					BranchCode: e.BranchCode,
					SphereCode: e.SphereCode,
				}
			}
		}
		if b := rec.LegalBasis; b != nil && b.Code != 0 {
			if _, seen := wantedBases[b.Code]; !seen {
				wantedBases[b.Code] = &model.LegalBasis{
					Code:        b.Code,
					Name:        b.Name,
					Description: b.Description,
				}
			}
		}
	}

	unitIDs, err := ensureExist(ctx, r.units, wantedUnits, "organizational_unit")
	if err != nil {
		return nil, fmt.Errorf("resolve organizational units: %w", err)
	}
	entityIDs, err := ensureExist(ctx, r.entities, wantedEntities, "contracting_entity")
	if err != nil {
		return nil, fmt.Errorf("resolve contracting entities: %w", err)
	}
	basisIDs, err := ensureExist(ctx, r.bases, wantedBases, "legal_basis")
	if err != nil {
		return nil, fmt.Errorf("resolve legal bases: %w", err)
	}

	return &Resolution{
		UnitIDs:   unitIDs,
		EntityIDs: entityIDs,
		BasisIDs:  basisIDs,
	}, nil
}

// ensureExist runs the scan/diff/insert/re-query routine for one entity
// type: look up which natural keys already have rows, bulk-insert the
// missing ones with collision-skip, then re-query the full key set so the
// returned map covers every wanted key. Insert races with concurrent runs
// resolve through the unique constraint, not through locking.
func ensureExist[K comparable, E any](
	ctx context.Context,
	repo EntityRepo[K, E],
	wanted map[K]E,
	entityLabel string,
) (map[K]uuid.UUID, error) {
	if len(wanted) == 0 {
		return make(map[K]uuid.UUID), nil
	}

	keys := make([]K, 0, len(wanted))
	for k := range wanted {
		keys = append(keys, k)
	}

	existing, err := repo.FindIDsByKeys(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("lookup existing keys: %w", err)
	}

	missing := make([]E, 0, len(wanted)-len(existing))
	for k, e := range wanted {
		if _, ok := existing[k]; !ok {
			missing = append(missing, e)
		}
	}

	if len(missing) > 0 {
		if err := repo.BulkInsertMissing(ctx, missing); err != nil {
			return nil, fmt.Errorf("insert missing rows: %w", err)
		}
		metrics.ResolverReferencesCreated.WithLabelValues(entityLabel).Add(float64(len(missing)))
	}

	ids, err := repo.FindIDsByKeys(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("re-query keys: %w", err)
	}
	return ids, nil
}

// titleCase normalizes the all-caps names the source emits. Applied only
// at creation time; existing reference rows are never rewritten.
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	for i, w := range words {
		r := []rune(w)
		if len(r) > 0 {
			r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		}
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
