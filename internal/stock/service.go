package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Drak-01/stock-saas-sub001/internal/fixed"
	"github.com/Drak-01/stock-saas-sub001/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetLocations(ctx context.Context, productID int64) ([]Location, error)
	GetMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	HasMovementsSince(ctx context.Context, productID int64, since time.Time) (bool, error)
}

// PolicyPort resolves the per-warehouse negative-stock policy.
type PolicyPort interface {
	AllowNegativeStock(ctx context.Context, warehouseID int64) (bool, error)
}

// CatalogPort resolves product cost prices for valuation fallback.
type CatalogPort interface {
	CostPrice(ctx context.Context, productID int64) (*fixed.Decimal, error)
}

// ActivityPort records stock mutations.
type ActivityPort interface {
	Record(ctx context.Context, act shared.Activity) error
}

// MovementObserver counts committed ledger movements by referring module.
type MovementObserver interface {
	ObserveMovement(refModule string)
}

// Service is the stock ledger: it applies deltas under the negative-stock
// policy, maintains earmark quantities and serves valuations.
type Service struct {
	repo     RepositoryPort
	policy   PolicyPort
	catalog  CatalogPort
	activity ActivityPort
	observer MovementObserver
}

// NewService builds the ledger service.
func NewService(repo RepositoryPort, policy PolicyPort, catalog CatalogPort, activity ActivityPort) *Service {
	return &Service{repo: repo, policy: policy, catalog: catalog, activity: activity}
}

// SetMovementObserver registers the metrics sink for posted movements.
func (s *Service) SetMovementObserver(o MovementObserver) {
	s.observer = o
}

// ApplyDelta mutates on-hand stock for one (product, warehouse) pair in a
// single all-or-nothing unit of work. The location row is created lazily
// and locked for the duration; a delta that would take on-hand negative in
// a warehouse that forbids it fails with ErrNegativeStock and leaves the
// location untouched.
func (s *Service) ApplyDelta(ctx context.Context, input DeltaInput) (Location, error) {
	if input.ProductID == 0 || input.WarehouseID == 0 {
		return Location{}, errors.New("stock: warehouse and product required")
	}
	if input.Delta.IsZero() {
		return Location{}, ErrInvalidQuantity
	}
	if input.UnitCost != nil && input.UnitCost.IsNegative() {
		return Location{}, ErrInvalidUnitCost
	}
	allowNeg, err := s.allowNegative(ctx, input.WarehouseID)
	if err != nil {
		return Location{}, err
	}

	var updated Location
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		loc, err := getOrCreateLocation(ctx, tx, input.WarehouseID, input.ProductID)
		if err != nil {
			return err
		}
		before := loc.Snapshot()
		newOnHand := loc.OnHand.Add(input.Delta, fixed.ScaleQuantity)
		if newOnHand.IsNegative() && !allowNeg {
			return ErrNegativeStock
		}
		loc.AvgCost = nextAvgCost(loc, input.Delta, input.UnitCost, newOnHand)
		loc.OnHand = newOnHand
		if err := tx.UpsertLocation(ctx, loc); err != nil {
			return err
		}
		if _, err := tx.InsertMovement(ctx, Movement{
			ProductID:   input.ProductID,
			WarehouseID: input.WarehouseID,
			Delta:       input.Delta,
			UnitCost:    input.UnitCost,
			Reason:      input.Reason,
			RefModule:   input.RefModule,
			RefID:       input.RefID,
			PostedAt:    time.Now().UTC(),
			ActorID:     input.Actor.ID,
		}); err != nil {
			return err
		}
		updated = loc
		return s.record(ctx, "stock.delta", loc, before, input.Actor)
	})
	if err != nil {
		return Location{}, err
	}
	s.observeMovement(input.RefModule)
	return updated, nil
}

// AdjustOrdered raises or lowers the incoming-on-order quantity. The
// ordered quantity may not go negative.
func (s *Service) AdjustOrdered(ctx context.Context, input DeltaInput) (Location, error) {
	return s.adjustEarmark(ctx, input, "stock.ordered", func(loc *Location, delta fixed.Decimal) error {
		next := loc.Ordered.Add(delta, fixed.ScaleQuantity)
		if next.IsNegative() {
			return ErrInvalidQuantity
		}
		loc.Ordered = next
		return nil
	})
}

// AdjustReserved raises or lowers the outgoing earmark quantity. The
// reserved quantity may not go negative.
func (s *Service) AdjustReserved(ctx context.Context, input DeltaInput) (Location, error) {
	return s.adjustEarmark(ctx, input, "stock.reserved", func(loc *Location, delta fixed.Decimal) error {
		next := loc.Reserved.Add(delta, fixed.ScaleQuantity)
		if next.IsNegative() {
			return ErrInvalidQuantity
		}
		loc.Reserved = next
		return nil
	})
}

func (s *Service) adjustEarmark(ctx context.Context, input DeltaInput, action string, apply func(*Location, fixed.Decimal) error) (Location, error) {
	if input.ProductID == 0 || input.WarehouseID == 0 {
		return Location{}, errors.New("stock: warehouse and product required")
	}
	if input.Delta.IsZero() {
		return Location{}, ErrInvalidQuantity
	}
	var updated Location
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		loc, err := getOrCreateLocation(ctx, tx, input.WarehouseID, input.ProductID)
		if err != nil {
			return err
		}
		before := loc.Snapshot()
		if err := apply(&loc, input.Delta); err != nil {
			return err
		}
		if err := tx.UpsertLocation(ctx, loc); err != nil {
			return err
		}
		updated = loc
		return s.record(ctx, action, loc, before, input.Actor)
	})
	if err != nil {
		return Location{}, err
	}
	return updated, nil
}

// Transfer moves stock between warehouses inside one unit of work: an
// outbound delta at the source followed by an inbound at the destination.
// Either both legs commit or neither does.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (Location, Location, error) {
	if input.ProductID == 0 || input.SrcWarehouse == 0 || input.DstWarehouse == 0 {
		return Location{}, Location{}, errors.New("stock: warehouse and product required")
	}
	if input.SrcWarehouse == input.DstWarehouse {
		return Location{}, Location{}, errors.New("stock: source and destination warehouse must differ")
	}
	if !input.Quantity.IsPositive() {
		return Location{}, Location{}, ErrInvalidQuantity
	}
	allowNeg, err := s.allowNegative(ctx, input.SrcWarehouse)
	if err != nil {
		return Location{}, Location{}, err
	}

	var src, dst Location
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		out, err := getOrCreateLocation(ctx, tx, input.SrcWarehouse, input.ProductID)
		if err != nil {
			return err
		}
		outBefore := out.Snapshot()
		newOnHand := out.OnHand.Sub(input.Quantity, fixed.ScaleQuantity)
		if newOnHand.IsNegative() && !allowNeg {
			return ErrNegativeStock
		}
		// The transfer leg is costed at the source's average.
		legCost := out.AvgCost
		out.OnHand = newOnHand
		if err := tx.UpsertLocation(ctx, out); err != nil {
			return err
		}

		in, err := getOrCreateLocation(ctx, tx, input.DstWarehouse, input.ProductID)
		if err != nil {
			return err
		}
		inBefore := in.Snapshot()
		newIn := in.OnHand.Add(input.Quantity, fixed.ScaleQuantity)
		in.AvgCost = nextAvgCost(in, input.Quantity, legCost, newIn)
		in.OnHand = newIn
		if err := tx.UpsertLocation(ctx, in); err != nil {
			return err
		}

		now := time.Now().UTC()
		outMove := Movement{
			ProductID:   input.ProductID,
			WarehouseID: input.SrcWarehouse,
			Delta:       input.Quantity.Neg(),
			UnitCost:    legCost,
			Reason:      fmt.Sprintf("transfer to %d: %s", input.DstWarehouse, input.Reason),
			RefModule:   "STOCK",
			PostedAt:    now,
			ActorID:     input.Actor.ID,
		}
		inMove := Movement{
			ProductID:   input.ProductID,
			WarehouseID: input.DstWarehouse,
			Delta:       input.Quantity,
			UnitCost:    legCost,
			Reason:      fmt.Sprintf("transfer from %d: %s", input.SrcWarehouse, input.Reason),
			RefModule:   "STOCK",
			PostedAt:    now,
			ActorID:     input.Actor.ID,
		}
		if _, err := tx.InsertMovement(ctx, outMove); err != nil {
			return err
		}
		if _, err := tx.InsertMovement(ctx, inMove); err != nil {
			return err
		}
		src, dst = out, in
		if err := s.record(ctx, "stock.transfer_out", out, outBefore, input.Actor); err != nil {
			return err
		}
		return s.record(ctx, "stock.transfer_in", in, inBefore, input.Actor)
	})
	if err != nil {
		return Location{}, Location{}, err
	}
	// One observation per posted movement, both transfer legs.
	s.observeMovement("STOCK")
	s.observeMovement("STOCK")
	return src, dst, nil
}

// TotalStockValue sums on-hand value across all warehouses holding the
// product. Warehouses without cost information contribute an unknown
// marker; one unknown with stock on hand makes the grand total unknown.
func (s *Service) TotalStockValue(ctx context.Context, productID int64) (Valuation, error) {
	locations, err := s.repo.GetLocations(ctx, productID)
	if err != nil {
		return Valuation{}, err
	}
	var fallback *fixed.Decimal
	if s.catalog != nil {
		fallback, err = s.catalog.CostPrice(ctx, productID)
		if err != nil {
			return Valuation{}, err
		}
	}

	valuation := Valuation{ProductID: productID}
	total := fixed.Zero()
	known := true
	for _, loc := range locations {
		cost := loc.AvgCost
		if cost == nil {
			cost = fallback
		}
		entry := WarehouseValue{WarehouseID: loc.WarehouseID, OnHand: loc.OnHand, AvgCost: cost}
		if cost != nil {
			v := loc.OnHand.Mul(*cost, fixed.ScaleMoney)
			entry.Value = &v
			total = total.Add(v, fixed.ScaleMoney)
		} else if !loc.OnHand.IsZero() {
			known = false
		}
		valuation.Breakdown = append(valuation.Breakdown, entry)
	}
	if known {
		valuation.Total = &total
	}
	return valuation, nil
}

// CanDelete reports whether the product may be removed: zero on-hand in
// every warehouse and no movement within the trailing deletion window.
func (s *Service) CanDelete(ctx context.Context, productID int64) (bool, error) {
	locations, err := s.repo.GetLocations(ctx, productID)
	if err != nil {
		return false, err
	}
	for _, loc := range locations {
		if !loc.OnHand.IsZero() {
			return false, nil
		}
	}
	recent, err := s.repo.HasMovementsSince(ctx, productID, time.Now().UTC().Add(-DeletionWindow))
	if err != nil {
		return false, err
	}
	return !recent, nil
}

// MovementHistory lists ledger entries for reporting.
func (s *Service) MovementHistory(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.ProductID == 0 {
		return nil, errors.New("stock: product required")
	}
	return s.repo.GetMovements(ctx, filter)
}

// observeMovement counts when the ledger call returns; a joined outer
// transaction that aborts afterwards is not uncounted.
func (s *Service) observeMovement(refModule string) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveMovement(refModule)
}

func (s *Service) allowNegative(ctx context.Context, warehouseID int64) (bool, error) {
	if s.policy == nil {
		return false, nil
	}
	return s.policy.AllowNegativeStock(ctx, warehouseID)
}

// nextAvgCost maintains the moving average: costed inbounds re-average,
// issues consume at the current average, and a drained location keeps its
// last known average for history.
func nextAvgCost(loc Location, delta fixed.Decimal, unitCost *fixed.Decimal, newOnHand fixed.Decimal) *fixed.Decimal {
	if !delta.IsPositive() || unitCost == nil {
		return loc.AvgCost
	}
	if loc.AvgCost == nil || loc.OnHand.Sign() <= 0 || newOnHand.IsZero() {
		c := *unitCost
		return &c
	}
	oldValue := loc.OnHand.Mul(*loc.AvgCost, fixed.ScaleMoney)
	addedValue := delta.Mul(*unitCost, fixed.ScaleMoney)
	avg, err := oldValue.Add(addedValue, fixed.ScaleMoney).Div(newOnHand, fixed.ScaleMoney)
	if err != nil {
		return loc.AvgCost
	}
	return &avg
}

func getOrCreateLocation(ctx context.Context, tx TxRepository, warehouseID, productID int64) (Location, error) {
	loc, err := tx.GetLocationForUpdate(ctx, warehouseID, productID)
	if err == nil {
		return loc, nil
	}
	if !errors.Is(err, ErrLocationNotFound) {
		return Location{}, err
	}
	return tx.CreateLocation(ctx, Location{WarehouseID: warehouseID, ProductID: productID})
}

func (s *Service) record(ctx context.Context, action string, loc Location, before map[string]any, actor shared.Actor) error {
	if s.activity == nil {
		return nil
	}
	return s.activity.Record(ctx, shared.Activity{
		Action:     action,
		EntityType: "stock_location",
		EntityID:   fmt.Sprintf("%d:%d", loc.WarehouseID, loc.ProductID),
		OldValues:  before,
		NewValues:  loc.Snapshot(),
		Actor:      actor,
	})
}
