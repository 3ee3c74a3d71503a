package purchasing

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Drak-01/stock-saas-sub001/internal/fixed"
	"github.com/Drak-01/stock-saas-sub001/internal/shared"
	"github.com/Drak-01/stock-saas-sub001/internal/stock"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]PurchaseOrder, error)
}

// StockPort exposes the ledger integration used on order and receipt.
type StockPort interface {
	ApplyDelta(ctx context.Context, input stock.DeltaInput) (stock.Location, error)
	AdjustOrdered(ctx context.Context, input stock.DeltaInput) (stock.Location, error)
}

// ActivityPort records order mutations.
type ActivityPort interface {
	Record(ctx context.Context, act shared.Activity) error
}

// IdempotencyPort claims receipt keys. Claims made inside the receipt's
// unit of work roll back with it.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
}

// Service drives the purchase order state machine and its stock-ledger
// side effects. Ledger calls made inside an order's unit of work join the
// order's transaction, so receipt, movement and earmark commit together.
type Service struct {
	repo        RepositoryPort
	stock       StockPort
	activity    ActivityPort
	idempotency IdempotencyPort
	events      IntegrationHandler
	validate    *validator.Validate
}

// NewService constructs the purchasing service.
func NewService(repo RepositoryPort, ledger StockPort, activity ActivityPort, idem IdempotencyPort) *Service {
	return &Service{repo: repo, stock: ledger, activity: activity, idempotency: idem, validate: validator.New()}
}

// SetIntegrationHandler registers the downstream receipt consumer.
func (s *Service) SetIntegrationHandler(h IntegrationHandler) {
	s.events = h
}

// LineInput describes one order line.
type LineInput struct {
	ProductID       int64         `validate:"required,gt=0"`
	WarehouseID     int64         `validate:"gte=0"`
	QuantityOrdered fixed.Decimal `validate:"-"`
	UnitPrice       fixed.Decimal `validate:"-"`
	TaxRate         fixed.Decimal `validate:"-"`
	ExpectedDate    *time.Time
}

// CreateInput describes the order creation payload.
type CreateInput struct {
	SupplierID   int64 `validate:"required,gt=0"`
	Number       string
	OrderDate    time.Time
	ExpectedDate time.Time
	Note         string
	Lines        []LineInput `validate:"dive"`
}

// UpdateInput replaces the draft order's header fields and line set.
type UpdateInput struct {
	SupplierID   int64 `validate:"required,gt=0"`
	ExpectedDate time.Time
	Note         string
	Lines        []LineInput `validate:"dive"`
}

// ReceiveInput describes one line receipt.
type ReceiveInput struct {
	OrderID        int64
	LineID         int64
	Quantity       fixed.Decimal
	Date           time.Time
	IdempotencyKey string
	Actor          shared.Actor
}

// ListFilter narrows order listings.
type ListFilter struct {
	SupplierID int64
	Status     Status
	Limit      int
}

// Create persists a draft order with its lines in one unit of work. A
// draft may be created without lines; submit enforces completeness.
func (s *Service) Create(ctx context.Context, input CreateInput, actor shared.Actor) (PurchaseOrder, error) {
	if err := s.validate.Struct(input); err != nil {
		return PurchaseOrder{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	lines, err := buildLines(0, input.Lines)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if input.Number == "" {
		input.Number = generateNumber("PO")
	}
	order := PurchaseOrder{
		Number:       input.Number,
		SupplierID:   input.SupplierID,
		Status:       StatusDraft,
		OrderDate:    defaultTime(input.OrderDate),
		ExpectedDate: input.ExpectedDate,
		Note:         input.Note,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id
		for i := range lines {
			lines[i].OrderID = id
			lineID, err := tx.InsertLine(ctx, lines[i])
			if err != nil {
				return err
			}
			lines[i].ID = lineID
		}
		order.Lines = lines
		return s.record(ctx, "po.create", order.ID, nil, order.Snapshot(), actor)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	return order, nil
}

// UpdateDraft replaces the header fields and the whole line set
// atomically: remove all, re-add. Only drafts are editable.
func (s *Service) UpdateDraft(ctx context.Context, orderID int64, input UpdateInput, actor shared.Actor) (PurchaseOrder, error) {
	if err := s.validate.Struct(input); err != nil {
		return PurchaseOrder{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	lines, err := buildLines(orderID, input.Lines)
	if err != nil {
		return PurchaseOrder{}, err
	}

	var updated PurchaseOrder
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return &TransitionError{OrderID: orderID, Action: "edit", Status: current.Status}
		}
		before := current.Snapshot()
		updated = current
		updated.SupplierID = input.SupplierID
		updated.ExpectedDate = input.ExpectedDate
		updated.Note = input.Note
		if err := tx.UpdateOrderHeader(ctx, updated); err != nil {
			return err
		}
		if err := tx.DeleteLines(ctx, orderID); err != nil {
			return err
		}
		for i := range lines {
			lineID, err := tx.InsertLine(ctx, lines[i])
			if err != nil {
				return err
			}
			lines[i].ID = lineID
		}
		updated.Lines = lines
		return s.record(ctx, "po.update", orderID, before, updated.Snapshot(), actor)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	return updated, nil
}

// Submit moves a complete draft to pending approval. Every structural
// violation is reported at once.
func (s *Service) Submit(ctx context.Context, orderID int64, actor shared.Actor) error {
	return s.transition(ctx, orderID, "submit", actor, func(order *PurchaseOrder, tx TxRepository) error {
		if order.Status != StatusDraft {
			return &TransitionError{OrderID: orderID, Action: "submit", Status: order.Status}
		}
		if violations := Validate(*order); len(violations) > 0 {
			return &ValidationError{Violations: violations}
		}
		order.Status = StatusPendingApproval
		return tx.UpdateStatus(ctx, orderID, StatusPendingApproval)
	})
}

// Approve records the approver identity and timestamp.
func (s *Service) Approve(ctx context.Context, orderID int64, actor shared.Actor) error {
	now := time.Now().UTC()
	return s.transition(ctx, orderID, "approve", actor, func(order *PurchaseOrder, tx TxRepository) error {
		if order.Status != StatusPendingApproval {
			return &TransitionError{OrderID: orderID, Action: "approve", Status: order.Status}
		}
		order.Status = StatusApproved
		order.ApprovedBy = &actor.ID
		order.ApprovedAt = &now
		if err := tx.UpdateStatus(ctx, orderID, StatusApproved); err != nil {
			return err
		}
		return tx.SetApproval(ctx, orderID, actor.ID, now)
	})
}

// MarkOrdered sends the approved order to the supplier and earmarks the
// incoming quantities on the stock ledger.
func (s *Service) MarkOrdered(ctx context.Context, orderID int64, actor shared.Actor) error {
	return s.transition(ctx, orderID, "mark_ordered", actor, func(order *PurchaseOrder, tx TxRepository) error {
		if order.Status != StatusApproved {
			return &TransitionError{OrderID: orderID, Action: "mark_ordered", Status: order.Status}
		}
		order.Status = StatusOrdered
		if err := tx.UpdateStatus(ctx, orderID, StatusOrdered); err != nil {
			return err
		}
		for _, line := range order.Lines {
			if line.WarehouseID == 0 {
				continue
			}
			if _, err := s.stock.AdjustOrdered(ctx, stock.DeltaInput{
				ProductID:   line.ProductID,
				WarehouseID: line.WarehouseID,
				Delta:       line.QuantityOrdered,
				Reason:      fmt.Sprintf("PO %s ordered", order.Number),
				RefModule:   "PURCHASING",
				RefID:       lineRef(order.ID, line.ID).String(),
				Actor:       actor,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// Receive books a partial or full receipt against one line. The order row
// is locked for the duration, so concurrent receipts on the same order
// serialize and the remaining-quantity guard never races a stale read.
// The ledger delta and earmark release join the same transaction as the
// line update: either the whole receipt commits or none of it does.
func (s *Service) Receive(ctx context.Context, input ReceiveInput) (PurchaseOrder, error) {
	if !input.Quantity.IsPositive() {
		return PurchaseOrder{}, fmt.Errorf("%w: receive quantity must be > 0", ErrValidation)
	}
	var updated PurchaseOrder
	var event *LineReceivedEvent
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// The key claim rides the receipt transaction: a failed receipt
		// releases its key on rollback and stays retryable.
		if input.IdempotencyKey != "" && s.idempotency != nil {
			if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, "purchasing.receive"); err != nil {
				return err
			}
		}
		order, err := tx.GetOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if !order.Status.Receivable() {
			return &TransitionError{OrderID: order.ID, Action: "receive", Status: order.Status}
		}
		before := order.Snapshot()
		idx := -1
		for i := range order.Lines {
			if order.Lines[i].ID == input.LineID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: line %d", ErrNotFound, input.LineID)
		}
		line := &order.Lines[idx]
		remaining := line.Remaining()
		if input.Quantity.Cmp(remaining) > 0 {
			return &OverReceiptError{LineID: line.ID, Remaining: remaining, Requested: input.Quantity}
		}
		line.QuantityReceived = line.QuantityReceived.Add(input.Quantity, fixed.ScaleQuantity)
		if err := tx.UpdateLineReceived(ctx, line.ID, line.QuantityReceived); err != nil {
			return err
		}

		if line.WarehouseID != 0 {
			price := line.UnitPrice
			ref := lineRef(order.ID, line.ID).String()
			if _, err := s.stock.ApplyDelta(ctx, stock.DeltaInput{
				ProductID:   line.ProductID,
				WarehouseID: line.WarehouseID,
				Delta:       input.Quantity,
				UnitCost:    &price,
				Reason:      fmt.Sprintf("PO %s receipt", order.Number),
				RefModule:   "PURCHASING",
				RefID:       ref,
				Actor:       input.Actor,
			}); err != nil {
				return err
			}
			// Release the matching slice of the incoming earmark.
			if _, err := s.stock.AdjustOrdered(ctx, stock.DeltaInput{
				ProductID:   line.ProductID,
				WarehouseID: line.WarehouseID,
				Delta:       input.Quantity.Neg(),
				Reason:      fmt.Sprintf("PO %s receipt", order.Number),
				RefModule:   "PURCHASING",
				RefID:       ref,
				Actor:       input.Actor,
			}); err != nil {
				return err
			}
		}

		order.Status = receiptStatus(order.Lines)
		if err := tx.UpdateStatus(ctx, order.ID, order.Status); err != nil {
			return err
		}
		updated = order
		event = &LineReceivedEvent{
			OrderID:     order.ID,
			OrderNumber: order.Number,
			LineID:      line.ID,
			ProductID:   line.ProductID,
			WarehouseID: line.WarehouseID,
			Quantity:    input.Quantity,
			UnitPrice:   line.UnitPrice,
			ReceivedAt:  defaultTime(input.Date),
		}
		return s.record(ctx, "po.receive", order.ID, before, order.Snapshot(), input.Actor)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	if s.events != nil && event != nil {
		_ = s.events.HandleLineReceived(ctx, *event)
	}
	return updated, nil
}

// ReceiveAll receives the full remaining quantity on every open line.
// Line receipts are independent; each one is atomic on its own.
func (s *Service) ReceiveAll(ctx context.Context, orderID int64, date time.Time, actor shared.Actor) (PurchaseOrder, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if !order.Status.Receivable() {
		return PurchaseOrder{}, &TransitionError{OrderID: orderID, Action: "receive", Status: order.Status}
	}
	result := order
	for _, line := range order.Lines {
		remaining := line.Remaining()
		if !remaining.IsPositive() {
			continue
		}
		result, err = s.Receive(ctx, ReceiveInput{
			OrderID:  orderID,
			LineID:   line.ID,
			Quantity: remaining,
			Date:     date,
			Actor:    actor,
		})
		if err != nil {
			return PurchaseOrder{}, err
		}
	}
	return result, nil
}

// Cancel aborts a non-terminal order and releases any outstanding
// incoming earmarks.
func (s *Service) Cancel(ctx context.Context, orderID int64, reason string, actor shared.Actor) error {
	return s.transition(ctx, orderID, "cancel", actor, func(order *PurchaseOrder, tx TxRepository) error {
		if order.Status.Terminal() {
			return &TransitionError{OrderID: orderID, Action: "cancel", Status: order.Status}
		}
		wasOrdered := order.Status.Receivable()
		order.Status = StatusCancelled
		order.CancelReason = reason
		if err := tx.SetCancelled(ctx, orderID, reason); err != nil {
			return err
		}
		if !wasOrdered {
			return nil
		}
		for _, line := range order.Lines {
			if line.WarehouseID == 0 {
				continue
			}
			remaining := line.Remaining()
			if !remaining.IsPositive() {
				continue
			}
			if _, err := s.stock.AdjustOrdered(ctx, stock.DeltaInput{
				ProductID:   line.ProductID,
				WarehouseID: line.WarehouseID,
				Delta:       remaining.Neg(),
				Reason:      fmt.Sprintf("PO %s cancelled", order.Number),
				RefModule:   "PURCHASING",
				RefID:       lineRef(order.ID, line.ID).String(),
				Actor:       actor,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close finishes a fully received order. Closed orders accept no further
// mutation.
func (s *Service) Close(ctx context.Context, orderID int64, actor shared.Actor) error {
	return s.transition(ctx, orderID, "close", actor, func(order *PurchaseOrder, tx TxRepository) error {
		if order.Status != StatusReceived {
			return &TransitionError{OrderID: orderID, Action: "close", Status: order.Status}
		}
		order.Status = StatusClosed
		return tx.UpdateStatus(ctx, orderID, StatusClosed)
	})
}

// Delete tombstones a draft. Once submitted an order is part of the
// record and cannot be removed.
func (s *Service) Delete(ctx context.Context, orderID int64, actor shared.Actor) error {
	return s.transition(ctx, orderID, "delete", actor, func(order *PurchaseOrder, tx TxRepository) error {
		if order.Status != StatusDraft {
			return &TransitionError{OrderID: orderID, Action: "delete", Status: order.Status}
		}
		return tx.SoftDelete(ctx, orderID, time.Now().UTC())
	})
}

// Get loads one order with its lines.
func (s *Service) Get(ctx context.Context, orderID int64) (PurchaseOrder, error) {
	return s.repo.GetOrder(ctx, orderID)
}

// List returns orders matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]PurchaseOrder, error) {
	return s.repo.ListOrders(ctx, filter)
}

// Validate is the pure pre-submit check. It returns every violation, not
// just the first.
func Validate(order PurchaseOrder) []string {
	var violations []string
	if len(order.Lines) == 0 {
		violations = append(violations, "order has no lines")
	}
	if order.SupplierID == 0 {
		violations = append(violations, "supplier is required")
	}
	for i, line := range order.Lines {
		if line.ProductID == 0 {
			violations = append(violations, fmt.Sprintf("line %d: product is required", i+1))
		}
		if !line.QuantityOrdered.IsPositive() {
			violations = append(violations, fmt.Sprintf("line %d: ordered quantity must be > 0", i+1))
		}
		if line.UnitPrice.IsNegative() {
			violations = append(violations, fmt.Sprintf("line %d: unit price must be >= 0", i+1))
		}
	}
	return violations
}

// transition loads and locks the order, applies the mutation and records
// the activity, all inside one unit of work.
func (s *Service) transition(ctx context.Context, orderID int64, action string, actor shared.Actor, apply func(*PurchaseOrder, TxRepository) error) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		before := order.Snapshot()
		if err := apply(&order, tx); err != nil {
			return err
		}
		return s.record(ctx, "po."+action, orderID, before, order.Snapshot(), actor)
	})
}

func receiptStatus(lines []Line) Status {
	for _, line := range lines {
		if !line.Complete() {
			return StatusPartiallyReceived
		}
	}
	return StatusReceived
}

func buildLines(orderID int64, inputs []LineInput) ([]Line, error) {
	lines := make([]Line, 0, len(inputs))
	for i, in := range inputs {
		if !in.QuantityOrdered.IsPositive() {
			return nil, fmt.Errorf("%w: line %d ordered quantity must be > 0", ErrValidation, i+1)
		}
		if in.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: line %d unit price must be >= 0", ErrValidation, i+1)
		}
		if in.TaxRate.IsNegative() {
			return nil, fmt.Errorf("%w: line %d tax rate must be >= 0", ErrValidation, i+1)
		}
		lines = append(lines, Line{
			OrderID:          orderID,
			ProductID:        in.ProductID,
			WarehouseID:      in.WarehouseID,
			QuantityOrdered:  in.QuantityOrdered,
			QuantityReceived: fixed.Zero(),
			UnitPrice:        in.UnitPrice,
			TaxRate:          in.TaxRate,
			ExpectedDate:     in.ExpectedDate,
		})
	}
	return lines, nil
}

func (s *Service) record(ctx context.Context, action string, id int64, oldValues, newValues map[string]any, actor shared.Actor) error {
	if s.activity == nil {
		return nil
	}
	return s.activity.Record(ctx, shared.Activity{
		Action:     action,
		EntityType: "purchase_order",
		EntityID:   fmt.Sprintf("%d", id),
		OldValues:  oldValues,
		NewValues:  newValues,
		Actor:      actor,
	})
}

func lineRef(orderID, lineID int64) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("PO:%d:%d", orderID, lineID)))
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func defaultTime(value time.Time) time.Time {
	if value.IsZero() {
		return time.Now().UTC()
	}
	return value
}
