// Package cart owns the transitions of an in-progress sale and the host
// session that serializes them per register.
package cart

import (
	"context"
	"slices"
	"time"

	"github.com/angelmondragon/intellisales-pos/internal/pricing"
	"github.com/angelmondragon/intellisales-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/intellisales-pos/pkg/errors"
	"github.com/angelmondragon/intellisales-pos/pkg/logger"
	"github.com/angelmondragon/intellisales-pos/pkg/metrics"
	"github.com/angelmondragon/intellisales-pos/pkg/types"
	"github.com/shopspring/decimal"
)

// Hooks reaches the persistence layer for transitions that touch storage
// directly: clearing broadcasts, starting a new sale removes the stored entry.
type Hooks interface {
	Broadcast(ctx context.Context, event types.CartSyncEvent) error
	Clear(ctx context.Context) error
}

// Options configures a Machine. Zero values fall back to the wall clock,
// random ids, StandardDefaults and a silent logger.
type Options struct {
	Clock    func() time.Time
	IDs      IDGenerator
	Hooks    Hooks
	Logger   *logger.Logger
	Metrics  *metrics.CartMetrics
	Defaults *Defaults
}

// Machine applies transitions to a host-owned CartState. It keeps no cart of
// its own, so one Machine may serve one session at a time.
type Machine struct {
	now      func() time.Time
	ids      IDGenerator
	hooks    Hooks
	logg     *logger.Logger
	metrics  *metrics.CartMetrics
	defaults Defaults
}

// AddItemInput describes a product selection. A nil UnitPrice uses the
// product price.
type AddItemInput struct {
	Product   types.Product
	Quantity  int
	UnitPrice *decimal.Decimal
	Notes     string
}

// ItemUpdate lists the line fields a caller may change. Nil fields are kept.
type ItemUpdate struct {
	Quantity      *int
	UnitPrice     *decimal.Decimal
	Notes         *string
	DiscountType  *enums.DiscountType
	DiscountValue *decimal.Decimal
}

// SettingsUpdate lists the settings a caller may change. Nil fields are kept.
type SettingsUpdate struct {
	AutoCalculateTax  *bool
	AllowBackorder    *bool
	RoundingPrecision *int32
	TaxIncluded       *bool
}

const (
	opAddItem             = "add_item"
	opUpdateItem          = "update_item"
	opRemoveItem          = "remove_item"
	opClearCart           = "clear_cart"
	opApplyDiscount       = "apply_discount"
	opRemoveDiscount      = "remove_discount"
	opSetCustomer         = "set_customer"
	opAddPaymentMethod    = "add_payment_method"
	opRemovePaymentMethod = "remove_payment_method"
	opSetTaxConfig        = "set_tax_config"
	opUpdateSettings      = "update_settings"
	opSetHold             = "set_hold"
	opCreateNewCart       = "create_new_cart"
)

func NewMachine(opts Options) *Machine {
	m := &Machine{
		now:      opts.Clock,
		ids:      opts.IDs,
		hooks:    opts.Hooks,
		logg:     opts.Logger,
		metrics:  opts.Metrics,
		defaults: StandardDefaults(),
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.ids == nil {
		m.ids = RandomIDs{}
	}
	if m.logg == nil {
		m.logg = logger.Nop()
	}
	if opts.Defaults != nil {
		m.defaults = *opts.Defaults
	}
	return m
}

// NewCart allocates a fresh empty cart with the machine defaults.
func (m *Machine) NewCart(storeID, cashierID string) *types.CartState {
	return NewEmptyCart(m.ids.NewCartID(m.now()), m.now(), storeID, cashierID, m.defaults)
}

// Now exposes the machine clock to collaborators sharing it.
func (m *Machine) Now() time.Time {
	return m.now()
}

// AddItem appends a line, or merges into the line with the same product, unit
// price and notes.
func (m *Machine) AddItem(ctx context.Context, state *types.CartState, input AddItemInput) error {
	if err := requireState(state); err != nil {
		return err
	}

	check := pricing.ValidateQuantity(input.Quantity, input.Product, state.Settings.AllowBackorder)
	if !check.IsValid {
		return m.fail(state, opAddItem, invalidQuantity(check, "Invalid quantity"))
	}

	now := m.now()
	unitPrice := input.Product.Price
	if input.UnitPrice != nil {
		unitPrice = *input.UnitPrice
	}
	taxRate := state.DefaultTaxRate
	if input.Product.TaxRate != nil {
		taxRate = *input.Product.TaxRate
	}

	candidate := types.CartItem{
		Product:   input.Product,
		Quantity:  input.Quantity,
		UnitPrice: unitPrice,
		TaxRate:   taxRate,
		Notes:     input.Notes,
	}

	if idx := slices.IndexFunc(state.Items, func(item types.CartItem) bool {
		return pricing.IsSameCartItem(item, candidate)
	}); idx >= 0 {
		existing := state.Items[idx]
		merged := existing.Quantity + input.Quantity
		check = pricing.ValidateQuantity(merged, input.Product, state.Settings.AllowBackorder)
		if !check.IsValid {
			return m.fail(state, opAddItem, invalidQuantity(check, "Cannot add more of this item"))
		}
		existing.Quantity = merged
		existing.ModifiedAt = now
		pricing.Recalculate(&existing, state.Settings.TaxIncluded)
		state.Items[idx] = existing
	} else {
		candidate.ID = m.ids.NewItemID(input.Product.ID, now)
		candidate.AddedAt = now
		candidate.ModifiedAt = now
		pricing.Recalculate(&candidate, state.Settings.TaxIncluded)
		state.Items = append(state.Items, candidate)
	}

	m.commit(state, opAddItem, now)
	return nil
}

// UpdateItem merges the provided fields into a line and recomputes it.
func (m *Machine) UpdateItem(ctx context.Context, state *types.CartState, itemID string, update ItemUpdate) error {
	if err := requireState(state); err != nil {
		return err
	}

	idx := indexOfItem(state.Items, itemID)
	if idx < 0 {
		return m.fail(state, opUpdateItem, itemNotFound(itemID))
	}
	item := state.Items[idx]

	if update.Quantity != nil {
		check := pricing.ValidateQuantity(*update.Quantity, item.Product, state.Settings.AllowBackorder)
		if !check.IsValid {
			return m.fail(state, opUpdateItem, invalidQuantity(check, "Invalid quantity"))
		}
		item.Quantity = *update.Quantity
	}
	if update.DiscountType != nil {
		if *update.DiscountType != "" && !update.DiscountType.IsItemLevel() {
			return m.fail(state, opUpdateItem, pkgerrors.New(pkgerrors.CodeValidation, "Invalid item discount type").
				WithDetails(map[string]any{"discountType": update.DiscountType.String()}))
		}
		item.DiscountType = *update.DiscountType
	}
	if update.DiscountValue != nil {
		item.DiscountValue = *update.DiscountValue
	}
	if update.UnitPrice != nil {
		item.UnitPrice = *update.UnitPrice
	}
	if update.Notes != nil {
		item.Notes = *update.Notes
	}

	now := m.now()
	item.ModifiedAt = now
	pricing.Recalculate(&item, state.Settings.TaxIncluded)
	state.Items[idx] = item

	m.commit(state, opUpdateItem, now)
	return nil
}

func (m *Machine) RemoveItem(ctx context.Context, state *types.CartState, itemID string) error {
	if err := requireState(state); err != nil {
		return err
	}

	idx := indexOfItem(state.Items, itemID)
	if idx < 0 {
		return m.fail(state, opRemoveItem, itemNotFound(itemID))
	}
	state.Items = slices.Delete(state.Items, idx, idx+1)

	m.commit(state, opRemoveItem, m.now())
	return nil
}

// ClearCart empties the sale but keeps its identity, then announces the clear
// to other contexts. A failed announcement is logged only.
func (m *Machine) ClearCart(ctx context.Context, state *types.CartState) error {
	if err := requireState(state); err != nil {
		return err
	}

	state.Items = []types.CartItem{}
	state.AppliedDiscounts = []types.CartDiscount{}
	state.PaymentMethods = []types.PaymentMethod{}
	state.Customer = nil

	now := m.now()
	m.commit(state, opClearCart, now)

	if m.hooks != nil {
		event := types.CartSyncEvent{
			Type:      enums.SyncEventCartCleared,
			CartID:    state.CartID,
			Timestamp: now.UnixMilli(),
		}
		if err := m.hooks.Broadcast(ctx, event); err != nil {
			m.logg.Error(m.logg.WithCartID(ctx, state.CartID), "cart clear broadcast failed", err)
		}
	}
	return nil
}

func (m *Machine) ApplyDiscount(ctx context.Context, state *types.CartState, discount types.CartDiscount) error {
	if err := requireState(state); err != nil {
		return err
	}

	if !discount.Type.IsValid() {
		return m.fail(state, opApplyDiscount, pkgerrors.New(pkgerrors.CodeValidation, "Invalid discount type").
			WithDetails(map[string]any{"type": discount.Type.String()}))
	}
	if slices.ContainsFunc(state.AppliedDiscounts, func(d types.CartDiscount) bool { return d.ID == discount.ID }) {
		return m.fail(state, opApplyDiscount, pkgerrors.New(pkgerrors.CodeDuplicateDiscount, "Discount already applied").
			WithDetails(map[string]any{"discountId": discount.ID}))
	}
	state.AppliedDiscounts = append(state.AppliedDiscounts, discount)

	m.commit(state, opApplyDiscount, m.now())
	return nil
}

func (m *Machine) RemoveDiscount(ctx context.Context, state *types.CartState, discountID string) error {
	if err := requireState(state); err != nil {
		return err
	}

	idx := slices.IndexFunc(state.AppliedDiscounts, func(d types.CartDiscount) bool { return d.ID == discountID })
	if idx < 0 {
		return m.fail(state, opRemoveDiscount, pkgerrors.New(pkgerrors.CodeDiscountNotFound, "Discount not found").
			WithDetails(map[string]any{"discountId": discountID}))
	}
	state.AppliedDiscounts = slices.Delete(state.AppliedDiscounts, idx, idx+1)

	m.commit(state, opRemoveDiscount, m.now())
	return nil
}

// SetCustomer attaches a customer; nil detaches the current one.
func (m *Machine) SetCustomer(ctx context.Context, state *types.CartState, customer *types.CartCustomer) error {
	if err := requireState(state); err != nil {
		return err
	}

	if customer != nil {
		c := *customer
		customer = &c
	}
	state.Customer = customer

	m.commit(state, opSetCustomer, m.now())
	return nil
}

// AddPaymentMethod appends a tender, replacing one with the same id in place.
func (m *Machine) AddPaymentMethod(ctx context.Context, state *types.CartState, method types.PaymentMethod) error {
	if err := requireState(state); err != nil {
		return err
	}

	if !method.Type.IsValid() {
		return m.fail(state, opAddPaymentMethod, pkgerrors.New(pkgerrors.CodeValidation, "Invalid payment method type").
			WithDetails(map[string]any{"type": method.Type.String()}))
	}
	if idx := indexOfPayment(state.PaymentMethods, method.ID); idx >= 0 {
		state.PaymentMethods[idx] = method
	} else {
		state.PaymentMethods = append(state.PaymentMethods, method)
	}

	m.commit(state, opAddPaymentMethod, m.now())
	return nil
}

// RemovePaymentMethod drops a tender. An unknown id leaves the cart untouched.
func (m *Machine) RemovePaymentMethod(ctx context.Context, state *types.CartState, paymentID string) error {
	if err := requireState(state); err != nil {
		return err
	}

	idx := indexOfPayment(state.PaymentMethods, paymentID)
	if idx < 0 {
		return nil
	}
	state.PaymentMethods = slices.Delete(state.PaymentMethods, idx, idx+1)

	m.commit(state, opRemovePaymentMethod, m.now())
	return nil
}

// SetTaxConfig adopts cfg.Rate as the default rate and re-rates every line.
// Exempt products, and products outside a non-empty category list, get 0.
func (m *Machine) SetTaxConfig(ctx context.Context, state *types.CartState, cfg types.TaxConfig) error {
	if err := requireState(state); err != nil {
		return err
	}

	if cfg.Rate.IsNegative() {
		return m.fail(state, opSetTaxConfig, pkgerrors.New(pkgerrors.CodeValidation, "Tax rate cannot be negative"))
	}

	now := m.now()
	state.TaxConfig = &cfg
	state.DefaultTaxRate = cfg.Rate
	for i := range state.Items {
		state.Items[i].TaxRate = taxRateFor(cfg, state.Items[i].Product)
		state.Items[i].ModifiedAt = now
		pricing.Recalculate(&state.Items[i], state.Settings.TaxIncluded)
	}

	m.commit(state, opSetTaxConfig, now)
	return nil
}

// UpdateSettings merges the provided settings. Toggling tax inclusion
// recomputes every line.
func (m *Machine) UpdateSettings(ctx context.Context, state *types.CartState, update SettingsUpdate) error {
	if err := requireState(state); err != nil {
		return err
	}

	if update.RoundingPrecision != nil && *update.RoundingPrecision < 0 {
		return m.fail(state, opUpdateSettings, pkgerrors.New(pkgerrors.CodeValidation, "Rounding precision cannot be negative"))
	}

	if update.AutoCalculateTax != nil {
		state.Settings.AutoCalculateTax = *update.AutoCalculateTax
	}
	if update.AllowBackorder != nil {
		state.Settings.AllowBackorder = *update.AllowBackorder
	}
	if update.RoundingPrecision != nil {
		state.Settings.RoundingPrecision = *update.RoundingPrecision
	}
	if update.TaxIncluded != nil {
		state.Settings.TaxIncluded = *update.TaxIncluded
		for i := range state.Items {
			pricing.Recalculate(&state.Items[i], state.Settings.TaxIncluded)
		}
	}

	m.commit(state, opUpdateSettings, m.now())
	return nil
}

// SetHold parks the sale with a reason. An empty reason releases it.
func (m *Machine) SetHold(ctx context.Context, state *types.CartState, reason string) error {
	if err := requireState(state); err != nil {
		return err
	}

	state.HoldReason = reason

	m.commit(state, opSetHold, m.now())
	return nil
}

// CreateNewCart replaces state with a fresh empty cart and removes the stored
// entry of the old one. A failed removal is logged only.
func (m *Machine) CreateNewCart(ctx context.Context, state *types.CartState, storeID, cashierID string) error {
	if err := requireState(state); err != nil {
		return err
	}

	previous := state.CartID
	*state = *m.NewCart(storeID, cashierID)
	m.metrics.IncMutation(opCreateNewCart, nil)

	if m.hooks != nil {
		if err := m.hooks.Clear(ctx); err != nil {
			m.logg.Error(m.logg.WithCartID(ctx, previous), "stored cart removal failed", err)
		}
	}
	return nil
}

// MarkSaved clears the dirty flag after a successful save.
func (m *Machine) MarkSaved(state *types.CartState) {
	if state != nil {
		state.IsDirty = false
	}
}

func (m *Machine) commit(state *types.CartState, operation string, now time.Time) {
	state.Totals = pricing.CalculateTotals(state.Items, state.AppliedDiscounts, state.Settings.TaxIncluded, now)
	state.UpdatedAt = now
	state.IsDirty = true
	state.Error = nil
	m.metrics.IncMutation(operation, nil)
}

func (m *Machine) fail(state *types.CartState, operation string, err *pkgerrors.Error) error {
	message := err.Message()
	state.Error = &message
	m.metrics.IncMutation(operation, err)
	return err
}

func requireState(state *types.CartState) error {
	if state == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "cart state is required")
	}
	return nil
}

func invalidQuantity(check pricing.QuantityCheck, fallback string) *pkgerrors.Error {
	message := check.Message
	if message == "" {
		message = fallback
	}
	err := pkgerrors.New(pkgerrors.CodeInvalidQuantity, message)
	if check.AdjustedQuantity != nil {
		err = err.WithDetails(map[string]any{"adjustedQuantity": *check.AdjustedQuantity})
	}
	return err
}

func itemNotFound(itemID string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeItemNotFound, "Item not found in cart").
		WithDetails(map[string]any{"itemId": itemID})
}

func indexOfItem(items []types.CartItem, itemID string) int {
	return slices.IndexFunc(items, func(item types.CartItem) bool { return item.ID == itemID })
}

func indexOfPayment(methods []types.PaymentMethod, paymentID string) int {
	return slices.IndexFunc(methods, func(pm types.PaymentMethod) bool { return pm.ID == paymentID })
}

func taxRateFor(cfg types.TaxConfig, product types.Product) decimal.Decimal {
	if slices.Contains(cfg.ExemptProducts, product.ID) {
		return decimal.Zero
	}
	if len(cfg.ApplicableCategories) > 0 && !slices.Contains(cfg.ApplicableCategories, product.Category) {
		return decimal.Zero
	}
	return cfg.Rate
}
