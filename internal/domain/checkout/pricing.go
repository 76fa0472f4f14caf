package checkout

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/nordkart/checkout-api/internal/domain/catalog"
)

// SupportedCurrency is the only currency the store sells in.
const SupportedCurrency = "NOK"

// DefaultShippingID is selected when the caller has not chosen an option.
const DefaultShippingID = "standard"

// NorwayVATRate is the single tax regime this store operates under.
var NorwayVATRate = decimal.RequireFromString("0.25")

// norwegianShippingOptions is the fixed menu offered for deliveries to
// Norway. Amounts are in øre.
var norwegianShippingOptions = []ShippingOption{
	{ID: "standard", Label: "Standard levering", Amount: 4900},
	{ID: "express", Label: "Ekspress levering", Amount: 9900},
}

// LineItemRequest is the caller-supplied, unpriced form of a cart line.
type LineItemRequest struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// PricedLineItem is a cart line joined against the catalog at calculation
// time. Quantity may be clamped down to available stock, never up.
type PricedLineItem struct {
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	UnitPrice int64           `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	VATRate   decimal.Decimal `json:"vat_rate"`
}

// ShippingOption is one entry of the destination-dependent shipping menu.
type ShippingOption struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Amount int64  `json:"amount"`
}

// ShippingAddress carries just enough of an address to pick a shipping and
// tax regime. Country is ISO 3166-1 alpha-2.
type ShippingAddress struct {
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Calculation is the result of one pricing pass over a cart.
type Calculation struct {
	Items            []PricedLineItem
	Subtotal         int64
	ShippingAmount   int64
	VATAmount        int64
	GrandTotal       int64
	ShippingOptions  []ShippingOption
	SelectedShipping string
	Messages         []string
}

// Calculator turns line-item requests into priced line items, shipping, VAT
// and a grand total. It has no state beyond the injected catalog resolver and
// performs exactly one batched catalog call per Calculate.
type Calculator struct {
	catalog catalog.Resolver
}

// NewCalculator returns a Calculator priced against the given catalog.
func NewCalculator(c catalog.Resolver) *Calculator {
	return &Calculator{catalog: c}
}

// Calculate prices the given cart. Unknown SKUs are dropped with a message;
// quantities exceeding stock are clamped with a message. A selected shipping
// id that is not in the computed menu is treated as no selection and falls
// back to the default option. Calculate never mutates its inputs and is
// idempotent for an unchanged catalog.
func (c *Calculator) Calculate(
	ctx context.Context,
	lineItems []LineItemRequest,
	address *ShippingAddress,
	selectedShippingID string,
) (*Calculation, error) {
	// Deduplicate by SKU: the last request for a SKU replaces earlier ones,
	// keeping the position of the first occurrence.
	requests := make([]LineItemRequest, 0, len(lineItems))
	pos := make(map[string]int, len(lineItems))
	for _, li := range lineItems {
		if i, ok := pos[li.SKU]; ok {
			requests[i] = li
			continue
		}
		pos[li.SKU] = len(requests)
		requests = append(requests, li)
	}

	skus := make([]string, len(requests))
	for i, r := range requests {
		skus[i] = r.SKU
	}

	resolved, err := c.catalog.Resolve(ctx, skus)
	if err != nil {
		return nil, errors.Wrap(err, "resolve catalog")
	}

	var (
		items    = make([]PricedLineItem, 0, len(requests))
		messages []string
		subtotal int64
	)
	for _, req := range requests {
		item, ok := resolved[req.SKU]
		if !ok {
			messages = append(messages, fmt.Sprintf("Product %s not found", req.SKU))
			continue
		}

		qty := req.Quantity
		if qty > item.Stock {
			messages = append(messages, fmt.Sprintf("Insufficient stock for %s. Available: %d", item.Name, item.Stock))
			qty = item.Stock
		}

		// Only domestic products carry VAT; with a single supported currency
		// this is effectively always NorwayVATRate.
		rate := decimal.Zero
		if item.Currency == SupportedCurrency {
			rate = NorwayVATRate
		}

		items = append(items, PricedLineItem{
			SKU:       item.SKU,
			Name:      item.Name,
			UnitPrice: item.UnitAmount,
			Quantity:  qty,
			VATRate:   rate,
		})
		subtotal += item.UnitAmount * int64(qty)
	}

	options := shippingMenu(address)
	selected := selectShipping(options, selectedShippingID)

	var shippingAmount int64
	var selectedID string
	if selected != nil {
		shippingAmount = selected.Amount
		selectedID = selected.ID
	}

	// VAT applies to the goods subtotal, rounded half away from zero on
	// minor units.
	vatAmount := decimal.NewFromInt(subtotal).Mul(NorwayVATRate).Round(0).IntPart()

	return &Calculation{
		Items:            items,
		Subtotal:         subtotal,
		ShippingAmount:   shippingAmount,
		VATAmount:        vatAmount,
		GrandTotal:       subtotal + shippingAmount + vatAmount,
		ShippingOptions:  options,
		SelectedShipping: selectedID,
		Messages:         messages,
	}, nil
}

// shippingMenu returns the shipping options available for the destination.
// Unsupported or absent countries get an empty menu.
func shippingMenu(address *ShippingAddress) []ShippingOption {
	if address == nil || address.Country != "NO" {
		return nil
	}
	menu := make([]ShippingOption, len(norwegianShippingOptions))
	copy(menu, norwegianShippingOptions)
	return menu
}

// selectShipping picks the option with the given id from the menu, falling
// back to the default option when the id is empty or not on the menu, and to
// nil when the menu has no default either.
func selectShipping(menu []ShippingOption, id string) *ShippingOption {
	if id != "" {
		for i := range menu {
			if menu[i].ID == id {
				return &menu[i]
			}
		}
	}
	for i := range menu {
		if menu[i].ID == DefaultShippingID {
			return &menu[i]
		}
	}
	return nil
}
