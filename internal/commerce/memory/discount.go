package memory

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported discount code strategies.
type DiscountType string

const (
	// DiscountPercentage takes a percentage off the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed takes a fixed amount off, capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
	// DiscountFreeLowest removes the unit price of the cheapest item.
	DiscountFreeLowest DiscountType = "free_lowest"
)

var hundred = decimal.NewFromInt(100)

// DiscountRule is a discount code the backend accepts.
type DiscountRule struct {
	Code     string
	Type     DiscountType
	Value    decimal.Decimal
	MinItems int
}

// pricedItem is a cart line reduced to what discount rules look at.
type pricedItem struct {
	price    decimal.Decimal
	quantity int
}

// apply returns the discount amount of r for items, and false when the cart
// does not qualify.
func (r DiscountRule) apply(items []pricedItem) (decimal.Decimal, bool) {
	if len(items) == 0 {
		return decimal.Zero, false
	}
	if r.MinItems > 0 && totalQuantity(items) < r.MinItems {
		return decimal.Zero, false
	}

	subtotal := calcSubtotal(items)
	var amount decimal.Decimal
	switch r.Type {
	case DiscountPercentage:
		amount = subtotal.Mul(r.Value).Div(hundred)
	case DiscountFixed:
		amount = decimal.Min(r.Value, subtotal)
	case DiscountFreeLowest:
		amount = findLowestUnitPrice(items)
	default:
		return decimal.Zero, false
	}
	return floorAtZero(amount).Round(2), true
}

// discountTotal applies every known code and returns the summed discount,
// capped at the subtotal, plus per-code applicability.
func discountTotal(rules map[string]DiscountRule, codes []string, items []pricedItem) (decimal.Decimal, []bool) {
	subtotal := calcSubtotal(items)
	total := decimal.Zero
	applicable := make([]bool, len(codes))
	for i, code := range codes {
		rule, ok := rules[strings.ToUpper(code)]
		if !ok {
			continue
		}
		amount, ok := rule.apply(items)
		if !ok {
			continue
		}
		applicable[i] = true
		total = total.Add(amount)
	}
	return decimal.Min(total, subtotal), applicable
}

func calcSubtotal(items []pricedItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.price.Mul(decimal.NewFromInt(int64(item.quantity))))
	}
	return sum
}

func totalQuantity(items []pricedItem) int {
	total := 0
	for _, item := range items {
		total += item.quantity
	}
	return total
}

func findLowestUnitPrice(items []pricedItem) decimal.Decimal {
	lowest := items[0].price
	for _, item := range items[1:] {
		if item.price.LessThan(lowest) {
			lowest = item.price
		}
	}
	return lowest
}

func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
