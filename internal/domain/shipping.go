package domain

// Mail shipping is priced per parcel: a flat base for the first garment and a
// smaller increment for each additional one. Pickup is always free.
const (
	MailShippingBase      int64 = 50
	MailShippingIncrement int64 = 10
)

// OrderTotals carries the server-computed monetary summary of a checkout.
type OrderTotals struct {
	Subtotal int64
	Shipping int64
	Total    int64
}

// TotalUnits sums the quantities across all line items.
func TotalUnits(items []OrderItem) int {
	units := 0
	for _, item := range items {
		units += item.Quantity
	}
	return units
}

// Subtotal sums unit price times quantity across all line items.
func Subtotal(items []OrderItem) int64 {
	var sum int64
	for _, item := range items {
		sum += item.UnitPrice * int64(item.Quantity)
	}
	return sum
}

// ShippingCost applies the shipping policy for the given method and unit count.
// Pickup is free. Mail costs the base fee for the first unit plus the
// increment for every further unit, and zero when there are no units.
func ShippingCost(method ShippingMethod, totalUnits int) int64 {
	if method != ShippingMethodMail || totalUnits <= 0 {
		return 0
	}
	return MailShippingBase + int64(totalUnits-1)*MailShippingIncrement
}

// ComputeTotals derives subtotal, shipping and grand total for a set of items.
func ComputeTotals(items []OrderItem, method ShippingMethod) OrderTotals {
	subtotal := Subtotal(items)
	shipping := ShippingCost(method, TotalUnits(items))
	return OrderTotals{
		Subtotal: subtotal,
		Shipping: shipping,
		Total:    subtotal + shipping,
	}
}
