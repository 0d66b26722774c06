package domain

import "testing"

func TestShippingCost(t *testing.T) {
	cases := []struct {
		name   string
		method ShippingMethod
		units  int
		want   int64
	}{
		{name: "mail single unit", method: ShippingMethodMail, units: 1, want: 50},
		{name: "mail two units", method: ShippingMethodMail, units: 2, want: 60},
		{name: "mail three units", method: ShippingMethodMail, units: 3, want: 70},
		{name: "mail five units", method: ShippingMethodMail, units: 5, want: 90},
		{name: "mail zero units", method: ShippingMethodMail, units: 0, want: 0},
		{name: "pickup is free", method: ShippingMethodPickup, units: 4, want: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ShippingCost(tc.method, tc.units); got != tc.want {
				t.Fatalf("ShippingCost(%q, %d) = %d, want %d", tc.method, tc.units, got, tc.want)
			}
		})
	}
}

func TestComputeTotals(t *testing.T) {
	items := []OrderItem{
		{UnitPrice: 219, Quantity: 3},
	}

	totals := ComputeTotals(items, ShippingMethodMail)
	if totals.Subtotal != 657 {
		t.Fatalf("expected subtotal 657, got %d", totals.Subtotal)
	}
	if totals.Shipping != 70 {
		t.Fatalf("expected shipping 70, got %d", totals.Shipping)
	}
	if totals.Total != 727 {
		t.Fatalf("expected total 727, got %d", totals.Total)
	}
}
