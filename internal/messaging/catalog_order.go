package messaging

import (
	"fmt"
	"strconv"
	"strings"
)

// FlattenCatalogOrder renders a catalog cart as order-detail lines so the
// conversation flow can treat it like typed text. The total line is omitted
// when no item has a price.
func FlattenCatalogOrder(order CatalogOrder) []string {
	lines := make([]string, 0, len(order.Items)+2)
	var total float64
	currency := ""
	priced := false
	for _, item := range order.Items {
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		line := fmt.Sprintf("%d x %s", qty, strings.TrimSpace(item.Name))
		if item.Price > 0 {
			priced = true
			total += item.Price * float64(qty)
			if currency == "" {
				currency = item.Currency
			}
			line += " (" + formatAmount(item.Price, item.Currency) + ")"
		}
		lines = append(lines, line)
	}
	if note := strings.TrimSpace(order.Note); note != "" {
		lines = append(lines, "📝 "+note)
	}
	if priced {
		lines = append(lines, "= "+formatAmount(total, currency))
	}
	return lines
}

func formatAmount(v float64, currency string) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	if currency == "" {
		return s
	}
	return s + " " + currency
}
