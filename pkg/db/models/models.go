package models

// All lists every persisted model, in dependency order, for schema bootstrap
// on databases that are not managed by SQL migrations (sqlite dev and tests).
func All() []any {
	return []any{
		&Product{},
		&ProductVariation{},
		&InventoryTransaction{},
		&Order{},
		&OrderLineItem{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
