package enums

// OutboxAggregateType names the entity an outbox event is about.
type OutboxAggregateType string

const (
	AggregateOrder     OutboxAggregateType = "order"
	AggregateProduct   OutboxAggregateType = "product"
	AggregateInventory OutboxAggregateType = "inventory"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateProduct,
	AggregateInventory,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}


// OutboxEventType names a domain event published through the outbox.
type OutboxEventType string

const (
	EventOrderConfirmationRequested OutboxEventType = "order_confirmation_requested"
	EventOrderCancelled             OutboxEventType = "order_cancelled"
	EventLowStockDetected           OutboxEventType = "low_stock_detected"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderConfirmationRequested,
	EventOrderCancelled,
	EventLowStockDetected,
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}
