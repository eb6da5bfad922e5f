package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// InventoryMetrics counts stock mutations and the failure modes around them.
// A nil *InventoryMetrics is valid and records nothing.
type InventoryMetrics struct {
	mutations      *prometheus.CounterVec
	unitsMoved     *prometheus.CounterVec
	ledgerFailures prometheus.Counter
	ledgerReplayed prometheus.Counter
	reserveFails   prometheus.Counter
	orderOutcomes  *prometheus.CounterVec
	lowStock       *prometheus.GaugeVec
}

// NewInventoryMetrics registers the inventory metrics on the provided registerer.
func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	if reg == nil {
		return &InventoryMetrics{}
	}
	m := &InventoryMetrics{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "inventory_mutations_total",
			Help:      "Stock mutations applied, by transaction type.",
		}, []string{"type"}),
		unitsMoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "inventory_units_moved_total",
			Help:      "Absolute units actually moved by stock mutations, by transaction type.",
		}, []string{"type"}),
		ledgerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "inventory_ledger_write_failures_total",
			Help:      "Ledger entries that could not be written alongside a stock mutation.",
		}),
		ledgerReplayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "inventory_ledger_replayed_total",
			Help:      "Dead-lettered ledger entries written on replay.",
		}),
		reserveFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "inventory_reservation_failures_total",
			Help:      "Stock reservations that failed part way through an order.",
		}),
		orderOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "order_placements_total",
			Help:      "Order placement attempts by terminal outcome.",
		}, []string{"outcome"}),
		lowStock: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "inventory_low_stock_items",
			Help:      "Items at or below the low stock threshold at the last scan, by level.",
		}, []string{"level"}),
	}
	reg.MustRegister(m.mutations, m.unitsMoved, m.ledgerFailures, m.ledgerReplayed, m.reserveFails, m.orderOutcomes, m.lowStock)
	return m
}

// ObserveMutation records one applied stock mutation.
func (m *InventoryMetrics) ObserveMutation(txType string, unitsMoved int) {
	if m == nil || m.mutations == nil {
		return
	}
	label := labelValue(txType)
	m.mutations.WithLabelValues(label).Inc()
	if unitsMoved < 0 {
		unitsMoved = -unitsMoved
	}
	m.unitsMoved.WithLabelValues(label).Add(float64(unitsMoved))
}

// IncLedgerFailure records a ledger entry that was not written.
func (m *InventoryMetrics) IncLedgerFailure() {
	if m == nil || m.ledgerFailures == nil {
		return
	}
	m.ledgerFailures.Inc()
}

// AddLedgerReplayed records dead-lettered ledger entries that were written on replay.
func (m *InventoryMetrics) AddLedgerReplayed(n int) {
	if m == nil || m.ledgerReplayed == nil || n <= 0 {
		return
	}
	m.ledgerReplayed.Add(float64(n))
}

// IncReservationFailure records a reservation that stopped part way.
func (m *InventoryMetrics) IncReservationFailure() {
	if m == nil || m.reserveFails == nil {
		return
	}
	m.reserveFails.Inc()
}

// IncOrderOutcome records how an order placement attempt ended.
func (m *InventoryMetrics) IncOrderOutcome(outcome string) {
	if m == nil || m.orderOutcomes == nil {
		return
	}
	m.orderOutcomes.WithLabelValues(labelValue(outcome)).Inc()
}

// SetLowStock publishes the item count for a low stock level.
func (m *InventoryMetrics) SetLowStock(level string, count int) {
	if m == nil || m.lowStock == nil {
		return
	}
	m.lowStock.WithLabelValues(labelValue(level)).Set(float64(count))
}
