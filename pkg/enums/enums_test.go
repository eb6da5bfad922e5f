package enums

import "testing"

func TestParseTransactionType(t *testing.T) {
	for _, tt := range TransactionTypes() {
		got, err := ParseTransactionType(string(tt))
		if err != nil || got != tt {
			t.Fatalf("expected %q to round trip, got %q err=%v", tt, got, err)
		}
	}
	if _, err := ParseTransactionType("transfer"); err == nil {
		t.Fatal("expected unknown transaction type to fail")
	}
}

func TestOrderStatusCancelable(t *testing.T) {
	cases := map[OrderStatus]bool{
		OrderStatusPending:   true,
		OrderStatusConfirmed: true,
		OrderStatusCancelled: false,
	}
	for status, want := range cases {
		if got := status.Cancelable(); got != want {
			t.Fatalf("status %s cancelable=%v want %v", status, got, want)
		}
	}
}

func TestStockStatusValidity(t *testing.T) {
	if !StockStatusLowStock.IsValid() {
		t.Fatal("low_stock should be valid")
	}
	if StockStatus("backorder").IsValid() {
		t.Fatal("backorder should not be valid")
	}
	if _, err := ParseStockStatus("out_of_stock"); err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
}

func TestLowStockLevelsOrdered(t *testing.T) {
	levels := LowStockLevels()
	if len(levels) != 3 || levels[0] != LowStockOut || levels[2] != LowStockLow {
		t.Fatalf("unexpected level order %v", levels)
	}
	levels[0] = "mutated"
	if LowStockLevels()[0] != LowStockOut {
		t.Fatal("LowStockLevels must return a copy")
	}
}

func TestPaymentStatusRefundDue(t *testing.T) {
	if !PaymentStatusPaid.RefundDue() || PaymentStatusUnpaid.RefundDue() || PaymentStatusRefunded.RefundDue() {
		t.Fatal("only paid orders owe a refund on cancellation")
	}
	if _, err := ParsePaymentStatus("chargeback"); err == nil {
		t.Fatal("expected unknown payment status to fail")
	}
	if got, err := ParsePaymentStatus("refunded"); err != nil || got != PaymentStatusRefunded {
		t.Fatalf("unexpected parse result %q err=%v", got, err)
	}
}

func TestOutboxDLQReasons(t *testing.T) {
	for _, reason := range []OutboxDLQErrorReason{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable, OutboxDLQReasonUnroutable} {
		if !reason.IsValid() {
			t.Fatalf("%s should be valid", reason)
		}
	}
	if OutboxDLQErrorReason("timeout").IsValid() {
		t.Fatal("timeout is not a dlq reason")
	}
	if !OutboxDLQReasonMaxAttempts.Replayable() || OutboxDLQReasonUnroutable.Replayable() {
		t.Fatal("only exhausted attempts are replayable")
	}
}
