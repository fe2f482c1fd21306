package export

import (
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jmedranoh/go-fulfillment-tracker/internal/reconcile"
	"github.com/jmedranoh/go-fulfillment-tracker/internal/rules"
)

func TestWriteReport(t *testing.T) {
	requested := time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local)
	deadline := rules.Deadline(requested)
	delivered := deadline

	orders := []reconcile.Order{
		{
			OrderID:     "PED-001-F1",
			RequestedAt: &requested,
			Deadline:    &deadline,
			DeliveredAt: &delivered,
			Compliance:  rules.VerdictCompliant,
		},
		{OrderID: "PED-002-F2", Compliance: rules.VerdictPending},
	}

	buf, err := WriteReport(orders)
	if err != nil {
		t.Fatalf("WriteReport: %v", err)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[0][0] != "Pedido" {
		t.Fatalf("header = %v", rows[0])
	}
	if rows[1][0] != "PED-001-F1" || rows[1][4] != string(rules.VerdictCompliant) {
		t.Fatalf("first row = %v", rows[1])
	}
	if rows[1][1] != "2024-01-01 10:00:00" || rows[1][2] != "2024-01-01 10:30:00" {
		t.Fatalf("timestamps = %v", rows[1])
	}
	// Pending order has empty timestamp cells.
	if len(rows[2]) > 1 && rows[2][1] != "" {
		t.Fatalf("pending row should have empty requested cell: %v", rows[2])
	}
}

func TestFilename(t *testing.T) {
	now := time.Date(2024, 3, 15, 13, 45, 30, 0, time.Local)
	if got := Filename(now); got != "Reporte_KPI_Facturas_20240315_134530.xlsx" {
		t.Fatalf("Filename = %q", got)
	}
}

func TestWriteReport_Empty(t *testing.T) {
	buf, err := WriteReport(nil)
	if err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want header only", len(rows))
	}
}
