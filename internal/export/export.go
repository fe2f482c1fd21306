// Package export renders the reconciled order view as an xlsx download.
// It is a read-only projection; nothing here mutates state.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jmedranoh/go-fulfillment-tracker/internal/reconcile"
	"github.com/jmedranoh/go-fulfillment-tracker/internal/rules"
)

// SheetName matches the report tab the operations team expects.
const SheetName = "KPI_Facturas"

var header = []interface{}{"Pedido", "Fecha Solicitada", "Hora Limite", "Fecha Entregada", "Cumplimiento"}

// WriteReport builds the workbook in memory.
func WriteReport(orders []reconcile.Order) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(SheetName)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, o := range orders {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("row coordinates: %w", err)
		}
		row := []interface{}{
			o.OrderID,
			formatOptional(o.RequestedAt),
			formatOptional(o.Deadline),
			formatOptional(o.DeliveredAt),
			string(o.Compliance),
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf, nil
}

// Filename returns the timestamped download name for a report generated now.
func Filename(now time.Time) string {
	return fmt.Sprintf("Reporte_KPI_Facturas_%s.xlsx", now.Format("20060102_150405"))
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return rules.FormatTimestamp(*t)
}
