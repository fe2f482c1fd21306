// Package warehouse reads the authoritative set of active outbound orders
// from the WMS SQL Server. It is strictly read-only.
package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/microsoft/go-mssqldb"
)

// ErrSourceUnavailable wraps any connectivity or query failure. Callers treat
// it as "no orders this cycle" instead of crashing.
var ErrSourceUnavailable = errors.New("warehouse unavailable")

// ActiveOrder is one row of the active-order query: the outbound document id
// and the time the warehouse registered it.
type ActiveOrder struct {
	OrderID    string
	ObservedAt time.Time
}

// DateRange bounds the query by registration date, inclusive.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Today returns the single-day range for now. Used when the caller supplies
// no explicit range.
func Today(now time.Time) DateRange {
	return DateRange{Start: now, End: now}
}

// IsZero reports whether the range was left unset.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Shipment status 7 is "ready to invoice"; only document ids with the
// billable suffixes participate in the KPI.
const activeOrdersQuery = `
SELECT
    d.IDDocumentoSalida AS IDDocumentoSalida,
    d.FechaHoraRegistro AS FechaHoraRegistro
FROM DOCUMENTOSALIDA d
INNER JOIN DETALLEEMBARQUE e
    ON d.IDDocumentoSalida = e.IDEmbarque
WHERE e.IDEstadoEmbarque = 7
  AND (
      d.IDDocumentoSalida LIKE '%-F1'
      OR d.IDDocumentoSalida LIKE '%-F1X'
      OR d.IDDocumentoSalida LIKE '%-F2'
  )
  AND CONVERT(date, d.FechaHoraRegistro) BETWEEN @start AND @end
ORDER BY d.FechaHoraRegistro DESC`

// Source queries the warehouse over a shared connection pool.
type Source struct {
	db *sql.DB
}

// Open dials the warehouse. The returned Source owns the pool.
func Open(dsn string) (*Source, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("open warehouse: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Source{db: db}, nil
}

// NewSource wraps an existing pool, mainly for tests.
func NewSource(db *sql.DB) *Source {
	return &Source{db: db}
}

// Close releases the connection pool.
func (s *Source) Close() error {
	return s.db.Close()
}

// FetchActive returns the active orders registered within r, newest first.
// A zero range defaults to today. The caller's context bounds the query.
func (s *Source) FetchActive(ctx context.Context, r DateRange) ([]ActiveOrder, error) {
	if r.IsZero() {
		r = Today(time.Now())
	}

	rows, err := s.db.QueryContext(ctx, activeOrdersQuery,
		sql.Named("start", r.Start.Format("2006-01-02")),
		sql.Named("end", r.End.Format("2006-01-02")),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query active orders: %v", ErrSourceUnavailable, err)
	}
	defer rows.Close()

	var orders []ActiveOrder
	for rows.Next() {
		var o ActiveOrder
		if err := rows.Scan(&o.OrderID, &o.ObservedAt); err != nil {
			return nil, fmt.Errorf("%w: scan active order: %v", ErrSourceUnavailable, err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate active orders: %v", ErrSourceUnavailable, err)
	}
	return orders, nil
}
