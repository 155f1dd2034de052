package pharmacy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REPORTS - Read-only queries over the Ledger
// =============================================================================

type ReportKind string

const (
	ReportLowStock   ReportKind = "low-stock"
	ReportExpired    ReportKind = "expired"
	ReportControlled ReportKind = "controlled"
	ReportSales      ReportKind = "sales"
)

func ParseReportKind(s string) (ReportKind, error) {
	switch k := ReportKind(s); k {
	case ReportLowStock, ReportExpired, ReportControlled, ReportSales:
		return k, nil
	}
	return "", invalid("report", fmt.Sprintf("%q is not one of low-stock, expired, controlled, sales", s))
}

// PaymentTotal is the sales for one payment type.
type PaymentTotal struct {
	PaymentType PaymentType
	Count       int
	Total       decimal.Decimal
}

type SalesSummary struct {
	Count     int
	Total     decimal.Decimal
	ByPayment []PaymentTotal
}

// Report is the result of one report run. Medicines is set for the stock
// reports, Sales for the sales report.
type Report struct {
	Kind        ReportKind
	GeneratedAt time.Time
	Medicines   []Medicine
	Sales       *SalesSummary
}

// Report runs the report of the given kind as of now.
func (l *Ledger) Report(kind ReportKind, now time.Time) (Report, error) {
	r := Report{Kind: kind, GeneratedAt: now}
	switch kind {
	case ReportLowStock:
		threshold := l.cfg.LowStockThreshold
		r.Medicines = l.filterMedicines(func(m Medicine) bool { return m.IsLowStock(threshold) })
	case ReportExpired:
		r.Medicines = l.filterMedicines(func(m Medicine) bool { return m.IsExpired(now) })
	case ReportControlled:
		r.Medicines = l.filterMedicines(func(m Medicine) bool { return m.Controlled })
	case ReportSales:
		s := l.SalesSummary()
		r.Sales = &s
	default:
		_, err := ParseReportKind(string(kind))
		return Report{}, err
	}
	return r, nil
}

func (l *Ledger) LowStock() []Medicine {
	r, _ := l.Report(ReportLowStock, l.now())
	return r.Medicines
}

func (l *Ledger) Expired(now time.Time) []Medicine {
	r, _ := l.Report(ReportExpired, now)
	return r.Medicines
}

func (l *Ledger) Controlled() []Medicine {
	r, _ := l.Report(ReportControlled, l.now())
	return r.Medicines
}

// SalesSummary totals every transaction, overall and per payment type.
func (l *Ledger) SalesSummary() SalesSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	byType := make(map[PaymentType]*PaymentTotal)
	s := SalesSummary{Total: decimal.Zero}
	for _, pt := range PaymentTypes() {
		s.ByPayment = append(s.ByPayment, PaymentTotal{PaymentType: pt, Total: decimal.Zero})
	}
	for i := range s.ByPayment {
		byType[s.ByPayment[i].PaymentType] = &s.ByPayment[i]
	}

	for _, t := range l.transactions {
		s.Count++
		s.Total = s.Total.Add(t.TotalAmount)
		if pt, ok := byType[t.PaymentType]; ok {
			pt.Count++
			pt.Total = pt.Total.Add(t.TotalAmount)
		}
	}
	return s
}

func (l *Ledger) filterMedicines(keep func(Medicine) bool) []Medicine {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Medicine
	for _, m := range l.medicines {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}
