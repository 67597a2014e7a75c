// Package dashboard implements the aggregation engine: windowed income and
// expense totals, period-over-period deltas, trend buckets, category
// breakdowns and the rolling monthly overview.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/errs"
	"fintrack/internal/ledger"
	"fintrack/internal/window"
)

// Repo is the read surface the aggregation engine needs from the store.
type Repo interface {
	TransactionsByUser(ctx context.Context, userID uuid.UUID) ([]ledger.Transaction, error)
	ExchangesByUser(ctx context.Context, userID uuid.UUID) ([]ledger.Exchange, error)
}

// Query selects the aggregation window and display currency. From/To take
// precedence over Filter when both parse; otherwise the filter preset wins,
// defaulting to the current month.
type Query struct {
	Filter          string
	From            string
	To              string
	ExpenseCurrency string
	TimeZone        string
}

// Totals carries windowed sums in DKK minor units.
type Totals struct {
	Income  int64 `json:"income"`
	Expense int64 `json:"expense"`
	Net     int64 `json:"net"`
}

// Deltas are formatted period-over-period changes against the adjacent
// preceding window of equal duration.
type Deltas struct {
	Income  string `json:"income"`
	Expense string `json:"expense"`
	Net     string `json:"net"`
}

// TrendPoint is one bucket of the trend series.
type TrendPoint struct {
	Label   string `json:"label"`
	Income  int64  `json:"income"`
	Expense int64  `json:"expense"`
}

// BreakdownSlice is one category share of windowed spending, with contiguous
// percent stops for a donut chart.
type BreakdownSlice struct {
	Label   string  `json:"label"`
	Amount  int64   `json:"amount"`
	Percent float64 `json:"percent"`
	From    float64 `json:"from"`
	To      float64 `json:"to"`
}

// MonthPoint is one calendar month of the rolling overview, in DKK.
type MonthPoint struct {
	Label   string `json:"label"`
	Income  int64  `json:"income"`
	Expense int64  `json:"expense"`
}

// Snapshot is the full dashboard payload for one window.
type Snapshot struct {
	Filter    string           `json:"filter"`
	Start     time.Time        `json:"start"`
	End       time.Time        `json:"end"`
	Totals    Totals           `json:"totals"`
	Deltas    Deltas           `json:"deltas"`
	Trend     []TrendPoint     `json:"trend"`
	Breakdown []BreakdownSlice `json:"breakdown"`
	Monthly   []MonthPoint     `json:"monthly"`
}

// Service computes dashboard snapshots.
type Service interface {
	Compute(ctx context.Context, userID uuid.UUID, q Query) (Snapshot, error)
}

type service struct {
	repo Repo
	now  func() time.Time
}

// New constructs the dashboard service.
func New(repo Repo) Service {
	return &service{repo: repo, now: time.Now}
}

const (
	otherLabel      = "Khác"
	conversionLabel = "Chuyển đổi tiền tệ"
	trendTarget     = 3
	overviewMonths  = 4
)

func (s *service) Compute(ctx context.Context, userID uuid.UUID, q Query) (Snapshot, error) {
	if userID == uuid.Nil {
		return Snapshot{}, errs.ErrInvalid
	}
	loc := window.ResolveZone(q.TimeZone)
	now := s.now()

	filter, ok := window.ParseFilter(q.Filter)
	if !ok {
		filter = window.FilterMonth
	}
	w, custom := window.Window{}, false
	if q.From != "" || q.To != "" {
		w, custom = window.Custom(q.From, q.To, loc)
	}
	if !custom {
		w = window.Preset(filter, now, loc)
	}

	expCur := ledger.CurrencyDKK
	if q.ExpenseCurrency != "" {
		c, ok := ledger.ParseCurrency(q.ExpenseCurrency)
		if !ok {
			return Snapshot{}, errs.ErrInvalid
		}
		expCur = c
	}

	var (
		txns []ledger.Transaction
		exs  []ledger.Exchange
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txns, err = s.repo.TransactionsByUser(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		exs, err = s.repo.ExchangesByUser(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	cur := windowTotals(txns, exs, w, ledger.CurrencyDKK)
	prev := windowTotals(txns, exs, window.Previous(w), ledger.CurrencyDKK)

	var periods []window.Window
	if custom {
		periods = window.Buckets(w, trendTarget, loc)
	} else {
		periods = window.PresetTrendPeriods(filter, w, loc)
	}
	trend := make([]TrendPoint, 0, len(periods))
	for _, p := range periods {
		t := transactionTotals(txns, p, ledger.CurrencyDKK)
		trend = append(trend, TrendPoint{
			Label:   window.RangeLabel(p, loc),
			Income:  t.Income,
			Expense: t.Expense,
		})
	}

	snap := Snapshot{
		Filter: string(filter),
		Start:  w.Start,
		End:    w.End,
		Totals: cur,
		Deltas: Deltas{
			Income:  FormatDelta(cur.Income, prev.Income),
			Expense: FormatDelta(cur.Expense, prev.Expense),
			Net:     FormatDelta(cur.Net, prev.Net),
		},
		Trend:     trend,
		Breakdown: breakdown(txns, exs, w, expCur),
		Monthly:   monthlyOverview(txns, exs, now, loc),
	}
	if custom {
		snap.Filter = ""
	}
	return snap, nil
}

// countsAsSpending reports whether an expense belongs in dashboard sums.
// Credit-card bill repayments are transfers, not new spending, and are
// dropped to avoid double counting the original card purchases.
func countsAsSpending(t ledger.Transaction) bool {
	return t.Type == ledger.TypeExpense && !ledger.IsCreditCardRepayment(t.Category, t.PaymentMethod)
}

// transactionTotals sums transaction income and expense for one currency
// inside w. Trend points use this form: exchange outflow never joins the
// trend series, only the headline totals and the monthly overview.
func transactionTotals(txns []ledger.Transaction, w window.Window, c ledger.Currency) Totals {
	var t Totals
	for _, txn := range txns {
		if txn.Currency != c || !w.Contains(txn.CreatedAt) {
			continue
		}
		switch {
		case txn.Type == ledger.TypeIncome:
			t.Income += txn.AmountMinor
		case countsAsSpending(txn):
			t.Expense += txn.AmountMinor
		}
	}
	t.Net = t.Income - t.Expense
	return t
}

// windowTotals extends transactionTotals with exchange outflow (the DKK leg
// plus any DKK fee) counted as DKK expense.
func windowTotals(txns []ledger.Transaction, exs []ledger.Exchange, w window.Window, c ledger.Currency) Totals {
	t := transactionTotals(txns, w, c)
	if c == ledger.CurrencyDKK {
		for _, e := range exs {
			if w.Contains(e.CreatedAt) {
				t.Expense += e.DkkOutflow()
			}
		}
	}
	t.Net = t.Income - t.Expense
	return t
}

// breakdown groups windowed spending in the display currency by category.
// Uncategorized rows collapse into "Khác"; when the display currency is DKK
// the exchange outflow joins as a "Chuyển đổi tiền tệ" slice. Percent stops
// are contiguous and sum to 100 when anything was spent.
func breakdown(txns []ledger.Transaction, exs []ledger.Exchange, w window.Window, c ledger.Currency) []BreakdownSlice {
	sums := map[string]int64{}
	for _, t := range txns {
		if t.Currency != c || !w.Contains(t.CreatedAt) || !countsAsSpending(t) {
			continue
		}
		label := otherLabel
		if t.Category != nil {
			if v := strings.TrimSpace(*t.Category); v != "" {
				label = v
			}
		}
		sums[label] += t.AmountMinor
	}
	if c == ledger.CurrencyDKK {
		for _, e := range exs {
			if w.Contains(e.CreatedAt) {
				sums[conversionLabel] += e.DkkOutflow()
			}
		}
	}

	slices := make([]BreakdownSlice, 0, len(sums))
	var total int64
	for label, amount := range sums {
		if amount <= 0 {
			continue
		}
		slices = append(slices, BreakdownSlice{Label: label, Amount: amount})
		total += amount
	}
	sort.Slice(slices, func(i, j int) bool {
		if slices[i].Amount != slices[j].Amount {
			return slices[i].Amount > slices[j].Amount
		}
		return slices[i].Label < slices[j].Label
	})
	if total == 0 {
		return slices
	}
	cum := 0.0
	for i := range slices {
		slices[i].Percent = float64(slices[i].Amount) / float64(total) * 100
		slices[i].From = cum
		cum += slices[i].Percent
		slices[i].To = cum
	}
	// Close the ring exactly despite float accumulation.
	slices[len(slices)-1].To = 100
	return slices
}

// monthlyOverview sums DKK income and spending for the last four calendar
// months, anchored to wall-clock now rather than the selected window.
func monthlyOverview(txns []ledger.Transaction, exs []ledger.Exchange, now time.Time, loc *time.Location) []MonthPoint {
	starts, end := window.MonthStarts(now, loc, overviewMonths)
	points := make([]MonthPoint, 0, len(starts))
	for i, start := range starts {
		bound := end
		if i+1 < len(starts) {
			bound = starts[i+1]
		}
		// End a nanosecond short of the next month start, so the inclusive
		// Contains check behaves as an exclusive upper bound.
		w := window.Window{Start: start, End: bound.Add(-time.Nanosecond)}
		t := windowTotals(txns, exs, w, ledger.CurrencyDKK)
		points = append(points, MonthPoint{
			Label:   start.In(loc).Format("01/2006"),
			Income:  t.Income,
			Expense: t.Expense,
		})
	}
	return points
}

// FormatDelta renders a period-over-period change. A zero baseline reads as
// "+100.0%" when anything happened this period and "0%" when nothing did.
func FormatDelta(current, previous int64) string {
	if previous == 0 {
		if current == 0 {
			return "0%"
		}
		return "+100.0%"
	}
	prev := previous
	if prev < 0 {
		prev = -prev
	}
	pct := float64(current-previous) / float64(prev) * 100
	sign := ""
	if pct > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.1f%%", sign, pct)
}
