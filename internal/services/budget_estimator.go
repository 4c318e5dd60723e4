package services

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"fintrack/internal/logger"
	"fintrack/internal/models"
)

// Estimator defaults.
const (
	DefaultEstimateMonths     = 6
	DefaultEstimateMultiplier = 1.5
	DefaultEstimateMinimum    = 500.0
)

// budgetEstimator derives a monthly limit from the median of past monthly spend.
type budgetEstimator struct {
	db       *gorm.DB
	defaults EstimateOptions
	now      func() time.Time
}

// NewBudgetEstimator creates a BudgetEstimator. Zero or negative fields in
// defaults fall back to the package defaults.
func NewBudgetEstimator(db *gorm.DB, defaults EstimateOptions) BudgetEstimator {
	return NewBudgetEstimatorWithClock(db, defaults, time.Now)
}

// NewBudgetEstimatorWithClock creates a BudgetEstimator that reads the current
// time from now.
func NewBudgetEstimatorWithClock(db *gorm.DB, defaults EstimateOptions, now func() time.Time) BudgetEstimator {
	defaults = defaults.withFallback(EstimateOptions{
		Months:     DefaultEstimateMonths,
		Multiplier: DefaultEstimateMultiplier,
		Minimum:    DefaultEstimateMinimum,
	})
	return &budgetEstimator{db: db, defaults: defaults, now: now}
}

func (o EstimateOptions) withFallback(d EstimateOptions) EstimateOptions {
	if o.Months <= 0 {
		o.Months = d.Months
	}
	if o.Multiplier <= 0 {
		o.Multiplier = d.Multiplier
	}
	if o.Minimum <= 0 {
		o.Minimum = d.Minimum
	}
	return o
}

// EstimateDefaultBudget returns max(ceil(median monthly spend * multiplier),
// minimum) rounded up to a multiple of 10. The median falls back to the mean
// when it is zero. Any failure yields the minimum.
func (e *budgetEstimator) EstimateDefaultBudget(userID, categoryName string, opts EstimateOptions) float64 {
	opts = opts.withFallback(e.defaults)
	log := logger.Get()

	categoryName = strings.TrimSpace(categoryName)
	if userID == "" || categoryName == "" {
		log.Warnw("Budget estimate skipped, missing user or category",
			"user_id", userID, "category", categoryName, "fallback", opts.Minimum)
		return opts.Minimum
	}

	now := e.now().UTC()
	windowStart := time.Date(now.Year(), now.Month()-time.Month(opts.Months-1), 1, 0, 0, 0, 0, time.UTC)

	var rows []struct {
		Amount float64
		Date   time.Time
	}
	err := e.db.Model(&models.Transaction{}).
		Select("amount, date").
		Where("user_id = ? AND category = ? AND amount < 0 AND date >= ?", userID, categoryName, windowStart).
		Scan(&rows).Error
	if err != nil {
		log.Warnw("Budget estimate failed, using minimum",
			"user_id", userID, "category", categoryName, "error", err, "fallback", opts.Minimum)
		return opts.Minimum
	}
	if len(rows) == 0 {
		return opts.Minimum
	}

	byMonth := make(map[int]decimal.Decimal)
	for _, r := range rows {
		d := r.Date.UTC()
		key := d.Year()*12 + int(d.Month())
		byMonth[key] = byMonth[key].Add(decimal.NewFromFloat(r.Amount).Abs())
	}

	sums := make([]decimal.Decimal, 0, len(byMonth))
	for _, v := range byMonth {
		sums = append(sums, v)
	}

	base := median(sums)
	if base.IsZero() {
		base = mean(sums)
	}

	limit := base.Mul(decimal.NewFromFloat(opts.Multiplier)).Ceil()
	minimum := decimal.NewFromFloat(opts.Minimum)
	if limit.LessThan(minimum) {
		limit = minimum
	}

	ten := decimal.NewFromInt(10)
	limit = limit.Div(ten).Ceil().Mul(ten)

	f, _ := limit.Float64()
	return f
}

func median(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sorted := append([]decimal.Decimal(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}

func mean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total.Div(decimal.NewFromInt(int64(len(values))))
}
