package matcher

import (
	"context"
	"fmt"
	"sort"

	"github.com/nimasrn/statement-ledger/internal/model"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// DateWindowDays is how far apart, in calendar days, two rows may be and
// still be compared.
const DateWindowDays = 2

// Scores are kept in hundredths so thresholds compare exactly.
const (
	pointsSameDate     = 30
	pointsNearDate     = 15
	pointsExactAmount  = 30
	pointsExactDesc    = 40
	pointsVerySimilar  = 30
	pointsSimilar      = 20
	pointsSomewhatSim  = 10
	reportThresholdPts = 80
)

const (
	ReasonSameDate         = "Same date"
	ReasonExactAmount      = "Exact amount match"
	ReasonExactDescription = "Exact description match"
	ReasonVerySimilar      = "Very similar description"
	ReasonSimilar          = "Similar description"
	ReasonSomewhatSimilar  = "Somewhat similar description"
)

type CandidateFinder interface {
	FindDuplicateCandidates(ctx context.Context, userID string, date model.Date, window int, amountIn, amountOut *decimal.Decimal) ([]*model.Transaction, error)
}

type Matcher struct {
	finder  CandidateFinder
	workers int
}

// New returns a Matcher running at most workers lookups at once in CheckBulk.
func New(finder CandidateFinder, workers int) *Matcher {
	if workers < 1 {
		workers = 1
	}
	return &Matcher{
		finder:  finder,
		workers: workers,
	}
}

// FindDuplicates scores every stored row the pre-filter returns for c and
// keeps those at or above the report threshold, best first.
func (m *Matcher) FindDuplicates(ctx context.Context, userID string, c model.ImportTransaction) ([]model.DuplicateMatch, error) {
	if !c.HasAmount() {
		return nil, nil
	}

	rows, err := m.finder.FindDuplicateCandidates(ctx, userID, c.Date, DateWindowDays, c.AmountIn, c.AmountOut)
	if err != nil {
		return nil, fmt.Errorf("find duplicate candidates: %w", err)
	}

	type scored struct {
		match  model.DuplicateMatch
		points int
	}
	var hits []scored
	for _, row := range rows {
		points, reasons := score(c, row)
		if points < reportThresholdPts {
			continue
		}
		hits = append(hits, scored{
			match: model.DuplicateMatch{
				Transaction:  row,
				MatchScore:   float64(points) / 100,
				MatchReasons: reasons,
			},
			points: points,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].points > hits[j].points
	})

	matches := make([]model.DuplicateMatch, len(hits))
	for i, h := range hits {
		matches[i] = h.match
	}
	return matches, nil
}

// CheckBulk runs FindDuplicates once per candidate. Only indices with at least
// one match are present in the result. The first lookup error aborts the
// whole check.
func (m *Matcher) CheckBulk(ctx context.Context, userID string, candidates []model.ImportTransaction) (map[int][]model.DuplicateMatch, error) {
	results := make([][]model.DuplicateMatch, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i := range candidates {
		g.Go(func() error {
			matches, err := m.FindDuplicates(gctx, userID, candidates[i])
			if err != nil {
				return fmt.Errorf("candidate %d: %w", i, err)
			}
			results[i] = matches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[int][]model.DuplicateMatch)
	for i, matches := range results {
		if len(matches) > 0 {
			out[i] = matches
		}
	}
	return out, nil
}

func score(c model.ImportTransaction, row *model.Transaction) (int, []string) {
	points := 0
	var reasons []string

	switch days := c.Date.DaysApart(row.Date); {
	case days == 0:
		points += pointsSameDate
		reasons = append(reasons, ReasonSameDate)
	case days <= DateWindowDays:
		points += pointsNearDate
		reasons = append(reasons, fmt.Sprintf("Date within %d days", days))
	}

	if sameAmount(c.AmountIn, row.AmountIn) || sameAmount(c.AmountOut, row.AmountOut) {
		points += pointsExactAmount
		reasons = append(reasons, ReasonExactAmount)
	}

	switch sim := Dice(c.Description, row.Description); {
	case sim >= 1:
		points += pointsExactDesc
		reasons = append(reasons, ReasonExactDescription)
	case sim >= 0.9:
		points += pointsVerySimilar
		reasons = append(reasons, ReasonVerySimilar)
	case sim >= 0.7:
		points += pointsSimilar
		reasons = append(reasons, ReasonSimilar)
	case sim >= 0.5:
		points += pointsSomewhatSim
		reasons = append(reasons, ReasonSomewhatSimilar)
	}

	return points, reasons
}

func sameAmount(a, b *decimal.Decimal) bool {
	return a != nil && b != nil && a.Equal(*b)
}
