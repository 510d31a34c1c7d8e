package repository

import (
	"context"
	"testing"

	"github.com/nimasrn/statement-ledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPredicate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		filter model.TransactionFilter
		sel    model.Selection
	}{
		{name: "missing user", userID: ""},
		{name: "explicit and exclude", userID: "u", sel: model.Selection{ExplicitIDs: []string{"a"}, ExcludeIDs: []string{"b"}}},
		{name: "dateFrom after dateTo", userID: "u", filter: model.TransactionFilter{DateFrom: ptr(day("2024-03-02")), DateTo: ptr(day("2024-03-01"))}},
		{name: "unknown type", userID: "u", filter: model.TransactionFilter{Type: "transfer"}},
		{name: "negative min", userID: "u", filter: model.TransactionFilter{MinAmount: dec("-1")}},
		{name: "min above max", userID: "u", filter: model.TransactionFilter{MinAmount: dec("10"), MaxAmount: dec("5")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildPredicate(tt.userID, tt.filter, tt.sel)
			assert.ErrorIs(t, err, ErrInvalidFilter)
		})
	}
}

func TestBuildPredicate_Matching(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	food := "cat-food"
	coffee := seedTransaction(t, repo, &model.Transaction{
		Description: "Coffee 100% Arabica", Date: day("2024-03-01"), AmountOut: dec("4.50"), CategoryID: &food,
	})
	salary := seedTransaction(t, repo, &model.Transaction{
		Description: "Salary", Date: day("2024-03-05"), AmountIn: dec("3000"), Label: ptr("work_income"),
	})
	rent := seedTransaction(t, repo, &model.Transaction{
		Description: "Rent", Date: day("2024-03-10"), AmountOut: dec("1200"), AccountIdentifier: ptr("checking"),
	})
	seedTransaction(t, repo, &model.Transaction{UserID: "user-2", Description: "Coffee", AmountOut: dec("4.50")})

	ids := func(f model.TransactionFilter, sel model.Selection) []string {
		t.Helper()
		rows, err := repo.FindAll(ctx, "user-1", f, sel)
		require.NoError(t, err)
		out := make([]string, len(rows))
		for i, r := range rows {
			out[i] = r.ID
		}
		return out
	}

	t.Run("no constraints returns all of the user's rows", func(t *testing.T) {
		assert.ElementsMatch(t, []string{coffee.ID, salary.ID, rent.ID}, ids(model.TransactionFilter{}, model.Selection{}))
	})

	t.Run("date range is inclusive", func(t *testing.T) {
		f := model.TransactionFilter{DateFrom: ptr(day("2024-03-01")), DateTo: ptr(day("2024-03-05"))}
		assert.ElementsMatch(t, []string{coffee.ID, salary.ID}, ids(f, model.Selection{}))
	})

	t.Run("type", func(t *testing.T) {
		assert.Equal(t, []string{salary.ID}, ids(model.TransactionFilter{Type: model.TransactionIncome}, model.Selection{}))
		assert.ElementsMatch(t, []string{coffee.ID, rent.ID}, ids(model.TransactionFilter{Type: model.TransactionExpense}, model.Selection{}))
	})

	t.Run("amount range spans both sides", func(t *testing.T) {
		f := model.TransactionFilter{MinAmount: dec("1000")}
		assert.ElementsMatch(t, []string{salary.ID, rent.ID}, ids(f, model.Selection{}))
		f = model.TransactionFilter{MinAmount: dec("4"), MaxAmount: dec("5")}
		assert.Equal(t, []string{coffee.ID}, ids(f, model.Selection{}))
	})

	t.Run("search escapes like metacharacters", func(t *testing.T) {
		assert.Equal(t, []string{coffee.ID}, ids(model.TransactionFilter{Search: "100%"}, model.Selection{}))
		assert.Empty(t, ids(model.TransactionFilter{Search: "1_0"}, model.Selection{}))
		assert.Equal(t, []string{salary.ID}, ids(model.TransactionFilter{Search: "WORK_"}, model.Selection{}))
	})

	t.Run("category and account", func(t *testing.T) {
		assert.Equal(t, []string{coffee.ID}, ids(model.TransactionFilter{CategoryIDs: []string{food}}, model.Selection{}))
		assert.Equal(t, []string{rent.ID}, ids(model.TransactionFilter{AccountIdentifier: ptr("checking")}, model.Selection{}))
	})

	t.Run("explicit ids", func(t *testing.T) {
		assert.Equal(t, []string{rent.ID}, ids(model.TransactionFilter{}, model.Selection{ExplicitIDs: []string{rent.ID}}))
		assert.Empty(t, ids(model.TransactionFilter{}, model.Selection{ExplicitIDs: []string{}}))
	})

	t.Run("exclude ids", func(t *testing.T) {
		got := ids(model.TransactionFilter{}, model.Selection{ExcludeIDs: []string{rent.ID}})
		assert.ElementsMatch(t, []string{coffee.ID, salary.ID}, got)
	})
}

func TestPage(t *testing.T) {
	_, err := Page(model.TransactionFilter{DateOrder: "sideways"})
	assert.ErrorIs(t, err, ErrInvalidFilter)

	_, err = Page(model.TransactionFilter{Offset: -1})
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%\_off\\`, escapeLike(`50%_off\`))
}
