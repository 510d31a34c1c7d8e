package services

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/nimasrn/statement-ledger/internal/ledgercsv"
	"github.com/nimasrn/statement-ledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linkedPair commits an expense and a batch-local reimbursement of it.
func linkedPair(t *testing.T, f *fixture) (target, refund *model.Transaction) {
	t.Helper()
	r := income("2024-04-05", "Refund from Alice", "15")
	r.Linkage = &model.PendingLinkage{Type: model.LinkageReimbursement, PendingBatchIndices: []int{0}}
	rows := f.commit(t, expense("2024-04-01", "Dinner", "30"), r)
	return rows[0], rows[1]
}

func TestTransactionService_GetAndOwnership(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	row := f.commit(t, expense("2024-04-01", "Dinner", "30"))[0]

	got, err := f.ledger.Get(ctx, testUser, row.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dinner", got.Description)

	_, err = f.ledger.Get(ctx, "user-2", row.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "transaction not found or unauthorized")

	_, err = f.ledger.ClearLinkage(ctx, "user-2", row.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.ledger.MarkInternal(ctx, "user-2", row.ID, false, "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.ledger.Delete(ctx, "user-2", row.ID), ErrNotFound)
}

func TestTransactionService_MalformedIDsAreMisses(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	row := f.commit(t, expense("2024-04-01", "Dinner", "30"))[0]

	_, err := f.ledger.Get(ctx, testUser, "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.ledger.Delete(ctx, testUser, "x'; drop"), ErrNotFound)

	_, err = f.ledger.LinkReimbursement(ctx, testUser, row.ID, []string{"bogus"})
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := f.ledger.BulkDelete(ctx, testUser, []string{"bogus", "42"})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, f.count(t))
}

func TestTransactionService_List(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.commit(t,
		expense("2024-04-01", "Dinner", "30"),
		expense("2024-04-02", "Lunch", "12"),
		income("2024-04-03", "Salary", "2000"),
	)

	res, err := f.ledger.List(ctx, testUser, model.TransactionFilter{Type: model.TransactionExpense, Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Total)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, "Lunch", res.Transactions[0].Description)

	res, err = f.ledger.List(ctx, "user-2", model.TransactionFilter{})
	require.NoError(t, err)
	assert.NotNil(t, res.Transactions)
	assert.Zero(t, res.Total)

	_, err = f.ledger.List(ctx, testUser, model.TransactionFilter{Offset: -1})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTransactionService_BulkUpdate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	rows := f.commit(t,
		expense("2024-04-01", "Dinner", "30"),
		expense("2024-04-02", "Lunch", "12"),
		expense("2024-04-03", "Coffee", "4"),
	)
	travel := &model.Category{Name: "Travel", Color: "#0000ff"}
	require.NoError(t, f.categories.Create(ctx, testUser, travel))

	n, err := f.ledger.BulkUpdate(ctx, testUser, []string{rows[0].ID, rows[1].ID}, model.TransactionUpdates{
		Label:      ptr("work"),
		CategoryID: &travel.ID,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, "work", *f.get(t, rows[0].ID).Label)
	assert.Equal(t, travel.ID, *f.get(t, rows[1].ID).CategoryID)
	assert.Nil(t, f.get(t, rows[2].ID).Label)

	t.Run("empty string clears", func(t *testing.T) {
		_, err := f.ledger.BulkUpdate(ctx, testUser, []string{rows[0].ID}, model.TransactionUpdates{Label: ptr("")})
		require.NoError(t, err)
		assert.Nil(t, f.get(t, rows[0].ID).Label)
	})

	t.Run("rejections", func(t *testing.T) {
		_, err := f.ledger.BulkUpdate(ctx, testUser, []string{rows[0].ID}, model.TransactionUpdates{})
		assert.ErrorIs(t, err, ErrValidation)

		_, err = f.ledger.BulkUpdate(ctx, testUser, nil, model.TransactionUpdates{Label: ptr("x")})
		assert.ErrorIs(t, err, ErrValidation)

		_, err = f.ledger.BulkUpdate(ctx, testUser, []string{rows[0].ID}, model.TransactionUpdates{CategoryID: ptr("someone-elses")})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("other users rows are untouched", func(t *testing.T) {
		n, err := f.ledger.BulkUpdate(ctx, "user-2", []string{rows[2].ID}, model.TransactionUpdates{Label: ptr("stolen")})
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Nil(t, f.get(t, rows[2].ID).Label)
	})
}

func TestTransactionService_BulkUpdateByFilter(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	rows := f.commit(t,
		expense("2024-04-01", "Uber ride", "30"),
		expense("2024-04-02", "Uber eats", "12"),
		expense("2024-04-03", "Coffee", "4"),
	)

	n, err := f.ledger.BulkUpdateByFilter(ctx, testUser, model.TransactionFilter{Search: "uber"}, []string{rows[1].ID},
		model.TransactionUpdates{AccountIdentifier: ptr("card-1")})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, "card-1", *f.get(t, rows[0].ID).AccountIdentifier)
	assert.Nil(t, f.get(t, rows[1].ID).AccountIdentifier)
	assert.Nil(t, f.get(t, rows[2].ID).AccountIdentifier)
}

func TestTransactionService_BulkDeleteCascades(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	target, refund := linkedPair(t, f)
	other := f.commit(t, expense("2024-04-09", "Taxi", "20"))[0]

	second := income("2024-04-10", "Bob pays back", "10")
	second.Linkage = &model.PendingLinkage{Type: model.LinkageReimbursement, Reimburses: []string{target.ID}}
	secondRow := f.commit(t, second)[0]
	require.ElementsMatch(t, []string{refund.ID, secondRow.ID}, f.get(t, target.ID).Linkage.ReimbursedBy)

	n, err := f.ledger.BulkDelete(ctx, testUser, []string{refund.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, []string{secondRow.ID}, f.get(t, target.ID).Linkage.ReimbursedBy)

	n, err = f.ledger.BulkDelete(ctx, testUser, []string{target.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Nil(t, f.get(t, secondRow.ID).Linkage)
	assert.NotNil(t, f.get(t, other.ID))

	_, err = f.ledger.BulkDelete(ctx, testUser, []string{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTransactionService_BulkDeleteByFilter(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	target, refund := linkedPair(t, f)
	keep := f.commit(t, expense("2024-05-01", "Dinner again", "30"))[0]

	n, err := f.ledger.BulkDeleteByFilter(ctx, testUser, model.TransactionFilter{Type: model.TransactionExpense}, []string{keep.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = f.transactions.Get(ctx, testUser, target.ID)
	assert.Error(t, err)
	assert.Nil(t, f.get(t, refund.ID).Linkage)
	assert.NotNil(t, f.get(t, keep.ID))
}

func TestTransactionService_Delete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	target, refund := linkedPair(t, f)

	require.NotNil(t, f.get(t, refund.ID).CategoryID)
	require.NoError(t, f.ledger.Delete(ctx, testUser, target.ID))
	after := f.get(t, refund.ID)
	assert.Nil(t, after.Linkage)
	assert.Nil(t, after.CategoryID)
	assert.ErrorIs(t, f.ledger.Delete(ctx, testUser, target.ID), ErrNotFound)
}

func TestTransactionService_Export(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	rows := f.commit(t,
		expense("2024-04-01", "Dinner, with friends", "30"),
		expense("2024-04-02", "Lunch", "12"),
	)

	var buf bytes.Buffer
	n, err := f.ledger.Export(ctx, testUser, ExportRequest{Filter: model.TransactionFilter{DateOrder: model.DateOrderAsc}}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, ledgercsv.Header, lines[0])
	assert.Equal(t, `2024-04-01,,"Dinner, with friends",,30.00,,Uncategorized,#9ca3af,,`, lines[1])

	buf.Reset()
	n, err = f.ledger.Export(ctx, testUser, ExportRequest{IDs: []string{rows[1].ID}}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, buf.String(), "Lunch")
	assert.NotContains(t, buf.String(), "Dinner")

	buf.Reset()
	n, err = f.ledger.Export(ctx, testUser, ExportRequest{ExcludeIDs: []string{rows[1].ID}}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NotContains(t, buf.String(), "Lunch")

	_, err = f.ledger.Export(ctx, testUser, ExportRequest{IDs: []string{}}, &buf)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTransactionService_SearchForReimbursement(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	target, _ := linkedPair(t, f)

	internal := expense("2024-04-07", "Dinner transfer", "50")
	internal.Linkage = &model.PendingLinkage{Type: model.LinkageInternal}
	f.commit(t, internal, expense("2024-04-08", "dinner party", "80"), income("2024-04-08", "Dinner refund", "5"))

	found, err := f.ledger.SearchForReimbursement(ctx, testUser, "dinner", 0)
	require.NoError(t, err)
	var names []string
	for _, txn := range found {
		names = append(names, txn.Description)
	}
	assert.ElementsMatch(t, []string{target.Description, "dinner party"}, names)

	found, err = f.ledger.SearchForReimbursement(ctx, testUser, "dinner", 1)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = f.ledger.SearchForReimbursement(ctx, testUser, "nothing like this", 500)
	require.NoError(t, err)
	assert.NotNil(t, found)
	assert.Empty(t, found)
}

func TestTransactionService_GetLinked(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	target, refund := linkedPair(t, f)

	linked, err := f.ledger.GetLinked(ctx, testUser, refund.ID)
	require.NoError(t, err)
	require.Len(t, linked.Reimburses, 1)
	assert.Equal(t, target.ID, linked.Reimburses[0].ID)
	assert.Empty(t, linked.ReimbursedBy)

	linked, err = f.ledger.GetLinked(ctx, testUser, target.ID)
	require.NoError(t, err)
	require.Len(t, linked.ReimbursedBy, 1)
	assert.Equal(t, refund.ID, linked.ReimbursedBy[0].ID)
}

func TestTransactionService_ClearLinkage(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	target, refund := linkedPair(t, f)

	cleared, err := f.ledger.ClearLinkage(ctx, testUser, refund.ID)
	require.NoError(t, err)
	assert.Nil(t, cleared.Linkage)
	assert.Nil(t, cleared.CategoryID)
	assert.Nil(t, f.get(t, target.ID).Linkage)

	t.Run("clearing the reimbursed side", func(t *testing.T) {
		target, refund := linkedPair(t, f)
		_, err := f.ledger.ClearLinkage(ctx, testUser, target.ID)
		require.NoError(t, err)
		after := f.get(t, refund.ID)
		assert.Nil(t, after.Linkage)
		assert.Nil(t, after.CategoryID)
	})

	t.Run("a reimbursement with targets left keeps its category", func(t *testing.T) {
		rows := f.commit(t,
			expense("2024-05-01", "Cinema", "20"),
			expense("2024-05-02", "Snacks", "8"),
			income("2024-05-03", "Split from Bob", "14"),
		)
		cinema, snacks, split := rows[0], rows[1], rows[2]
		_, err := f.ledger.LinkReimbursement(ctx, testUser, split.ID, []string{cinema.ID, snacks.ID})
		require.NoError(t, err)

		_, err = f.ledger.ClearLinkage(ctx, testUser, cinema.ID)
		require.NoError(t, err)
		after := f.get(t, split.ID)
		require.NotNil(t, after.Linkage)
		assert.Equal(t, []string{snacks.ID}, after.Linkage.Reimburses)
		require.NotNil(t, after.Category)
		assert.Equal(t, model.CategoryReimbursement, after.Category.Name)
	})
}

func TestTransactionService_LinkReimbursement(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	rows := f.commit(t,
		expense("2024-04-01", "Dinner", "30"),
		expense("2024-04-02", "Taxi", "20"),
		income("2024-04-05", "Refund", "50"),
	)
	dinner, taxi, refund := rows[0], rows[1], rows[2]

	got, err := f.ledger.LinkReimbursement(ctx, testUser, refund.ID, []string{dinner.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{dinner.ID}, got.Linkage.Reimburses)
	assert.Equal(t, f.reserved(t)[model.CategoryReimbursement].ID, *got.CategoryID)

	got, err = f.ledger.LinkReimbursement(ctx, testUser, refund.ID, []string{taxi.ID, dinner.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{dinner.ID, taxi.ID}, got.Linkage.Reimburses)
	assert.Equal(t, []string{refund.ID}, f.get(t, dinner.ID).Linkage.ReimbursedBy)
	assert.Equal(t, []string{refund.ID}, f.get(t, taxi.ID).Linkage.ReimbursedBy)

	t.Run("rejections", func(t *testing.T) {
		_, err := f.ledger.LinkReimbursement(ctx, testUser, refund.ID, nil)
		assert.ErrorIs(t, err, ErrValidation)

		_, err = f.ledger.LinkReimbursement(ctx, testUser, refund.ID, []string{refund.ID})
		assert.ErrorIs(t, err, ErrValidation)

		_, err = f.ledger.LinkReimbursement(ctx, testUser, dinner.ID, []string{taxi.ID})
		assert.ErrorIs(t, err, ErrValidation, "a reimbursed row cannot become a reimbursement")

		_, err = f.ledger.LinkReimbursement(ctx, testUser, refund.ID, []string{"00000000-0000-0000-0000-000000000000"})
		assert.ErrorIs(t, err, ErrNotFound)

		other := f.commit(t, income("2024-04-06", "Another refund", "1"))[0]
		_, err = f.ledger.LinkReimbursement(ctx, testUser, other.ID, []string{refund.ID})
		assert.ErrorIs(t, err, ErrValidation, "a reimbursement cannot be a target")
	})
}

func TestTransactionService_MarkInternal(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	row := f.commit(t, expense("2024-04-01", "To savings", "100"))[0]

	got, err := f.ledger.MarkInternal(ctx, testUser, row.ID, true, "matched own account")
	require.NoError(t, err)
	require.NotNil(t, got.Linkage)
	assert.Equal(t, model.LinkageInternal, got.Linkage.Type)
	assert.True(t, got.Linkage.AutoDetected)
	assert.Equal(t, "matched own account", got.Linkage.DetectionReason)
	assert.Equal(t, model.CategoryInternal, got.Category.Name)

	_, err = f.ledger.LinkReimbursement(ctx, testUser, row.ID, []string{"x"})
	assert.ErrorIs(t, err, ErrValidation)

	_, refund := linkedPair(t, f)
	_, err = f.ledger.MarkInternal(ctx, testUser, refund.ID, false, "")
	assert.ErrorIs(t, err, ErrValidation)
}
