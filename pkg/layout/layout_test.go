package layout

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jdziat/workbench-jobs/internal/testdb"
	"github.com/jdziat/workbench-jobs/pkg/core"
)

func intPtr(v int) *int { return &v }

// seedViews inserts one view per title with layout indexes 1..N.
func seedViews(t *testing.T, db *gorm.DB, sheetID string, titles ...string) map[string]string {
	t.Helper()
	ids := make(map[string]string, len(titles))
	for i, title := range titles {
		v := &core.ResultView{SheetID: sheetID, Title: title, LayoutIndex: intPtr(i + 1)}
		require.NoError(t, db.Create(v).Error)
		ids[title] = v.ID
	}
	return ids
}

// titlesInOrder returns the sheet's titles by layout index and asserts the
// indexes are exactly 1..N.
func titlesInOrder(t *testing.T, db *gorm.DB, sheetID string) []string {
	t.Helper()
	var views []*core.ResultView
	require.NoError(t, db.Where("sheet_id = ?", sheetID).Order("layout_index ASC").Find(&views).Error)
	titles := make([]string, 0, len(views))
	for i, v := range views {
		require.NotNil(t, v.LayoutIndex, "view %s has no index", v.Title)
		assert.Equal(t, i+1, *v.LayoutIndex, "view %s", v.Title)
		titles = append(titles, v.Title)
	}
	return titles
}

func TestMove(t *testing.T) {
	items := []string{"A", "B", "C", "D"}

	assert.Equal(t, []string{"A", "D", "B", "C"}, Move(items, 3, 1))
	assert.Equal(t, []string{"B", "C", "D", "A"}, Move(items, 0, 3))
	assert.Equal(t, []string{"B", "A", "C", "D"}, Move(items, 0, 1))
	assert.Equal(t, []string{"A", "B", "C", "D"}, Move(items, 2, 2))

	t.Run("clamps target", func(t *testing.T) {
		assert.Equal(t, []string{"B", "C", "D", "A"}, Move(items, 0, 99))
		assert.Equal(t, []string{"C", "A", "B", "D"}, Move(items, 2, -5))
	})

	t.Run("unknown source copies input", func(t *testing.T) {
		out := Move(items, 7, 0)
		assert.Equal(t, items, out)
		out[0] = "Z"
		assert.Equal(t, "A", items[0])
	})
}

func TestSortByLayout(t *testing.T) {
	views := []*core.ResultView{
		{ID: "c", LayoutIndex: nil},
		{ID: "b", LayoutIndex: intPtr(2)},
		{ID: "a", LayoutIndex: intPtr(2)},
		{ID: "d", LayoutIndex: intPtr(1)},
		{ID: "0", LayoutIndex: nil},
	}
	SortByLayout(views)

	got := make([]string, 0, len(views))
	for _, v := range views {
		got = append(got, v.ID)
	}
	assert.Equal(t, []string{"d", "a", "b", "0", "c"}, got)
}

func TestChangesAndBulkUpdate(t *testing.T) {
	views := []*core.ResultView{
		{ID: "a", LayoutIndex: intPtr(1)},
		{ID: "d", LayoutIndex: intPtr(4)},
		{ID: "b", LayoutIndex: intPtr(2)},
		{ID: "c", LayoutIndex: intPtr(3)},
	}
	changed := Changes(views)
	assert.Equal(t, map[string]int{"d": 2, "b": 3, "c": 4}, changed)

	stmt, args := BulkUpdate("sheet-1", views, changed)
	assert.Equal(t,
		"UPDATE result_views SET layout_index = CASE id WHEN ? THEN ? WHEN ? THEN ? WHEN ? THEN ? ELSE layout_index END WHERE sheet_id = ? AND id IN ?",
		stmt)
	assert.Equal(t, []any{"d", 2, "b", 3, "c", 4, "sheet-1", []string{"d", "b", "c"}}, args)
}

func TestAppendView(t *testing.T) {
	db := testdb.Open(t)
	r := New(db)
	ctx := context.Background()

	for _, title := range []string{"A", "B", "C"} {
		v := &core.ResultView{SheetID: "sheet-1", Title: title}
		require.NoError(t, r.AppendView(ctx, v))
		require.NotNil(t, v.LayoutIndex)
	}
	assert.Equal(t, []string{"A", "B", "C"}, titlesInOrder(t, db, "sheet-1"))

	other := &core.ResultView{SheetID: "sheet-2", Title: "X"}
	require.NoError(t, r.AppendView(ctx, other))
	assert.Equal(t, 1, other.Index())
}

func TestAppendView_RequiresSheet(t *testing.T) {
	r := New(testdb.Open(t))
	err := r.AppendView(context.Background(), &core.ResultView{Title: "A"})
	assert.ErrorIs(t, err, core.ErrMissingSheetID)
}

func TestMoveView(t *testing.T) {
	db := testdb.Open(t)
	r := New(db)
	ctx := context.Background()
	ids := seedViews(t, db, "sheet-1", "A", "B", "C", "D")

	require.NoError(t, r.MoveView(ctx, "sheet-1", ids["D"], 1))
	assert.Equal(t, []string{"A", "D", "B", "C"}, titlesInOrder(t, db, "sheet-1"))

	require.NoError(t, r.MoveView(ctx, "sheet-1", ids["A"], 3))
	assert.Equal(t, []string{"D", "B", "C", "A"}, titlesInOrder(t, db, "sheet-1"))

	require.NoError(t, r.MoveView(ctx, "sheet-1", ids["C"], 100))
	assert.Equal(t, []string{"D", "B", "A", "C"}, titlesInOrder(t, db, "sheet-1"))
}

func TestMoveView_UnknownViewIsNoop(t *testing.T) {
	db := testdb.Open(t)
	r := New(db)
	seedViews(t, db, "sheet-1", "A", "B")

	require.NoError(t, r.MoveView(context.Background(), "sheet-1", "missing", 0))
	assert.Equal(t, []string{"A", "B"}, titlesInOrder(t, db, "sheet-1"))
}

func TestMoveView_LeavesOtherSheetsAlone(t *testing.T) {
	db := testdb.Open(t)
	r := New(db)
	ids := seedViews(t, db, "sheet-1", "A", "B", "C")
	seedViews(t, db, "sheet-2", "X", "Y", "Z")

	require.NoError(t, r.MoveView(context.Background(), "sheet-1", ids["C"], 0))
	assert.Equal(t, []string{"C", "A", "B"}, titlesInOrder(t, db, "sheet-1"))
	assert.Equal(t, []string{"X", "Y", "Z"}, titlesInOrder(t, db, "sheet-2"))
}

func TestDeleteView(t *testing.T) {
	db := testdb.Open(t)
	r := New(db)
	ctx := context.Background()
	ids := seedViews(t, db, "sheet-1", "A", "B", "C", "D")

	require.NoError(t, r.DeleteView(ctx, "sheet-1", ids["B"]))
	assert.Equal(t, []string{"A", "C", "D"}, titlesInOrder(t, db, "sheet-1"))

	require.NoError(t, r.DeleteView(ctx, "sheet-1", ids["A"]))
	assert.Equal(t, []string{"C", "D"}, titlesInOrder(t, db, "sheet-1"))

	// Deleting a view that is already gone still leaves a dense layout.
	require.NoError(t, r.DeleteView(ctx, "sheet-1", ids["A"]))
	assert.Equal(t, []string{"C", "D"}, titlesInOrder(t, db, "sheet-1"))
}

func TestReindex_RepairsGapsAndNulls(t *testing.T) {
	db := testdb.Open(t)
	r := New(db)

	rows := []*core.ResultView{
		{SheetID: "sheet-1", Title: "A", LayoutIndex: intPtr(3)},
		{SheetID: "sheet-1", Title: "B", LayoutIndex: intPtr(10)},
		{SheetID: "sheet-1", Title: "C", LayoutIndex: nil},
		{SheetID: "sheet-1", Title: "D", LayoutIndex: intPtr(0)},
	}
	for _, v := range rows {
		require.NoError(t, db.Create(v).Error)
	}

	require.NoError(t, r.Reindex(context.Background(), "sheet-1"))
	assert.Equal(t, []string{"D", "A", "B", "C"}, titlesInOrder(t, db, "sheet-1"))
}

func TestConcurrentMutationsStayContiguous(t *testing.T) {
	db := testdb.Open(t)
	r := New(db)
	ctx := context.Background()
	ids := seedViews(t, db, "sheet-1", "A", "B", "C", "D", "E", "F")

	var wg sync.WaitGroup
	titles := []string{"A", "B", "C", "D", "E", "F"}
	for i, title := range titles {
		wg.Add(1)
		go func(id string, target int) {
			defer wg.Done()
			assert.NoError(t, r.MoveView(ctx, "sheet-1", id, target))
		}(ids[title], (i*7)%len(titles))
	}
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, r.AppendView(ctx, &core.ResultView{SheetID: "sheet-1", Title: "new"}))
		}()
	}
	wg.Wait()

	assert.Len(t, titlesInOrder(t, db, "sheet-1"), 9)
}
