// Package layout keeps the result views of a sheet in a dense 1..N order.
package layout

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jdziat/workbench-jobs/pkg/core"
)

// Reconciler moves, appends, and deletes result views while keeping
// layout_index contiguous. Mutations on the same sheet are serialized by an
// in-process lock and each runs in one transaction.
type Reconciler struct {
	db     *gorm.DB
	logger *zap.Logger
	locks  sync.Map // sheet id -> *sync.Mutex
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the reconciler's logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Reconciler over db.
func New(db *gorm.DB, opts ...Option) *Reconciler {
	r := &Reconciler{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reconciler) lock(sheetID string) func() {
	v, _ := r.locks.LoadOrStore(sheetID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// AppendView inserts view at the end of its sheet (layout_index = N+1).
func (r *Reconciler) AppendView(ctx context.Context, view *core.ResultView) error {
	if view.SheetID == "" {
		return core.ErrMissingSheetID
	}
	defer r.lock(view.SheetID)()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&core.ResultView{}).Where("sheet_id = ?", view.SheetID).Count(&count).Error; err != nil {
			return err
		}
		next := int(count) + 1
		view.LayoutIndex = &next
		return tx.Create(view).Error
	})
}

// MoveView removes the view from its current position and re-inserts it at
// the 0-based insertion point target among the remaining views, then
// renumbers the sheet. Unknown view ids are a no-op.
func (r *Reconciler) MoveView(ctx context.Context, sheetID, viewID string, target int) error {
	if sheetID == "" {
		return core.ErrMissingSheetID
	}
	defer r.lock(sheetID)()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		views, err := loadOrdered(tx, sheetID)
		if err != nil {
			return err
		}
		from := indexOf(views, viewID)
		if from < 0 {
			r.logger.Debug("move of unknown view ignored", zap.String("sheet_id", sheetID), zap.String("view_id", viewID))
			return nil
		}
		return applyOrder(tx, sheetID, Move(views, from, target))
	})
}

// DeleteView deletes the view and renumbers the surviving siblings,
// preserving their relative order.
func (r *Reconciler) DeleteView(ctx context.Context, sheetID, viewID string) error {
	if sheetID == "" {
		return core.ErrMissingSheetID
	}
	defer r.lock(sheetID)()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND sheet_id = ?", viewID, sheetID).Delete(&core.ResultView{}).Error
		if err != nil {
			return err
		}
		views, err := loadOrdered(tx, sheetID)
		if err != nil {
			return err
		}
		return applyOrder(tx, sheetID, views)
	})
}

// Reindex renumbers a sheet's views 1..N in their current order. It repairs
// gaps, duplicates, and null indexes.
func (r *Reconciler) Reindex(ctx context.Context, sheetID string) error {
	if sheetID == "" {
		return core.ErrMissingSheetID
	}
	defer r.lock(sheetID)()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		views, err := loadOrdered(tx, sheetID)
		if err != nil {
			return err
		}
		return applyOrder(tx, sheetID, views)
	})
}

// loadOrdered fetches a sheet's views sorted by their current index.
func loadOrdered(tx *gorm.DB, sheetID string) ([]*core.ResultView, error) {
	var views []*core.ResultView
	if err := tx.Where("sheet_id = ?", sheetID).Find(&views).Error; err != nil {
		return nil, err
	}
	SortByLayout(views)
	return views, nil
}

// SortByLayout orders views by layout_index ascending. Views without an
// index sort last, and ties fall back to id so the order is deterministic.
func SortByLayout(views []*core.ResultView) {
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i], views[j]
		switch {
		case a.LayoutIndex == nil && b.LayoutIndex == nil:
			return a.ID < b.ID
		case a.LayoutIndex == nil:
			return false
		case b.LayoutIndex == nil:
			return true
		case *a.LayoutIndex != *b.LayoutIndex:
			return *a.LayoutIndex < *b.LayoutIndex
		default:
			return a.ID < b.ID
		}
	})
}

func indexOf(views []*core.ResultView, id string) int {
	for i, v := range views {
		if v.ID == id {
			return i
		}
	}
	return -1
}

// Move returns a new slice with the element at from re-inserted at target,
// where target is a 0-based position in the list without the element.
// Targets out of range are clamped.
func Move[T any](items []T, from, target int) []T {
	if from < 0 || from >= len(items) {
		return append([]T(nil), items...)
	}
	moved := items[from]
	rest := make([]T, 0, len(items))
	rest = append(rest, items[:from]...)
	rest = append(rest, items[from+1:]...)

	if target < 0 {
		target = 0
	}
	if target > len(rest) {
		target = len(rest)
	}
	out := make([]T, 0, len(items))
	out = append(out, rest[:target]...)
	out = append(out, moved)
	out = append(out, rest[target:]...)
	return out
}

// Changes maps view id to its new index for every view whose position
// differs from index+1.
func Changes(views []*core.ResultView) map[string]int {
	changed := make(map[string]int)
	for i, v := range views {
		want := i + 1
		if v.LayoutIndex == nil || *v.LayoutIndex != want {
			changed[v.ID] = want
		}
	}
	return changed
}

// applyOrder persists index = position+1 for every view whose index
// changed, in one UPDATE ... CASE statement.
func applyOrder(tx *gorm.DB, sheetID string, views []*core.ResultView) error {
	changed := Changes(views)
	if len(changed) == 0 {
		return nil
	}
	stmt, args := BulkUpdate(sheetID, views, changed)
	result := tx.Exec(stmt, args...)
	if result.Error != nil {
		return fmt.Errorf("layout: reindex sheet %s: %w", sheetID, result.Error)
	}
	if result.RowsAffected != int64(len(changed)) {
		return fmt.Errorf("layout: reindex sheet %s: updated %d of %d views", sheetID, result.RowsAffected, len(changed))
	}
	for _, v := range views {
		if idx, ok := changed[v.ID]; ok {
			idx := idx
			v.LayoutIndex = &idx
		}
	}
	return nil
}

// BulkUpdate builds the conditional update for the changed views, listed in
// layout order so the statement is stable.
func BulkUpdate(sheetID string, views []*core.ResultView, changed map[string]int) (string, []any) {
	var sb strings.Builder
	sb.WriteString("UPDATE result_views SET layout_index = CASE id")
	args := make([]any, 0, len(changed)*2+2)
	ids := make([]string, 0, len(changed))
	for _, v := range views {
		idx, ok := changed[v.ID]
		if !ok {
			continue
		}
		sb.WriteString(" WHEN ? THEN ?")
		args = append(args, v.ID, idx)
		ids = append(ids, v.ID)
	}
	sb.WriteString(" ELSE layout_index END WHERE sheet_id = ? AND id IN ?")
	args = append(args, sheetID, ids)
	return sb.String(), args
}
