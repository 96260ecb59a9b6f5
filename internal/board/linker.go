package board

import (
	"context"
	"errors"
	"fmt"

	"taskboard/internal/store"
)

// Linker keeps parent id arrays in step with the children they name. The
// child must already be stored; both steps share the caller's transaction.
type Linker struct {
	limits *LimitEnforcer
}

func NewLinker(limits *LimitEnforcer) *Linker {
	return &Linker{limits: limits}
}

// LinkChild appends childID to the parent's array. A limit of zero means
// uncapped. Linking an id that is already present is a no-op.
func (l *Linker) LinkChild(ctx context.Context, tx store.Store, field store.ArrayField, parentID, childID string, limit int) error {
	_, err := tx.Push(ctx, field, parentID, childID, limit)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s parent %s does not exist", field, parentID), Err: err}
	case errors.Is(err, store.ErrLimitReached):
		return l.limits.translate(err, field)
	default:
		return fmt.Errorf("link %s: %w", field, err)
	}
}

// UnlinkChild reports whether the id was present. A missing parent counts
// as nothing to unlink.
func (l *Linker) UnlinkChild(ctx context.Context, tx store.Store, field store.ArrayField, parentID, childID string) (bool, error) {
	removed, err := tx.Pull(ctx, field, parentID, childID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("unlink %s: %w", field, err)
	}
	return removed, nil
}
