package replay

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/rewind/internal/record"
	"github.com/SmitUplenchwar2687/rewind/internal/storage"
)

// Load opens a stored session and decodes it. Errors from the store, such as
// storage.ErrNotFound, are wrapped.
func Load(ctx context.Context, store storage.Store, name string, log *zap.Logger) (*record.Session, error) {
	rc, err := store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open session %q: %w", name, err)
	}
	defer rc.Close()

	sess, err := record.NewLineDecoder(log).Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("decode session %q: %w", name, err)
	}
	return sess, nil
}
