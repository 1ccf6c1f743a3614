package repositories

import (
	"context"

	"github.com/vsinha/podsync/pkg/domain/entities"
)

// PodRepository provides access to the hierarchical pod structure store.
// It enforces barcode uniqueness only; UBinID uniqueness across bins is
// checked by callers before insert.
type PodRepository interface {
	Create(ctx context.Context, pod *entities.Pod) error
	Get(ctx context.Context, barcode string) (*entities.Pod, error)

	// Save replaces the pod document if its stored version still equals
	// pod.Version, then increments the version. A stale version fails with
	// entities.ErrVersionConflict.
	Save(ctx context.Context, pod *entities.Pod) error

	Delete(ctx context.Context, barcode string) error

	// Barcodes lists every pod barcode in ascending order.
	Barcodes(ctx context.Context) ([]string, error)

	// LocateBin finds bins carrying uBinID by unwinding faces and bins in
	// structural order. At most two matches are returned so callers can
	// detect ambiguity without scanning further.
	LocateBin(ctx context.Context, uBinID string) ([]entities.BinLocation, error)
}
