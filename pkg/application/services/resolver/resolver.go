package resolver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync/atomic"
	"time"

	"github.com/vsinha/podsync/pkg/application/dto"
	"github.com/vsinha/podsync/pkg/domain/entities"
	"github.com/vsinha/podsync/pkg/domain/repositories"
)

// DefaultSlowJoinThreshold is the join duration above which a pass is logged
const DefaultSlowJoinThreshold = 2 * time.Second

// Strategy selects how a location query is answered
type Strategy string

const (
	StrategyJoin Strategy = "join"
	StrategyPod  Strategy = "pod"
	StrategyAuto Strategy = "auto"
)

// ParseStrategy parses a strategy name
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyJoin, StrategyPod, StrategyAuto:
		return Strategy(s), nil
	case "":
		return StrategyAuto, nil
	default:
		return "", entities.Validationf("unknown strategy %q (expected: join, pod, or auto)", s)
	}
}

// Resolver attaches structural locations to flat item records
type Resolver struct {
	itemRepo repositories.ItemRepository
	podRepo  repositories.PodRepository
	logger   *log.Logger

	// SlowJoinThreshold is the join duration that triggers a log line
	SlowJoinThreshold time.Duration

	ambiguousMatches atomic.Int64
	fallbacks        atomic.Int64
}

// NewResolver creates a new location resolver
func NewResolver(
	itemRepo repositories.ItemRepository,
	podRepo repositories.PodRepository,
	logger *log.Logger,
) *Resolver {
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{
		itemRepo:          itemRepo,
		podRepo:           podRepo,
		logger:            logger,
		SlowJoinThreshold: DefaultSlowJoinThreshold,
	}
}

// AmbiguousMatches returns how many items resolved to more than one bin
func (r *Resolver) AmbiguousMatches() int64 {
	return r.ambiguousMatches.Load()
}

// Fallbacks returns how many fast-path queries were downgraded to the join
func (r *Resolver) Fallbacks() int64 {
	return r.fallbacks.Load()
}

// Resolve answers pod-scoped filters with the per-pod strategy and falls back
// to the join when it fails. Store-wide filters always use the join.
func (r *Resolver) Resolve(ctx context.Context, filter LocateFilter) ([]dto.LocatedItem, error) {
	if filter.PodBarcode == "" {
		return r.ResolveByJoin(ctx, filter)
	}

	located, err := r.ResolveByPod(ctx, filter.PodBarcode, filter)
	if err == nil {
		return located, nil
	}

	r.fallbacks.Add(1)
	r.logger.Printf("Per-pod lookup for %s failed, falling back to join: %v", filter.PodBarcode, err)
	return r.ResolveByJoin(ctx, filter)
}

// ResolveWith answers the filter with an explicit strategy
func (r *Resolver) ResolveWith(ctx context.Context, strategy Strategy, filter LocateFilter) ([]dto.LocatedItem, error) {
	switch strategy {
	case StrategyJoin:
		return r.ResolveByJoin(ctx, filter)
	case StrategyPod:
		if filter.PodBarcode == "" {
			return nil, entities.Validationf("pod strategy requires a pod barcode")
		}
		return r.ResolveByPod(ctx, filter.PodBarcode, filter)
	default:
		return r.Resolve(ctx, filter)
	}
}

// ResolveByJoin drives the query from the item store and looks up the bin of
// every matched item. Cost grows with matched items times pod fan-out.
func (r *Resolver) ResolveByJoin(ctx context.Context, filter LocateFilter) ([]dto.LocatedItem, error) {
	start := time.Now()

	items, err := r.itemRepo.Find(ctx, filter.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to find items: %w", err)
	}

	located := make([]dto.LocatedItem, 0, len(items))
	for _, item := range items {
		loc, err := r.locate(ctx, item)
		if err != nil {
			return nil, err
		}
		if !filter.MatchesLocation(loc) {
			continue
		}
		located = append(located, dto.LocatedItem{Item: *item, Location: loc})
	}
	sortLocated(located)

	if elapsed := time.Since(start); r.SlowJoinThreshold > 0 && elapsed > r.SlowJoinThreshold {
		r.logger.Printf("Slow join: %d items resolved in %v (threshold %v)", len(items), elapsed, r.SlowJoinThreshold)
	}

	return located, nil
}

func (r *Resolver) locate(ctx context.Context, item *entities.Item) (*entities.BinLocation, error) {
	if item.UBinID == "" {
		return nil, nil
	}

	matches, err := r.podRepo.LocateBin(ctx, item.UBinID)
	if err != nil {
		return nil, fmt.Errorf("failed to locate bin for %s: %w", item.StockCode, err)
	}
	if len(matches) == 0 {
		return nil, nil
	}
	if len(matches) > 1 {
		r.ambiguousMatches.Add(1)
		r.logger.Printf("Data quality: uBinId %s of %s matches bins %s/%s and %s/%s, using the first",
			item.UBinID, item.StockCode,
			matches[0].PodBarcode, matches[0].BinID,
			matches[1].PodBarcode, matches[1].BinID)
	}

	loc := matches[0]
	return &loc, nil
}

// ResolveByPod drives the query from one pod document: one structural fetch
// and one item query. A missing pod yields an empty result.
func (r *Resolver) ResolveByPod(ctx context.Context, barcode string, filter LocateFilter) ([]dto.LocatedItem, error) {
	pod, err := r.podRepo.Get(ctx, barcode)
	if errors.Is(err, entities.ErrNotFound) {
		return []dto.LocatedItem{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pod %s: %w", barcode, err)
	}

	// first occurrence wins before face/bin filters apply, as in the join
	firstBin := make(map[string]string)
	locations := make(map[string]entities.BinLocation)
	uBinIDs := make([]string, 0)
	for _, face := range pod.Faces {
		for _, bin := range face.Bins {
			if bin.UBinID == "" {
				continue
			}
			if first, dup := firstBin[bin.UBinID]; dup {
				r.ambiguousMatches.Add(1)
				r.logger.Printf("Data quality: uBinId %s appears in %s and %s of pod %s, using the first",
					bin.UBinID, first, bin.BinID, pod.Barcode)
				continue
			}
			firstBin[bin.UBinID] = bin.BinID
			if !filter.matchesBin(face.Letter, bin.BinID) {
				continue
			}
			locations[bin.UBinID] = entities.BinLocation{
				PodBarcode:   pod.Barcode,
				FaceLetter:   face.Letter,
				BinID:        bin.BinID,
				UBinID:       bin.UBinID,
				BinItemCount: bin.BinItemCount,
			}
			uBinIDs = append(uBinIDs, bin.UBinID)
		}
	}

	if len(uBinIDs) == 0 {
		return []dto.LocatedItem{}, nil
	}

	items, err := r.itemRepo.FindByLocations(ctx, uBinIDs, filter.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to find items in pod %s: %w", barcode, err)
	}

	located := make([]dto.LocatedItem, 0, len(items))
	for _, item := range items {
		loc, ok := locations[item.UBinID]
		if !ok {
			continue
		}
		located = append(located, dto.LocatedItem{Item: *item, Location: &loc})
	}
	sortLocated(located)
	return located, nil
}

func sortLocated(located []dto.LocatedItem) {
	sort.Slice(located, func(i, j int) bool {
		return located[i].StockCode < located[j].StockCode
	})
}
