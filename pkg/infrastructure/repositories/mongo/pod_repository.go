package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vsinha/podsync/pkg/domain/entities"
	"github.com/vsinha/podsync/pkg/domain/repositories"
)

const (
	// PodsCollection is the collection holding hierarchical pod documents
	PodsCollection = "pods"
	// LocateBinLimit is the number of matches LocateBin stops at
	LocateBinLimit = 2
)

// PodRepository stores pod documents in MongoDB with an optimistic version field
type PodRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

var _ repositories.PodRepository = (*PodRepository)(nil)

func NewPodRepository(db *mongo.Database) *PodRepository {
	return &PodRepository{
		collection: db.Collection(PodsCollection),
		now:        time.Now,
	}
}

// EnsureIndexes creates the unique barcode index and the multikey index used
// to look up bins by location key
func (r *PodRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "podBarcode", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("podBarcode_unique"),
		},
		{
			Keys:    bson.D{{Key: "faces.bins.uBinId", Value: 1}},
			Options: options.Index().SetName("faces_bins_uBinId"),
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("failed to create pod indexes: %w", err)
	}
	return nil
}

func (r *PodRepository) Create(ctx context.Context, pod *entities.Pod) error {
	if err := pod.ValidateStructure(); err != nil {
		return err
	}

	pod.Version = 1
	pod.UpdatedAt = r.now().UTC()
	if _, err := r.collection.InsertOne(ctx, pod); err != nil {
		return translateWriteError("create pod "+pod.Barcode, err)
	}
	return nil
}

func (r *PodRepository) Get(ctx context.Context, barcode string) (*entities.Pod, error) {
	var pod entities.Pod
	err := r.collection.FindOne(ctx, bson.D{{Key: "podBarcode", Value: barcode}}).Decode(&pod)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("pod %s: %w", barcode, entities.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pod %s: %w", barcode, err)
	}
	return &pod, nil
}

// Save replaces the document only if its version is unchanged
func (r *PodRepository) Save(ctx context.Context, pod *entities.Pod) error {
	next := pod.Clone()
	next.Version = pod.Version + 1
	next.UpdatedAt = r.now().UTC()

	result, err := r.collection.ReplaceOne(ctx, VersionedFilter(pod.Barcode, pod.Version), next)
	if err != nil {
		return fmt.Errorf("failed to save pod %s: %w", pod.Barcode, err)
	}
	if result.MatchedCount == 0 {
		n, err := r.collection.CountDocuments(ctx, bson.D{{Key: "podBarcode", Value: pod.Barcode}})
		if err != nil {
			return fmt.Errorf("failed to check pod %s: %w", pod.Barcode, err)
		}
		if n == 0 {
			return fmt.Errorf("pod %s: %w", pod.Barcode, entities.ErrNotFound)
		}
		return fmt.Errorf("pod %s at version %d: %w", pod.Barcode, pod.Version, entities.ErrVersionConflict)
	}

	pod.Version = next.Version
	pod.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *PodRepository) Delete(ctx context.Context, barcode string) error {
	result, err := r.collection.DeleteOne(ctx, bson.D{{Key: "podBarcode", Value: barcode}})
	if err != nil {
		return fmt.Errorf("failed to delete pod %s: %w", barcode, err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("pod %s: %w", barcode, entities.ErrNotFound)
	}
	return nil
}

func (r *PodRepository) Barcodes(ctx context.Context) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.D{{Key: "_id", Value: 0}, {Key: "podBarcode", Value: 1}}).
		SetSort(bson.D{{Key: "podBarcode", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		Barcode string `bson:"podBarcode"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode pod barcodes: %w", err)
	}

	barcodes := make([]string, 0, len(docs))
	for _, d := range docs {
		barcodes = append(barcodes, d.Barcode)
	}
	return barcodes, nil
}

func (r *PodRepository) LocateBin(ctx context.Context, uBinID string) ([]entities.BinLocation, error) {
	if uBinID == "" {
		return []entities.BinLocation{}, nil
	}

	cursor, err := r.collection.Aggregate(ctx, LocateBinPipeline(uBinID, LocateBinLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to locate bin %s: %w", uBinID, err)
	}
	defer cursor.Close(ctx)

	locations := make([]entities.BinLocation, 0, LocateBinLimit)
	if err := cursor.All(ctx, &locations); err != nil {
		return nil, fmt.Errorf("failed to decode bin locations: %w", err)
	}
	return locations, nil
}

// VersionedFilter matches a pod document only at the given version. Version 0
// also matches documents written without a version field.
func VersionedFilter(barcode string, version int64) bson.D {
	if version == 0 {
		return bson.D{
			{Key: "podBarcode", Value: barcode},
			{Key: "$or", Value: bson.A{
				bson.D{{Key: "version", Value: bson.D{{Key: "$exists", Value: false}}}},
				bson.D{{Key: "version", Value: int64(0)}},
			}},
		}
	}
	return bson.D{
		{Key: "podBarcode", Value: barcode},
		{Key: "version", Value: version},
	}
}
