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

// ItemsCollection is the collection holding flat item records
const ItemsCollection = "items"

// ItemRepository stores items in MongoDB. Stock code and location key
// uniqueness are enforced by unique indexes created in EnsureIndexes.
type ItemRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

var _ repositories.ItemRepository = (*ItemRepository)(nil)

func NewItemRepository(db *mongo.Database) *ItemRepository {
	return &ItemRepository{
		collection: db.Collection(ItemsCollection),
		now:        time.Now,
	}
}

// EnsureIndexes creates the unique indexes on stockCode and uBinId. Empty
// location keys are excluded from uniqueness.
func (r *ItemRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "stockCode", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("stockCode_unique"),
		},
		{
			Keys: bson.D{{Key: "uBinId", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("uBinId_unique").
				SetPartialFilterExpression(bson.D{{Key: "uBinId", Value: bson.D{{Key: "$gt", Value: ""}}}}),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetName("status"),
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("failed to create item indexes: %w", err)
	}
	return nil
}

func (r *ItemRepository) Create(ctx context.Context, item *entities.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}

	item.LastUpdated = r.now().UTC()
	if _, err := r.collection.InsertOne(ctx, item); err != nil {
		return translateWriteError("create item "+item.StockCode, err)
	}
	return nil
}

func (r *ItemRepository) Get(ctx context.Context, stockCode string) (*entities.Item, error) {
	return r.findOne(ctx, bson.D{{Key: "stockCode", Value: stockCode}}, "item "+stockCode)
}

func (r *ItemRepository) Update(ctx context.Context, item *entities.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}

	item.LastUpdated = r.now().UTC()
	result, err := r.collection.ReplaceOne(ctx, bson.D{{Key: "stockCode", Value: item.StockCode}}, item)
	if err != nil {
		return translateWriteError("update item "+item.StockCode, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("item %s: %w", item.StockCode, entities.ErrNotFound)
	}
	return nil
}

func (r *ItemRepository) Delete(ctx context.Context, stockCode string) error {
	result, err := r.collection.DeleteOne(ctx, bson.D{{Key: "stockCode", Value: stockCode}})
	if err != nil {
		return fmt.Errorf("failed to delete item %s: %w", stockCode, err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("item %s: %w", stockCode, entities.ErrNotFound)
	}
	return nil
}

func (r *ItemRepository) UpsertByStockCode(ctx context.Context, item *entities.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}

	item.LastUpdated = r.now().UTC()
	_, err := r.collection.ReplaceOne(ctx,
		bson.D{{Key: "stockCode", Value: item.StockCode}},
		item,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return translateWriteError("upsert item "+item.StockCode, err)
	}
	return nil
}

func (r *ItemRepository) FindByLocation(ctx context.Context, uBinID string) (*entities.Item, error) {
	if uBinID == "" {
		return nil, fmt.Errorf("empty location: %w", entities.ErrNotFound)
	}
	return r.findOne(ctx, bson.D{{Key: "uBinId", Value: uBinID}}, "location "+uBinID)
}

func (r *ItemRepository) Find(ctx context.Context, filter repositories.ItemFilter) ([]*entities.Item, error) {
	return r.find(ctx, ItemFilterDocument(filter))
}

func (r *ItemRepository) FindByLocations(ctx context.Context, uBinIDs []string, filter repositories.ItemFilter) ([]*entities.Item, error) {
	if len(uBinIDs) == 0 {
		return []*entities.Item{}, nil
	}
	return r.find(ctx, LocationsFilterDocument(uBinIDs, filter))
}

func (r *ItemRepository) UpdateLocation(ctx context.Context, stockCode, uBinID, podHint string) error {
	return r.updateFields(ctx, stockCode, bson.D{
		{Key: "uBinId", Value: uBinID},
		{Key: "podHint", Value: podHint},
	})
}

func (r *ItemRepository) UpdateStatus(ctx context.Context, stockCode string, status entities.ItemStatus) error {
	if !status.Valid() {
		return entities.Validationf("invalid status %q for %s", status, stockCode)
	}
	return r.updateFields(ctx, stockCode, bson.D{{Key: "status", Value: string(status)}})
}

func (r *ItemRepository) UpdateQuantity(ctx context.Context, stockCode string, quantity int) error {
	if quantity < 0 {
		return entities.Validationf("quantity cannot be negative, got %d", quantity)
	}
	return r.updateFields(ctx, stockCode, bson.D{{Key: "quantity", Value: quantity}})
}

func (r *ItemRepository) Count(ctx context.Context, filter repositories.ItemFilter) (int, error) {
	n, err := r.collection.CountDocuments(ctx, ItemFilterDocument(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return int(n), nil
}

// updateFields applies a targeted $set and stamps lastUpdated
func (r *ItemRepository) updateFields(ctx context.Context, stockCode string, fields bson.D) error {
	fields = append(fields, bson.E{Key: "lastUpdated", Value: r.now().UTC()})
	result, err := r.collection.UpdateOne(ctx,
		bson.D{{Key: "stockCode", Value: stockCode}},
		bson.D{{Key: "$set", Value: fields}},
	)
	if err != nil {
		return translateWriteError("update item "+stockCode, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("item %s: %w", stockCode, entities.ErrNotFound)
	}
	return nil
}

func (r *ItemRepository) findOne(ctx context.Context, filter bson.D, what string) (*entities.Item, error) {
	var item entities.Item
	err := r.collection.FindOne(ctx, filter).Decode(&item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s: %w", what, entities.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", what, err)
	}
	return &item, nil
}

func (r *ItemRepository) find(ctx context.Context, filter bson.D) ([]*entities.Item, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "stockCode", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find items: %w", err)
	}
	defer cursor.Close(ctx)

	items := make([]*entities.Item, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}
	return items, nil
}

func translateWriteError(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", op, entities.ErrDuplicateKey)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
