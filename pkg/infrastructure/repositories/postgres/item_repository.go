package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/vsinha/podsync/pkg/domain/entities"
	"github.com/vsinha/podsync/pkg/domain/repositories"
)

// uniqueViolation is the SQLSTATE postgres reports for a unique index conflict
const uniqueViolation = "23505"

const itemColumns = `stock_code, u_bin_id, status, quantity, catalog_code, pod_hint, owner, last_updated`

const schema = `
CREATE TABLE IF NOT EXISTS items (
	stock_code VARCHAR(255) PRIMARY KEY,
	u_bin_id VARCHAR(255) NOT NULL DEFAULT '',
	status VARCHAR(32) NOT NULL DEFAULT 'available',
	quantity INTEGER NOT NULL DEFAULT 1 CHECK (quantity >= 0),
	catalog_code VARCHAR(255) NOT NULL DEFAULT '',
	pod_hint VARCHAR(64) NOT NULL DEFAULT '',
	owner VARCHAR(255) NOT NULL DEFAULT '',
	last_updated TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_items_u_bin_id ON items(u_bin_id) WHERE u_bin_id <> '';
CREATE INDEX IF NOT EXISTS idx_items_status ON items(status);
`

// ItemRepository stores flat item records in a postgres table
type ItemRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ repositories.ItemRepository = (*ItemRepository)(nil)

func NewItemRepository(db *sqlx.DB) *ItemRepository {
	return &ItemRepository{db: db, now: time.Now}
}

// Migrate creates the items table and its indexes
func (r *ItemRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to run item migrations: %w", err)
	}
	return nil
}

func (r *ItemRepository) Create(ctx context.Context, item *entities.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}

	item.LastUpdated = r.now().UTC()
	query := `INSERT INTO items (` + itemColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query, itemArgs(item)...); err != nil {
		return translateError("create item "+item.StockCode, err)
	}
	return nil
}

func (r *ItemRepository) Get(ctx context.Context, stockCode string) (*entities.Item, error) {
	return r.getOne(ctx, "stock_code", stockCode, "item "+stockCode)
}

func (r *ItemRepository) Update(ctx context.Context, item *entities.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}

	item.LastUpdated = r.now().UTC()
	query := `
		UPDATE items
		SET u_bin_id = $2, status = $3, quantity = $4, catalog_code = $5, pod_hint = $6, owner = $7, last_updated = $8
		WHERE stock_code = $1`
	result, err := r.db.ExecContext(ctx, query, itemArgs(item)...)
	if err != nil {
		return translateError("update item "+item.StockCode, err)
	}
	return requireRow(result, "item "+item.StockCode)
}

func (r *ItemRepository) Delete(ctx context.Context, stockCode string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE stock_code = $1`, stockCode)
	if err != nil {
		return fmt.Errorf("failed to delete item %s: %w", stockCode, err)
	}
	return requireRow(result, "item "+stockCode)
}

func (r *ItemRepository) UpsertByStockCode(ctx context.Context, item *entities.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}

	item.LastUpdated = r.now().UTC()
	query := `
		INSERT INTO items (` + itemColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (stock_code) DO UPDATE SET
			u_bin_id = EXCLUDED.u_bin_id,
			status = EXCLUDED.status,
			quantity = EXCLUDED.quantity,
			catalog_code = EXCLUDED.catalog_code,
			pod_hint = EXCLUDED.pod_hint,
			owner = EXCLUDED.owner,
			last_updated = EXCLUDED.last_updated`
	if _, err := r.db.ExecContext(ctx, query, itemArgs(item)...); err != nil {
		return translateError("upsert item "+item.StockCode, err)
	}
	return nil
}

func (r *ItemRepository) FindByLocation(ctx context.Context, uBinID string) (*entities.Item, error) {
	if uBinID == "" {
		return nil, fmt.Errorf("empty location: %w", entities.ErrNotFound)
	}
	return r.getOne(ctx, "u_bin_id", uBinID, "location "+uBinID)
}

func (r *ItemRepository) Find(ctx context.Context, filter repositories.ItemFilter) ([]*entities.Item, error) {
	query, args := BuildFindQuery(filter, nil)
	return r.selectItems(ctx, query, args)
}

func (r *ItemRepository) FindByLocations(ctx context.Context, uBinIDs []string, filter repositories.ItemFilter) ([]*entities.Item, error) {
	if len(uBinIDs) == 0 {
		return []*entities.Item{}, nil
	}
	query, args := BuildFindQuery(filter, uBinIDs)
	return r.selectItems(ctx, query, args)
}

func (r *ItemRepository) UpdateLocation(ctx context.Context, stockCode, uBinID, podHint string) error {
	query := `UPDATE items SET u_bin_id = $2, pod_hint = $3, last_updated = $4 WHERE stock_code = $1`
	result, err := r.db.ExecContext(ctx, query, stockCode, uBinID, podHint, r.now().UTC())
	if err != nil {
		return translateError("update location of "+stockCode, err)
	}
	return requireRow(result, "item "+stockCode)
}

func (r *ItemRepository) UpdateStatus(ctx context.Context, stockCode string, status entities.ItemStatus) error {
	if !status.Valid() {
		return entities.Validationf("invalid status %q for %s", status, stockCode)
	}

	query := `UPDATE items SET status = $2, last_updated = $3 WHERE stock_code = $1`
	result, err := r.db.ExecContext(ctx, query, stockCode, string(status), r.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update status of %s: %w", stockCode, err)
	}
	return requireRow(result, "item "+stockCode)
}

func (r *ItemRepository) UpdateQuantity(ctx context.Context, stockCode string, quantity int) error {
	if quantity < 0 {
		return entities.Validationf("quantity cannot be negative, got %d", quantity)
	}

	query := `UPDATE items SET quantity = $2, last_updated = $3 WHERE stock_code = $1`
	result, err := r.db.ExecContext(ctx, query, stockCode, quantity, r.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update quantity of %s: %w", stockCode, err)
	}
	return requireRow(result, "item "+stockCode)
}

func (r *ItemRepository) Count(ctx context.Context, filter repositories.ItemFilter) (int, error) {
	where, args := buildWhere(filter, nil)
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM items`+where, args...); err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}

func (r *ItemRepository) getOne(ctx context.Context, column, value, what string) (*entities.Item, error) {
	var item entities.Item
	query := `SELECT ` + itemColumns + ` FROM items WHERE ` + column + ` = $1`
	err := r.db.GetContext(ctx, &item, query, value)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s: %w", what, entities.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", what, err)
	}
	return &item, nil
}

func (r *ItemRepository) selectItems(ctx context.Context, query string, args []any) ([]*entities.Item, error) {
	items := make([]*entities.Item, 0)
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to find items: %w", err)
	}
	return items, nil
}

// BuildFindQuery renders the SELECT for a filter, optionally restricted to a
// set of location keys, ordered by stock code
func BuildFindQuery(filter repositories.ItemFilter, uBinIDs []string) (string, []any) {
	where, args := buildWhere(filter, uBinIDs)
	return `SELECT ` + itemColumns + ` FROM items` + where + ` ORDER BY stock_code`, args
}

func buildWhere(filter repositories.ItemFilter, uBinIDs []string) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if uBinIDs != nil {
		add("u_bin_id = ANY($%d)", pq.Array(uBinIDs))
	}
	if filter.StockCode != "" {
		add("stock_code = $%d", filter.StockCode)
	} else if filter.StockCodePrefix != "" {
		add(`stock_code LIKE $%d ESCAPE '\'`, likePrefix(filter.StockCodePrefix))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.UBinID != "" {
		add("u_bin_id = $%d", filter.UBinID)
	} else if filter.UBinIDPrefix != "" {
		add(`u_bin_id LIKE $%d ESCAPE '\'`, likePrefix(filter.UBinIDPrefix))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}

func itemArgs(item *entities.Item) []any {
	return []any{
		item.StockCode,
		item.UBinID,
		string(item.Status),
		item.Quantity,
		item.CatalogCode,
		item.PodHint,
		item.Owner,
		item.LastUpdated,
	}
}

func requireRow(result sql.Result, what string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", what, entities.ErrNotFound)
	}
	return nil
}

func translateError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", op, entities.ErrDuplicateKey)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
