package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/askarbek-dev/kitchenline/internal/domain"
	"github.com/askarbek-dev/kitchenline/internal/interfaces"
)

type orderRepository struct {
	db DB
}

func NewOrderRepository(db DB) interfaces.OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `id, cafe_id, status, payment_method, receipt_ref, paid_amount,
       rejection_note, subtotal, tax, total, queue_position, displayed_at,
       timeout_at, has_long_items, created_at, updated_at`

func (r *orderRepository) Create(ctx context.Context, order *domain.Order, entry domain.AuditLog) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO orders (id, cafe_id, status, payment_method, receipt_ref, paid_amount,
		                    rejection_note, subtotal, tax, total, queue_position, displayed_at,
		                    timeout_at, has_long_items, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = tx.Exec(ctx, query,
		order.ID, order.CafeID, order.Status, nullMethod(order.Payment.Method), order.Payment.ReceiptRef,
		paidAmount(order), order.Payment.RejectionNote, order.Pricing.Subtotal, order.Pricing.Tax,
		order.Pricing.Total, order.QueuePosition, order.DisplayedAt, order.TimeoutAt,
		order.HasLongItems, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i, item := range order.Items {
		itemQuery := `
			INSERT INTO order_items (id, order_id, position, menu_item_id, name, price, quantity,
			                         cooking_type, time_to_cook_seconds, cooking_override)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		_, err = tx.Exec(ctx, itemQuery,
			item.ID, order.ID, i+1, item.MenuItemID, item.Name, item.Price, item.Quantity,
			item.CookingType, int(item.TimeToCook.Seconds()), overrideValue(item),
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if err := insertAuditEntry(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *orderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("order not found: %w", err)
	}

	if err := r.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateWithLog persists the order, its line item overrides, one audit
// entry and any queue renumbering in a single transaction.
func (r *orderRepository) UpdateWithLog(ctx context.Context, order *domain.Order, entry domain.AuditLog, repositioned ...*domain.Order) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Сверяем статус в той же команде: запись, рассчитанная от уже
	// ушедшего состояния, не должна пройти.
	query := `
		UPDATE orders
		SET status = $1, payment_method = $2, receipt_ref = $3, paid_amount = $4,
		    rejection_note = $5, queue_position = $6, displayed_at = $7, timeout_at = $8,
		    has_long_items = $9, updated_at = $10
		WHERE id = $11 AND status = $12
	`
	tag, err := tx.Exec(ctx, query,
		order.Status, nullMethod(order.Payment.Method), order.Payment.ReceiptRef, paidAmount(order),
		order.Payment.RejectionNote, order.QueuePosition, order.DisplayedAt, order.TimeoutAt,
		order.HasLongItems, order.UpdatedAt, order.ID, entry.PreviousState,
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s not found or modified concurrently", order.ID)
	}

	for _, item := range order.Items {
		_, err = tx.Exec(ctx,
			`UPDATE order_items SET cooking_override = $1 WHERE id = $2`,
			overrideValue(item), item.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update order item: %w", err)
		}
	}

	for _, q := range repositioned {
		_, err = tx.Exec(ctx,
			`UPDATE orders SET queue_position = $1, updated_at = $2 WHERE id = $3`,
			q.QueuePosition, time.Now().UTC(), q.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to renumber queue: %w", err)
		}
	}

	if err := insertAuditEntry(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *orderRepository) GetAuditLogs(ctx context.Context, orderID string) ([]*domain.AuditLog, error) {
	query := `
		SELECT id, order_id, previous_state, new_state, changed_by, actor_role, note, changed_at
		FROM order_audit_log
		WHERE order_id = $1
		ORDER BY changed_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var logs []*domain.AuditLog
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.OrderID, &entry.PreviousState, &entry.NewState,
			&entry.ChangedBy, &entry.Role, &entry.Note, &entry.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		logs = append(logs, &entry)
	}

	return logs, nil
}

func (r *orderRepository) ActiveOrder(ctx context.Context, cafeID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE cafe_id = $1 AND status = $2 LIMIT 1`

	rows, err := r.db.Query(ctx, query, cafeID, domain.StatusPreparing)
	if err != nil {
		return nil, fmt.Errorf("failed to query active order: %w", err)
	}

	var order *domain.Order
	if rows.Next() {
		order, err = scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
	}
	rows.Close()

	if order == nil {
		return nil, nil
	}
	if err := r.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) ListQueued(ctx context.Context, cafeID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE cafe_id = $1 AND status = $2
		ORDER BY queue_position ASC`

	return r.listOrders(ctx, query, cafeID, domain.StatusApproved)
}

func (r *orderRepository) ListOverdue(ctx context.Context, cafeID string, now time.Time) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE cafe_id = $1 AND status = $2 AND timeout_at < $3
		ORDER BY timeout_at ASC`

	return r.listOrders(ctx, query, cafeID, domain.StatusPreparing, now)
}

func (r *orderRepository) listOrders(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, order)
	}
	rows.Close()

	for _, order := range orders {
		if err := r.loadItems(ctx, order); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *orderRepository) loadItems(ctx context.Context, order *domain.Order) error {
	query := `
		SELECT id, order_id, menu_item_id, name, price, quantity, cooking_type,
		       time_to_cook_seconds, cooking_override
		FROM order_items
		WHERE order_id = $1
		ORDER BY position ASC
	`

	rows, err := r.db.Query(ctx, query, order.ID)
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		var seconds int
		var override *string
		if err := rows.Scan(&item.ID, &item.OrderID, &item.MenuItemID, &item.Name, &item.Price,
			&item.Quantity, &item.CookingType, &seconds, &override); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		item.TimeToCook = time.Duration(seconds) * time.Second
		if override != nil {
			ct := domain.CookingType(*override)
			item.CookingOverride = &ct
		}
		order.Items = append(order.Items, item)
	}

	return nil
}

func scanOrder(row Row) (*domain.Order, error) {
	var order domain.Order
	var method *string
	var paid decimal.NullDecimal

	err := row.Scan(
		&order.ID, &order.CafeID, &order.Status, &method, &order.Payment.ReceiptRef, &paid,
		&order.Payment.RejectionNote, &order.Pricing.Subtotal, &order.Pricing.Tax,
		&order.Pricing.Total, &order.QueuePosition, &order.DisplayedAt,
		&order.TimeoutAt, &order.HasLongItems, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	if method != nil {
		order.Payment.Method = domain.PaymentMethod(*method)
	}
	if paid.Valid {
		order.Payment.PaidAmount = &paid.Decimal
	}

	return &order, nil
}

func insertAuditEntry(ctx context.Context, tx Tx, entry domain.AuditLog) error {
	query := `
		INSERT INTO order_audit_log (order_id, previous_state, new_state, changed_by, actor_role, note, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.Exec(ctx, query,
		entry.OrderID, entry.PreviousState, entry.NewState, entry.ChangedBy, entry.Role, entry.Note, entry.ChangedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func nullMethod(m domain.PaymentMethod) *string {
	if m == "" {
		return nil
	}
	s := string(m)
	return &s
}

func overrideValue(item domain.OrderItem) *string {
	if item.CookingOverride == nil {
		return nil
	}
	s := string(*item.CookingOverride)
	return &s
}

func paidAmount(order *domain.Order) decimal.NullDecimal {
	if order.Payment.PaidAmount == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *order.Payment.PaidAmount, Valid: true}
}
