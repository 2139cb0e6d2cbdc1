package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"rangebot-backend/internal/domain"
)

// PostgresTradeLedger stores order and position records in Postgres.
type PostgresTradeLedger struct {
	pool *pgxpool.Pool
}

func NewPostgresTradeLedger(pool *pgxpool.Pool) *PostgresTradeLedger {
	return &PostgresTradeLedger{pool: pool}
}

func (r *PostgresTradeLedger) RecordOrder(ctx context.Context, order *domain.Order) error {
	if order == nil {
		return errors.New("nil order")
	}

	_, err := r.pool.Exec(ctx, `
		insert into trade_orders(
			order_id, client_order_id, symbol, side, order_type,
			quantity, price, stop_price, status, created_at
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		on conflict (order_id, symbol) do update set
			status = excluded.status,
			price = excluded.price
	`,
		order.OrderID,
		order.ClientOrderID,
		order.Symbol,
		string(order.Side),
		string(order.Type),
		order.Quantity,
		order.Price,
		nullableFloat(order.StopPrice),
		order.Status,
		order.CreatedAt,
	)
	return err
}

func (r *PostgresTradeLedger) RecordPosition(ctx context.Context, position *domain.Position) error {
	if position == nil {
		return errors.New("nil position")
	}

	_, err := r.pool.Exec(ctx, `
		insert into trade_positions(
			id, symbol, side, quantity, entry_price, entry_time,
			status, exit_price, exit_time, exit_reason, profit_loss
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		position.ID,
		position.Symbol,
		string(position.Side),
		position.Quantity,
		position.EntryPrice,
		position.EntryTime,
		position.Status,
		nullableFloat(position.ExitPrice),
		nullableTime(position.ExitTime),
		position.ExitReason,
		nullableFloat(position.ProfitLoss),
	)
	return err
}

func (r *PostgresTradeLedger) UpdatePosition(ctx context.Context, position *domain.Position) error {
	if position == nil {
		return errors.New("nil position")
	}

	_, err := r.pool.Exec(ctx, `
		update trade_positions set
			symbol=$2,
			side=$3,
			quantity=$4,
			entry_price=$5,
			entry_time=$6,
			status=$7,
			exit_price=$8,
			exit_time=$9,
			exit_reason=$10,
			profit_loss=$11
		where id=$1
	`,
		position.ID,
		position.Symbol,
		string(position.Side),
		position.Quantity,
		position.EntryPrice,
		position.EntryTime,
		position.Status,
		nullableFloat(position.ExitPrice),
		nullableTime(position.ExitTime),
		position.ExitReason,
		nullableFloat(position.ProfitLoss),
	)
	return err
}

func (r *PostgresTradeLedger) PositionHistory(ctx context.Context, fromTime time.Time) ([]*domain.Position, error) {
	rows, err := r.pool.Query(ctx, `
		select id, symbol, side, quantity, entry_price, entry_time,
			status, exit_price, exit_time, exit_reason, profit_loss
		from trade_positions
		where status = 'CLOSED' and exit_time is not null and exit_time >= $1
		order by exit_time desc
	`, fromTime)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		position, scanErr := scanPosition(rows)
		if scanErr != nil {
			continue
		}
		positions = append(positions, position)
	}
	return positions, rows.Err()
}

// Helpers

type scanner interface {
	Scan(dest ...any) error
}

func scanPosition(s scanner) (*domain.Position, error) {
	var p domain.Position
	var side string
	var exitPrice pgtype.Float8
	var exitTime pgtype.Timestamptz
	var profitLoss pgtype.Float8

	if err := s.Scan(
		&p.ID,
		&p.Symbol,
		&side,
		&p.Quantity,
		&p.EntryPrice,
		&p.EntryTime,
		&p.Status,
		&exitPrice,
		&exitTime,
		&p.ExitReason,
		&profitLoss,
	); err != nil {
		return nil, err
	}

	p.Side = domain.PositionSide(side)
	if exitPrice.Valid {
		v := exitPrice.Float64
		p.ExitPrice = &v
	}
	if exitTime.Valid {
		v := exitTime.Time
		p.ExitTime = &v
	}
	if profitLoss.Valid {
		v := profitLoss.Float64
		p.ProfitLoss = &v
	}

	return &p, nil
}

func nullableFloat(v *float64) any {
	if v == nil {
		return pgtype.Float8{Valid: false}
	}
	return pgtype.Float8{Valid: true, Float64: *v}
}

func nullableTime(v *time.Time) any {
	if v == nil {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Valid: true, Time: *v}
}

// compile-time check
var _ domain.TradeLedger = (*PostgresTradeLedger)(nil)
