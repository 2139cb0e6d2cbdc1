package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the minimal tables needed by the trade ledger.
// This keeps setup simple (no external migration tool), but still gives persistence.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`create table if not exists trade_orders (
			order_id bigint not null,
			client_order_id text not null default '',
			symbol text not null,
			side text not null,
			order_type text not null,
			quantity double precision not null,
			price double precision not null,
			stop_price double precision null,
			status text not null,
			created_at timestamptz not null,
			recorded_at timestamptz not null default now(),
			primary key (order_id, symbol)
		);`,
		`create index if not exists trade_orders_symbol_created_idx on trade_orders(symbol, created_at desc);`,
		`create table if not exists trade_positions (
			id text primary key,
			symbol text not null,
			side text not null,
			quantity double precision not null,
			entry_price double precision not null,
			entry_time timestamptz not null,
			status text not null,
			exit_price double precision null,
			exit_time timestamptz null,
			exit_reason text not null default '',
			profit_loss double precision null
		);`,
		`create index if not exists trade_positions_status_idx on trade_positions(status);`,
		`create index if not exists trade_positions_symbol_exit_time_idx on trade_positions(symbol, exit_time desc);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
