package db

import "database/sql"

// QuerierWithTx is a Querier that can be rebound to a transaction.
type QuerierWithTx interface {
	Querier
	WithTx(tx *sql.Tx) QuerierWithTx
}

type txQuerier struct {
	*Queries
}

func (q txQuerier) WithTx(tx *sql.Tx) QuerierWithTx {
	return txQuerier{q.Queries.WithTx(tx)}
}

// NewQuerier returns a transaction-capable Querier. Both dialects share the
// same positional-parameter SQL, so one implementation serves sqlite and mysql.
func NewQuerier(db *sql.DB) QuerierWithTx {
	return txQuerier{New(db)}
}
