// Package repokit holds the seams repos are written against
package repokit

import "instapilot/internal/platform/store"

// Queryer is the read and write surface a bound repo uses
type Queryer = store.RowQuerier

// TxRunner is a Queryer that can also open a transaction
type TxRunner = store.TxRunner

// Binder binds a repo to a Queryer, either the pool or an open transaction
type Binder[T any] interface {
	Bind(Queryer) T
}
