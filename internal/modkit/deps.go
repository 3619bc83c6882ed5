package modkit

import (
	"context"

	"instapilot/internal/modkit/repokit"
	"instapilot/internal/platform/config"
	"instapilot/internal/platform/logger"
	"instapilot/internal/platform/store"
)

// Deps holds the process-wide dependencies passed to every module.
// PG and CH are nil when the backend is disabled
type Deps struct {
	Log   logger.Logger
	Cfg   config.Conf
	PG    repokit.TxRunner
	CH    store.Clickhouse
	Guard func(context.Context) error
}
