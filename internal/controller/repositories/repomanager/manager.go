package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/ghgadelivery/internal/controller/repositories/files"
	"github.com/dmitrijs2005/ghgadelivery/internal/controller/repositories/tickets"
	"github.com/dmitrijs2005/ghgadelivery/internal/dbx"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Files(db dbx.DBTX) files.Repository
	Tickets(db dbx.DBTX) tickets.Repository
}
