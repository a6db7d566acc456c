package main

import (
	"github.com/DawitTemesgen1/akilesiya-backend/storage/database"
)

var migrateFunc = database.Migrate // mockable

func (cli *commandLine) migrate() error {
	return migrateFunc(cli.db)
}
