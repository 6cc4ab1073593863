package main

import (
	"database/sql"

	"github.com/trezcool/goose"

	appfs "github.com/trezcool/shule/fs"
)

// mockable
var gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
	return goose.RunFS(command, db, appfs.FS, dir, args...)
}

func (cli *commandLine) migrate(args []string) error {
	return gooseRunFunc(args[0], cli.db, "migrations", args[1:]...)
}
