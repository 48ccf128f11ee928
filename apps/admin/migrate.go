package main

import "github.com/trezcool/alama/storage/database"

var gooseRunFunc = database.RunMigrations // mockable

func (cli *commandLine) migrate(args []string) error {
	return gooseRunFunc(args[0], cli.db, args[1:]...)
}
