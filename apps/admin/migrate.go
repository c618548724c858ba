package main

func (cli *commandLine) migrate(args []string) error {
	return migrateFunc(args[0], cli.db, args[1:]...)
}
