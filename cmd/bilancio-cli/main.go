package main

import (
	"fmt"
	"os"

	"bilancio/internal/cli"
	"bilancio/internal/config"
	"bilancio/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	root := cli.NewRootCommand(func() (*storage.SQLiteRepository, error) {
		return storage.NewSQLiteRepository(config.Load().SQLiteDBPath)
	})
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
