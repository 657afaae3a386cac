package main

import (
	"flag" // Command line flags

	"wallet_ledger/internal/config" // Custom import path (Config)
	"wallet_ledger/internal/db"     // Custom import path (Database)

	"github.com/sirupsen/logrus" // Logging library
)

// Main entry point for migration
func main() {
	admin := flag.String("admin", "", "email of a registered user to promote to admin after migrating")
	flag.Parse()

	cfg, err := config.LoadConfig() // Load configuration
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	gdb, err := db.Open(cfg)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}
	defer db.Close(gdb)

	if err := db.Migrate(gdb); err != nil {
		logrus.Fatal(err)
	}
	if *admin != "" {
		if err := db.PromoteAdmin(gdb, *admin); err != nil {
			logrus.Fatalf("promote %s: %v", *admin, err)
		}
	}
}
