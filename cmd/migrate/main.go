// migrate runs DB migrations from embedded SQL: go run ./cmd/migrate -direction up|down.
package main

import (
	"flag"
	"os"

	"pulsedeck/internal/config"
	"pulsedeck/internal/db/migrate"
	"pulsedeck/internal/logging"
)

func main() {
	direction := flag.String("direction", migrate.Up, "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "text").WithError(err).Fatal("migrate: loading config failed")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		log.WithError(err).Error("migrate: failed")
		os.Exit(1)
	}
	version, dirty, err := migrate.Version(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Warn("migrate: reading version failed")
		return
	}
	log.WithField("version", version).WithField("dirty", dirty).Info("migrate: done")
}
