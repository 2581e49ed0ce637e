package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"krl-safety-backend/config"
	"krl-safety-backend/internal/db"
	"krl-safety-backend/internal/logging"
	"krl-safety-backend/internal/store"
)

var (
	seedFile   string
	configPath string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Upsert trains, carriages and officers from a YAML file",
	Long: `Reads a provisioning file (see config/seed.example.yaml) and upserts every
train, carriage, officer and train assignment it lists. Running it twice is
harmless.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "Provisioning YAML file (required)")
	seedCmd.Flags().StringVar(&configPath, "config", "", "Config file (defaults to $CONFIG_PATH or ./config/config.yaml)")
	_ = seedCmd.MarkFlagRequired("file")
}

func loadSeed(path string) (store.SeedData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return store.SeedData{}, err
	}
	var data store.SeedData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return store.SeedData{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(data.Trains) == 0 && len(data.Officers) == 0 {
		return store.SeedData{}, fmt.Errorf("%s contains no trains or officers", path)
	}
	return data, nil
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "./config/config.yaml"
}

func runSeed(cmd *cobra.Command, _ []string) error {
	data, err := loadSeed(seedFile)
	if err != nil {
		return err
	}

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	gormDB, err := db.Init(&cfg.Database, logger.Named("db"))
	if err != nil {
		return err
	}
	if err := store.NewGormStore(gormDB).Seed(cmd.Context(), data); err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}

	carriages := 0
	for _, t := range data.Trains {
		carriages += len(t.Carriages)
	}
	logger.Info("seed applied",
		zap.Int("trains", len(data.Trains)),
		zap.Int("carriages", carriages),
		zap.Int("officers", len(data.Officers)),
	)
	return nil
}
