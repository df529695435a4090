//go:build js && wasm

package main

import (
	"github.com/dvcrn/kitsune-oauth/internal/app"
	"github.com/dvcrn/kitsune-oauth/internal/config"
	"github.com/dvcrn/kitsune-oauth/internal/logger"
	"github.com/dvcrn/kitsune-oauth/internal/storage"
	"github.com/syumai/workers"
	"github.com/syumai/workers/cloudflare"
)

func main() {
	cfg, err := config.FromEnv(workerEnv)
	if err != nil {
		log := logger.New("", "")
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	log := logger.New(cfg.Env, cfg.LogLevel)

	log.Info().Str("binding", cfg.Storage.KVBinding).Msg("📦 Using Cloudflare KV storage")
	kvStore, err := storage.NewCloudflareKV(cfg.Storage.KVBinding)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Cloudflare KV storage")
	}

	// Isolates are short-lived; refresh happens on demand instead of on a timer.
	srv, err := app.New(cfg, kvStore, log).NewServer()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	workers.Serve(srv)
}

// workerEnv reads Worker vars and secrets. Storage is always KV here.
func workerEnv(key string) string {
	if key == "KITSUNE_STORAGE" {
		return config.StorageKV
	}
	return cloudflare.Getenv(key)
}
