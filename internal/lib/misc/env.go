/*
 * Copyright (c) 2024. Hatm Labs.
 * All Rights reserved.
 */

package misc

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
)

func LoadEnvSettings(log *slog.Logger) {
	godotenv.Load(".env.local")
	godotenv.Load() // .env
}

func LoadEnvForNetwork(log *slog.Logger, network string) {
	if err := godotenv.Load(fmt.Sprintf(".env.%s", network)); err == nil {
		Debugf(log, "loaded environment overrides for network:%s", network)
	}
}
