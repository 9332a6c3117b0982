// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/shoulder_monitor/internal/app"
	"github.com/relabs-tech/shoulder_monitor/internal/config"
)

func main() {
	configPath := flag.String("config", "shoulder_config.txt", "Path to configuration file")
	samples := flag.Int("samples", 500, "number of still samples to capture")
	out := flag.String("out", "./shoulder_calibration.json", "where to store the result")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunCalibration(*samples, *out); err != nil {
		log.Fatalf("calibration failed: %v", err)
	}
}
