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
	configPath := flag.String("config", "./shoulder_config.txt", "path to configuration file")
	useBLE := flag.Bool("ble", false, "publish BLE characteristic payloads instead of IMURaw JSON")
	flag.Parse()

	log.Println("starting shoulder-monitor IMU producer (MPU9250 → MQTT)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunIMUProducer(*useBLE); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
