// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/shoulder_monitor/internal/app"
)

func main() {
	interval := flag.Int("interval", 10, "sample interval in milliseconds")
	flag.Parse()

	log.Println("starting shoulder-monitor console (mock motion, no broker)")
	if err := app.RunMockConsole(*interval); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
