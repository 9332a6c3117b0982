// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/shoulder_monitor/internal/fusion"
	"github.com/relabs-tech/shoulder_monitor/internal/sources"
)

// RunMockConsole runs the pipeline in-process on the synthetic motion and
// prints every angle sample. No broker is needed.
func RunMockConsole(intervalMs int) error {
	p, err := fusion.NewPipeline(fusion.DefaultConfig())
	if err != nil {
		return err
	}
	id, ch := p.Subscribe(64)
	defer p.Unsubscribe(id)

	if err := p.Start(sources.NewMock(), intervalMs); err != nil {
		return err
	}
	defer p.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-sigCh:
			return nil
		case a := <-ch:
			fmt.Printf("t=%d  EWMA=%6.2f  COMP=%6.2f\n", a.Timestamp, a.Angle1, a.Angle2)
		}
	}
}
