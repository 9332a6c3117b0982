// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/shoulder_monitor/internal/config"
	"github.com/relabs-tech/shoulder_monitor/internal/imu"
)

// displayMessageLen fits one 7x13 line on a 128 pixel wide panel.
const displayMessageLen = 18

// DisplayData holds the latest data for display
type DisplayData struct {
	mu sync.RWMutex

	angle     imu.AngleSample
	haveAngle bool

	status     Status
	haveStatus bool
}

func (d *DisplayData) setAngle(a imu.AngleSample) {
	d.mu.Lock()
	d.angle = a
	d.haveAngle = true
	d.mu.Unlock()
}

func (d *DisplayData) setStatus(s Status) {
	d.mu.Lock()
	d.status = s
	d.haveStatus = true
	d.mu.Unlock()
}

// lines renders the panel text: state, both angles and the last message.
func (d *DisplayData) lines() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	state := "waiting"
	if d.haveStatus {
		state = d.status.State
	}
	out := []string{"Shoulder: " + state}

	if d.haveAngle {
		out = append(out,
			fmt.Sprintf("EWMA: %6.1f", d.angle.Angle1),
			fmt.Sprintf("Comp: %6.1f", d.angle.Angle2),
		)
	} else {
		out = append(out, "EWMA:    --", "Comp:    --")
	}

	msg := ""
	if d.haveStatus {
		msg = d.status.Message
		if d.status.Error != "" {
			msg = "ERR " + d.status.Error
		}
	}
	if len(msg) > displayMessageLen {
		msg = msg[:displayMessageLen]
	}
	return append(out, msg)
}

// addrBus sends every transaction to addr. The driver always talks to the
// panel's default address.
type addrBus struct {
	i2c.Bus
	addr uint16
}

func (b addrBus) Tx(_ uint16, w, r []byte) error {
	return b.Bus.Tx(b.addr, w, r)
}

func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(addrBus{Bus: bus, addr: cfg.DisplayI2CAddr}, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized at 0x%02X", cfg.DisplayI2CAddr)

	if err := drawLines(dev, []string{"", "Shoulder", "Monitor"}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &DisplayData{}

	client, err := connectMQTT("display", cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	if err := subscribeDisplay(client, cfg.TopicAngle, func(payload []byte) error {
		var a imu.AngleSample
		if err := json.Unmarshal(payload, &a); err != nil {
			return err
		}
		data.setAngle(a)
		return nil
	}); err != nil {
		return err
	}
	if cfg.TopicStatus != "" {
		if err := subscribeDisplay(client, cfg.TopicStatus, func(payload []byte) error {
			var s Status
			if err := json.Unmarshal(payload, &s); err != nil {
				return err
			}
			data.setStatus(s)
			return nil
		}); err != nil {
			return err
		}
	}

	// Display update loop
	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		if err := drawLines(dev, data.lines()); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

func subscribeDisplay(client mqtt.Client, topic string, apply func([]byte) error) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if err := apply(msg.Payload()); err != nil {
			log.Printf("display: %s unmarshal error: %v", topic, err)
		}
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s", topic)
	return nil
}

// renderLines draws up to four lines of 7x13 text on a blank 128x64 image.
func renderLines(lines []string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	for i, line := range lines {
		if i == 4 {
			break
		}
		drawer.Dot = fixed.P(0, 13*(i+1))
		drawer.DrawString(line)
	}
	return img
}

func drawLines(dev *ssd1306.Dev, lines []string) error {
	return dev.Draw(dev.Bounds(), renderLines(lines), image.Point{})
}
