// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/shoulder_monitor/internal/config"
	"github.com/relabs-tech/shoulder_monitor/internal/export"
	"github.com/relabs-tech/shoulder_monitor/internal/fusion"
	"github.com/relabs-tech/shoulder_monitor/internal/report"
)

// wsBuffer is how far a websocket client may fall behind before it misses
// samples.
const wsBuffer = 64

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local network use
	},
}

// NewHandler returns the recorder's HTTP API.
func NewHandler(rec *Recorder) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, rec.Status())
	})

	mux.HandleFunc("GET /api/history", func(w http.ResponseWriter, r *http.Request) {
		p := rec.Pipeline()
		q := r.URL.Query().Get("n")
		if q == "" {
			writeJSON(w, http.StatusOK, p.History())
			return
		}
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			http.Error(w, fmt.Sprintf("invalid n %q", q), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, p.Recent(n))
	})

	mux.HandleFunc("POST /api/session/start", func(w http.ResponseWriter, r *http.Request) {
		st, err := rec.Start()
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, st)
			return
		}
		writeJSON(w, http.StatusOK, st)
	})

	mux.HandleFunc("POST /api/session/stop", func(w http.ResponseWriter, r *http.Request) {
		st, err := rec.Stop()
		if err != nil {
			log.Printf("web: stop: %v", err)
		}
		writeJSON(w, http.StatusOK, st)
	})

	mux.HandleFunc("GET /api/summary", func(w http.ResponseWriter, r *http.Request) {
		session := rec.Pipeline().Recording()
		if session.ID == "" {
			http.Error(w, "no session recorded yet", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, report.Summarize(session))
	})

	mux.HandleFunc("GET /api/export/angles.csv", func(w http.ResponseWriter, r *http.Request) {
		serveCSV(w, rec.Pipeline().Recording(), "angles")
	})

	mux.HandleFunc("GET /api/export/raw.csv", func(w http.ResponseWriter, r *http.Request) {
		serveCSV(w, rec.Pipeline().Recording(), "raw")
	})

	mux.HandleFunc("GET /api/planes", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, rec.Pipeline().Planes())
	})

	mux.HandleFunc("GET /api/filters", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, filtersOf(rec.Pipeline().Config()))
	})

	// Changes apply from the next session on.
	mux.HandleFunc("PUT /api/filters", func(w http.ResponseWriter, r *http.Request) {
		p := rec.Pipeline()
		f := filtersOf(p.Config())
		if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
			http.Error(w, fmt.Sprintf("invalid body: %v", err), http.StatusBadRequest)
			return
		}
		cfg := p.Config()
		cfg.EWMAAlpha, cfg.CompAlpha, cfg.HistorySize = f.EWMAAlpha, f.CompAlpha, f.HistorySize
		if err := p.SetConfig(cfg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("web: filters set to ewma=%v comp=%v history=%d", f.EWMAAlpha, f.CompAlpha, f.HistorySize)
		writeJSON(w, http.StatusOK, f)
	})

	mux.HandleFunc("GET /ws/angles", func(w http.ResponseWriter, r *http.Request) {
		streamAngles(w, r, rec.Pipeline())
	})

	return mux
}

// filterSettings is the tunable part of the pipeline config.
type filterSettings struct {
	EWMAAlpha   float64 `json:"ewma_alpha"`
	CompAlpha   float64 `json:"comp_alpha"`
	HistorySize int     `json:"history_size"`
}

func filtersOf(c fusion.Config) filterSettings {
	return filterSettings{EWMAAlpha: c.EWMAAlpha, CompAlpha: c.CompAlpha, HistorySize: c.HistorySize}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

func serveCSV(w http.ResponseWriter, session fusion.SessionLog, kind string) {
	if session.ID == "" {
		http.Error(w, "no session recorded yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", export.SessionFileName(kind, session.ID, session.StartedAt)))

	var err error
	if kind == "raw" {
		err = export.WriteRaw(w, session.Raw)
	} else {
		err = export.WriteAngles(w, session.Angles)
	}
	if err != nil {
		log.Printf("web: %s export: %v", kind, err)
	}
}

// streamAngles pushes every emitted sample to the websocket client as JSON
// until the client goes away.
func streamAngles(w http.ResponseWriter, r *http.Request, p *fusion.Pipeline) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	id, ch := p.Subscribe(wsBuffer)
	defer p.Unsubscribe(id)

	// Reads only detect the close; clients send nothing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case s, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(s); err != nil {
				log.Printf("web: websocket write error: %v", err)
				return
			}
		}
	}
}

// RunRecorder serves the API, optionally starts a session right away and
// runs until interrupted. Angles are published to MQTT when the broker is
// reachable.
func RunRecorder(autoStart bool) error {
	cfg := config.Get()

	var pub Publisher = nopPublisher{}
	client, err := connectMQTT("recorder", cfg.MQTTBroker, cfg.MQTTClientIDRecorder)
	if err != nil {
		log.Printf("recorder: %v; angles will not be published", err)
	} else {
		defer client.Disconnect(250)
		pub = MQTTPublisher{Client: client}
	}

	rec, err := NewRecorder(cfg, pub)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler: NewHandler(rec),
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Printf("web server listening on %s", srv.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	if autoStart {
		if _, err := rec.Start(); err != nil {
			log.Printf("recorder: initial session: %v", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigCh:
		log.Println("recorder: shutting down")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("web server: %w", err)
		}
	}

	if _, err := rec.Stop(); err != nil {
		log.Printf("recorder: final stop: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("recorder: web shutdown: %v", err)
	}
	return runErr
}
