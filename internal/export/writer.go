// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/relabs-tech/shoulder_monitor/internal/fusion"
)

// CSVWriter is a buffered, concurrency-safe CSV file writer. Rows are
// buffered until Flush or Close.
type CSVWriter struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	csv  *csv.Writer
	rows uint64
}

// NewCSVWriter creates path and writes header when it is not empty.
func NewCSVWriter(path string, bufSizeBytes int, header []string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv create %s: %w", path, err)
	}
	if bufSizeBytes <= 0 {
		bufSizeBytes = 64 * 1024
	}

	bw := bufio.NewWriterSize(f, bufSizeBytes)
	w := &CSVWriter{file: f, buf: bw, csv: csv.NewWriter(bw)}

	if len(header) > 0 {
		if err := w.csv.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("csv write header: %w", err)
		}
	}
	return w, nil
}

// WriteRow appends one row. Write errors surface on Flush.
func (w *CSVWriter) WriteRow(row []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.csv.Write(row)
	w.rows++
}

// Flush pushes buffered rows to the file.
func (w *CSVWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return err
	}
	return w.buf.Flush()
}

// Close flushes and closes the file.
func (w *CSVWriter) Close() error {
	ferr := w.Flush()
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Close(); err != nil {
		return err
	}
	return ferr
}

// Rows returns the number of data rows written, header excluded.
func (w *CSVWriter) Rows() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}

// WriteRecording writes the angle and raw logs of rec into dir and returns
// the two file paths.
func WriteRecording(dir string, rec fusion.SessionLog) (anglesPath, rawPath string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("export dir %s: %w", dir, err)
	}

	anglesPath = filepath.Join(dir, SessionFileName("angles", rec.ID, rec.StartedAt))
	aw, err := NewCSVWriter(anglesPath, 0, AngleHeader())
	if err != nil {
		return "", "", err
	}
	for _, s := range rec.Angles {
		aw.WriteRow(AngleRow(s))
	}
	if err := aw.Close(); err != nil {
		return "", "", fmt.Errorf("write %s: %w", anglesPath, err)
	}

	rawPath = filepath.Join(dir, SessionFileName("raw", rec.ID, rec.StartedAt))
	rw, err := NewCSVWriter(rawPath, 0, RawHeader())
	if err != nil {
		return "", "", err
	}
	for _, s := range rec.Raw {
		rw.WriteRow(RawRow(s))
	}
	if err := rw.Close(); err != nil {
		return "", "", fmt.Errorf("write %s: %w", rawPath, err)
	}
	return anglesPath, rawPath, nil
}
