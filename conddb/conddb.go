// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package conddb holds types to retrieve configuration presets of the
// spectral-inversion blocks from the configuration database.
package conddb // import "github.com/go-lpc/specinv/conddb"

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-lpc/specinv/invert"
	_ "github.com/go-sql-driver/mysql"
)

var (
	host = envOr("SPECINV_DB_HOST", "localhost")
	usr  = envOr("SPECINV_DB_USER", "username")
	pwd  = envOr("SPECINV_DB_PASSWORD", "s3cr3t")

	drvName = "mysql"
)

// ErrNoPreset is returned when a requested preset does not exist.
var ErrNoPreset = errors.New("conddb: no such preset")

const timeout = 5 * time.Second

// Preset is a named block configuration.
type Preset struct {
	Name   string
	Date   time.Time
	Config invert.Config
}

// DB exposes convenience methods to easily retrieve configuration
// presets from the database.
type DB struct {
	db   *sql.DB
	name string // name of the database
}

// Open opens a connection to the database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("conddb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", usr, pwd, host, db)
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// LastPreset returns the name of the most recently recorded preset.
func (db *DB) LastPreset(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	name := ""
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT name FROM specinv_presets ORDER BY datetime DESC LIMIT 1",
	)
	if err != nil {
		return name, fmt.Errorf("conddb: could not query last preset: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&name)
		if err != nil {
			return name, fmt.Errorf("conddb: could not get last preset value: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return name, fmt.Errorf("conddb: could not scan db for last preset: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return name, fmt.Errorf("conddb: context error while retrieving last preset: %w", err)
	}

	if name == "" {
		return name, ErrNoPreset
	}

	return name, nil
}

// Preset returns the latest configuration recorded under name.
func (db *DB) Preset(ctx context.Context, name string) (invert.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		cfg   invert.Config
		found = false
	)

	rows, err := db.db.QueryContext(
		ctx,
		`
SELECT invert_enabled, auto_detect, detection_threshold, detection_window
FROM specinv_presets
WHERE name=?
ORDER BY datetime DESC LIMIT 1
`,
		name,
	)
	if err != nil {
		return cfg, fmt.Errorf("conddb: could not run preset query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(
			&cfg.InvertEnabled, &cfg.AutoDetect,
			&cfg.DetectionThreshold, &cfg.DetectionWindow,
		)
		if err != nil {
			return cfg, fmt.Errorf("conddb: could not scan preset %q: %w", name, err)
		}
		found = true
	}

	if err := rows.Err(); err != nil {
		return cfg, fmt.Errorf("conddb: could not scan db for preset %q: %w", name, err)
	}

	if err := ctx.Err(); err != nil {
		return cfg, fmt.Errorf("conddb: context error while retrieving preset %q: %w", name, err)
	}

	if !found {
		return cfg, fmt.Errorf("conddb: could not find preset %q: %w", name, ErrNoPreset)
	}

	return cfg, nil
}

// Presets returns all the recorded presets, most recent first.
func (db *DB) Presets(ctx context.Context) ([]Preset, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var presets []Preset
	rows, err := db.db.QueryContext(
		ctx,
		`
SELECT name, datetime, invert_enabled, auto_detect, detection_threshold, detection_window
FROM specinv_presets
ORDER BY datetime DESC
`,
	)
	if err != nil {
		return presets, fmt.Errorf("conddb: could not run presets query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Preset
		err = rows.Scan(
			&p.Name, &p.Date,
			&p.Config.InvertEnabled, &p.Config.AutoDetect,
			&p.Config.DetectionThreshold, &p.Config.DetectionWindow,
		)
		if err != nil {
			return presets, fmt.Errorf("conddb: could not scan presets: %w", err)
		}
		presets = append(presets, p)
	}

	if err := rows.Err(); err != nil {
		return presets, fmt.Errorf("conddb: could not scan db for presets: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return presets, fmt.Errorf("conddb: context error while retrieving presets: %w", err)
	}

	return presets, nil
}
