/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/telemetry"
)

const startedKey = "telemetry:started"

// registrar is satisfied by the positioned callbacks gorm returns from
// Before and After.
type registrar interface {
	Register(name string, fn func(*gorm.DB)) error
}

// RegisterCallbacks records latency and failures of every gorm operation,
// including the raw statements used to claim campaigns.
func RegisterCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		label         string
		before, after registrar
	}{
		{"query", cb.Query().Before("gorm:query"), cb.Query().After("gorm:query")},
		{"create", cb.Create().Before("gorm:create"), cb.Create().After("gorm:create")},
		{"update", cb.Update().Before("gorm:update"), cb.Update().After("gorm:update")},
		{"delete", cb.Delete().Before("gorm:delete"), cb.Delete().After("gorm:delete")},
		{"raw", cb.Raw().Before("gorm:raw"), cb.Raw().After("gorm:raw")},
	}
	for _, h := range hooks {
		if err := h.before.Register("telemetry:before_"+h.label, markStart); err != nil {
			return fmt.Errorf("register %s callback: %w", h.label, err)
		}
		if err := h.after.Register("telemetry:after_"+h.label, observe(h.label)); err != nil {
			return fmt.Errorf("register %s callback: %w", h.label, err)
		}
	}
	return nil
}

func markStart(db *gorm.DB) {
	db.InstanceSet(startedKey, time.Now())
}

// observe reports the duration of one statement, and its error unless the
// error is a plain miss.
func observe(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		v, ok := db.InstanceGet(startedKey)
		if !ok {
			return
		}
		started, ok := v.(time.Time)
		if !ok {
			return
		}

		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}

		telemetry.DatabaseQueryDuration.WithLabelValues(operation, table).Observe(time.Since(started).Seconds())
		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			telemetry.DatabaseErrorsTotal.WithLabelValues(operation, table).Inc()
		}
	}
}

// UpdateConnectionMetrics publishes the pool's in-use connection count. The
// server calls it every 30 seconds.
func UpdateConnectionMetrics(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	telemetry.DatabaseConnectionsActive.Set(float64(sqlDB.Stats().InUse))
}
