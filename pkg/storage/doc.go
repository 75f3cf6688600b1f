// Package storage provides the GORM implementation of the workbench job store.
//
// This package includes:
//   - GormStorage: job, task, result, layout, and dataset persistence
//   - Open: sqlite (WAL, busy timeout) or postgres connections
//   - Pool configuration and retry with backoff for writes that contend
//     with worker processes sharing the same database
//
// The JobStore interface is defined in pkg/core.
package storage
