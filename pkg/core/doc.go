// Package core provides the fundamental types and interfaces for the workbench jobs packages.
//
// This package contains:
//   - Job, JobTask, JobResult, result layout, and dataset models with GORM annotations
//   - The explicit State type that replaces free-text status strings
//   - Typed worker parameter payloads tagged by parameterType
//   - Event types for orchestration monitoring
//   - Sentinel errors
//
// Most users should import the root package github.com/jdziat/workbench-jobs
// instead of this package directly.
package core
