// Package security provides validation, sanitization, and limits for the workbench jobs packages.
//
// This package includes:
//   - Job type and parameter payload validation
//   - Containment checks for file paths inside the managed data directory
//   - Error message sanitization before messages reach the presentation layer
//
// Most users should import the root package github.com/jdziat/workbench-jobs.
package security
