// Package cmd implements the command-line interface of zklocks. It provides
// a hierarchical command structure for running operations inside distributed
// critical sections.
//
// The package is organized into several subpackages:
//
//   - guard: Run an arbitrary command while holding a lock on a
//     parameterized key
//   - migrate: Run a schema-migration command under the fixed "migrations"
//     lock, degrading to a warned pass-through when no hosts are configured
//   - util: Shared utilities for configuration (viper + .env files),
//     logging and child-process execution (internal use)
//
// Configuration is read from flags and from ZKLOCKS_* environment
// variables, with .env and .env.local loaded first.
package cmd
