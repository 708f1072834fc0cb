// Package catalog provides the reloadable tool registry.
//
// # Overview
//
// The registry merges two tool sources: the built-in set compiled into the
// binary (source "local") and definition files from configured catalog
// directories (source "pipeline"). Every reload rebuilds the set from
// scratch; there is no incremental patching:
//
//  1. Seed the set with the built-in tools
//  2. Scan each catalog directory recursively, in configuration order
//  3. Merge by tool name, later directory wins; collisions log a warning
//  4. Swap the finished set in atomically
//
// Readers never observe a partially rebuilt set: Get, Has and List always
// serve a complete snapshot, and Snapshot pins one for consistent
// multi-lookup use.
//
// # Definition Files
//
// Catalog directories hold one tool definition per .yaml, .yml or .json
// file:
//
//	name: rotate_logs
//	display_name: Rotate Logs
//	category: operations
//	platform: linux
//	service: executor
//	endpoint: /api/v1/logs/rotate
//	timeout_seconds: 120
//	parameters:
//	  - name: target_host
//	    type: string
//	    required: true
//
// A malformed file is skipped with a logged warning and counted in the
// reload report; it never aborts the reload. A file redefining a built-in
// name wins, which is visible because the active definition's source is no
// longer "local".
//
// # Required Tools
//
// The registry declares a fixed set of tool names that must survive every
// reload. Missing required tools are reported and logged but do not fail
// the reload; availability wins over strict validation.
//
// # Hot Reload
//
// Watch puts an fsnotify watcher on the catalog directories. Bursts of
// file system events debounce into a single reload after 500ms of quiet.
//
// # Example Usage
//
//	registry := catalog.NewRegistry(cfg.CatalogDirs, tel.Metrics, tel.Events, logger)
//	report, err := registry.Reload(ctx)
//	if err != nil {
//	    return err
//	}
//	if len(report.MissingRequired) > 0 {
//	    logger.Warn().Strs("tools", report.MissingRequired).Msg("catalog incomplete")
//	}
//	if err := registry.Watch(ctx); err != nil {
//	    return err
//	}
package catalog
