// Package logging provides structured logging for the fw-build-id tool.
//
// This package wraps zap with a process-wide logger and a few helpers for
// the things worth logging while inspecting an image: the image identity,
// raw symbol bytes and patches.
//
// # Silent by default
//
// Build IDs are printed on stdout and are often consumed by build scripts,
// so no log output is produced unless a level is requested, either with the
// --log-level flag or the FWBUILDID_LOG_LEVEL environment variable:
//
//	FWBUILDID_LOG_LEVEL=debug fw-build-id firmware.elf
//
// When enabled, logs are written to stderr in console format:
//
//	2025-11-25T10:30:45.123-0800  DEBUG  Patching symbol
//	  symbol=g_memfault_sdk_derived_build_id
//	  file_offset=4128
//
// # Usage
//
//	if err := logging.Initialize(level); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
//	logging.LogRawBytes("Record bytes", data)
//	logging.Debug("Resolved symbol", zap.String("symbol", name), logging.Hex("data", data))
//
// Packages that take a *zap.Logger (buildid.NewInspector) are handed
// GetLogger().
package logging
