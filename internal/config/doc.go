// Package config provides user configuration for fw-build-id.
//
// The configuration is a small YAML file naming the build ID symbols, the
// default --dump length and an optional log level:
//
//	version: 1
//	record_symbol: g_memfault_build_id
//	derived_symbol: g_memfault_sdk_derived_build_id
//	dump_chars: 7
//	log_level: info
//
// # Configuration File Location
//
// Load picks the first file found in this order:
//   - the path given with --config (must exist)
//   - .fw-build-id.yaml in the working directory
//   - the user config file, in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/fw-build-id/config.yaml or $HOME/.config/fw-build-id/config.yaml
//   - macOS: $HOME/.config/fw-build-id/config.yaml
//   - Windows: %LOCALAPPDATA%\fw-build-id\config.yaml
//
// When no file exists the defaults from Default are used.
//
// # Usage Example
//
//	cfg, err := config.Load(flagPath)
//	if err != nil {
//	    return err
//	}
//
//	path, _ := config.GetConfigPath()
//	if err := config.Default().Save(path); err != nil {
//	    return err
//	}
package config
