// Package config provides configuration management for hvol.
//
// # Sources
//
// A Config starts from NewConfig defaults and can be overridden by a YAML
// file (LoadFile) or by HVOL_* environment variables (FromEnv). YAML files
// support ${VAR_NAME} substitution:
//
//	connector:
//	  name: passthru
//	  info: '{"under_name":"native","compression":"zstd"}'
//	native:
//	  snapshot_dir: ${HVOL_DATA}
//
// # Default connector
//
// HVOL_VOL_CONNECTOR selects the connector used for files opened without an
// explicit one. Its format is "<name-or-value> [info-string]":
//
//	HVOL_VOL_CONNECTOR=native
//	HVOL_VOL_CONNECTOR='passthru {"under_name":"native"}'
//	HVOL_VOL_CONNECTOR=1
//
// When the variable is absent the native connector is used with no info.
// When it is set but empty, or cannot be parsed, FromEnv returns an error.
package config
