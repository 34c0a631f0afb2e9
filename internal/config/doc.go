// Package config loads application configuration from gantry.yaml with
// environment variable overrides. Environment always wins over the file,
// so deployments can tweak a checked-in config without editing it.
package config
