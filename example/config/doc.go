// Package config loads the demo configuration from a YAML file.
package config
