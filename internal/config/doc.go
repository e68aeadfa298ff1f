// Package config loads, validates and saves the YAML settings of the
// fingergun server. Every section has defaults, so an empty file is valid.
package config
