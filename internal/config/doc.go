// Package config loads the warden controller configuration file.
package config
