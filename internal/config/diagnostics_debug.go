//go:build !release

package config

const diagnosticsDefault = true
