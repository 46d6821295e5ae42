//go:build !release

package config

const buildMode = ModeDevelopment
