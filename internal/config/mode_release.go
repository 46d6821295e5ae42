//go:build release

package config

const buildMode = ModePackaged
