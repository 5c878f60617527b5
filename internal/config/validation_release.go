//go:build release

package config

const enableValidationLayers = false
