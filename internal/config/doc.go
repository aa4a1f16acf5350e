// Package config provides configuration management for mailmirror.
//
// This package handles:
//   - Loading and saving settings from TOML files
//   - Default configuration values and validation
//   - Resolving the Earth Class Mail API key
//
// # Default Settings
//
//	settings := config.DefaultSettings()
//	// Mirrors to ~/mirror/mail
//	// One download at a time, 3 tries each
//	// Keeps going after a failed download
//
// # Loading from File
//
//	settings, err := config.Load(config.DefaultPath())
//	// Uses defaults if the file doesn't exist
//
// # API Key
//
// The key is looked up in the environment, then the settings file, then an
// .envrc file:
//
//	key, err := config.ResolveAPIKey(settings, ".envrc")
//	if errors.Is(err, config.ErrNoAPIKey) {
//	    // ask the user
//	}
package config
