// Package confloader loads stashkv configuration.
//
// Sources, from highest to lowest priority:
//
//  1. Command-line flags (LoadMap)
//  2. Environment variables with the STASHKV_ prefix; nested keys are
//     separated by a double underscore (STASHKV_STORAGE__DATA_DIR)
//  3. A configuration file: YAML or JSON through koanf, TOML through
//     BurntSushi/toml
//  4. The defaults already present in the target struct
//
// Watcher reports edits to a loaded file so long-running commands can
// re-apply settings such as the log level.
package confloader
