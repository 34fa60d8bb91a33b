// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem under ~/.protosmith.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage
//   - PromptStore: user-editable prompt templates with hot reload
package file
