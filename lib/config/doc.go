// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads agent client configuration.
//
// Configuration is loaded from a single file specified by either the
// SSHAGENT_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no discovery and no search path. Running
// without a file at all is fine: [Default] describes a client that
// talks to $SSH_AUTH_SOCK with the standard timeouts.
//
// Files are YAML. Files named *.json or *.jsonc are accepted too; the
// JSONC comment and trailing-comma extensions are stripped before
// parsing. Unknown keys are an error.
//
// The socket_path value may reference ${HOME}, ${XDG_RUNTIME_DIR} or
// any other environment variable with ${VAR} or ${VAR:-default}.
//
// Key exports:
//
//   - [Config] -- the file's fields
//   - [Default] -- the configuration used with no file
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.ClientOptions] -- conversion to [sshagent.Options]
package config
