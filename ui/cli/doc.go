// Copyright (c) 2026 Keymaster Team
// dbdispatch - unified database dispatch with blocking-call offload
// This source code is licensed under the MIT license found in the LICENSE file.
//
// Package cli implements the dbdispatch command-line interface using Cobra.
// It loads configuration, brings up logging, translations and the offload
// pool, and leaves the database work to the db package. Commands write to
// cmd.OutOrStdout so tests can capture them.
package cli
