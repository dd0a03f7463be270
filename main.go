// Copyright (c) 2026 Keymaster Team
// dbdispatch - unified database dispatch with blocking-call offload
// This source code is licensed under the MIT license found in the LICENSE file.

// Command-line entrypoint for dbdispatch.
//
// Usage:
//
//	go run . [command] [flags]
//	./dbdispatch [command] [flags]
//
// See --help for the available commands.
package main

import (
	"os"

	"github.com/toeirei/dbdispatch/internal/i18n"
	"github.com/toeirei/dbdispatch/internal/logging"
	"github.com/toeirei/dbdispatch/ui/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		logging.Errorf("%s: %v", i18n.T("error.prefix"), err)
		os.Exit(1)
	}
}
