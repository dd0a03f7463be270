// Copyright (c) 2026 Keymaster Team
// dbdispatch - unified database dispatch with blocking-call offload
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"github.com/spf13/cobra"
	"github.com/toeirei/dbdispatch/internal/i18n"
	"github.com/toeirei/dbdispatch/internal/model"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: i18n.T("cli.info.short"),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess, err := a.openSession(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close(ctx) }()
			printInfo(newPrinter(cmd), sess.Info())
			return nil
		},
	}
}

func printInfo(p *printer, info model.Info) {
	p.field(i18n.T("info.backend"), info.Backend)
	p.field(i18n.T("info.driver"), info.Driver)
	p.field(i18n.T("info.mode"), string(info.Mode))
	p.field(i18n.T("info.session"), info.Session)
	tx := i18n.T("info.tx.none")
	switch {
	case info.InTx && info.ReadOnly:
		tx = i18n.T("info.tx.read_only")
	case info.InTx:
		tx = i18n.T("info.tx.read_write")
	}
	p.field(i18n.T("info.transaction"), tx)
}
