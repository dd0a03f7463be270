// Copyright (c) 2026 Keymaster Team
// dbdispatch - unified database dispatch with blocking-call offload
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/toeirei/dbdispatch/internal/db"
	"github.com/toeirei/dbdispatch/internal/i18n"
	"github.com/toeirei/dbdispatch/internal/logging"
	"github.com/toeirei/dbdispatch/internal/model"
)

func newExecCmd(a *app) *cobra.Command {
	var useTx, readOnly bool
	cmd := &cobra.Command{
		Use:   "exec STATEMENT [ARGS...]",
		Short: i18n.T("cli.exec.short"),
		Long: `Executes a single write statement against the configured database and
prints the number of affected rows. ARGS are bound to the statement's
placeholders as strings: "?" for sqlite, mysql and postgres in blocking
mode, "$1..$n" for postgres in native mode.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.openSession(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close(ctx) }()

			params := model.Params{Statement: args[0]}
			for _, arg := range args[1:] {
				params.Args = append(params.Args, arg)
			}
			res, err := execStatement(ctx, sess, params, useTx || readOnly, readOnly)
			p := newPrinter(cmd)
			if errors.Is(err, errRolledBack) {
				p.line(i18n.T("exec.rolled_back"))
			}
			if err != nil {
				return err
			}
			p.ok(i18n.T("exec.rows_affected", res.RowsAffected))
			if res.HasLastInsertID {
				p.line(i18n.T("exec.last_insert_id", res.LastInsertID))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&useTx, "tx", false, i18n.T("cli.exec.flag.tx"))
	cmd.Flags().BoolVar(&readOnly, "read-only", false, i18n.T("cli.exec.flag.read_only"))
	return cmd
}

var errRolledBack = errors.New("transaction rolled back")

// execStatement posts params, optionally inside its own transaction. A failed
// Post rolls the transaction back; the Post error is returned joined with
// errRolledBack.
func execStatement(ctx context.Context, s db.Session, params model.Params, useTx, readOnly bool) (model.PostResult, error) {
	if !useTx {
		return s.Post(ctx, params)
	}
	if err := s.Begin(ctx, readOnly); err != nil {
		return model.PostResult{}, err
	}
	res, err := s.Post(ctx, params)
	if err != nil {
		if rbErr := s.Rollback(ctx); rbErr != nil {
			logging.Warnf("rollback after failed post: %v", rbErr)
			return model.PostResult{}, err
		}
		return model.PostResult{}, fmt.Errorf("%w: %w", errRolledBack, err)
	}
	if err := s.Commit(ctx); err != nil {
		return model.PostResult{}, err
	}
	return res, nil
}
