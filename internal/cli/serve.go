// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-keysplit.
//
// go-keysplit is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"github.com/jeremyhahn/go-keysplit/internal/config"
	"github.com/jeremyhahn/go-keysplit/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Serve the REST API until interrupted. SIGHUP reloads the config file;
logging and share counts apply live.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cfg.Load()
			if err != nil {
				return err
			}

			srv, err := server.New(app)
			if err != nil {
				return err
			}
			if err := srv.Start(); err != nil {
				return err
			}

			ctx, reload := server.SetupSignalHandler()
			return srv.Run(ctx, reload, func() (*config.Config, error) {
				return cfg.Load()
			})
		},
	}
}
