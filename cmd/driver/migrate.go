package main

import (
	"driver-dispatch-client/internal/adapters/cache"
	"driver-dispatch-client/internal/config"
	"driver-dispatch-client/internal/platform/db"
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the route cache schema for the configured SQL backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch a.cfg.RouteCache {
			case config.CacheSQLite:
				conn, err := openSQLiteCache(a.cfg.DBPath)
				if err != nil {
					return err
				}
				defer conn.Close()
				a.log.Info("schema ready", "backend", "sqlite", "path", a.cfg.DBPath)

				if purge {
					n, err := cache.NewSqliteRouteCache(conn, a.log).Purge(cmd.Context())
					if err != nil {
						return err
					}
					a.log.Info("expired routes purged", "rows", n)
				}
				return nil

			case config.CachePostgres:
				conn, err := db.Open(a.cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer conn.Close()

				if err := cache.InitSchema(conn); err != nil {
					return err
				}
				a.log.Info("schema ready", "backend", "postgres")
				return nil

			default:
				return fmt.Errorf("route_cache=%q has no SQL schema", a.cfg.RouteCache)
			}
		},
	}

	cmd.Flags().BoolVar(&purge, "purge", false, "delete expired sqlite entries after migrating")
	return cmd
}
