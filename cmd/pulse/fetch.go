package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deusflow/pulse/internal/config"
	"github.com/deusflow/pulse/internal/logger"
)

func newFetchCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "fetch [CODE...]",
		Short: "Run one fetch cycle per country",
		Long: `Fetch headlines and trends, write the analysis Log and its audio.

Examples:
  pulse fetch IL               # one country
  pulse fetch IL2 CZ           # several countries in order
  pulse fetch --all            # every configured country`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("name at least one country code or use --all")
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			rt, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			var profiles []config.Profile
			if all {
				profiles = rt.Countries.All()
			} else {
				for _, code := range args {
					p, err := rt.Countries.Profile(code)
					if err != nil {
						return err
					}
					profiles = append(profiles, p)
				}
			}
			for _, p := range profiles {
				if missing := rt.Config.CheckKeys(p); len(missing) > 0 {
					logger.Warn("missing provider keys, cycle will degrade", "country", p.Code, "keys", strings.Join(missing, ","))
				}
			}

			results, err := rt.Pipeline.RunAll(ctx, profiles)
			for _, res := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", res.Country, res.LogName, res.AudioName)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "fetch every configured country")
	return cmd
}
