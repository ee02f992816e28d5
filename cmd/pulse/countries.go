package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/deusflow/pulse/internal/config"
)

func newCountriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "countries",
		Short: "List configured country profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			countries, err := config.LoadCountries(cfg.CountriesConfigPath)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tNAME\tNEWS\tTRENDS\tLLM\tTTS\tMISSING KEYS")
			for _, p := range countries.All() {
				missing := cfg.CheckKeys(p)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%v\n",
					p.Code, p.DisplayName, p.NewsProvider, p.TrendsProvider, p.LLMProvider, p.TTSProvider, missing)
			}
			return w.Flush()
		},
	}
}
