package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/deusflow/pulse/internal/app"
	"github.com/deusflow/pulse/internal/archive"
	"github.com/deusflow/pulse/internal/logger"
)

func newArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect and maintain the Log and audio archive",
	}
	cmd.AddCommand(newArchiveListCmd(), newArchiveSyncCmd(), newArchiveReindexCmd(), newArchiveStatsCmd(), newArchiveRecentCmd())
	return cmd
}

// codesOrAll returns args, or every configured code when args is empty.
func codesOrAll(rt *app.Runtime, args []string) ([]string, error) {
	if len(args) == 0 {
		return rt.Countries.Codes(), nil
	}
	codes := make([]string, 0, len(args))
	for _, a := range args {
		p, err := rt.Countries.Profile(a)
		if err != nil {
			return nil, err
		}
		codes = append(codes, p.Code)
	}
	return codes, nil
}

func newArchiveListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list CODE",
		Short: "Show archive entries paired by date, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			p, err := rt.Countries.Profile(args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tLOG\tAUDIO\tLOGS")
			for _, e := range rt.Catalog.Entries(ctx, p.Code) {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", e.Date, dash(e.Log), dash(e.Audio), len(e.Logs))
			}
			return w.Flush()
		},
	}
}

func newArchiveSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync [CODE...]",
		Short: "Copy the local archive to the GCS bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			rt, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			dst := rt.GCS
			if dst == nil {
				if rt.Config.GCSBucket == "" {
					return errors.New("GCS_BUCKET is required for archive sync")
				}
				dst, err = archive.NewGCS(ctx, rt.Config.GCSBucket, rt.Config.GCSCredentialsFile)
				if err != nil {
					return err
				}
				defer dst.Close()
			}
			src := archive.NewLocal(rt.Config.ArchiveDir)

			codes, err := codesOrAll(rt, args)
			if err != nil {
				return err
			}
			for _, code := range codes {
				res, err := archive.Sync(ctx, src, dst, code)
				if err != nil {
					return fmt.Errorf("sync %s: %w", code, err)
				}
				logger.Info("archive synced", "country", code, "copied", res.Copied, "skipped", res.Skipped)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tcopied %d\tskipped %d\n", code, res.Copied, res.Skipped)
			}
			return nil
		},
	}
}

func newArchiveReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex [CODE...]",
		Short: "Load archived Logs and audio into the Postgres index",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			rt, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()
			if rt.Index == nil {
				return errors.New("DATABASE_URL is required for archive reindex")
			}

			codes, err := codesOrAll(rt, args)
			if err != nil {
				return err
			}
			for _, code := range codes {
				n, err := reindex(ctx, rt, code)
				if err != nil {
					return fmt.Errorf("reindex %s: %w", code, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tindexed %d\n", code, n)
			}
			return nil
		},
	}
}

func reindex(ctx context.Context, rt *app.Runtime, code string) (int, error) {
	logs, err := rt.Store.List(ctx, archive.KindLog, code)
	if err != nil {
		return 0, err
	}
	indexed := 0
	for _, name := range logs {
		l, err := archive.ReadLog(ctx, rt.Store, code, name)
		if err != nil {
			logger.Warn("skipping unreadable log", "country", code, "file", name, "error", err)
			continue
		}
		if err := rt.Index.UpsertLog(ctx, code, name, l); err != nil {
			return indexed, err
		}
		indexed++
	}

	audio, err := rt.Store.List(ctx, archive.KindAudio, code)
	if err != nil {
		return indexed, err
	}
	for _, name := range audio {
		n, err := archive.ParseName(name)
		if err != nil || n.Time == "" {
			continue
		}
		err = rt.Index.MarkAudio(ctx, code, n.Date+"_"+n.Time, name)
		if err != nil && !errors.Is(err, archive.ErrNotFound) {
			return indexed, err
		}
	}
	return indexed, nil
}

func newArchiveStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count archived Logs and audio per country",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			stats := map[string]int{}
			if rt.Index != nil {
				stats, err = rt.Index.GetStats(ctx)
				if err != nil {
					return err
				}
			} else {
				total := 0
				for _, code := range rt.Countries.Codes() {
					logs, audio := 0, 0
					for _, e := range rt.Catalog.Entries(ctx, code) {
						logs += len(e.Logs)
						if e.Audio != "" {
							audio++
						}
					}
					stats["logs_"+code] = logs
					stats["audio_"+code] = audio
					total += logs
				}
				stats["total_logs"] = total
			}

			keys := make([]string, 0, len(stats))
			for k := range stats {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", k, stats[k])
			}
			return nil
		},
	}
}

func newArchiveRecentCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recent [CODE]",
		Short: "Show the latest indexed Logs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()
			if rt.Index == nil {
				return errors.New("DATABASE_URL is required for archive recent")
			}

			code := ""
			if len(args) == 1 {
				p, err := rt.Countries.Profile(args[0])
				if err != nil {
					return err
				}
				code = p.Code
			}
			logs, err := rt.Index.RecentLogs(ctx, code, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "COUNTRY\tTIMESTAMP\tHEADLINES\tTRENDS\tANALYSIS\tAUDIO")
			for _, l := range logs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%t\t%s\n", l.Country, l.Timestamp, l.Headlines, l.Trends, l.HasAnalysis, dash(l.AudioName))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of Logs to show")
	return cmd
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
