package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/meeting-transcriber/internal/app"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/config"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/logger"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/speakers"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/storage"
	"github.com/codebuildervaibhav/meeting-transcriber/internal/types"
)

type cli struct {
	configPath string
	logLevel   string
	app        *app.App
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "speakerctl",
		Short:         "Process recordings and manage enrolled speakers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if c.app == nil {
				return nil
			}
			return c.app.Close()
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "config/config.yaml", "path to the YAML config")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override logging.level")

	root.AddCommand(
		c.processCmd(),
		c.enrollCmd(),
		c.listCmd(),
		c.removeCmd(),
		c.clearCmd(),
		c.suggestCmd(),
		c.promoteCmd(),
	)
	return root
}

func (c *cli) open(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	log, err := logger.NewWithOutput(cfg.Logging, "speakerctl", cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	c.app, err = app.New(cfg, log)
	return err
}

func (c *cli) processCmd() *cobra.Command {
	var name string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Diarize, identify and transcribe one recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}

			jobID := uuid.New().String()
			db := c.app.DB
			if err := db.CreateJob(ctx, storage.JobRecord{
				JobID:       jobID,
				RequestName: name,
				SourceType:  types.SourceCLI,
				SessionID:   jobID,
				Status:      types.StatusProcessing,
			}); err != nil {
				return err
			}

			fail := func(cause error) error {
				if err := db.UpdateJobStatus(ctx, jobID, types.StatusFailed, cause.Error()); err != nil {
					return multierror.Append(cause, err)
				}
				return cause
			}

			source, err := filepath.Abs(path)
			if err != nil {
				return fail(err)
			}
			result, err := c.app.Pipeline.Process(ctx, path, source, jobID)
			if err != nil {
				return fail(err)
			}
			result.JobID = jobID

			art, err := c.app.Local.SaveTranscript(name, result)
			if err != nil {
				return fail(err)
			}
			result.LocalPath = art.TextPath
			if err := db.CompleteJob(ctx, storage.JobRecord{
				JobID:         jobID,
				Status:        types.StatusCompleted,
				LocalPath:     art.TextPath,
				HierarchyPath: art.HierarchyPath,
				Duration:      result.Duration,
				WordCount:     result.WordCount,
				SpeakerCount:  len(result.Speakers),
			}); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			fmt.Fprintln(out, result.Text)
			for _, w := range result.Warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "saved %s\n", art.TextPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "request name used for output files (default: file name)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func (c *cli) enrollCmd() *cobra.Command {
	var name string
	var start, end float64
	cmd := &cobra.Command{
		Use:   "enroll <file>",
		Short: "Add a voiceprint sample for a speaker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var span *speakers.Span
			if cmd.Flags().Changed("start") || cmd.Flags().Changed("end") {
				if end <= start {
					return fmt.Errorf("--end (%.2f) must be after --start (%.2f)", end, start)
				}
				span = &speakers.Span{Start: start, End: end}
			}
			info, err := c.app.Speakers.Enroll(cmd.Context(), name, args[0], span)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enrolled %s (%d samples)\n", info.Name, info.Samples)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "speaker name")
	cmd.Flags().Float64Var(&start, "start", 0, "span start in seconds")
	cmd.Flags().Float64Var(&end, "end", 0, "span end in seconds")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List enrolled speakers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list := c.app.Speakers.List()
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no speakers enrolled")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSAMPLES")
			for _, s := range list {
				fmt.Fprintf(tw, "%s\t%d\n", s.Name, s.Samples)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove an enrolled speaker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Speakers.Remove(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}
}

func (c *cli) clearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every enrolled speaker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to clear voiceprints without --yes")
			}
			if err := c.app.Speakers.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cleared all voiceprints")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm")
	return cmd
}

func (c *cli) suggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest",
		Short: "Cluster accumulated unknown samples into candidate speakers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			suggestions, err := c.app.Speakers.Suggestions(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(suggestions) == 0 {
				fmt.Fprintln(out, "no clusters found")
				return nil
			}
			for _, s := range suggestions {
				fmt.Fprintf(out, "cluster %d: %d samples\n", s.ClusterID, s.Count)
				for _, sample := range s.Samples {
					fmt.Fprintf(out, "  #%d %s [%.2f-%.2f] session %s\n",
						sample.ID, sample.File, sample.Start, sample.End, sample.SessionID)
				}
			}
			return nil
		},
	}
}

func (c *cli) promoteCmd() *cobra.Command {
	var name string
	var clusterID int
	var ids []int64
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Enroll a suggested cluster or selected samples as a named speaker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				n   int
				err error
			)
			switch {
			case cmd.Flags().Changed("cluster"):
				n, err = c.app.Speakers.PromoteCluster(cmd.Context(), name, clusterID)
			case len(ids) > 0:
				n, err = c.app.Speakers.Promote(cmd.Context(), name, ids)
			default:
				return errors.New("either --cluster or --ids is required")
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "promoted %d samples to %s\n", n, name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "speaker name")
	cmd.Flags().IntVar(&clusterID, "cluster", 0, "suggestion cluster ID")
	cmd.Flags().Int64SliceVar(&ids, "ids", nil, "unknown sample IDs")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
