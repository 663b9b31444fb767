package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pbaille/tagvault/internal/audit"
	"github.com/pbaille/tagvault/internal/domain"
)

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [content]",
		Short: "Show the tags and retention content would get",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := cfg.Policy()
			if err != nil {
				return err
			}
			tags := cfg.Classifier().Classify(strings.Join(args, " "))
			if len(tags) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(no match, using general)")
				tags = []string{domain.GeneralTag}
			}
			for _, t := range tags {
				fmt.Fprintf(cmd.OutOrStdout(), "  + %s (%s)\n", t, policy.TTLFor(t))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Effective TTL: %s\n", policy.EffectiveTTL(tags))
			return nil
		},
	}
}

func policyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policy",
		Short: "Show the retention table",
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := cfg.Policy()
			if err != nil {
				return err
			}
			for _, t := range policy.Tags() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", t, policy.TTLFor(t))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", "(default)", policy.DefaultTTL())
			return nil
		},
	}
}

func auditCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent events from the audit journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Audit.DBPath == "" {
				return fmt.Errorf("no audit journal configured (audit.db_path)")
			}
			j, err := audit.OpenJournal(cfg.Audit.DBPath)
			if err != nil {
				return err
			}
			defer j.Close()

			events, err := j.Recent(limit)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No audit events yet.")
				return nil
			}
			for _, e := range events {
				fmt.Fprintln(cmd.OutOrStdout(), formatEvent(e))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of events to show")
	return cmd
}

func formatEvent(e domain.AuditEvent) string {
	id := e.EntryID
	if id == "" {
		id = "-"
	}
	return fmt.Sprintf("%6d  %s  %-8s  %s  %s",
		e.Seq, e.Timestamp.Format("2006-01-02 15:04:05"), e.Kind, id, truncate(e.Detail, 60))
}
