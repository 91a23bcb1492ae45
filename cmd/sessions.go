package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage attendance sessions",
}

var sessionsSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "End every ongoing session whose time window has passed",
	Long: `Sweep finds ongoing sessions whose end time has passed, completes them,
and creates absent records for every roster member without one.
Meant for a cron job or systemd timer; sessions never end on their own.`,
	RunE: runSessionsSweep,
}

var sessionsEndCmd = &cobra.Command{
	Use:   "end <session-id>",
	Short: "End one session and sweep its absents",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsEnd,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsSweepCmd)
	sessionsCmd.AddCommand(sessionsEndCmd)
}

func runSessionsSweep(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx := context.Background()
	expired, err := eng.stores.Sessions.ListExpired(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("listing expired sessions: %w", err)
	}
	if len(expired) == 0 {
		fmt.Println("No expired sessions")
		return nil
	}

	bar := progressbar.NewOptions(len(expired),
		progressbar.OptionSetDescription("Sweeping sessions"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	totalAbsents := 0
	for _, session := range expired {
		absents, err := eng.service.EndSession(ctx, session.ID)
		if err != nil {
			return fmt.Errorf("ending session %s: %w", session.ID, err)
		}
		totalAbsents += absents
		bar.Add(1)
	}

	fmt.Printf("\nCompleted %d sessions, created %d absent records\n", len(expired), totalAbsents)
	return nil
}

func runSessionsEnd(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	absents, err := eng.service.EndSession(context.Background(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Session completed, %d absent records created\n", absents)
	return nil
}
