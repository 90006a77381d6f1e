// Command taketest takes a timed course test from the terminal.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"educbt.org/internal/client"
	"educbt.org/internal/testrunner"
)

var (
	apiURL   string
	email    string
	password string
	courseID int64
)

var rootCmd = &cobra.Command{
	Use:          "taketest",
	Short:        "Take a timed course test",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if email == "" || password == "" || courseID <= 0 {
			return errors.New("--email, --password and --course are required")
		}
		c, err := client.New(apiURL)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if _, err := c.SignIn(ctx, email, password); err != nil {
			return fmt.Errorf("sign in: %w", err)
		}
		if _, err := c.Test(ctx, courseID); client.StatusOf(err) == http.StatusNotFound {
			if _, err := c.StartTest(ctx, courseID); err != nil {
				return fmt.Errorf("start test: %w", err)
			}
		} else if err != nil {
			return err
		}
		r, err := testrunner.Load(ctx, c, courseID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %d questions, %d minutes\n", r.Course().Name, r.Total(), r.Course().TestDuration)

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			// Run finishes the attempt on timeout.
			_ = r.Run(ctx, nil)
		}()
		if err := prompt(ctx, r, cmd.InOrStdin(), out); err != nil {
			return err
		}

		report, err := c.Report(ctx, courseID)
		if err != nil {
			return err
		}
		verdict := "not passed"
		if report.IsPassed != nil && *report.IsPassed {
			verdict = "passed"
		}
		fmt.Fprintf(out, "score %d (%d/%d correct): %s\n", report.Score, report.Correct, report.Total, verdict)
		return nil
	},
}

// prompt walks the questions until the runner is finished.
func prompt(ctx context.Context, r *testrunner.Runner, in io.Reader, out io.Writer) error {
	lines := bufio.NewScanner(in)
	for r.Status() != testrunner.Finished {
		q, idx, err := r.Current()
		if errors.Is(err, testrunner.ErrFinished) {
			break
		} else if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n[%s] Question %d of %d\n%s\n", testrunner.Countdown(r.Remaining()), idx+1, r.Total(), q.Question)
		for i, o := range q.AnswerOptions {
			fmt.Fprintf(out, "  %d) %s\n", i+1, o.Value)
		}
		fmt.Fprint(out, "answer (enter keeps the current choice): ")
		if !lines.Scan() {
			return lines.Err()
		}
		if n, err := strconv.Atoi(strings.TrimSpace(lines.Text())); err == nil && n >= 1 && n <= len(q.AnswerOptions) {
			if err := r.Select(q.AnswerOptions[n-1].ID); err != nil && !errors.Is(err, testrunner.ErrFinished) {
				return err
			}
		}
		if err := r.Next(ctx); err != nil && !errors.Is(err, testrunner.ErrFinished) {
			if errors.Is(err, testrunner.ErrBusy) {
				time.Sleep(100 * time.Millisecond)
				continue
			}
			return err
		}
	}
	fmt.Fprintln(out, "\ntest finished")
	return nil
}

func init() {
	rootCmd.Flags().StringVar(&apiURL, "api", "http://localhost:8080/api/v1", "API base URL")
	rootCmd.Flags().StringVar(&email, "email", "", "account email")
	rootCmd.Flags().StringVar(&password, "password", os.Getenv("EDUCBT_PASSWORD"), "account password")
	rootCmd.Flags().Int64Var(&courseID, "course", 0, "course id")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
