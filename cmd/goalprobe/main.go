// Package main provides the goal-awareness probe CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/goalprobe/internal/config"
	"github.com/zhouzirui/goalprobe/internal/model/goal"
	"github.com/zhouzirui/goalprobe/internal/runner"
)

var version = "dev"

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout))
}

// run 执行命令行并返回退出码，所有诊断都写到 out。
func run(ctx context.Context, args []string, out io.Writer) int {
	logger := log.New(out, "[TEST] ", 0)

	if err := godotenv.Load(); err != nil {
		logger.Printf("warning: failed to load .env file: %v", err)
		logger.Println("continuing with system environment variables only")
	}

	cfg, err := config.LoadProbe()
	if err != nil {
		logger.Printf("❌ Error: failed to load configuration: %v", err)
		return runner.ExitFail
	}

	code := runner.ExitPass
	cmd := rootCmd(&cfg, &code, out)
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(out)
	if err := cmd.ExecuteContext(ctx); err != nil {
		logger.Printf("❌ Error: %v", err)
		return runner.ExitFail
	}
	return code
}

func rootCmd(cfg *config.ProbeConfig, code *int, out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goalprobe",
		Short: "Check that consultations are aware of the user's goal",
		Long: `Run the goal-aware consultation check against a coaching backend.

The probe logs in, creates a weight-loss goal, opens a consultation bound to
that goal, asks the assistant for help without naming the goal and checks
whether the streamed reply references it. Everything it created is deleted
before it exits.

Credentials come from API_KEY, PROBE_EMAIL and PROBE_PASSWORD (a .env file in
the working directory is loaded first). Flags override the environment.

Examples:
  goalprobe                                   # Probe the default backend
  goalprobe --base-url http://localhost:8080  # Probe a local mock backend
  goalprobe --goal-file goal.yaml             # Use a custom goal fixture
`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}

			fixture := goal.Fixture()
			if cfg.GoalFile != "" {
				loaded, err := goal.LoadFixture(cfg.GoalFile)
				if err != nil {
					return err
				}
				fixture = loaded
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			*code = runner.New(*cfg, fixture, out).Run(ctx)
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Backend base URL (http or https)")
	cmd.Flags().StringVar(&cfg.Persona, "persona", cfg.Persona, "Consultation persona")
	cmd.Flags().StringVar(&cfg.Message, "message", cfg.Message, "Chat message sent to the assistant")
	cmd.Flags().StringVar(&cfg.GoalFile, "goal-file", cfg.GoalFile, "YAML file overriding the goal fixture")
	cmd.Flags().DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "Wait for the connected frame")
	cmd.Flags().DurationVar(&cfg.ReceiveTimeout, "receive-timeout", cfg.ReceiveTimeout, "Wait for each streamed frame")
	cmd.Flags().DurationVar(&cfg.HTTPTimeout, "http-timeout", cfg.HTTPTimeout, "Timeout of each REST call")

	cmd.AddCommand(fixtureCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

func fixtureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fixture",
		Short: "Print the default goal fixture as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(goal.Fixture()); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the probe version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "goalprobe", version)
		},
	}
}
