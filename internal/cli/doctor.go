package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ideaforge/fab/internal/config"
)

// AddDoctorCommand adds the doctor command to the root command.
func AddDoctorCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check pipeline readiness",
		Long: `Probe the execution environment without committing any resources:
verifies the agent runtime is installed, required credentials are
present, and reports the configured paths.

Example:
  fab doctor`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := GetLogger()

			d, err := buildDeps(cmd.Context(), logger)
			if err != nil {
				return err
			}

			storeHome, err := d.cfg.StoreHome()
			if err != nil {
				return err
			}
			logPath, err := LogFilePath()
			if err != nil {
				return err
			}

			checks := map[string]string{
				"agent":    d.cfg.Agent.Command,
				"model":    d.cfg.Agent.Model,
				"registry": storeHome,
				"log_file": logPath,
			}

			preflightErr := d.orchestrator.Preflight(cmd.Context())
			ready := preflightErr == nil

			if outputFormat(cmd) == OutputJSON {
				out := map[string]any{"ready": ready, "checks": checks}
				if preflightErr != nil {
					out["error"] = preflightErr.Error()
				}
				return printJSON(os.Stdout, out)
			}

			fmt.Fprintf(os.Stdout, "agent:    %s\n", checks["agent"])
			fmt.Fprintf(os.Stdout, "model:    %s\n", checks["model"])
			fmt.Fprintf(os.Stdout, "registry: %s\n", checks["registry"])
			fmt.Fprintf(os.Stdout, "log file: %s\n", checks["log_file"])
			if projectCfg := config.ProjectConfigPath(); projectCfg != "" {
				fmt.Fprintf(os.Stdout, "project:  %s\n", projectCfg)
			}
			if ready {
				fmt.Fprintln(os.Stdout, "ready")
				return nil
			}
			fmt.Fprintf(os.Stdout, "not ready: %v\n", preflightErr)
			return preflightErr
		},
	}
	parent.AddCommand(cmd)
}
