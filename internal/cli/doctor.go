package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/trisolve/trisolve/internal/config"
	"github.com/trisolve/trisolve/internal/llm/providers/ollama"
)

// NewDoctorCmd returns a health-check command validating config and probing
// the inference backend.
func NewDoctorCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration and probe the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config OK. Backend: %s (%s), roles: %d, search: %s\n",
				cfg.Backend.Type, cfg.Backend.BaseURL, len(cfg.Roles), cfg.Search.Provider)

			if !strings.EqualFold(strings.TrimSpace(cfg.Backend.Type), "ollama") {
				fmt.Fprintln(out, "Backend probe skipped: not an ollama backend")
				return nil
			}

			mgr := ollama.NewManager(cfg.Backend.BaseURL, cfg.Backend.ProbeTimeout)
			if !mgr.Status(cmd.Context()) {
				fmt.Fprintf(out, "Backend UNREACHABLE at %s – is ollama running?\n", cfg.Backend.BaseURL)
				return nil
			}

			models := mgr.Models(cmd.Context())
			fmt.Fprintf(out, "Backend OK. Installed models: %d\n", len(models))
			for _, key := range config.RequiredRoles {
				role := cfg.Roles[key]
				state := "MISSING (will be pulled on daemon start)"
				if mgr.HasModel(cmd.Context(), role.Model) {
					state = "installed"
				}
				fmt.Fprintf(out, "  %-12s %-18s %s\n", key, role.Model, state)
			}
			return nil
		},
	}
}
