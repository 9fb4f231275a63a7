package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/planstudio-ai/planstudio/internal/config"
	"github.com/planstudio-ai/planstudio/internal/planner"
	"github.com/planstudio-ai/planstudio/internal/project"
	"github.com/planstudio-ai/planstudio/internal/settings"
	"github.com/planstudio-ai/planstudio/internal/storage"
	"github.com/planstudio-ai/planstudio/internal/store"
	"github.com/planstudio-ai/planstudio/pkg/types"
)

var (
	planProjectID string
	planServerURL string
	planPlannerID string
	planTimeout   time.Duration
	planNoSave    bool
)

var planCmd = &cobra.Command{
	Use:   "plan [prompt]",
	Short: "Run a planning session against a backend",
	Long: `Load a project document, append the prompt to its message log, stream
the planner's response into it, and save the result back.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planProjectID, "project", "", "Project ID to load and save (required)")
	planCmd.Flags().StringVar(&planServerURL, "server", "", "Backend base URL (overrides config)")
	planCmd.Flags().StringVar(&planPlannerID, "planner", "", "Planner ID (overrides config)")
	planCmd.Flags().DurationVar(&planTimeout, "timeout", 5*time.Minute, "Session timeout")
	planCmd.Flags().BoolVar(&planNoSave, "no-save", false, "Do not save the document after the session")
	planCmd.MarkFlagRequired("project")
}

func runPlan(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir("")
	if err != nil {
		return err
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}
	serverURL := planServerURL
	if serverURL == "" {
		serverURL = cfg.ServerURL
	}
	if serverURL == "" {
		serverURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	plannerID := planPlannerID
	if plannerID == "" {
		plannerID = cfg.Planner
	}

	repo, err := settings.NewFile(storage.New(cfg.StorageDir()))
	if err != nil {
		return err
	}

	st := store.New(project.NewClient(serverURL), planner.NewClient(serverURL), repo)
	defer st.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), planTimeout)
	defer cancel()

	if err := st.Load(ctx, planProjectID); err != nil {
		return err
	}

	// Terminal planning events (status running=false, error) close done;
	// sessionErr is written before the close, so reading it after <-done
	// is safe.
	done := make(chan struct{})
	var once sync.Once
	var sessionErr error
	st.OnPlanning(func(e types.PlanningEvent) {
		switch e.Type {
		case types.PlanningStep:
			if e.Step.Message != nil && e.Step.Message.Role == types.RoleAssistant {
				fmt.Print(e.Step.Message.Content)
			}
		case types.PlanningError:
			sessionErr = errors.New(e.Message)
			if !e.Running {
				once.Do(func() { close(done) })
			}
		case types.PlanningStatus:
			if !e.Running {
				once.Do(func() { close(done) })
			}
		}
	})

	history := append(st.Messages(), types.Message{Role: types.RoleUser, Content: args[0]})
	st.Plan(ctx, history, plannerID)

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	fmt.Fprintln(os.Stdout)

	if sessionErr != nil {
		return fmt.Errorf("planning session: %w", sessionErr)
	}
	if planNoSave {
		return nil
	}
	return st.Save(ctx)
}
