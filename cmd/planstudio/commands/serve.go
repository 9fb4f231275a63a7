package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/planstudio-ai/planstudio/internal/config"
	"github.com/planstudio-ai/planstudio/internal/logging"
	"github.com/planstudio-ai/planstudio/internal/server"
	"github.com/planstudio-ai/planstudio/internal/storage"
	"github.com/planstudio-ai/planstudio/pkg/types"
)

var (
	servePort int
	serveDir  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the planstudio backend server",
	Long: `Start the backend server exposing the project resource and the
planning endpoint. Project documents are stored as JSON files under the
data directory.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Working directory")
}

func runServe(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(serveDir)
	if err != nil {
		return err
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	if err := config.GetPaths().EnsurePaths(); err != nil {
		return err
	}
	store := storage.New(cfg.StorageDir())

	serverConfig := server.DefaultConfig()
	serverConfig.Port = cfg.Port

	srv := server.New(serverConfig, store, echoPlanner)

	go func() {
		logging.Info().Int("port", cfg.Port).Msg("server listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("server shutdown error")
	}
	return nil
}

// echoPlanner is the built-in planner: it acknowledges the last user
// message as a single assistant step. Real planners sit behind the same
// endpoint shape; this keeps the server usable standalone.
func echoPlanner(ctx context.Context, req types.PlanRequest, emit func(types.StepEvent) error) error {
	var last string
	for _, msg := range req.History {
		if msg.Role == types.RoleUser {
			last = msg.Content
		}
	}
	if last == "" {
		return errors.New("history has no user message")
	}

	return emit(types.StepEvent{
		Message: &types.Message{
			Role:    types.RoleAssistant,
			Content: fmt.Sprintf("Plan for %q:\n1. Break the request into steps.\n2. Execute each step.", last),
		},
	})
}
