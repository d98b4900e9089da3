package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"cachebuster/pkg/config"
	"cachebuster/pkg/logger"
	"cachebuster/pkg/version"
)

const serviceStopTimeout = 30 * time.Second

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage cachebuster as a system service",
	Long: `Install and control cachebuster as a system service.

Examples:
  # Install as system service (requires sudo/admin privileges)
  sudo cachebuster -c /etc/cachebuster/config.json service install

  # Control the service
  sudo cachebuster service start
  sudo cachebuster service stop
  sudo cachebuster service restart
  cachebuster service status

  # Uninstall the service
  sudo cachebuster service uninstall`,
}

var serviceRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run under the service manager",
	Long:  `Run the bot. When installed as a service, this is called automatically.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := RunService(); err != nil {
			fmt.Fprintf(os.Stderr, "Error running service: %v\n", err)
			os.Exit(1)
		}
	},
}

// serviceAction wraps a privileged control operation with the usual hint.
func serviceAction(use, short, verb string, fn func() error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Run: func(cmd *cobra.Command, args []string) {
			if err := fn(); err != nil {
				fmt.Fprintf(os.Stderr, "Error %s service: %v\n", verb, err)
				fmt.Fprintln(os.Stderr, "\nNote: Managing system services requires administrator privileges.")
				fmt.Fprintln(os.Stderr, "Please run with sudo (Linux/macOS) or as Administrator (Windows).")
				os.Exit(1)
			}
		},
	}
}

func init() {
	serviceCmd.AddCommand(serviceRunCmd)
	serviceCmd.AddCommand(serviceAction("install", "Install as system service", "installing", InstallService))
	serviceCmd.AddCommand(serviceAction("uninstall", "Uninstall the system service", "uninstalling", UninstallService))
	serviceCmd.AddCommand(serviceAction("start", "Start the service", "starting", StartService))
	serviceCmd.AddCommand(serviceAction("stop", "Stop the service", "stopping", StopService))
	serviceCmd.AddCommand(serviceAction("restart", "Restart the service", "restarting", RestartService))
	serviceCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Check service status",
		Run: func(cmd *cobra.Command, args []string) {
			if err := StatusService(); err != nil {
				fmt.Fprintf(os.Stderr, "Error checking service status: %v\n", err)
				os.Exit(1)
			}
		},
	})
}

// BotService implements service.Interface for the bot.
type BotService struct {
	app    *fx.App
	logger service.Logger
}

// NewBotService creates a new bot service.
func NewBotService() *BotService {
	return &BotService{}
}

// Start implements service.Interface.Start. It must not block.
func (s *BotService) Start(svc service.Service) error {
	if s.logger != nil {
		s.logger.Info("Starting cachebuster service")
	}

	options := append(appOptions(configPath),
		fx.Invoke(func(lc fx.Lifecycle, log *logger.Logger, cfg *config.Config) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					log.Info("Bot service started",
						zap.String("mode", "daemon"),
						zap.String("command_prefix", cfg.CommandPrefix))
					return nil
				},
				OnStop: func(ctx context.Context) error {
					log.Info("Bot service stopped")
					return nil
				},
			})
		}),
		fx.NopLogger,
	)

	s.app = fx.New(options...)
	if err := s.app.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()
	return s.app.Start(ctx)
}

// Stop implements service.Interface.Stop
func (s *BotService) Stop(svc service.Service) error {
	if s.logger != nil {
		s.logger.Info("Stopping cachebuster service")
	}

	if s.app == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), serviceStopTimeout)
	defer cancel()

	if err := s.app.Stop(ctx); err != nil {
		if s.logger != nil {
			s.logger.Errorf("Error stopping service: %v", err)
		}
		return err
	}
	return nil
}

// ServiceConfig returns the service configuration. The config path in
// effect now is baked into the service arguments.
func ServiceConfig() *service.Config {
	args := []string{"service", "run"}
	if path := serviceConfigPath(); path != "" {
		args = append([]string{"-c", path}, args...)
	}

	return &service.Config{
		Name:        version.AppName,
		DisplayName: "Cachebuster",
		Description: "Discord bot for Cloudflare cache purges",
		Arguments:   args,
	}
}

func serviceConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return os.Getenv(config.ConfigPathEnv)
}

func newService(prg *BotService) (service.Service, error) {
	s, err := service.New(prg, ServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("creating service: %w", err)
	}
	return s, nil
}

// InstallService installs the bot as a system service.
func InstallService() error {
	s, err := newService(NewBotService())
	if err != nil {
		return err
	}

	if err := s.Install(); err != nil {
		return fmt.Errorf("installing service: %w", err)
	}

	fmt.Println("Service installed successfully!")
	fmt.Println("Use 'cachebuster service start' to start the service")
	return nil
}

// UninstallService uninstalls the service.
func UninstallService() error {
	s, err := newService(NewBotService())
	if err != nil {
		return err
	}

	if err := s.Uninstall(); err != nil {
		return fmt.Errorf("uninstalling service: %w", err)
	}

	fmt.Println("Service uninstalled successfully!")
	return nil
}

// StartService starts the service.
func StartService() error {
	s, err := newService(NewBotService())
	if err != nil {
		return err
	}

	if err := s.Start(); err != nil {
		return fmt.Errorf("starting service: %w", err)
	}

	fmt.Println("Service started successfully!")
	return nil
}

// StopService stops the service.
func StopService() error {
	s, err := newService(NewBotService())
	if err != nil {
		return err
	}

	if err := s.Stop(); err != nil {
		return fmt.Errorf("stopping service: %w", err)
	}

	fmt.Println("Service stopped successfully!")
	return nil
}

// RestartService restarts the service.
func RestartService() error {
	s, err := newService(NewBotService())
	if err != nil {
		return err
	}

	if err := s.Restart(); err != nil {
		return fmt.Errorf("restarting service: %w", err)
	}

	fmt.Println("Service restarted successfully!")
	return nil
}

// StatusService prints the status of the service.
func StatusService() error {
	s, err := newService(NewBotService())
	if err != nil {
		return err
	}

	status, err := s.Status()
	if err != nil {
		return fmt.Errorf("getting service status: %w", err)
	}

	fmt.Printf("Service Status: %s\n", statusString(status))
	return nil
}

func statusString(status service.Status) string {
	switch status {
	case service.StatusRunning:
		return "Running"
	case service.StatusStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// RunService runs the bot under the service manager.
func RunService() error {
	prg := NewBotService()
	s, err := newService(prg)
	if err != nil {
		return err
	}

	logger, err := s.Logger(nil)
	if err != nil {
		return fmt.Errorf("creating service logger: %w", err)
	}
	prg.logger = logger

	if err := s.Run(); err != nil {
		logger.Error(err)
		return err
	}

	return nil
}
