package main

import (
	"context"
	"fmt"
	"time"

	"github.com/clamp-sh/clamp/internal/config"
	"github.com/clamp-sh/clamp/pkg/app"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// daemon adapts the application to the host service manager's lifecycle.
type daemon struct {
	cfgPath string
	app     *app.App
}

// Start implements service.Interface. It must not block.
func (d *daemon) Start(_ service.Service) error {
	cfgPath := d.cfgPath
	if cfgPath == "" {
		resolved, err := app.ResolveConfigPath()
		if err != nil {
			return err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	a, err := app.New(context.Background(), cfg, app.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	})
	if err != nil {
		return err
	}
	if err := a.Start(); err != nil {
		return err
	}
	d.app = a
	return nil
}

// Stop implements service.Interface.
func (d *daemon) Stop(_ service.Service) error {
	if d.app == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	d.app.Stop(ctx)
	return nil
}

func newService(cfgPath string) (service.Service, error) {
	arguments := []string{"service", "run"}
	if cfgPath != "" {
		arguments = append(arguments, "--config", cfgPath)
	}
	return service.New(&daemon{cfgPath: cfgPath}, &service.Config{
		Name:        "clamp",
		DisplayName: "clamp",
		Description: "Context compaction daemon for AI coding sessions",
		Arguments:   arguments,
	})
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Run clamp under the host service manager",
	}

	var cfgPath string
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")

	actions := []struct {
		use   string
		short string
		run   func(service.Service) error
	}{
		{"install", "Install the system service", service.Service.Install},
		{"uninstall", "Remove the system service", service.Service.Uninstall},
		{"start", "Start the installed service", service.Service.Start},
		{"stop", "Stop the running service", service.Service.Stop},
		{"run", "Run in service mode (invoked by the service manager)", service.Service.Run},
	}
	for _, action := range actions {
		cmd.AddCommand(&cobra.Command{
			Use:   action.use,
			Short: action.short,
			RunE: func(_ *cobra.Command, _ []string) error {
				svc, err := newService(cfgPath)
				if err != nil {
					return err
				}
				if err := action.run(svc); err != nil {
					return fmt.Errorf("service %s: %w", action.use, err)
				}
				if action.use != "run" {
					fmt.Printf("Service %s: OK\n", action.use)
				}
				return nil
			},
		})
	}
	return cmd
}
