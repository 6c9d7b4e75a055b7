package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/freddiequinson/kountryeye-console/internal/api"
	"github.com/freddiequinson/kountryeye-console/internal/app"
	"github.com/freddiequinson/kountryeye-console/internal/bus"
	"github.com/freddiequinson/kountryeye-console/internal/cache"
	"github.com/freddiequinson/kountryeye-console/internal/compose"
	"github.com/freddiequinson/kountryeye-console/internal/config"
	"github.com/freddiequinson/kountryeye-console/internal/drafts"
	"github.com/freddiequinson/kountryeye-console/internal/presence"
	"github.com/freddiequinson/kountryeye-console/internal/profile"
	"github.com/freddiequinson/kountryeye-console/internal/tui"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(profile.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: load config %s: %v\n", profile.ConfigPath(), err)
		os.Exit(1)
	}
	prof, ok := cfg.Profiles[profileName]
	if !ok {
		fmt.Fprintf(os.Stderr, "error: profile %q not found in config\n", profileName)
		os.Exit(1)
	}

	params := app.Params{ProfileName: profileName, Profile: prof}

	var ui *tui.App
	fxApp := fx.New(
		app.Module(params),
		fx.Provide(func(b *bus.Bus, c *cache.Cache, comp *compose.Composer, coord *presence.Coordinator, ds *drafts.Store, client *api.Client, logger *zap.Logger) *tui.App {
			return tui.NewApp(b, c, comp, coord, ds, client, profileName, prof.UserID, logger)
		}),
		fx.Populate(&ui),
		fx.NopLogger,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	runErr := ui.Run()
	ui.Stop()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStop()
	if err := fxApp.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		os.Exit(1)
	}
}
