// Package app wires the console together with fx.
package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/freddiequinson/kountryeye-console/internal/api"
	"github.com/freddiequinson/kountryeye-console/internal/bus"
	"github.com/freddiequinson/kountryeye-console/internal/cache"
	"github.com/freddiequinson/kountryeye-console/internal/compose"
	"github.com/freddiequinson/kountryeye-console/internal/config"
	"github.com/freddiequinson/kountryeye-console/internal/connstate"
	"github.com/freddiequinson/kountryeye-console/internal/drafts"
	"github.com/freddiequinson/kountryeye-console/internal/lock"
	"github.com/freddiequinson/kountryeye-console/internal/logging"
	"github.com/freddiequinson/kountryeye-console/internal/presence"
	"github.com/freddiequinson/kountryeye-console/internal/profile"
	"github.com/freddiequinson/kountryeye-console/internal/push"
	"github.com/freddiequinson/kountryeye-console/internal/receipts"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
	Profile     config.Profile
}

// Module returns the fx module for the console, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("console",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideDrafts,
			provideClient,
			providePushManager,
			provideCache,
			provideCoordinator,
			provideComposer,
			provideTracker,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *connstate.Machine {
	return connstate.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideDrafts(p Params, logger *zap.Logger) (*drafts.Store, error) {
	path := profile.DraftDBPath(p.ProfileName)
	s, err := drafts.Open(path)
	if err != nil {
		return nil, err
	}
	logger.Info("draft store initialized", zap.String("path", path))
	return s, nil
}

func provideClient(p Params, logger *zap.Logger) *api.Client {
	return api.New(p.Profile.APIBaseURL, p.Profile.Token, logger.Named("api"))
}

func providePushManager(p Params, b *bus.Bus, m *connstate.Machine, logger *zap.Logger) *push.Manager {
	return push.NewManager(p.Profile.PushURL, p.Profile.UserID, b, m, logger.Named("push"))
}

func provideCache(p Params, client *api.Client, b *bus.Bus, logger *zap.Logger) *cache.Cache {
	return cache.New(client, b, p.Profile.UserID,
		p.Profile.ConversationPoll(), p.Profile.MessagePoll(), logger.Named("cache"))
}

func provideCoordinator(p Params, b *bus.Bus, m *push.Manager, c *cache.Cache, logger *zap.Logger) *presence.Coordinator {
	return presence.New(b, m, c, p.Profile.TypingIdle(), logger.Named("presence"))
}

func provideComposer(p Params, client *api.Client, logger *zap.Logger) *compose.Composer {
	return compose.New(client, p.Profile.Role, logger.Named("compose"))
}

func provideTracker(p Params, b *bus.Bus, c *cache.Cache, m *push.Manager, logger *zap.Logger) *receipts.Tracker {
	return receipts.New(b, c, m, p.Profile.UserID, logger.Named("receipts"))
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, ds *drafts.Store, m *push.Manager, c *cache.Cache, coord *presence.Coordinator, tracker *receipts.Tracker, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			ctx := context.Background()
			c.Start(ctx)
			coord.Start(ctx)
			tracker.Start(ctx)
			m.Open()
			logger.Info("console started")
			return nil
		},
		OnStop: func(_ context.Context) error {
			m.Close()
			coord.Stop()
			tracker.Stop()
			c.Stop()
			if err := ds.Close(); err != nil {
				logger.Warn("error closing draft store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("console stopped")
			return nil
		},
	})
}
