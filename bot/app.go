// Package bot assembles the Telegram front end: it wires the Clockify
// client, the identity store, and the dialog engine into a running bot.
package bot

import (
	"context"

	"github.com/jmoiron/sqlx"

	"clockbot/clockify"
	coreconfig "clockbot/core/config"
	"clockbot/core/telegram"
	"clockbot/core/telegram/state"
	"clockbot/dialog"
	"clockbot/service"
	"clockbot/store"
)

// App owns the bot's long-lived components. Everything is constructed once
// in New and passed down by reference.
type App struct {
	cfg      *coreconfig.Config
	sessions state.Manager
	engine   *dialog.Engine
	deps     *dialog.Deps
	registry *telegram.Registry
}

// New wires the application from configuration and an open database handle.
func New(cfg *coreconfig.Config, db *sqlx.DB) *App {
	clk := clockify.New(clockify.Config{
		BaseURL:     cfg.Clockify.BaseURL,
		APIKey:      cfg.Clockify.APIKey,
		WorkspaceID: cfg.Clockify.WorkspaceID,
	})

	identities := store.NewIdentities(db)
	identity := service.NewIdentityService(clk, identities)
	entries := service.NewEntryService(clk, cfg.Location())

	sessions := state.NewMemoryManager(cfg.SessionTTL())
	deps := &dialog.Deps{Identity: identity, Entries: entries}
	engine := dialog.NewEngine(sessions)
	engine.Register(deps.Flows()...)

	app := &App{
		cfg:      cfg,
		sessions: sessions,
		engine:   engine,
		deps:     deps,
	}
	app.registry = app.buildRegistry()
	return app
}

// Run starts the bot and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	defer a.sessions.Close()

	return telegram.RunTelegram(ctx, telegram.RunOptions{
		Config:      a.cfg,
		Registry:    a.registry,
		Middlewares: telegram.DefaultMiddlewares(a.cfg, nil),
		OnStart: func(_ context.Context, rt telegram.Runtime) error {
			telegram.InitBotCommands(rt.Bot, rt.Registry)
			return nil
		},
	})
}
