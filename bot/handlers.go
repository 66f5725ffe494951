package bot

import (
	"clockbot/core/telegram"
	"clockbot/core/telegram/commands"
	tghelpers "clockbot/core/telegram/helpers"
	"clockbot/core/telegram/keyboard"
	"clockbot/dialog"

	tele "gopkg.in/telebot.v4"
)

func (a *App) buildRegistry() *telegram.Registry {
	reg := telegram.NewRegistry()

	reg.RegisterCommand("/start", commands.Command{
		Description: "Register with your Clockify account",
		Handler:     a.flowCommand("start", dialog.FlowRegistration),
	})
	reg.RegisterCommand("/create_time_entry", commands.Command{
		Description: "Create a time entry for a past interval",
		Handler:     a.flowCommand("create_time_entry", dialog.FlowCreateEntry),
	})
	reg.RegisterCommand("/start_time_entry", commands.Command{
		Description: "Start tracking time from now",
		Handler:     a.flowCommand("start_time_entry", dialog.FlowStartEntry),
	})
	reg.RegisterCommand("/end_time_entry", commands.Command{
		Description: "Stop the running time entry",
		Handler:     a.endEntry,
	})
	reg.RegisterCommand("/change_api_key", commands.Command{
		Description: "Replace your stored Clockify API key",
		Handler:     a.flowCommand("change_api_key", dialog.FlowChangeKey),
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Description: "Abort the current dialog",
		Handler:     a.cancel,
	})

	reg.SetTextFallback(a.onText)
	return reg
}

// flowCommand returns a handler that begins the named dialog flow.
func (a *App) flowCommand(handler, flow string) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.WithHandler(c, handler)
		return send(c, a.engine.Begin(ctx, senderOf(c), flow))
	}
}

func (a *App) endEntry(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "end_time_entry")
	return send(c, a.deps.EndEntry(ctx, senderOf(c)))
}

func (a *App) cancel(c tele.Context) error {
	tghelpers.WithHandler(c, "cancel")
	return send(c, a.engine.Cancel(senderOf(c)))
}

// onText routes plain text into the sender's active flow. Text outside any
// flow gets a short usage hint.
func (a *App) onText(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "text")
	replies, handled := a.engine.HandleText(ctx, senderOf(c), c.Text())
	if !handled {
		return tghelpers.SendText(c, "Use /start to register or /create_time_entry to log time.")
	}
	return send(c, replies)
}

func senderOf(c tele.Context) dialog.Sender {
	u := c.Sender()
	if u == nil {
		return dialog.Sender{}
	}
	return dialog.Sender{ID: u.ID, Handle: u.Username}
}

func send(c tele.Context, replies []dialog.Reply) error {
	for _, r := range replies {
		var markup *tele.ReplyMarkup
		switch {
		case len(r.Choices) > 0:
			markup = keyboard.ReplyButtons(r.Choices...)
		case r.RemoveKeyboard:
			markup = keyboard.RemoveKeyboard()
		}
		if err := tghelpers.SendText(c, r.Text, markup); err != nil {
			return err
		}
	}
	return nil
}
