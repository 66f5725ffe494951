package helpers

import (
	"log/slog"

	"clockbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// SendText sends raw text (no parse mode) to the current recipient,
// optionally with a reply markup. Send failures are logged and returned.
func SendText(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	var err error
	if len(markup) > 0 && markup[0] != nil {
		err = c.Send(text, markup[0])
	} else {
		err = c.Send(text)
	}
	if err != nil {
		ctx := BuildContext(c)
		logger.Warn(ctx, "tg", "send.failed",
			slog.String("err", err.Error()),
		)
	}
	return err
}
