package app

import (
	"context"
	"fmt"

	"github.com/deusflow/pulse/internal/config"
	"github.com/deusflow/pulse/internal/telegram"
)

// TelegramPublisher posts the essay and its recording to a chat.
type TelegramPublisher struct {
	Client *telegram.Client
}

func (t *TelegramPublisher) Publish(ctx context.Context, p config.Profile, res *Result, mp3 []byte) error {
	msg := telegram.FormatDigest(p.Flag, p.DisplayName, res.Log.Trends, res.Log.Analysis)
	if err := t.Client.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("telegram message: %w", err)
	}
	if len(mp3) == 0 || res.AudioName == "" {
		return nil
	}
	caption := fmt.Sprintf("%s %s %s", p.Flag, p.DisplayName, res.Log.Timestamp)
	if err := t.Client.SendAudio(ctx, res.AudioName, mp3, caption); err != nil {
		return fmt.Errorf("telegram audio: %w", err)
	}
	return nil
}
