package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/talgya/blob-world/internal/llm"
	"github.com/talgya/blob-world/internal/tasks"
)

func (s *Simulation) imagesOn() bool {
	return s.opts.ImagesEnabled && s.Illustrator != nil
}

// scheduleImage illustrates an event inline, or on the dispatcher when async
// images are on. Failures only leave the event without an image.
func (s *Simulation) scheduleImage(ctx context.Context, worldID string, index int, headline, details string) {
	if !s.opts.AsyncImages || s.Dispatcher == nil {
		if err := s.illustrate(ctx, worldID, index, headline, details); err != nil {
			slog.Warn("illustration failed", "world", worldID, "index", index, "error", err)
		}
		return
	}

	err := s.Dispatcher.Submit(tasks.Job{
		Name: fmt.Sprintf("illustrate:%s:%d", worldID, index),
		Run: func(ctx context.Context) error {
			return s.illustrate(ctx, worldID, index, headline, details)
		},
	})
	if err != nil {
		slog.Warn("illustration not queued", "world", worldID, "index", index, "error", err)
	}
}

func (s *Simulation) illustrate(ctx context.Context, worldID string, index int, headline, details string) error {
	prompt := llm.BuildImagePrompt(s.opts.ImageStyle, headline, details, llm.ImagePromptBudget)
	urls, err := s.Illustrator.GenerateImage(ctx, prompt, s.opts.ImageSize)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("no image returned for event %d", index)
	}
	url := urls[0]

	s.mu.Lock()
	var year int
	filled := false
	if w := s.world; w != nil && w.ID == worldID {
		if ev, ok := w.Event(index); ok {
			ev.ImageURL = url
			year = ev.Year
			filled = true
		}
	}
	s.mu.Unlock()
	if !filled {
		// The world was replaced while the image was drawn.
		return nil
	}

	if s.Recorder != nil {
		if err := s.Recorder.RecordImage(worldID, index, url); err != nil {
			slog.Warn("archive image failed", "world", worldID, "index", index, "error", err)
		}
	}
	s.hub.publish(Notice{Kind: NoticeImage, WorldID: worldID, Year: year, Index: index, ImageURL: url})
	return nil
}
