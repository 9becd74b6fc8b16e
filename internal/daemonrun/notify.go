package daemonrun

import (
	"context"
	"errors"
	"log/slog"

	"narrativ/internal/daemon"
	"narrativ/internal/imagegen"
	"narrativ/internal/logging"
	"narrativ/internal/notifications"
	"narrativ/internal/services"
	"narrativ/internal/storyplan"
)

// notifyingGenerator reports each render outcome to the notification service.
type notifyingGenerator struct {
	daemon.ImageGenerator
	notifier notifications.Service
	logger   *slog.Logger
}

func withNotifications(gen daemon.ImageGenerator, notifier notifications.Service, logger *slog.Logger) daemon.ImageGenerator {
	if notifier == nil {
		return gen
	}
	return &notifyingGenerator{
		ImageGenerator: gen,
		notifier:       notifier,
		logger:         logging.NewComponentLogger(logger, "notifications"),
	}
}

func (g *notifyingGenerator) GenerateStory(ctx context.Context, plan storyplan.Plan, opts imagegen.GenerateOptions) (imagegen.Story, error) {
	story, err := g.ImageGenerator.GenerateStory(ctx, plan, opts)
	notifyCtx := context.WithoutCancel(ctx)
	var notifyErr error
	switch {
	case err == nil:
		notifyErr = g.notifier.NotifyStoryRendered(notifyCtx, plan.Topic, len(story.Files), len(plan.Slides), opts.Provider)
	case errors.Is(err, services.ErrValidation), errors.Is(err, context.Canceled):
	default:
		notifyErr = g.notifier.NotifyRenderFailed(notifyCtx, plan.Topic, err)
	}
	if notifyErr != nil {
		g.logger.Warn("notification failed",
			logging.String(logging.FieldEventType, "notification_failed"),
			logging.Error(notifyErr),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
	return story, err
}
