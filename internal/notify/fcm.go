package notify

import (
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	apperrors "github.com/Proton-105/billsafe/internal/errors"
	"github.com/Proton-105/billsafe/pkg/config"
)

const defaultChannelID = "bill_reminders"

// messagingClient is the subset of *messaging.Client used here.
type messagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMNotifier sends notifications through Firebase Cloud Messaging.
type FCMNotifier struct {
	client    messagingClient
	channelID string
	log       *slog.Logger
}

// NewFCMNotifier initializes a Firebase app from a service account file.
func NewFCMNotifier(ctx context.Context, cfg config.PushConfig, log *slog.Logger) (*FCMNotifier, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	var fbConfig *firebase.Config
	if cfg.ProjectID != "" {
		fbConfig = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, fbConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}

	return newFCMNotifier(client, cfg.ChannelID, log), nil
}

func newFCMNotifier(client messagingClient, channelID string, log *slog.Logger) *FCMNotifier {
	if channelID == "" {
		channelID = defaultChannelID
	}
	if log == nil {
		log = slog.Default()
	}

	return &FCMNotifier{
		client:    client,
		channelID: channelID,
		log:       log,
	}
}

func (n *FCMNotifier) Send(ctx context.Context, note Notification) error {
	if note.Token == "" {
		return apperrors.NewPermanentExternalAPIError("fcm", ErrInvalidToken)
	}

	messageID, err := n.client.Send(ctx, &messaging.Message{
		Token: note.Token,
		Notification: &messaging.Notification{
			Title: note.Title,
			Body:  note.Body,
		},
		Data: note.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: n.channelID,
			},
		},
	})
	if err != nil {
		return classifyFCMError(err)
	}

	n.log.DebugContext(ctx, "push notification sent", slog.String("message_id", messageID))
	return nil
}

func classifyFCMError(err error) error {
	switch {
	case messaging.IsUnregistered(err), errorutils.IsInvalidArgument(err), errorutils.IsNotFound(err):
		return apperrors.NewPermanentExternalAPIError("fcm", fmt.Errorf("%w: %v", ErrInvalidToken, err))
	case errorutils.IsUnauthenticated(err), errorutils.IsPermissionDenied(err):
		return apperrors.NewPermanentExternalAPIError("fcm", err)
	default:
		return apperrors.NewExternalAPIError("fcm", err)
	}
}
