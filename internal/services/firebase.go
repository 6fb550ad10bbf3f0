package services

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// PushMessage is the device notification payload.
type PushMessage struct {
	Title string
	Body  string
	Data  map[string]string
}

// TokenStore is where the push service finds and invalidates device tokens.
// The presence registry implements it.
type TokenStore interface {
	GetFCMToken(ctx context.Context, userID uint) (*FCMTokenRecord, error)
	DeleteFCMToken(ctx context.Context, userID uint) error
}

// FirebasePush delivers best-effort device notifications through FCM.
// A nil messaging client (Firebase not configured) disables delivery
// without failing callers.
type FirebasePush struct {
	client *messaging.Client
	tokens TokenStore
}

// NewFirebasePush initializes the FCM client from a service account file.
// An empty path returns a disabled pusher.
func NewFirebasePush(ctx context.Context, serviceAccountPath string, tokens TokenStore) (*FirebasePush, error) {
	if serviceAccountPath == "" {
		log.Println("Warning: FIREBASE_SERVICE_ACCOUNT_PATH not set. Push notifications will be disabled.")
		return &FirebasePush{tokens: tokens}, nil
	}

	opt := option.WithCredentialsFile(serviceAccountPath)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %v", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %v", err)
	}

	log.Println("Firebase Cloud Messaging initialized successfully")
	return &FirebasePush{client: client, tokens: tokens}, nil
}

func androidConfig() *messaging.AndroidConfig {
	return &messaging.AndroidConfig{
		Priority: "high",
		Notification: &messaging.AndroidNotification{
			Sound:                 "default",
			ChannelID:             "orders",
			Priority:              messaging.PriorityHigh,
			DefaultSound:          true,
			DefaultVibrateTimings: true,
		},
	}
}

func apnsConfig() *messaging.APNSConfig {
	badge := 1
	return &messaging.APNSConfig{
		Payload: &messaging.APNSPayload{
			Aps: &messaging.Aps{
				Sound:            "default",
				Badge:            &badge,
				ContentAvailable: true,
			},
		},
	}
}

// SendToUser looks up the user's registered token and sends the message.
// Returns whether delivery succeeded. An invalid or unregistered token is
// removed from the store so later sends skip it.
func (f *FirebasePush) SendToUser(ctx context.Context, userID uint, msg PushMessage) (bool, error) {
	if f.client == nil {
		return false, nil
	}

	record, err := f.tokens.GetFCMToken(ctx, userID)
	if err != nil {
		return false, err
	}
	if record == nil || record.Token == "" {
		log.Printf("No FCM token found for user %d", userID)
		return false, nil
	}

	message := &messaging.Message{
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data:    msg.Data,
		Token:   record.Token,
		Android: androidConfig(),
		APNS:    apnsConfig(),
	}

	response, err := f.client.Send(ctx, message)
	if err != nil {
		if messaging.IsRegistrationTokenNotRegistered(err) || messaging.IsInvalidArgument(err) {
			if delErr := f.tokens.DeleteFCMToken(ctx, userID); delErr != nil {
				log.Printf("Failed to invalidate FCM token for user %d: %v", userID, delErr)
			}
		}
		return false, fmt.Errorf("error sending message: %v", err)
	}

	log.Printf("FCM sent to user %d: %s", userID, response)
	return true, nil
}

// SendToTopic broadcasts to all devices subscribed to a topic.
func (f *FirebasePush) SendToTopic(ctx context.Context, topic string, msg PushMessage) error {
	if f.client == nil {
		log.Println("Warning: Firebase not initialized. Skipping topic notification.")
		return nil
	}

	message := &messaging.Message{
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data:    msg.Data,
		Topic:   topic,
		Android: androidConfig(),
		APNS:    apnsConfig(),
	}

	response, err := f.client.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("error sending topic message: %v", err)
	}

	log.Printf("FCM sent to topic %s: %s", topic, response)
	return nil
}

// SubscribeToTopic subscribes tokens to a topic for targeted messaging.
func (f *FirebasePush) SubscribeToTopic(ctx context.Context, tokens []string, topic string) error {
	if f.client == nil {
		return nil
	}

	response, err := f.client.SubscribeToTopic(ctx, tokens, topic)
	if err != nil {
		return fmt.Errorf("error subscribing to topic: %v", err)
	}

	log.Printf("Subscribed %d tokens to topic %s, %d failures", response.SuccessCount, topic, response.FailureCount)
	return nil
}
