package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"delivering/internal/models"
	"delivering/internal/pkg/errs"
)

// Notification priorities. High priority notifications are requeued for
// retry when the user is unreachable.
const (
	PriorityHigh   = "high"
	PriorityNormal = "normal"
)

// NotificationInput is a request to notify a single user.
type NotificationInput struct {
	UserID   uint              `json:"userId"`
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Message  string            `json:"message"`
	Data     map[string]string `json:"data,omitempty"`
	Priority string            `json:"priority,omitempty"`
}

// BatchResult reports per-user outcomes of a batch send.
type BatchResult struct {
	Sent   int    `json:"sent"`
	Failed int    `json:"failed"`
	Errors []uint `json:"failedUserIds,omitempty"`
}

// NotificationStore persists notifications before delivery is attempted.
type NotificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// PresenceChecker reports whether a user has a live websocket session.
type PresenceChecker interface {
	IsOnline(ctx context.Context, userID uint) (bool, error)
}

// RealtimePusher delivers an event to a connected websocket client.
type RealtimePusher interface {
	PushToUser(userID uint, event string, data interface{}) error
}

// DevicePusher delivers a push notification to a user's device.
type DevicePusher interface {
	SendToUser(ctx context.Context, userID uint, msg PushMessage) (bool, error)
	SendToTopic(ctx context.Context, topic string, msg PushMessage) error
}

// RetryEnqueuer schedules a notification for later redelivery.
type RetryEnqueuer interface {
	Enqueue(ctx context.Context, input NotificationInput) error
}

// Publisher fans a payload out on a channel for other service instances.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload interface{}) error
	PublishBroadcast(ctx context.Context, channel, event string, data interface{}) error
}

// Notifier coordinates notification delivery across persistence, websocket,
// device push, the retry queue and the pub/sub fanout.
type Notifier struct {
	store    NotificationStore
	presence PresenceChecker
	realtime RealtimePusher
	device   DevicePusher
	retry    RetryEnqueuer
	pub      Publisher
}

func NewNotifier(store NotificationStore, presence PresenceChecker, realtime RealtimePusher, device DevicePusher, retry RetryEnqueuer, pub Publisher) *Notifier {
	return &Notifier{
		store:    store,
		presence: presence,
		realtime: realtime,
		device:   device,
		retry:    retry,
		pub:      pub,
	}
}

// Send persists the notification and attempts delivery on every channel.
// Persistence failure aborts the send; delivery failures are logged. A high
// priority notification that reached neither the websocket nor the device
// is enqueued for retry.
func (n *Notifier) Send(ctx context.Context, input NotificationInput) error {
	return n.deliver(ctx, input, false)
}

// Redeliver retries delivery for an already persisted notification. Unlike
// Send it does not persist again and reports unreachable users as an error
// so the retry queue can back off and reattempt.
func (n *Notifier) Redeliver(ctx context.Context, input NotificationInput) error {
	return n.deliver(ctx, input, true)
}

func (n *Notifier) deliver(ctx context.Context, input NotificationInput, fromRetry bool) error {
	if !fromRetry {
		record := &models.Notification{
			UserID:  input.UserID,
			Type:    input.Type,
			Title:   input.Title,
			Message: input.Message,
		}
		if len(input.Data) > 0 {
			raw, err := json.Marshal(input.Data)
			if err != nil {
				return fmt.Errorf("marshal notification data: %w", err)
			}
			record.Data = string(raw)
		}
		if err := n.store.Create(ctx, record); err != nil {
			return fmt.Errorf("persist notification: %w", err)
		}
	}

	online, err := n.presence.IsOnline(ctx, input.UserID)
	if err != nil {
		log.Printf("Presence check failed for user %d: %v", input.UserID, err)
		online = false
	}

	if online {
		if err := n.realtime.PushToUser(input.UserID, "notification", input); err != nil {
			log.Printf("Websocket delivery failed for user %d: %v", input.UserID, err)
		}
	}

	pushed, err := n.device.SendToUser(ctx, input.UserID, PushMessage{
		Title: input.Title,
		Body:  input.Message,
		Data:  input.Data,
	})
	if err != nil {
		log.Printf("Push delivery failed for user %d: %v", input.UserID, err)
	}

	unreachable := !online && !pushed
	if unreachable && input.Priority == PriorityHigh {
		if fromRetry {
			// Let the queue drive backoff instead of enqueueing again.
			return errs.External("redeliver notification", fmt.Errorf("user %d unreachable", input.UserID))
		}
		if err := n.retry.Enqueue(ctx, input); err != nil {
			log.Printf("Failed to enqueue notification retry for user %d: %v", input.UserID, err)
		}
	}

	channel := fmt.Sprintf("notifications:user:%d", input.UserID)
	if err := n.pub.Publish(ctx, channel, input); err != nil {
		log.Printf("Failed to publish notification on %s: %v", channel, err)
	}

	return nil
}

// SendBatch delivers to many users independently. One user's failure does
// not stop the rest.
func (n *Notifier) SendBatch(ctx context.Context, inputs []NotificationInput) BatchResult {
	var result BatchResult
	for _, input := range inputs {
		if err := n.Send(ctx, input); err != nil {
			log.Printf("Batch notification failed for user %d: %v", input.UserID, err)
			result.Failed++
			result.Errors = append(result.Errors, input.UserID)
			continue
		}
		result.Sent++
	}
	return result
}

// NotifyDriverOfNewOrder alerts a candidate driver about an order near them.
func (n *Notifier) NotifyDriverOfNewOrder(ctx context.Context, driverUserID uint, order *models.Order, distanceKm float64) error {
	return n.Send(ctx, NotificationInput{
		UserID:   driverUserID,
		Type:     models.NotificationOrderCreated,
		Title:    "New Order Available",
		Message:  fmt.Sprintf("New delivery order %.1f km away", distanceKm),
		Priority: PriorityHigh,
		Data: map[string]string{
			"orderId":  fmt.Sprintf("%d", order.ID),
			"distance": fmt.Sprintf("%.1f", distanceKm),
		},
	})
}

// NotifyCustomerOrderAccepted tells the customer a driver took their order.
// High priority so an unreachable customer gets the redelivery treatment.
func (n *Notifier) NotifyCustomerOrderAccepted(ctx context.Context, order *models.Order) error {
	return n.Send(ctx, NotificationInput{
		UserID:   order.UserID,
		Type:     models.NotificationOrderAccepted,
		Title:    "Driver Assigned",
		Message:  fmt.Sprintf("A driver has accepted your order #%d", order.ID),
		Priority: PriorityHigh,
		Data: map[string]string{
			"orderId": fmt.Sprintf("%d", order.ID),
			"status":  order.Status,
		},
	})
}

// NotifyCustomerDriverArrival tells the customer their driver has arrived
// and the delivery is underway.
func (n *Notifier) NotifyCustomerDriverArrival(ctx context.Context, order *models.Order) error {
	return n.Send(ctx, NotificationInput{
		UserID:   order.UserID,
		Type:     models.NotificationDriverArrival,
		Title:    "Driver Arrived",
		Message:  "Your driver has arrived and your delivery is on the way",
		Priority: PriorityNormal,
		Data: map[string]string{
			"orderId": fmt.Sprintf("%d", order.ID),
			"status":  order.Status,
		},
	})
}

// NotifyCustomerOrderStatus tells the customer their order changed state.
func (n *Notifier) NotifyCustomerOrderStatus(ctx context.Context, order *models.Order, title, message string) error {
	return n.Send(ctx, NotificationInput{
		UserID:   order.UserID,
		Type:     models.NotificationOrderStatus,
		Title:    title,
		Message:  message,
		Priority: PriorityNormal,
		Data: map[string]string{
			"orderId": fmt.Sprintf("%d", order.ID),
			"status":  order.Status,
		},
	})
}

// BroadcastToDrivers reaches every driver: connected ones through the shared
// broker channel, which every instance's bridge relays into its local hub,
// and the rest through the drivers FCM topic.
func (n *Notifier) BroadcastToDrivers(ctx context.Context, title, message string) error {
	payload := map[string]string{
		"type":    models.NotificationSystemMessage,
		"title":   title,
		"message": message,
	}
	if err := n.pub.PublishBroadcast(ctx, ChannelDrivers, "broadcast", payload); err != nil {
		log.Printf("Failed to publish driver broadcast: %v", err)
	}
	return n.device.SendToTopic(ctx, "drivers", PushMessage{Title: title, Body: message, Data: payload})
}
