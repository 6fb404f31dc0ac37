package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"studio-booking-backend/internal/model"
)

const queueDepthPerWorker = 16

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Payload is the JSON body pushed to subscribers when a slot frees up.
type Payload struct {
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	StudioID int64     `json:"studioId"`
	Unit     string    `json:"unit"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// WorkerPool tells a studio's subscribers about slots freed by cancellations.
type WorkerPool struct {
	size    int
	jobs    chan model.Booking
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
	loc     *time.Location
	log     *slog.Logger
}

// NewWorkerPool creates a new worker pool. Times in messages are rendered in loc.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options, loc *time.Location, log *slog.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if loc == nil {
		loc = time.UTC
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan model.Booking, size*queueDepthPerWorker),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		loc:     loc,
		log:     log,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Info("notification worker started", "worker", id)
	for {
		select {
		case b := <-wp.jobs:
			wp.sendNotificationsForBooking(ctx, b)
		case <-ctx.Done():
			wp.log.Info("notification worker shutting down", "worker", id)
			return
		}
	}
}

// Dispatch queues a freed booking. It never blocks; when the queue is full the
// notification is dropped.
func (wp *WorkerPool) Dispatch(b model.Booking) {
	select {
	case wp.jobs <- b:
	default:
		wp.log.Warn("notification queue full, dropping", "booking_id", b.ID, "studio_id", b.StudioID)
	}
}

func (wp *WorkerPool) sendNotificationsForBooking(ctx context.Context, b model.Booking) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_studio_mapping ssm ON ssm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("ssm.studio_id = ?", b.StudioID).
		Find(&subscriptions).Error
	if err != nil {
		wp.log.Error("failed to fetch subscriptions", "studio_id", b.StudioID, "err", err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	studioLabel := fmt.Sprintf("Studio %d", b.StudioID)
	if b.Studio != nil && b.Studio.Name != "" {
		studioLabel = b.Studio.Name
	} else {
		var studio model.Studio
		if err := wp.db.WithContext(ctx).Select("name").First(&studio, b.StudioID).Error; err != nil {
			wp.log.Warn("failed to fetch studio name", "studio_id", b.StudioID, "err", err)
		} else if studio.Name != "" {
			studioLabel = studio.Name
		}
	}

	payload, err := json.Marshal(wp.payload(studioLabel, b))
	if err != nil {
		wp.log.Error("failed to encode notification", "booking_id", b.ID, "err", err)
		return
	}

	wp.log.Info("sending slot freed notifications", "count", len(subscriptions), "booking_id", b.ID)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func (wp *WorkerPool) payload(studioLabel string, b model.Booking) Payload {
	start, end := b.StartAt.In(wp.loc), b.EndAt.In(wp.loc)
	return Payload{
		Title:    fmt.Sprintf("%s %s is free", studioLabel, b.Unit),
		Body:     fmt.Sprintf("%s %s-%s is available again", start.Format("Mon 2 Jan"), start.Format("15:04"), end.Format("15:04")),
		StudioID: b.StudioID,
		Unit:     b.Unit,
		Start:    b.StartAt.UTC(),
		End:      b.EndAt.UTC(),
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Warn("failed to send notification", "endpoint", sub.Endpoint, "err", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		wp.log.Info("subscription expired, deleting", "endpoint", sub.Endpoint)
		err := wp.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec("DELETE FROM subscription_studio_mapping WHERE push_subscription_endpoint = ?", sub.Endpoint).Error; err != nil {
				return err
			}
			return tx.Delete(&sub).Error
		})
		if err != nil {
			wp.log.Error("failed to delete expired subscription", "endpoint", sub.Endpoint, "err", err)
		}
	}
}
