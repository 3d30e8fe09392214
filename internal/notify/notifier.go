// Package notify delivers best-effort reservation notifications. Delivery
// failures are the consumer's problem to retry; nothing here blocks or
// reverses a committed transition.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vkurasov/ridepool/internal/domain"
)

type Notifier struct {
	webhookURL string
	client     *http.Client
	log        *logrus.Logger
}

func NewNotifier(webhookURL string, log *logrus.Logger) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// recipients lists who hears about the event: the passenger always, the
// driver when the event carries one.
func recipients(event domain.Event) []string {
	out := []string{event.Reservation.PassengerID}
	if event.DriverID != "" {
		out = append(out, event.DriverID)
	}
	return out
}

// Notify fans the event out to both parties of the reservation. Without a
// configured webhook it only records the delivery, which keeps local and
// test environments free of external dependencies.
func (n *Notifier) Notify(ctx context.Context, event domain.Event) error {
	recipients := recipients(event)

	n.log.WithFields(logrus.Fields{
		"event_type":     event.Type,
		"reservation_id": event.Reservation.ID,
		"recipients":     recipients,
	}).Info("dispatching notification")

	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification webhook returned %d", resp.StatusCode)
	}
	return nil
}
