package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"tubewatch/internal/logging"
	"tubewatch/internal/websub"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleVerification answers the hub's intent-verification handshake.
// A verified subscribe creates or renews the subscription record, a
// verified unsubscribe removes it; the challenge echo is what confirms
// intent to the hub. Anything malformed gets 404 so the hub treats the
// verification as refused.
func (s *Server) handleVerification(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	mode := query.Get("hub.mode")
	topic := query.Get("hub.topic")
	challenge := query.Get("hub.challenge")
	channelID := query.Get("channel_id")

	log := s.logger.With(logging.ChannelID(channelID), logging.String("mode", mode))

	if challenge == "" || !websub.ValidChannelID(channelID) || topic != websub.TopicURL(channelID) {
		log.Warn("refusing hub verification", logging.String("topic", topic))
		http.NotFound(w, r)
		return
	}

	switch mode {
	case "subscribe":
		lease, err := strconv.Atoi(query.Get("hub.lease_seconds"))
		if err != nil || lease <= 0 {
			lease = s.cfg.Hub.LeaseSeconds
		}
		expiresAt := s.now().Add(time.Duration(lease) * time.Second)
		if err := s.store.UpsertSubscription(r.Context(), channelID, "", expiresAt); err != nil {
			log.Error("record subscription failed", logging.Error(err))
			http.Error(w, "storage error", http.StatusInternalServerError)
			return
		}
		log.Info("subscription verified", logging.Time("expires_at", expiresAt))
	case "unsubscribe":
		if err := s.store.DeleteSubscription(r.Context(), channelID); err != nil {
			log.Error("remove subscription failed", logging.Error(err))
			http.Error(w, "storage error", http.StatusInternalServerError)
			return
		}
		log.Info("unsubscribe verified")
	default:
		log.Warn("unknown verification mode")
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(challenge))
}

// handlePush processes a signed feed notification. Signature failures
// and semantic skips still answer 2xx: a non-2xx would make the hub
// retry a payload that will never become valid. Only processing
// failures that a redelivery could fix return 5xx.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	s.metrics.IncCallbackRequests()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	if !websub.VerifySignature(body, r.Header.Get("X-Hub-Signature"), s.cfg.Hub.Secret) {
		s.metrics.IncInvalidSignatures()
		s.logger.Warn("push rejected for invalid signature", logging.String("remote", r.RemoteAddr))
		w.WriteHeader(http.StatusOK)
		return
	}

	update, err := websub.ParseFeed(body)
	if errors.Is(err, websub.ErrDeletedEntry) {
		s.logger.Info("ignoring deleted-entry push")
		w.WriteHeader(http.StatusOK)
		return
	}
	if err != nil {
		s.logger.Warn("unusable feed document", logging.Error(err))
		w.WriteHeader(http.StatusOK)
		return
	}

	log := s.logger.With(
		logging.VideoID(update.VideoID),
		logging.ChannelID(update.ChannelID),
		logging.String(logging.FieldCorrelationID, requestIDFrom(r.Context())))

	if s.cfg.Notifier.ExcludeShorts && update.IsShort() {
		log.Info("ignoring short")
		w.WriteHeader(http.StatusOK)
		return
	}

	if stale, err := s.alreadySeen(r, update); err != nil {
		log.Error("watermark lookup failed", logging.Error(err))
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	} else if stale {
		log.Info("ignoring replayed push", logging.Time("updated_at", update.UpdatedAt))
		w.WriteHeader(http.StatusOK)
		return
	}

	acquired, err := s.store.AcquireDeliveryLock(r.Context(), update.VideoID, deliveryLockTTL)
	if err != nil {
		log.Error("delivery lock failed", logging.Error(err))
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	if !acquired {
		log.Info("concurrent delivery in flight, skipping")
		w.WriteHeader(http.StatusOK)
		return
	}
	defer func() {
		if err := s.store.ReleaseDeliveryLock(r.Context(), update.VideoID); err != nil {
			log.Warn("release delivery lock failed", logging.Error(err))
		}
	}()

	if err := s.engine.Run(r.Context(), update.VideoID); err != nil {
		log.Error("processing push failed", logging.Error(err))
		http.Error(w, "processing error", http.StatusInternalServerError)
		return
	}

	if err := s.store.AdvanceWatermark(r.Context(), update.ChannelID, update.UpdatedAt); err != nil {
		log.Warn("advance watermark failed", logging.Error(err))
	}

	w.WriteHeader(http.StatusNoContent)
}

// alreadySeen reports whether the channel's watermark is at or past the
// update timestamp, meaning this push is a redelivery of old news.
func (s *Server) alreadySeen(r *http.Request, update *websub.FeedUpdate) (bool, error) {
	sub, err := s.store.GetSubscription(r.Context(), update.ChannelID)
	if err != nil {
		return false, err
	}
	if sub == nil || sub.LastSeenUpdateAt == nil {
		return false, nil
	}
	return !sub.LastSeenUpdateAt.Before(update.UpdatedAt), nil
}

type statusResponse struct {
	Status            string    `json:"status"`
	StartedAt         time.Time `json:"started_at"`
	NotificationCount int64     `json:"notification_records"`
	SubscriptionCount int64     `json:"subscriptions"`
	DatabasePath      string    `json:"database_path"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	notifications, subscriptions, err := s.store.RecordCounts(r.Context())
	if err != nil {
		s.logger.Error("status query failed", logging.Error(err))
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statusResponse{
		Status:            "ok",
		StartedAt:         s.startedAt,
		NotificationCount: notifications,
		SubscriptionCount: subscriptions,
		DatabasePath:      s.store.Path(),
	})
}
