package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/cash_reconciliation/config"
	"github.com/mmdatafocus/cash_reconciliation/utils"
	"github.com/mmdatafocus/cash_reconciliation/workflow"
	"github.com/sirupsen/logrus"
)

// PubSubMessage is the push delivery envelope.
type PubSubMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// isPoisonRequest reports errors that redelivery cannot fix.
func isPoisonRequest(err error) bool {
	return errors.Is(err, workflow.ErrInvalidRequest) ||
		errors.Is(err, workflow.ErrInvalidRange) ||
		errors.Is(err, workflow.ErrRangeTooLarge) ||
		errors.Is(err, workflow.ErrAmbiguousClaim) ||
		errors.Is(err, workflow.ErrMalformedClaims)
}

func systemContext(ctx context.Context, correlationId string) context.Context {
	ctx = utils.SetUsernameInContext(ctx, "System")
	ctx = utils.SetSkipStoreScopeInContext(ctx, true)
	return utils.SetCorrelationIdInContext(ctx, correlationId)
}

// handleReconcileRequest runs one queued request and reports whether it should be redelivered.
func (s *apiServer) handleReconcileRequest(ctx context.Context, messageId string, data []byte) (retry bool) {
	var m config.ReconcileRequestMessage
	if err := json.Unmarshal(data, &m); err != nil {
		config.LogError(s.logger, "reconcileRequests.go", "handleReconcileRequest", "Unmarshal request", data, err)
		return false
	}

	correlationId := m.CorrelationId
	if correlationId == "" {
		correlationId = messageId
	}
	fields := logrus.Fields{
		"field":          "handleReconcileRequest",
		"message_id":     messageId,
		"correlation_id": correlationId,
		"date":           m.Date,
		"from":           m.From,
		"to":             m.To,
		"store_id":       m.StoreId,
	}

	db, reconciler := s.deps()
	result, skipped, err := workflow.ProcessReconcileRequest(systemContext(ctx, correlationId), db, reconciler, messageId, m)
	switch {
	case err == nil && skipped:
		s.logger.WithFields(fields).Info("request already processed; acking")
		return false
	case err == nil:
		fields["records"] = len(result.Records)
		fields["high_priority"] = result.Summary.HighPriority
		s.logger.WithFields(fields).Info("reconcile request completed")
		return false
	case isPoisonRequest(err):
		s.logger.WithFields(fields).Error("dropping reconcile request: " + err.Error())
		return false
	default:
		s.logger.WithFields(fields).Error("reconcile request failed: " + err.Error())
		return true
	}
}

// reconcileRequestPushHandler acks malformed deliveries and returns 500 for retryable failures.
func (s *apiServer) reconcileRequestPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var msg PubSubMessage

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(s.logger, "reconcileRequests.go", "reconcileRequestPushHandler", "io.ReadAll", nil, err)
			c.Status(http.StatusNoContent)
			return
		}
		// byte slice unmarshalling handles base64 decoding.
		if err := json.Unmarshal(body, &msg); err != nil {
			config.LogError(s.logger, "reconcileRequests.go", "reconcileRequestPushHandler", "Unmarshal body", body, err)
			c.Status(http.StatusNoContent)
			return
		}
		if strings.TrimSpace(msg.Message.ID) == "" {
			config.LogError(s.logger, "reconcileRequests.go", "reconcileRequestPushHandler", "missing message id", body, errors.New("message.id required"))
			c.Status(http.StatusNoContent)
			return
		}

		if s.handleReconcileRequest(c.Request.Context(), msg.Message.ID, msg.Message.Data) {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// runRequestSubscriber starts a pull worker when RECON_REQUEST_SUBSCRIPTION is set.
func runRequestSubscriber(ctx context.Context, s *apiServer) error {
	topicName, subName := config.ReconRequestSubscription()
	if subName == "" {
		return nil
	}
	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}
	var sub *pubsub.Subscription
	if topicName != "" {
		topic, err := config.CreateTopicIfNotExists(client, topicName)
		if err != nil {
			return err
		}
		if sub, err = config.CreateSubscriptionIfNotExists(client, subName, topic); err != nil {
			return err
		}
	} else {
		sub = client.Subscription(subName)
	}
	sub.ReceiveSettings.MaxOutstandingMessages = 4

	callback := func(ctx context.Context, msg *pubsub.Message) {
		if s.handleReconcileRequest(ctx, msg.ID, msg.Data) {
			msg.Nack()
			return
		}
		msg.Ack()
	}

	go func() {
		if err := sub.Receive(ctx, callback); err != nil {
			config.LogError(s.logger, "reconcileRequests.go", "runRequestSubscriber", "Failed to receive messages", subName, err)
		}
	}()
	return nil
}
