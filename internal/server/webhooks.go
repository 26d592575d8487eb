package server

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/posbridge/internal/observability/context"
	storefrontdomain "github.com/smallbiznis/posbridge/internal/storefront/domain"
	"github.com/smallbiznis/posbridge/internal/storefront/webhook"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

// OrderCreated acknowledges a signed orders/create delivery and places the
// order with the POS in the background.
func (s *Server) OrderCreated(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil || len(body) == 0 {
		AbortWithError(c, invalidRequestError())
		return
	}

	isTest := webhook.IsTest(c.GetHeader(webhook.HeaderTest))
	if err := s.verifier.Verify(body, c.GetHeader(webhook.HeaderHMAC), isTest); err != nil {
		s.log.Warn("webhook.rejected", zap.Bool("test", isTest), zap.Error(err))
		s.metrics.RecordWebhookRejected(c.Request.Context(), err.Error())
		AbortWithError(c, err)
		return
	}
	if err := s.verifier.CheckVersion(c.GetHeader(webhook.HeaderAPIVersion)); err != nil {
		s.metrics.RecordWebhookRejected(c.Request.Context(), err.Error())
		AbortWithError(c, err)
		return
	}
	s.metrics.RecordWebhookReceived(c.Request.Context(), c.GetHeader(webhook.HeaderTopic))

	requestID := obscontext.RequestIDFromContext(c.Request.Context())
	s.inflight.Add(1)
	go s.syncOrder(requestID, body)

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (s *Server) syncOrder(requestID string, body []byte) {
	defer s.inflight.Done()

	ctx := obscontext.WithActor(s.baseCtx, "webhook", "orders/create")
	if requestID != "" {
		ctx = obscontext.WithRequestID(ctx, requestID)
	}
	outcome, err := s.orders.Sync(ctx, body)
	if err != nil {
		// The transaction record stays unplaced for the recovery job.
		s.log.Warn("webhook.order_sync_failed",
			zap.String("trx_no", outcome.TrxNo),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return
	}
	s.log.Info("webhook.order_synced",
		zap.String("trx_no", outcome.TrxNo),
		zap.String("result", outcome.Result),
	)
}

type createWebhookRequest struct {
	Topic   string `json:"topic"`
	Address string `json:"address"`
}

func (s *Server) ListStorefrontWebhooks(c *gin.Context) {
	sinceID, err := parseOptionalInt64(c.Query("since_id"))
	if err != nil {
		AbortWithError(c, newValidationError("since_id", "invalid_since_id", "invalid since_id"))
		return
	}
	var since int64
	if sinceID != nil {
		since = *sinceID
	}

	hooks, err := s.storefront.ListWebhooks(c.Request.Context(), since)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"webhooks": hooks})
}

// CreateStorefrontWebhook subscribes this service to a storefront topic.
func (s *Server) CreateStorefrontWebhook(c *gin.Context) {
	var req createWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Topic = strings.TrimSpace(req.Topic)
	req.Address = strings.TrimSpace(req.Address)
	if req.Topic == "" {
		AbortWithError(c, newValidationError("topic", "required", "topic is required"))
		return
	}
	if req.Address == "" {
		AbortWithError(c, newValidationError("address", "required", "address is required"))
		return
	}

	created, err := s.createWebhook(c.Request.Context(), storefrontdomain.Webhook{
		Topic:   req.Topic,
		Address: req.Address,
		Format:  "json",
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"webhook": created})
}

func (s *Server) createWebhook(ctx context.Context, hook storefrontdomain.Webhook) (storefrontdomain.Webhook, error) {
	count, err := s.storefront.CountWebhooks(ctx, hook.Topic)
	if err != nil {
		return storefrontdomain.Webhook{}, err
	}
	if count > 0 {
		existing, err := s.storefront.ListWebhooks(ctx, 0)
		if err != nil {
			return storefrontdomain.Webhook{}, err
		}
		for _, candidate := range existing {
			if candidate.Topic == hook.Topic {
				return s.storefront.UpdateWebhook(ctx, candidate.ID, hook)
			}
		}
	}
	return s.storefront.CreateWebhook(ctx, hook)
}

func (s *Server) DeleteStorefrontWebhook(c *gin.Context) {
	id, err := parseOptionalInt64(c.Param("id"))
	if err != nil || id == nil || *id <= 0 {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid webhook id"))
		return
	}
	if err := s.storefront.DeleteWebhook(c.Request.Context(), *id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
