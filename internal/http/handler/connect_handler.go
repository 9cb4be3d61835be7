package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domainoauth "github.com/adsightlabs/adsight-core/internal/domain/oauth"
	"github.com/adsightlabs/adsight-core/internal/service"
)

// ConnectHandler exposes the OAuth connect lifecycle and the collection
// trigger to HTTP collaborators.
type ConnectHandler struct {
	connect   service.ConnectService
	collector *service.Collector
	logger    *zap.Logger
}

// NewConnectHandler wires the HTTP handler.
func NewConnectHandler(connect service.ConnectService, collector *service.Collector, logger *zap.Logger) *ConnectHandler {
	if logger == nil {
		logger = zap.L()
	}
	return &ConnectHandler{connect: connect, collector: collector, logger: logger}
}

// Start issues a state token and returns the platform authorization URL.
func (h *ConnectHandler) Start(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Query("account_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_account_id"})
		return
	}

	intent, err := h.connect.StartAuthorization(c.Request.Context(), c.Param("platform"), accountID)
	if err != nil {
		h.renderOAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authorization_url": intent.AuthorizationURL,
		"state":             intent.State,
	})
}

// Callback consumes the redirect parameters and stores credentials.
func (h *ConnectHandler) Callback(c *gin.Context) {
	result, err := h.connect.HandleCallback(c.Request.Context(), service.CallbackInput{
		Platform: c.Param("platform"),
		State:    c.Query("state"),
		Code:     c.Query("code"),
	})
	if err != nil {
		h.renderOAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_id": result.AccountID, "connected": true})
}

// Disconnect clears the stored credential for an account.
func (h *ConnectHandler) Disconnect(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_account_id"})
		return
	}
	if err := h.connect.Disconnect(c.Request.Context(), accountID); err != nil {
		h.renderOAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_id": accountID, "connected": false})
}

// Collect runs one collection cycle over the requested date range.
func (h *ConnectHandler) Collect(c *gin.Context) {
	today := time.Now().UTC().Format("2006-01-02")
	startDate := c.DefaultQuery("start_date", today)
	endDate := c.DefaultQuery("end_date", today)

	result, snapshots, err := h.collector.RunCycle(c.Request.Context(), startDate, endDate)
	if err != nil {
		h.logger.Error("collection cycle failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "collection_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"batch_id":  result.BatchID,
		"processed": result.Processed,
		"failed":    result.Failed,
		"snapshots": snapshots,
	})
}

func (h *ConnectHandler) renderOAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domainoauth.ErrStateNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "state_not_found"})
	case errors.Is(err, domainoauth.ErrStateExpired):
		c.JSON(http.StatusGone, gin.H{"error": "state_expired"})
	case errors.Is(err, domainoauth.ErrStateAlreadyUsed):
		c.JSON(http.StatusConflict, gin.H{"error": "state_already_used"})
	case errors.Is(err, domainoauth.ErrTokenNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "token_not_found"})
	case errors.Is(err, domainoauth.ErrRefreshFailed):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "reauthorization_required"})
	default:
		h.logger.Error("oauth request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
