package server

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/jpalmerr/statusfeed/internal/store"
)

// Error codes returned in the "error" field of failed responses.
const (
	codeBadRequest     = "bad_request"
	codeUnauthorized   = "unauthorized"
	codeNotFound       = "not_found"
	codeMessageTooLong = "message_too_long"
	codeInternal       = "internal"
)

type setStatusRequest struct {
	Message *string `json:"message"`
}

func errorBody(code, message string) gin.H {
	return gin.H{"error": code, "message": message}
}

// caller extracts the identity header. It aborts the request with 401 and
// returns false when the header is absent or blank.
func (s *Server) caller(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.GetHeader(s.identityHeader))
	if id == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized,
			errorBody(codeUnauthorized, fmt.Sprintf("missing %s header", s.identityHeader)))
		return "", false
	}
	return id, true
}

func (s *Server) handleSetStatus(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}

	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(codeBadRequest, err.Error()))
		return
	}
	if req.Message == nil {
		c.JSON(http.StatusBadRequest, errorBody(codeBadRequest, "message is required"))
		return
	}

	record, err := s.store.SetStatus(caller, *req.Message, s.clock())
	if errors.Is(err, store.ErrMessageTooLong) {
		c.JSON(http.StatusUnprocessableEntity, errorBody(codeMessageTooLong, err.Error()))
		return
	}
	if err != nil {
		s.logger.Error("set status failed", "identity", caller, "error", err)
		c.JSON(http.StatusInternalServerError, errorBody(codeInternal, "set status failed"))
		return
	}

	s.logger.Debug("status set", "identity", caller, "timestamp", record.Timestamp)
	c.JSON(http.StatusCreated, record)
}

func (s *Server) handleDeleteStatus(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}

	if s.store.DeleteStatus(caller) {
		s.logger.Debug("status deleted", "identity", caller)
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetStatus(c *gin.Context) {
	id := c.Param("id")
	record, ok := s.store.GetStatus(id)
	if !ok {
		c.JSON(http.StatusNotFound, errorBody(codeNotFound, fmt.Sprintf("no current status for %q", id)))
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleGetHistory(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.GetHistory(c.Param("id")))
}

// handleGetFeed returns the feed with an ETag derived from its encoded bytes,
// answering 304 when the client already holds the same feed.
func (s *Server) handleGetFeed(c *gin.Context) {
	body, err := json.Marshal(s.store.GetFeed())
	if err != nil {
		s.logger.Error("failed to encode feed", "error", err)
		c.JSON(http.StatusInternalServerError, errorBody(codeInternal, "failed to encode feed"))
		return
	}

	sum := blake3.Sum256(body)
	etag := `"` + hex.EncodeToString(sum[:16]) + `"`

	c.Header("ETag", etag)
	c.Header("Cache-Control", "no-cache")
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (s *Server) handleSearch(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Search(c.Query("q")))
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Stats())
}

// recovery turns a handler panic into a 500 response. The full stack trace
// is logged server-side under a correlation ID that is also returned to the
// client.
func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				correlationID := uuid.NewString()
				s.logger.Error("handler panic",
					"correlation_id", correlationID,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"panic", fmt.Sprintf("%v", r),
					"stack", string(debug.Stack()),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					errorBody(codeInternal, fmt.Sprintf("internal error (correlation_id: %s)", correlationID)))
			}
		}()
		c.Next()
	}
}
