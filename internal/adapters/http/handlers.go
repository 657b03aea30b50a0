package http

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"

	"github.com/dkeye/CineMatch/internal/app/orch"
	"github.com/dkeye/CineMatch/internal/app/sessions"
	"github.com/dkeye/CineMatch/internal/domain"
)

const qrSize = 320

type handlers struct {
	orch      *orch.Orchestrator
	sessions  *sessions.Service
	publicURL string
}

type CreateSessionRequest struct {
	FilterTag domain.LooseString `json:"filterTag"`
	// GenreID is the older name of FilterTag.
	GenreID domain.LooseString `json:"genreId"`
}

type JoinSessionRequest struct {
	JoinCode string `json:"joinCode"`
}

type SessionResponse struct {
	Session domain.Session `json:"session"`
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": h.orch.Registry.Count(),
		"groups":      len(h.orch.Groups.List()),
	})
}

func (h *handlers) createSession(c *gin.Context) {
	var req CreateSessionRequest
	if c.Request.ContentLength != 0 {
		// A chunked request may still carry no body at all.
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	tag := string(req.FilterTag)
	if tag == "" {
		tag = string(req.GenreID)
	}

	sess, err := h.sessions.CreateSession(c.Request.Context(), identity(c), tag)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, SessionResponse{Session: sess})
}

func (h *handlers) joinSession(c *gin.Context) {
	var req JoinSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.JoinCode) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "joinCode is required"})
		return
	}

	// A new participant reaches open channels through the session notifier.
	sess, _, err := h.sessions.AddParticipant(c.Request.Context(), req.JoinCode, identity(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, SessionResponse{Session: sess})
}

func (h *handlers) getSession(c *gin.Context) {
	sess, err := h.sessions.FetchForParticipant(c.Request.Context(), c.Param("joinCode"), identity(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, SessionResponse{Session: sess})
}

// sessionQR renders a PNG QR code of the join link for a session.
func (h *handlers) sessionQR(c *gin.Context) {
	sess, err := h.sessions.FetchForParticipant(c.Request.Context(), c.Param("joinCode"), identity(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	png, err := qrcode.Encode(h.joinURL(c.Request, sess.Code), qrcode.Medium, qrSize)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// joinURL prefers the configured public URL and otherwise derives the
// scheme and host from the request.
func (h *handlers) joinURL(r *http.Request, code domain.JoinCode) string {
	base := strings.TrimRight(h.publicURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host
	}
	return base + "/?join=" + url.QueryEscape(code.String())
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
