package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/sidesnap/internal/domain/snapshot"
	"github.com/GriffinCanCode/sidesnap/internal/shared/utils"
)

// rawSnapshotResponse is the stored document with its metadata
type rawSnapshotResponse struct {
	ID        string          `json:"id"`
	Time      int64           `json:"time"`
	Raw       json.RawMessage `json:"raw"`
	CreatedAt string          `json:"created_at"`
}

// ReplaceRequest is the body of PUT /api/snapshots/:id
type ReplaceRequest struct {
	Raw  json.RawMessage `json:"raw"`
	Time *int64          `json:"time,omitempty"`
}

// DeleteNodeRequest is the body of POST /api/snapshots/:id/nodes/delete
type DeleteNodeRequest struct {
	PanelID       string `json:"panelId" binding:"required"`
	GroupIndex    *int   `json:"groupIndex" binding:"required"`
	IndexInGroup  *int   `json:"indexInGroup" binding:"required"`
	Level         *int   `json:"lvl,omitempty"`
	DeleteSubtree bool   `json:"deleteSubtree"`
}

// Address converts the request into a node address
func (r DeleteNodeRequest) Address() snapshot.NodeAddress {
	return snapshot.NodeAddress{
		PanelID:      r.PanelID,
		GroupIndex:   *r.GroupIndex,
		IndexInGroup: *r.IndexInGroup,
		Level:        r.Level,
	}
}

// validParams rejects unusable path ids before they reach the service
func validParams(names ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, name := range names {
			v := c.Param(name)
			if v == "" {
				continue
			}
			if err := utils.ValidateID(v, name); err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		c.Next()
	}
}

// UploadSnapshot stores a snapshot sent as a multipart "file" field or as
// the raw request body
func (h *Handlers) UploadSnapshot(c *gin.Context) {
	body, err := h.readUpload(c)
	if err != nil {
		h.fail(c, "Failed to read snapshot", err)
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No snapshot provided"})
		return
	}

	meta, err := h.snapshots.Upload(c.Request.Context(), body)
	if err != nil {
		h.fail(c, "Failed to store snapshot", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         meta.ID,
		"time":       meta.Time,
		"created_at": meta.CreatedAt,
	})
}

func (h *Handlers) readUpload(c *gin.Context) ([]byte, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return io.ReadAll(c.Request.Body)
	}

	header, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// ListSnapshots returns stored snapshots newest first
func (h *Handlers) ListSnapshots(c *gin.Context) {
	list, err := h.snapshots.List(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to list snapshots", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetSnapshot returns the stored document
func (h *Handlers) GetSnapshot(c *gin.Context) {
	rec, err := h.snapshots.Raw(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to fetch snapshot", err)
		return
	}

	// created_at changes on every write, so it versions the record
	etag := utils.ETag(append([]byte(rec.CreatedAt+"\n"), rec.Raw...))
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}

	raw := json.RawMessage(rec.Raw)
	if !json.Valid(raw) {
		raw = json.RawMessage("null")
	}
	c.JSON(http.StatusOK, rawSnapshotResponse{
		ID:        rec.ID,
		Time:      rec.Time,
		Raw:       raw,
		CreatedAt: rec.CreatedAt,
	})
}

// GetParsedSnapshot returns the panel view of a snapshot
func (h *Handlers) GetParsedSnapshot(c *gin.Context) {
	view, err := h.snapshots.Parsed(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to parse snapshot", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ReplaceSnapshot stores a whole new document under an id
func (h *Handlers) ReplaceSnapshot(c *gin.Context) {
	var req ReplaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "detail": err.Error()})
		return
	}
	if raw := bytes.TrimSpace(req.Raw); len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing raw snapshot in body"})
		return
	}

	meta, err := h.snapshots.Replace(c.Request.Context(), c.Param("id"), req.Raw, req.Time)
	if err != nil {
		h.fail(c, "Failed to update snapshot", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         meta.ID,
		"time":       meta.Time,
		"created_at": meta.CreatedAt,
	})
}

// DeleteSnapshot removes a snapshot
func (h *Handlers) DeleteSnapshot(c *gin.Context) {
	if err := h.snapshots.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, "Failed to delete snapshot", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeletePanel removes every group of a panel. The snapshot is deleted when
// it was the last panel.
func (h *Handlers) DeletePanel(c *gin.Context) {
	deleted, err := h.snapshots.DeletePanel(c.Request.Context(), c.Param("id"), c.Param("panelId"))
	if err != nil {
		h.fail(c, "Failed to delete panel", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted_snapshot": deleted})
}

// DeleteNode removes one tab, promoting or dropping its descendants, and
// returns the updated view
func (h *Handlers) DeleteNode(c *gin.Context) {
	var req DeleteNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid node address", "detail": err.Error()})
		return
	}

	view, err := h.snapshots.DeleteNode(c.Request.Context(), c.Param("id"), req.Address(), req.DeleteSubtree)
	if err != nil {
		h.fail(c, "Failed to delete node", err)
		return
	}
	c.JSON(http.StatusOK, view)
}
