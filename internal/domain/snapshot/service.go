package snapshot

import (
	"context"
	"time"

	"github.com/GriffinCanCode/sidesnap/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sidesnap/internal/shared/id"
	"github.com/GriffinCanCode/sidesnap/internal/shared/utils"
	"go.uber.org/zap"
)

// Meta describes a stored snapshot without its document.
type Meta struct {
	ID           string `json:"id"`
	Time         int64  `json:"time"`
	CreatedAt    string `json:"created_at"`
	PreviewTitle string `json:"previewTitle,omitempty"`
}

// Record is a stored snapshot with its raw document bytes.
type Record struct {
	Meta
	Raw []byte `json:"-"`
}

// Store persists raw snapshot documents by id. Put replaces any existing
// document wholesale. Get and Delete return a NotFoundError for unknown ids.
type Store interface {
	Get(ctx context.Context, id string) (*Record, error)
	Put(ctx context.Context, id string, raw []byte, time int64) (*Meta, error)
	List(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, id string) error
}

// Service loads, edits and persists snapshots. Every read derives a fresh
// view; every edit replaces the stored document. Concurrent edits of one
// snapshot race and the last write wins.
type Service struct {
	store     Store
	logger    *zap.Logger
	metrics   *monitoring.Metrics
	maxUpload int64
	now       func() time.Time
}

// NewService creates a snapshot service over store
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		logger:    logger,
		maxUpload: DefaultMaxUploadBytes,
		now:       time.Now,
	}
}

// WithMetrics adds metrics tracking
func (s *Service) WithMetrics(metrics *monitoring.Metrics) *Service {
	s.metrics = metrics
	return s
}

// WithMaxUpload bounds decompressed upload size
func (s *Service) WithMaxUpload(n int64) *Service {
	if n > 0 {
		s.maxUpload = n
	}
	return s
}

// WithClock replaces the time source used for missing capture times
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Upload stores a new snapshot. The id and capture time come from the
// document when present.
func (s *Service) Upload(ctx context.Context, body []byte) (*Meta, error) {
	start := time.Now()

	data, err := DecodeUpload(body, s.maxUpload)
	if err != nil {
		s.record("upload", start, err)
		return nil, err
	}
	doc, err := Decode(data)
	if err == nil {
		err = checkInput(doc)
	}
	if err != nil {
		s.record("upload", start, err)
		return nil, err
	}

	snapID, ok := doc.ID()
	if !ok {
		snapID = id.NewSnapshotID().String()
	}
	captured, ok := doc.Time()
	if !ok {
		captured = NowMillis(s.now())
	}

	meta, err := s.store.Put(ctx, snapID, data, captured)
	s.record("upload", start, err)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveUpload(len(data))
	}

	s.logger.Info("Snapshot uploaded",
		zap.String("id", meta.ID),
		zap.Int64("time", meta.Time),
		zap.Int("bytes", len(data)))
	return meta, nil
}

// List returns stored snapshots newest first, each with a preview title.
func (s *Service) List(ctx context.Context) ([]Meta, error) {
	start := time.Now()

	records, err := s.store.List(ctx)
	s.record("list", start, err)
	if err != nil {
		return nil, err
	}

	out := make([]Meta, 0, len(records))
	for _, rec := range records {
		meta := rec.Meta
		if doc, err := Decode(rec.Raw); err == nil {
			meta.PreviewTitle = PreviewTitle(doc)
		} else {
			s.logger.Debug("Preview skipped", zap.String("id", rec.ID), zap.Error(err))
		}
		out = append(out, meta)
	}

	if s.metrics != nil {
		s.metrics.SetSnapshotsStored(len(out))
	}
	return out, nil
}

// Raw returns the stored record.
func (s *Service) Raw(ctx context.Context, snapID string) (*Record, error) {
	return s.store.Get(ctx, snapID)
}

// Parsed derives the panel view of a stored snapshot. A stored document
// that no longer decodes yields a view with zero panels.
func (s *Service) Parsed(ctx context.Context, snapID string) (*View, error) {
	start := time.Now()

	rec, err := s.store.Get(ctx, snapID)
	if err != nil {
		s.record("parse", start, err)
		return nil, err
	}

	doc, err := Decode(rec.Raw)
	if err != nil {
		s.logger.Warn("Stored snapshot unreadable, returning empty view",
			zap.String("id", snapID), zap.Error(err))
		doc = Document{"id": rec.ID, "time": rec.Time}
	}

	view := BuildView(doc)
	s.record("parse", start, nil)
	if s.metrics != nil {
		s.metrics.ObserveView(len(view.Panels), view.GroupCount())
	}
	return view, nil
}

// Replace stores raw as the snapshot's whole document. A nil capture time
// keeps the document's own time, or now.
func (s *Service) Replace(ctx context.Context, snapID string, raw []byte, captured *int64) (*Meta, error) {
	start := time.Now()

	doc, err := Decode(raw)
	if err == nil {
		err = checkInput(doc)
	}
	if err != nil {
		s.record("replace", start, err)
		return nil, err
	}

	meta, err := s.persist(ctx, snapID, doc, captured)
	s.record("replace", start, err)
	return meta, err
}

// Delete removes a snapshot.
func (s *Service) Delete(ctx context.Context, snapID string) error {
	start := time.Now()

	err := s.store.Delete(ctx, snapID)
	s.record("delete", start, err)
	if err == nil {
		s.logger.Info("Snapshot deleted", zap.String("id", snapID))
	}
	return err
}

// DeletePanel removes every group of a panel. When no panel remains the
// snapshot itself is deleted and deleted is true.
func (s *Service) DeletePanel(ctx context.Context, snapID, panelID string) (deleted bool, err error) {
	start := time.Now()
	defer func() { s.record("delete_panel", start, err) }()

	doc, rec, err := s.load(ctx, snapID)
	if err != nil {
		return false, err
	}

	before := BuildView(doc)
	updated, remaining := DeletePanel(doc, panelID)
	if s.metrics != nil {
		if p, ok := before.Panel(panelID); ok {
			n := 0
			for _, g := range p.Groups {
				n += len(g.Raw)
			}
			s.metrics.AddRecordsRemoved("panel", n)
		}
	}

	if remaining == 0 {
		if err := s.store.Delete(ctx, snapID); err != nil {
			return false, err
		}
		s.logger.Info("Last panel removed, snapshot deleted",
			zap.String("id", snapID), zap.String("panel", panelID))
		return true, nil
	}

	if _, err := s.persist(ctx, snapID, updated, &rec.Time); err != nil {
		return false, err
	}
	s.logger.Info("Panel deleted",
		zap.String("id", snapID),
		zap.String("panel", panelID),
		zap.Int("remaining", remaining))
	return false, nil
}

// DeleteNode removes one record, with or without its subtree, and returns
// the view derived from the updated document.
func (s *Service) DeleteNode(ctx context.Context, snapID string, addr NodeAddress, subtree bool) (*View, error) {
	start := time.Now()

	doc, rec, err := s.load(ctx, snapID)
	if err != nil {
		s.record("delete_node", start, err)
		return nil, err
	}

	updated, err := DeleteNode(doc, addr, subtree)
	if err != nil {
		s.record("delete_node", start, err)
		return nil, err
	}
	if _, err := s.persist(ctx, snapID, updated, &rec.Time); err != nil {
		s.record("delete_node", start, err)
		return nil, err
	}
	s.record("delete_node", start, nil)

	view := BuildView(updated)
	if s.metrics != nil {
		mode := "promote"
		if subtree {
			mode = "subtree"
		}
		s.metrics.AddRecordsRemoved(mode, countRecords(doc)-countRecords(updated))
	}
	s.logger.Info("Node deleted",
		zap.String("id", snapID),
		zap.Stringer("address", addr),
		zap.Bool("subtree", subtree))
	return view, nil
}

// load fetches and decodes a snapshot for editing. Edits refuse documents
// that no longer decode.
func (s *Service) load(ctx context.Context, snapID string) (Document, *Record, error) {
	rec, err := s.store.Get(ctx, snapID)
	if err != nil {
		return nil, nil, err
	}
	doc, err := Decode(rec.Raw)
	if err != nil {
		return nil, nil, err
	}
	return doc, rec, nil
}

func (s *Service) persist(ctx context.Context, snapID string, doc Document, captured *int64) (*Meta, error) {
	raw, err := Encode(doc)
	if err != nil {
		return nil, err
	}

	var t int64
	switch docTime, ok := doc.Time(); {
	case captured != nil:
		t = *captured
	case ok:
		t = docTime
	default:
		t = NowMillis(s.now())
	}
	return s.store.Put(ctx, snapID, raw, t)
}

func (s *Service) record(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	switch {
	case err == nil:
	case IsNotFound(err):
		status = "not_found"
	case IsMalformed(err):
		status = "malformed"
	default:
		status = "error"
		s.metrics.RecordServiceError("snapshot", op, "storage")
	}
	s.metrics.RecordServiceCall("snapshot", op, status, time.Since(start))
	s.metrics.RecordSnapshotOp(op, status)
}

// checkInput rejects documents the tree walks cannot serve
func checkInput(doc Document) error {
	if err := utils.ValidateJSONDepth(map[string]any(doc), utils.MaxDocumentDepth); err != nil {
		return &MalformedInputError{Reason: "document too deep", Err: err}
	}
	if snapID, ok := doc.ID(); ok {
		if err := utils.ValidateID(snapID, "id"); err != nil {
			return &MalformedInputError{Reason: "invalid id", Err: err}
		}
	}
	return nil
}

func countRecords(doc Document) int {
	n := 0
	walkGroups(windowsOf(doc["tabs"]), func(g groupRef) bool {
		n += len(g.records)
		return true
	})
	return n
}
