package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/proctorhq/proctor-backend/internal/feed"
	"github.com/proctorhq/proctor-backend/internal/response"
	"github.com/proctorhq/proctor-backend/internal/service"
	"github.com/proctorhq/proctor-backend/internal/store"
)

const (
	statsInterval     = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	backfillTimeout   = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// DashboardHandler streams the live proctoring dashboard over SSE. Each
// connection owns a private session/answer store pair fed by the change feed;
// nothing is shared between connections.
type DashboardHandler struct {
	sub              *feed.Subscriber
	dashboardService *service.DashboardService
	profiles         store.ProfileLookup
	warningThreshold int
	log              zerolog.Logger
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(sub *feed.Subscriber, dashboardService *service.DashboardService, profiles store.ProfileLookup, warningThreshold int, log zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		sub:              sub,
		dashboardService: dashboardService,
		profiles:         profiles,
		warningThreshold: warningThreshold,
		log:              log.With().Str("component", "dashboard_handler").Logger(),
	}
}

// StreamTest godoc
// GET /api/v1/faculty/tests/:test_id/stream
// Subscribes to the test's change feed, loads the durable snapshot, and
// streams it plus every subsequent change as SSE events. Subscription happens
// before the snapshot read: a change racing the snapshot is replayed on top
// of it by the idempotent reconciler instead of being lost.
func (h *DashboardHandler) StreamTest(c *gin.Context) {
	testID, ok := paramUUID(c, "test_id")
	if !ok {
		return
	}

	reqCtx := c.Request.Context()

	// 1. Subscribe first.
	events, cancel := h.sub.SubscribeTest(reqCtx, testID)
	defer cancel()

	// 2. Fetch the durable snapshot.
	sessList, ansList, err := h.dashboardService.FetchInitialState(reqCtx, testID)
	if err != nil {
		h.log.Error().Err(err).Str("test_id", testID.String()).Msg("Initial state fetch failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	sessions := store.NewSessionStore()
	answers := store.NewAnswerStore()
	for i := range sessList {
		sessions.Upsert(&sessList[i])
	}
	for i := range ansList {
		answers.Upsert(&ansList[i])
	}
	rec := store.NewReconciler(sessions, answers, h.profiles, h.log)

	// 3. SSE headers and initial snapshot.
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.sendSnapshot(c, sessions, answers)

	statsTicker := time.NewTicker(statsInterval)
	defer statsTicker.Stop()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	h.log.Info().Str("test_id", testID.String()).Msg("Faculty attached to dashboard SSE")

	// Pre-allocate a reusable ping payload (never changes)
	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("test_id", testID.String()).Msg("Faculty disconnected from dashboard SSE")
			return

		case ev, open := <-events:
			if !open {
				h.log.Warn().Str("test_id", testID.String()).Msg("Feed subscription closed, ending stream")
				return
			}
			h.applyAndForward(c, reqCtx, rec, sessions, answers, ev)

		case <-statsTicker.C:
			sessList := sessions.All()
			c.SSEvent("message", gin.H{
				"type":    "stats",
				"data":    store.ComputeStats(sessList, answers.All()),
				"at_risk": store.AtRiskSessions(sessList, h.warningThreshold),
			})
			c.Writer.Flush()

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

// sendSnapshot writes the first SSE event: full store contents plus stats.
func (h *DashboardHandler) sendSnapshot(c *gin.Context, sessions *store.SessionStore, answers *store.AnswerStore) {
	sessList := sessions.All()
	ansList := answers.All()

	c.SSEvent("message", gin.H{
		"type": "snapshot",
		"data": gin.H{
			"sessions": sessList,
			"answers":  ansList,
			"stats":    store.ComputeStats(sessList, ansList),
			"at_risk":  store.AtRiskSessions(sessList, h.warningThreshold),
		},
	})
	c.Writer.Flush()
}

// applyAndForward folds one feed event into the stores and streams the
// resulting record to the client. A session unseen until now gets its
// existing answers backfilled from the durable store, since answers and
// sessions travel on separate channels with no cross-channel ordering.
func (h *DashboardHandler) applyAndForward(c *gin.Context, reqCtx context.Context, rec *store.Reconciler, sessions *store.SessionStore, answers *store.AnswerStore, ev feed.ChangeEvent) {
	outcome := rec.Apply(reqCtx, ev)

	rawID, ok := ev.RowID()
	if !ok {
		return
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return
	}

	var record any
	switch ev.Table {
	case feed.TableSessions:
		if s := sessions.Get(id); s != nil {
			record = s
		}
	case feed.TableAnswers:
		if a := answers.Get(id); a != nil {
			record = a
		}
	default:
		return
	}

	// A scoped-out answer leaves no record and nothing to forward.
	if record == nil && ev.Op != feed.OpDelete {
		return
	}

	c.SSEvent("message", gin.H{
		"type":   "change",
		"table":  ev.Table,
		"op":     ev.Op,
		"id":     id,
		"record": record,
	})
	c.Writer.Flush()

	if outcome.InsertedSession != nil {
		h.backfillAnswers(c, reqCtx, answers, *outcome.InsertedSession)
	}
}

// backfillAnswers loads a newly seen session's answers from the durable store
// and folds in the ones the feed has not already delivered. Feed records stay
// authoritative: an id already present is never overwritten by the backfill.
func (h *DashboardHandler) backfillAnswers(c *gin.Context, parentCtx context.Context, answers *store.AnswerStore, sessionID uuid.UUID) {
	ctx, cancelFetch := context.WithTimeout(parentCtx, backfillTimeout)
	defer cancelFetch()

	loaded, err := h.dashboardService.SessionAnswers(ctx, sessionID)
	if err != nil {
		h.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Answer backfill failed")
		return
	}

	for i := range loaded {
		if answers.Has(loaded[i].ID) {
			continue
		}
		answers.Upsert(&loaded[i])
	}

	if backfilled := answers.BySession(sessionID); len(backfilled) > 0 {
		c.SSEvent("message", gin.H{
			"type":       "backfill",
			"session_id": sessionID,
			"answers":    backfilled,
		})
		c.Writer.Flush()
	}
}

// ListSessions godoc
// GET /api/v1/faculty/tests/:test_id/sessions
// One-shot REST variant of the dashboard snapshot.
func (h *DashboardHandler) ListSessions(c *gin.Context) {
	testID, ok := paramUUID(c, "test_id")
	if !ok {
		return
	}

	sessList, ansList, err := h.dashboardService.FetchInitialState(c.Request.Context(), testID)
	if err != nil {
		failFromError(c, err, h.log)
		return
	}

	// Event counts complement the snapshot. Failure degrades to an empty map.
	counts, err := h.dashboardService.MonitoringCounts(c.Request.Context(), testID)
	if err != nil {
		h.log.Warn().Err(err).Str("test_id", testID.String()).Msg("Monitoring counts fetch failed")
		counts = map[uuid.UUID]int64{}
	}

	response.Success(c, http.StatusOK, gin.H{
		"sessions":          sessList,
		"answers":           ansList,
		"stats":             store.ComputeStats(sessList, ansList),
		"at_risk":           store.AtRiskSessions(sessList, h.warningThreshold),
		"monitoring_counts": counts,
	})
}
