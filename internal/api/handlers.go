package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/threadkeep/threadkeep/internal/actions"
	"github.com/threadkeep/threadkeep/internal/delivery"
	"github.com/threadkeep/threadkeep/internal/export"
	"github.com/threadkeep/threadkeep/internal/httputil"
	"github.com/threadkeep/threadkeep/internal/insights"
	"github.com/threadkeep/threadkeep/internal/notify"
	"github.com/threadkeep/threadkeep/internal/registry"
)

type API struct {
	actions *actions.Service
	reg     *registry.Registry
	reports *registry.ReportLog
	queue   *delivery.Queue
	dir     notify.Directory
	adminID string
	mux     *http.ServeMux
}

type ActionRequest struct {
	Action     string `json:"action"`
	FollowupID string `json:"followup_id"`
	User       string `json:"user"`
	Category   string `json:"category"`
	Detail     string `json:"detail"`
	Date       string `json:"date"`
	Reason     string `json:"reason"`
}

type MessageEvent struct {
	Channel  string `json:"channel"`
	ThreadTS string `json:"thread_ts"`
	User     string `json:"user"`
	Text     string `json:"text"`
}

type ExportRequest struct {
	Scope   string `json:"scope"`
	Creator string `json:"creator"`
	Email   string `json:"email"`
}

func NewAPI(svc *actions.Service, reg *registry.Registry, reports *registry.ReportLog, queue *delivery.Queue, dir notify.Directory, adminID string) *API {
	api := &API{
		actions: svc,
		reg:     reg,
		reports: reports,
		queue:   queue,
		dir:     dir,
		adminID: adminID,
		mux:     http.NewServeMux(),
	}

	api.setupRoutes()
	return api
}

func (a *API) setupRoutes() {
	a.mux.HandleFunc("/api/followups", a.handleFollowups)
	a.mux.HandleFunc("/api/actions", a.handleAction)
	a.mux.HandleFunc("/api/events/message", a.handleMessageEvent)
	a.mux.HandleFunc("/api/escalations", a.handleEscalations)
	a.mux.HandleFunc("/api/insights", a.handleInsights)
	a.mux.HandleFunc("/api/workload", a.handleWorkload)
	a.mux.HandleFunc("/api/exports", a.handleExports)
	a.mux.HandleFunc("/healthz", a.handleHealth)
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleFollowups(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createFollowup(w, r)
	case http.MethodGet:
		a.listFollowups(w, r)
	default:
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (a *API) createFollowup(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteJSONError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	defer func() {
		if err := r.Body.Close(); err != nil {
			log.Printf("failed to close request body: %v", err)
		}
	}()

	var params actions.CreateParams
	if err := json.Unmarshal(body, &params); err != nil {
		httputil.WriteJSONError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	f, err := a.actions.Create(r.Context(), params)
	if err != nil {
		if errors.Is(err, actions.ErrInvalidInput) {
			httputil.WriteJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, f)
}

func (a *API) listFollowups(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, a.reg.Snapshot())
}

func (a *API) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSONError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.FollowupID == "" || req.User == "" {
		httputil.WriteJSONError(w, "followup_id and user are required", http.StatusBadRequest)
		return
	}

	var applied bool
	switch req.Action {
	case "done":
		applied = a.actions.MarkDone(r.Context(), req.FollowupID, req.User)
	case "blocker":
		if req.Category == "" {
			httputil.WriteJSONError(w, "category is required for blocker", http.StatusBadRequest)
			return
		}
		applied = a.actions.ReportBlocker(r.Context(), req.FollowupID, req.User, req.Category, req.Detail)
	case "resume":
		applied = a.actions.Resume(r.Context(), req.FollowupID, req.User)
	case "target_date":
		var err error
		applied, err = a.actions.SetTargetDate(r.Context(), req.FollowupID, req.Date)
		if err != nil {
			httputil.WriteJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	case "report":
		applied = a.actions.ReportIssue(r.Context(), req.FollowupID, req.User, req.Reason)
	default:
		httputil.WriteJSONError(w, "Unknown action", http.StatusBadRequest)
		return
	}

	// Late or duplicate clicks on gone followups are acknowledged, not
	// errored, so callers never retry them.
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"ignored": !applied})
}

func (a *API) handleMessageEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var ev MessageEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		httputil.WriteJSONError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if ev.Channel == "" || ev.ThreadTS == "" || ev.User == "" {
		httputil.WriteJSONError(w, "channel, thread_ts and user are required", http.StatusBadRequest)
		return
	}

	resolved := a.actions.HandleReply(r.Context(), ev.Channel, ev.ThreadTS, ev.User, ev.Text)
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"resolved": resolved})
}

func (a *API) handleEscalations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !a.isAdmin(r) {
		httputil.WriteJSONError(w, "Admin access required", http.StatusForbidden)
		return
	}

	candidates := insights.EscalationCandidates(a.reg.Snapshot(), time.Now())
	httputil.WriteJSON(w, http.StatusOK, candidates)
}

func (a *API) handleInsights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !a.isAdmin(r) {
		httputil.WriteJSONError(w, "Admin access required", http.StatusForbidden)
		return
	}

	now := time.Now()
	followups := a.reg.Snapshot()
	summary := insights.Summarize(followups, now)
	escalations := insights.EscalationCandidates(followups, now)
	breakdown := insights.ReportBreakdown(a.reports.Snapshot())

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"summary":         summary,
		"escalations":     escalations,
		"reports":         breakdown,
		"recommendations": insights.Recommendations(summary, escalations, breakdown),
		"usage":           a.reports.Usage(),
	})
}

func (a *API) handleWorkload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !a.isAdmin(r) {
		httputil.WriteJSONError(w, "Admin access required", http.StatusForbidden)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, insights.Workload(a.reg.Snapshot()))
}

func (a *API) handleExports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSONError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	now := time.Now()
	followups := a.reg.Snapshot()
	reports := a.reports.Snapshot()

	var csvContent, subject, filename string
	switch req.Scope {
	case "creator":
		if req.Creator == "" {
			httputil.WriteJSONError(w, "creator is required for creator exports", http.StatusBadRequest)
			return
		}
		csvContent = export.CreatorCSV(followups, reports, req.Creator)
		subject = "Your follow-up export"
		filename = "Followups_" + now.Format("2006-01-02") + ".csv"
	case "admin":
		if !a.isAdmin(r) {
			httputil.WriteJSONError(w, "Admin access required", http.StatusForbidden)
			return
		}
		summary := insights.Summarize(followups, now)
		csvContent = export.AdminCSV(followups, summary, insights.EscalationCandidates(followups, now), now)
		subject = "Team follow-up report"
		filename = "Team_Report_" + now.Format("2006-01-02") + ".csv"
	default:
		httputil.WriteJSONError(w, "scope must be creator or admin", http.StatusBadRequest)
		return
	}

	if csvContent == "" {
		httputil.WriteJSON(w, http.StatusOK, map[string]bool{"queued": false})
		return
	}

	email := req.Email
	if email == "" && req.Creator != "" && a.dir != nil {
		_, resolved, err := a.dir.UserInfo(r.Context(), req.Creator)
		if err != nil {
			httputil.WriteJSONError(w, "Could not resolve recipient email", http.StatusBadGateway)
			return
		}
		email = resolved
	}
	if email == "" {
		httputil.WriteJSONError(w, "No recipient email available", http.StatusBadRequest)
		return
	}

	job := delivery.NewJob(delivery.KindEmail, map[string]any{
		"to":       email,
		"subject":  subject,
		"body":     "Your requested follow-up export is attached.",
		"filename": filename,
		"csv":      csvContent,
	}, now)
	if err := a.queue.Enqueue(job); err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, map[string]any{"queued": true, "job_id": job.ID})
}

func (a *API) isAdmin(r *http.Request) bool {
	return a.adminID != "" && r.Header.Get("X-Admin-User") == a.adminID
}
