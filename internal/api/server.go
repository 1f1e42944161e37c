package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"talent-mirror/internal/applications"
	"talent-mirror/internal/apperr"
	"talent-mirror/internal/company"
	"talent-mirror/internal/feed"
	"talent-mirror/internal/logger"
	"talent-mirror/internal/matching"
	"talent-mirror/internal/model"
	"talent-mirror/internal/profile"
	"talent-mirror/internal/resolver"
	"talent-mirror/internal/scheduler"
	"talent-mirror/internal/storage"

	"go.uber.org/zap"
)

const (
	maxUploadBytes  = 10 << 20
	defaultTopN     = 10
	maxTopN         = 50
	streamHeartbeat = 25 * time.Second
)

// Store 抽象只读查询。
type Store interface {
	ListJobs(ctx context.Context, opts storage.JobQueryOptions) ([]model.Job, error)
	CountJobs(ctx context.Context, opts storage.JobQueryOptions) (int64, error)
	GetJob(ctx context.Context, id string) (*model.Job, error)
	GetCompany(ctx context.Context, id string) (*model.Company, error)
}

// Profiles 处理上传与档案读取。
type Profiles interface {
	UploadCV(ctx context.Context, ownerID string, up profile.Upload) (*profile.UploadResult, error)
	UploadJob(ctx context.Context, companyID string, up profile.Upload) (*profile.UploadResult, error)
	UpdateBio(ctx context.Context, ownerID, bio string) error
	Resolved(ctx context.Context, ownerID string) (resolver.ResolvedProfile, error)
	OpenView(ctx context.Context, hub *feed.Hub, ownerID string) (*profile.ProfileView, error)
}

// Mirror 删除职位。
type Mirror interface {
	DeleteJob(ctx context.Context, ownerID, jobID string) error
}

// Scheduler 抽象调度接口。
type Scheduler interface {
	RunOnce(ctx context.Context) (scheduler.Report, error)
	RunCompanies(ctx context.Context, ids []string) (scheduler.Report, error)
}

// Matcher 查询匹配结果。
type Matcher interface {
	MatchCandidateToJobs(ctx context.Context, cvHash string, topN int) ([]matching.JobMatch, error)
	MatchJobToCandidates(ctx context.Context, jobHash string, topN int) ([]matching.CandidateMatch, error)
}

// Applications 申请状态。
type Applications interface {
	Apply(ctx context.Context, candidateID, jobID string) (applications.ApplyOutcome, error)
	Withdraw(ctx context.Context, candidateID, jobID string) (applications.WithdrawOutcome, error)
	AppliedJobs(ctx context.Context, candidateID string) ([]string, error)
	Annotate(ctx context.Context, candidateID string, matches []matching.JobMatch) ([]matching.JobMatch, error)
}

// Companies 公司资料写入。
type Companies interface {
	Save(ctx context.Context, req company.Request) (model.Company, error)
}

// Deps 汇集 HTTP 层依赖，未提供的依赖对应路由返回 503。
type Deps struct {
	Store        Store
	Profiles     Profiles
	Mirror       Mirror
	Scheduler    Scheduler
	Matcher      Matcher
	Applications Applications
	Companies    Companies
	Hub          *feed.Hub
	Log          *zap.Logger
}

type handler struct {
	Deps
}

// NewHandler 构造 HTTP 多路复用器。
func NewHandler(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	h := &handler{Deps: d}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /api/jobs", h.listJobs)
	mux.HandleFunc("GET /api/jobs/{id}", h.getJob)
	mux.HandleFunc("GET /api/jobs/{id}/matches", h.jobMatches)
	mux.HandleFunc("POST /api/refresh", h.refresh)

	mux.HandleFunc("GET /api/companies/{company}", h.getCompany)
	mux.HandleFunc("PUT /api/companies/{company}", h.saveCompany)
	mux.HandleFunc("POST /api/companies/{company}/jobs", h.uploadJob)
	mux.HandleFunc("POST /api/companies/{company}/sync", h.syncCompany)
	mux.HandleFunc("DELETE /api/companies/{company}/jobs/{id}", h.deleteJob)

	mux.HandleFunc("POST /api/candidates/{id}/cv", h.uploadCV)
	mux.HandleFunc("GET /api/candidates/{id}/profile", h.getProfile)
	mux.HandleFunc("GET /api/candidates/{id}/profile/stream", h.streamProfile)
	mux.HandleFunc("GET /api/candidates/{id}/profile/ws", h.profileSocket)
	mux.HandleFunc("PUT /api/candidates/{id}/bio", h.updateBio)
	mux.HandleFunc("GET /api/candidates/{id}/matches", h.candidateMatches)
	mux.HandleFunc("GET /api/candidates/{id}/applications", h.appliedJobs)
	mux.HandleFunc("POST /api/candidates/{id}/applications/{job}", h.apply)
	mux.HandleFunc("DELETE /api/candidates/{id}/applications/{job}", h.withdraw)

	return mux
}

func (h *handler) listJobs(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		unavailable(w, "store")
		return
	}
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			if v > 100 {
				v = 100
			}
			limit = v
		}
	}
	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	opts := storage.JobQueryOptions{
		CompanyID: r.URL.Query().Get("company_id"),
		Status:    model.JobStatus(r.URL.Query().Get("status")),
		Limit:     limit + 1,
		Offset:    (page - 1) * limit,
	}

	jobs, err := h.Store.ListJobs(r.Context(), opts)
	if err != nil {
		h.writeError(w, err)
		return
	}
	total, err := h.Store.CountJobs(r.Context(), opts)
	if err != nil {
		h.writeError(w, err)
		return
	}

	hasMore := false
	if len(jobs) > limit {
		hasMore = true
		jobs = jobs[:limit]
	}

	w.Header().Set("X-Page", strconv.Itoa(page))
	w.Header().Set("X-Limit", strconv.Itoa(limit))
	w.Header().Set("X-Has-More", strconv.FormatBool(hasMore))
	w.Header().Set("X-Total", strconv.FormatInt(total, 10))
	writeJSON(w, http.StatusOK, jobs)
}

func (h *handler) getJob(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		unavailable(w, "store")
		return
	}
	job, err := h.Store.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *handler) jobMatches(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil || h.Matcher == nil {
		unavailable(w, "matching")
		return
	}
	job, err := h.Store.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if job.TextHash == nil || *job.TextHash == "" {
		h.writeError(w, apperr.E(apperr.CodeConflict, "api.jobMatches", "job has not been parsed yet", nil))
		return
	}
	matches, err := h.Matcher.MatchJobToCandidates(r.Context(), *job.TextHash, topN(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		unavailable(w, "scheduler")
		return
	}
	report, err := h.Scheduler.RunOnce(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handler) getCompany(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		unavailable(w, "store")
		return
	}
	c, err := h.Store.GetCompany(r.Context(), r.PathValue("company"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) saveCompany(w http.ResponseWriter, r *http.Request) {
	if h.Companies == nil {
		unavailable(w, "companies")
		return
	}
	var req company.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperr.Validation("api.saveCompany", "invalid payload"))
		return
	}
	req.ID = r.PathValue("company")
	c, err := h.Companies.Save(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) uploadJob(w http.ResponseWriter, r *http.Request) {
	if h.Profiles == nil {
		unavailable(w, "profiles")
		return
	}
	up, err := readUpload(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.Profiles.UploadJob(r.Context(), r.PathValue("company"), up)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) syncCompany(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		unavailable(w, "scheduler")
		return
	}
	report, err := h.Scheduler.RunCompanies(r.Context(), []string{r.PathValue("company")})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handler) deleteJob(w http.ResponseWriter, r *http.Request) {
	if h.Mirror == nil || h.Store == nil {
		unavailable(w, "mirror")
		return
	}
	companyID, jobID := r.PathValue("company"), r.PathValue("id")
	job, err := h.Store.GetJob(r.Context(), jobID)
	switch {
	case err == nil && job.CompanyID != companyID:
		h.writeError(w, apperr.E(apperr.CodeNotFound, "api.deleteJob", "job not found for company", nil))
		return
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		h.writeError(w, err)
		return
	}
	if err := h.Mirror.DeleteJob(r.Context(), companyID, jobID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) uploadCV(w http.ResponseWriter, r *http.Request) {
	if h.Profiles == nil {
		unavailable(w, "profiles")
		return
	}
	up, err := readUpload(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.Profiles.UploadCV(r.Context(), r.PathValue("id"), up)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) getProfile(w http.ResponseWriter, r *http.Request) {
	if h.Profiles == nil {
		unavailable(w, "profiles")
		return
	}
	view, err := h.Profiles.Resolved(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// streamProfile 以 SSE 推送档案视图：先推送当前值，之后每次变更推送一次。
func (h *handler) streamProfile(w http.ResponseWriter, r *http.Request) {
	if h.Profiles == nil || h.Hub == nil {
		unavailable(w, "profile stream")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, apperr.E(apperr.CodeInternal, "api.streamProfile", "streaming unsupported", nil))
		return
	}
	ownerID := r.PathValue("id")
	pv, err := h.Profiles.OpenView(r.Context(), h.Hub, ownerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer pv.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "profile", pv.Current()); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-pv.Done():
			return
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-pv.Updates():
			if err := writeEvent(w, "profile", pv.Current()); err != nil {
				h.Log.Debug("profile stream closed", logger.Owner(ownerID), zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

func (h *handler) updateBio(w http.ResponseWriter, r *http.Request) {
	if h.Profiles == nil {
		unavailable(w, "profiles")
		return
	}
	var req struct {
		Bio string `json:"bio"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperr.Validation("api.updateBio", "invalid payload"))
		return
	}
	if err := h.Profiles.UpdateBio(r.Context(), r.PathValue("id"), req.Bio); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) candidateMatches(w http.ResponseWriter, r *http.Request) {
	if h.Profiles == nil || h.Matcher == nil {
		unavailable(w, "matching")
		return
	}
	candidateID := r.PathValue("id")
	view, err := h.Profiles.Resolved(r.Context(), candidateID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if view.CVHash == nil || *view.CVHash == "" {
		h.writeError(w, apperr.E(apperr.CodeConflict, "api.candidateMatches", "no parsed cv for candidate", nil))
		return
	}
	matches, err := h.Matcher.MatchCandidateToJobs(r.Context(), *view.CVHash, topN(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if h.Applications != nil {
		annotated, err := h.Applications.Annotate(r.Context(), candidateID, matches)
		if err != nil {
			h.Log.Warn("annotate matches failed", logger.Owner(candidateID), zap.Error(err))
		} else {
			matches = annotated
		}
	}
	writeJSON(w, http.StatusOK, matches)
}

func (h *handler) appliedJobs(w http.ResponseWriter, r *http.Request) {
	if h.Applications == nil {
		unavailable(w, "applications")
		return
	}
	ids, err := h.Applications.AppliedJobs(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"job_ids": ids})
}

func (h *handler) apply(w http.ResponseWriter, r *http.Request) {
	if h.Applications == nil {
		unavailable(w, "applications")
		return
	}
	outcome, err := h.Applications.Apply(r.Context(), r.PathValue("id"), r.PathValue("job"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	status := http.StatusCreated
	if outcome == applications.AlreadyApplied {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]string{"outcome": outcome.String()})
}

func (h *handler) withdraw(w http.ResponseWriter, r *http.Request) {
	if h.Applications == nil {
		unavailable(w, "applications")
		return
	}
	outcome, err := h.Applications.Withdraw(r.Context(), r.PathValue("id"), r.PathValue("job"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	status := http.StatusOK
	if outcome == applications.NotFound {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"outcome": outcome.String()})
}

func readUpload(w http.ResponseWriter, r *http.Request) (profile.Upload, error) {
	const op = "api.readUpload"
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		return profile.Upload{}, apperr.Validation(op, fmt.Sprintf("file field required: %v", err))
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return profile.Upload{}, apperr.Validation(op, fmt.Sprintf("read upload: %v", err))
	}
	return profile.Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
	}, nil
}

func topN(r *http.Request) int {
	n := defaultTopN
	if v, err := strconv.Atoi(r.URL.Query().Get("top_n")); err == nil && v > 0 {
		n = min(v, maxTopN)
	}
	return n
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		err = apperr.E(apperr.CodeNotFound, "", "not found", err)
	}
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Log.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  string(apperr.CodeOf(err)),
	})
}

func unavailable(w http.ResponseWriter, what string) {
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": what + " disabled"})
}

func writeEvent(w io.Writer, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
