package matching

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"talent-mirror/internal/apperr"
)

type stubResponse struct {
	status int
	body   string
	err    error
}

type stubRoundTripper struct {
	mu        sync.Mutex
	responses map[string][]stubResponse
	requests  []*http.Request
	bodies    []string
}

func newStubRoundTripper(responses map[string][]stubResponse) *stubRoundTripper {
	return &stubRoundTripper{responses: responses}
}

func (s *stubRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var body string
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		body = string(data)
	}
	s.requests = append(s.requests, req)
	s.bodies = append(s.bodies, body)

	key := req.Method + " " + req.URL.Path
	queue := s.responses[key]
	if len(queue) == 0 {
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader(`{"detail":"no stub"}`)), Request: req}, nil
	}
	resp := queue[0]
	if len(queue) > 1 {
		s.responses[key] = queue[1:]
	}
	if resp.err != nil {
		return nil, resp.err
	}
	return &http.Response{
		StatusCode: resp.status,
		Body:       io.NopCloser(strings.NewReader(resp.body)),
		Header:     http.Header{"Content-Type": {"application/json"}},
		Request:    req,
	}, nil
}

func (s *stubRoundTripper) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func newTestClient(rt http.RoundTripper, retries int) *Client {
	return NewClient(Config{BaseURL: "http://matcher.local/", ReadRetries: retries, RetryBackoff: "1ms"}, &http.Client{Transport: rt}, nil)
}

func noSleep(t *testing.T) {
	t.Helper()
	original := sleep
	sleep = func(context.Context, time.Duration) error { return nil }
	t.Cleanup(func() { sleep = original })
}

const cvResponse = `{
  "cv_id": "cv-1",
  "hash": "h1",
  "is_duplicate": false,
  "parsed_cv": {
    "personalInfo": {"name": "Ada", "email": "null", "phone": " +1 555 ", "github": "Not Provided", "linkedin": null},
    "skills": ["go", "null", "sql"],
    "education": [{"school": "MIT", "degree": "null", "field": "CS"}],
    "workExperience": [],
    "experienceYears": 7
  },
  "embeddings": {"cv_emb": [0.1, 0.2]}
}`

func TestParseCVNormalizesSentinels(t *testing.T) {
	rt := newStubRoundTripper(map[string][]stubResponse{
		"POST /parse_cv/": {{status: http.StatusOK, body: cvResponse}},
	})
	client := newTestClient(rt, 0)

	res, err := client.ParseCV(context.Background(), "u1", "cv.pdf", []byte("%PDF"))
	if err != nil {
		t.Fatalf("ParseCV error: %v", err)
	}
	if res.DocumentID != "cv-1" || res.Hash != "h1" || res.IsDuplicate {
		t.Fatalf("unexpected result header %+v", res)
	}
	cv := res.CV
	if name, _ := cv.Name.Get(); name != "Ada" {
		t.Fatalf("unexpected name %q", name)
	}
	if cv.Email.IsSet() || cv.Github.IsSet() || cv.Linkedin.IsSet() || cv.Address.IsSet() {
		t.Fatalf("expected sentinel and missing fields absent: %+v", cv)
	}
	if phone, _ := cv.Phone.Get(); phone != "+1 555" {
		t.Fatalf("expected trimmed phone, got %q", phone)
	}
	if len(cv.Skills) != 2 || cv.Skills[0] != "go" || cv.Skills[1] != "sql" {
		t.Fatalf("unexpected skills %v", cv.Skills)
	}
	if len(cv.Education) != 1 || cv.Education[0].Degree != "" || cv.Education[0].School != "MIT" {
		t.Fatalf("unexpected education %+v", cv.Education)
	}
	if cv.WorkExperience == nil || len(cv.WorkExperience) != 0 {
		t.Fatalf("expected explicit empty work experience, got %v", cv.WorkExperience)
	}
	if cv.Certifications != nil {
		t.Fatalf("expected absent certifications, got %v", cv.Certifications)
	}
	if years, ok := cv.ExperienceYears.Get(); !ok || years != 7 {
		t.Fatalf("unexpected experience years %v", cv.ExperienceYears)
	}
	if string(res.Raw) != cvResponse {
		t.Fatalf("expected raw body preserved")
	}

	req := rt.requests[0]
	_, params, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if err != nil {
		t.Fatalf("parse content type: %v", err)
	}
	form, err := multipart.NewReader(strings.NewReader(rt.bodies[0]), params["boundary"]).ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	if form.Value["user_id"][0] != "u1" || form.File["file"][0].Filename != "cv.pdf" {
		t.Fatalf("unexpected form %+v", form.Value)
	}
}

func TestParseJobUsesCompanyInfoFallback(t *testing.T) {
	body := `{"job_id":"j1","hash":"jh","is_duplicate":true,"job_text":"Build things",
	  "parsed_job":{"jobTitle":"Engineer","companyInfo":[{"companyName":"Acme","location":"Remote - EU","website":"Not provided"}],
	  "requiredSkills":["go"],"roles_or_responsibilities":null}}`
	rt := newStubRoundTripper(map[string][]stubResponse{
		"POST /parse_job/": {{status: http.StatusOK, body: body}},
	})
	client := newTestClient(rt, 0)

	res, err := client.ParseJob(context.Background(), "c1", "job.txt", []byte("Build things"))
	if err != nil {
		t.Fatalf("ParseJob error: %v", err)
	}
	if !res.IsDuplicate || res.DocumentID != "j1" {
		t.Fatalf("unexpected header %+v", res)
	}
	if company, _ := res.Job.Company.Get(); company != "Acme" {
		t.Fatalf("unexpected company %q", company)
	}
	if loc, _ := res.Job.Location.Get(); loc != "Remote - EU" {
		t.Fatalf("unexpected location %q", loc)
	}
	if res.Job.Website.IsSet() {
		t.Fatalf("expected sentinel website absent")
	}
	if res.Job.Responsibilities != nil {
		t.Fatalf("expected nil responsibilities")
	}
	if jt, _ := res.JobText.Get(); jt != "Build things" {
		t.Fatalf("unexpected job text %q", jt)
	}
}

func TestListJobsRetriesServerErrors(t *testing.T) {
	noSleep(t)
	rt := newStubRoundTripper(map[string][]stubResponse{
		"GET /jobs/company/c1": {
			{status: http.StatusBadGateway, body: `{"detail":"upstream"}`},
			{err: errors.New("connection reset")},
			{status: http.StatusOK, body: `{"count": 2, "jobs": [
				{"id":"j1","title":"Go Dev","location":"Remote","skills_required":["go"]},
				{"id":"j2","parsed_fields":{"jobTitle":"Ops","location":"Berlin"}}
			]}`},
		},
	})
	client := newTestClient(rt, 2)

	page, err := client.ListJobsForCompany(context.Background(), "c1", 10, 0)
	if err != nil {
		t.Fatalf("ListJobsForCompany error: %v", err)
	}
	if rt.calls() != 3 {
		t.Fatalf("expected 3 attempts, got %d", rt.calls())
	}
	if page.Count != 2 || len(page.Jobs) != 2 {
		t.Fatalf("unexpected page %+v", page)
	}
	second := page.Jobs[1]
	if title, _ := second.Title.Get(); title != "Ops" {
		t.Fatalf("expected parsed_fields fallback title, got %q", title)
	}
	if second.CompanyID != "c1" {
		t.Fatalf("expected company id filled from request, got %q", second.CompanyID)
	}
	if got := rt.requests[2].URL.Query().Get("limit"); got != "10" {
		t.Fatalf("unexpected limit %q", got)
	}
}

func TestReadGivesUpAfterRetries(t *testing.T) {
	noSleep(t)
	rt := newStubRoundTripper(map[string][]stubResponse{
		"GET /parse_job": {{status: http.StatusInternalServerError, body: `oops`}},
	})
	client := newTestClient(rt, 1)

	_, err := client.GetParsedJob(context.Background(), "jh")
	if !apperr.IsCode(err, apperr.CodeRemote) {
		t.Fatalf("expected remote error, got %v", err)
	}
	if rt.calls() != 2 {
		t.Fatalf("expected 2 attempts, got %d", rt.calls())
	}
}

func TestWritesAreNotRetried(t *testing.T) {
	noSleep(t)
	rt := newStubRoundTripper(map[string][]stubResponse{
		"POST /applications/": {{status: http.StatusServiceUnavailable, body: `{"detail":"busy"}`}},
	})
	client := newTestClient(rt, 3)

	if _, err := client.Apply(context.Background(), "u1", "j1"); !apperr.IsCode(err, apperr.CodeRemote) {
		t.Fatalf("expected remote error, got %v", err)
	}
	if rt.calls() != 1 {
		t.Fatalf("expected a single attempt, got %d", rt.calls())
	}
}

func TestApplyAndWithdrawOutcomes(t *testing.T) {
	rt := newStubRoundTripper(map[string][]stubResponse{
		"POST /applications/": {
			{status: http.StatusCreated, body: `{"id":"a1"}`},
			{status: http.StatusConflict, body: `{"detail":"already applied"}`},
		},
		"DELETE /applications/u1/j1": {
			{status: http.StatusNoContent},
			{status: http.StatusNotFound, body: `{"detail":"not found"}`},
		},
	})
	client := newTestClient(rt, 0)
	ctx := context.Background()

	if status, err := client.Apply(ctx, "u1", "j1"); err != nil || status != ApplyCreated {
		t.Fatalf("first Apply = %v, %v", status, err)
	}
	if status, err := client.Apply(ctx, "u1", "j1"); err != nil || status != ApplyExists {
		t.Fatalf("second Apply = %v, %v", status, err)
	}
	if !strings.Contains(rt.bodies[0], `"candidate_id":"u1"`) {
		t.Fatalf("unexpected apply body %s", rt.bodies[0])
	}
	if found, err := client.Withdraw(ctx, "u1", "j1"); err != nil || !found {
		t.Fatalf("first Withdraw = %v, %v", found, err)
	}
	if found, err := client.Withdraw(ctx, "u1", "j1"); err != nil || found {
		t.Fatalf("second Withdraw = %v, %v", found, err)
	}
}

func TestDeleteJobNotFound(t *testing.T) {
	rt := newStubRoundTripper(map[string][]stubResponse{
		"DELETE /delete_job/j9": {{status: http.StatusNotFound, body: `{"detail":"Job not found"}`}},
	})
	client := newTestClient(rt, 0)

	err := client.DeleteJob(context.Background(), "j9")
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if !strings.Contains(err.Error(), "Job not found") {
		t.Fatalf("expected detail in error, got %v", err)
	}
}

func TestMatchesDecode(t *testing.T) {
	rt := newStubRoundTripper(map[string][]stubResponse{
		"POST /match_cv_to_jobs/": {{status: http.StatusOK, body: `[{"job_id":"j1","job_title":"Go Dev","combined_score":0.9,"doc_score":0.8,"skill_score":1,"exp_score":0.5}]`}},
		"POST /match_job_to_cvs/": {{status: http.StatusOK, body: `[{"cv_id":"cv1","candidate":{"id":"u1","name":"Ada","email":"null"},"combined_score":0.7}]`}},
	})
	client := newTestClient(rt, 0)
	ctx := context.Background()

	jobs, err := client.MatchCandidateToJobs(ctx, "h1", 5)
	if err != nil {
		t.Fatalf("MatchCandidateToJobs error: %v", err)
	}
	if len(jobs) != 1 || jobs[0].JobID != "j1" || jobs[0].Combined != 0.9 || jobs[0].Skill != 1 {
		t.Fatalf("unexpected job matches %+v", jobs)
	}
	if got := rt.requests[0].URL.Query().Get("top_n"); got != "5" {
		t.Fatalf("unexpected top_n %q", got)
	}

	cands, err := client.MatchJobToCandidates(ctx, "jh", 3)
	if err != nil {
		t.Fatalf("MatchJobToCandidates error: %v", err)
	}
	if len(cands) != 1 || cands[0].CandidateID != "u1" || cands[0].Email != "" || cands[0].Combined != 0.7 {
		t.Fatalf("unexpected candidate matches %+v", cands)
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestTimeoutSurfacesAsRemoteError(t *testing.T) {
	rt := newStubRoundTripper(map[string][]stubResponse{
		"DELETE /delete_job/j1": {{err: timeoutError{}}},
	})
	client := newTestClient(rt, 0)

	err := client.DeleteJob(context.Background(), "j1")
	if !apperr.IsCode(err, apperr.CodeRemote) {
		t.Fatalf("expected remote error, got %v", err)
	}
	if apperr.HTTPStatus(err) != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", apperr.HTTPStatus(err))
	}
}

func TestDecodeSentinelListFields(t *testing.T) {
	res, err := DecodeParseResult([]byte(`{"job_id":"j9","hash":"jh9",` +
		`"parsed_job":{"jobTitle":"SRE","requiredSkills":"null","roles_or_responsibilities":"on-call"}}`))
	if err != nil {
		t.Fatalf("DecodeParseResult error: %v", err)
	}
	if res.Job.RequiredSkills != nil {
		t.Fatalf("expected absent required skills, got %#v", res.Job.RequiredSkills)
	}
	if len(res.Job.Responsibilities) != 1 || res.Job.Responsibilities[0] != "on-call" {
		t.Fatalf("expected single value lifted into list, got %#v", res.Job.Responsibilities)
	}
}
