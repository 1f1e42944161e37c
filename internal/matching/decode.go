package matching

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"talent-mirror/internal/model"
	"talent-mirror/internal/opt"

	"github.com/mitchellh/mapstructure"
)

// sentinelHook 把哨兵字符串解码为缺失：指针字段得到 nil，列表字段得到 nil 切片，
// 避免弱类型解码把 "null" 提升为 ["null"]。
func sentinelHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	s, ok := data.(string)
	if !ok || !opt.IsSentinel(s) {
		return data, nil
	}
	switch to.Kind() {
	case reflect.Ptr:
		return nil, nil
	case reflect.Slice:
		return reflect.Zero(to).Interface(), nil
	}
	return data, nil
}

func decode(input any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       sentinelHook,
		WeaklyTypedInput: true,
		TagName:          "json",
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("new decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

type wireParseResponse struct {
	CVID        *string        `json:"cv_id"`
	JobID       *string        `json:"job_id"`
	Hash        *string        `json:"hash"`
	IsDuplicate bool           `json:"is_duplicate"`
	ParsedCV    map[string]any `json:"parsed_cv"`
	ParsedJob   map[string]any `json:"parsed_job"`
	JobText     *string        `json:"job_text"`
	Embeddings  any            `json:"embeddings"`
}

type wirePersonalInfo struct {
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
	Github    *string `json:"github"`
	Linkedin  *string `json:"linkedin"`
	Portfolio *string `json:"portfolio"`
}

type wireCV struct {
	PersonalInfo    *wirePersonalInfo `json:"personalInfo"`
	Skills          []string          `json:"skills"`
	Education       []wireEducation   `json:"education"`
	WorkExperience  []wireWork        `json:"workExperience"`
	Certifications  []string          `json:"certifications"`
	ExperienceYears *int              `json:"experienceYears"`
}

type wireEducation struct {
	School *string `json:"school"`
	Degree *string `json:"degree"`
	Field  *string `json:"field"`
}

type wireWork struct {
	Company     *string `json:"company"`
	Title       *string `json:"title"`
	Period      *string `json:"period"`
	Description *string `json:"description"`
}

type wireCompanyInfo struct {
	CompanyName *string `json:"companyName"`
	Location    *string `json:"location"`
	Website     *string `json:"website"`
}

type wireJob struct {
	JobTitle         *string           `json:"jobTitle"`
	Company          *string           `json:"company"`
	Location         *string           `json:"location"`
	Description      *string           `json:"description"`
	CompanyInfo      []wireCompanyInfo `json:"companyInfo"`
	RequiredSkills   []string          `json:"requiredSkills"`
	Responsibilities []string          `json:"roles_or_responsibilities"`
}

type wireExternalJob struct {
	ID               *string  `json:"id"`
	CompanyID        *string  `json:"company_id"`
	Title            *string  `json:"title"`
	Description      *string  `json:"description"`
	Location         *string  `json:"location"`
	SkillsRequired   []string `json:"skills_required"`
	Responsibilities []string `json:"responsibilities"`
	TextHash         *string  `json:"text_hash"`
	Status           *string  `json:"status"`
	ParsedFields     *wireJob `json:"parsed_fields"`
}

func text(p *string) opt.Value[string] {
	return opt.TextPtr(p)
}

func plain(p *string) string {
	return text(p).OrElse("")
}

// DecodeParseResult 解析台账里保存的原始响应，重复上传时用它重建视图。
func DecodeParseResult(body []byte) (*ParseResult, error) {
	return decodeParse(body)
}

// decodeParse 解析 parse_cv / parse_job 响应。
func decodeParse(body []byte) (*ParseResult, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal parse response: %w", err)
	}
	var wire wireParseResponse
	if err := decode(raw, &wire); err != nil {
		return nil, err
	}

	res := &ParseResult{
		Hash:        plain(wire.Hash),
		IsDuplicate: wire.IsDuplicate,
		JobText:     text(wire.JobText),
		Raw:         json.RawMessage(body),
	}
	res.DocumentID = plain(wire.CVID)
	if res.DocumentID == "" {
		res.DocumentID = plain(wire.JobID)
	}
	if wire.Embeddings != nil {
		if data, err := json.Marshal(wire.Embeddings); err == nil {
			res.Embeddings = data
		}
	}

	if wire.ParsedCV != nil {
		cv, err := decodeCV(wire.ParsedCV)
		if err != nil {
			return nil, err
		}
		res.CV = cv
		res.ParsedData, _ = json.Marshal(wire.ParsedCV)
	}
	if wire.ParsedJob != nil {
		job, err := decodeJob(wire.ParsedJob)
		if err != nil {
			return nil, err
		}
		res.Job = job
		res.ParsedData, _ = json.Marshal(wire.ParsedJob)
	}
	return res, nil
}

// DecodeParsedCV 解析落库的 parsed_cv_data，空内容返回 nil。
func DecodeParsedCV(data []byte) (*ParsedCV, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal parsed cv: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	return decodeCV(raw)
}

func decodeCV(in map[string]any) (*ParsedCV, error) {
	var w wireCV
	if err := decode(in, &w); err != nil {
		return nil, err
	}
	cv := &ParsedCV{
		Skills:          opt.Strings(w.Skills),
		Certifications:  opt.Strings(w.Certifications),
		ExperienceYears: opt.FromPtr(w.ExperienceYears),
	}
	if p := w.PersonalInfo; p != nil {
		cv.Name = text(p.Name)
		cv.Email = text(p.Email)
		cv.Phone = text(p.Phone)
		cv.Address = text(p.Address)
		cv.Github = text(p.Github)
		cv.Linkedin = text(p.Linkedin)
		cv.Portfolio = text(p.Portfolio)
	}
	if w.Education != nil {
		cv.Education = make([]model.Education, 0, len(w.Education))
		for _, e := range w.Education {
			cv.Education = append(cv.Education, model.Education{
				School: plain(e.School),
				Degree: plain(e.Degree),
				Field:  plain(e.Field),
			})
		}
	}
	if w.WorkExperience != nil {
		cv.WorkExperience = make([]model.WorkEntry, 0, len(w.WorkExperience))
		for _, e := range w.WorkExperience {
			cv.WorkExperience = append(cv.WorkExperience, model.WorkEntry{
				Company:     plain(e.Company),
				Title:       plain(e.Title),
				Period:      plain(e.Period),
				Description: plain(e.Description),
			})
		}
	}
	return cv, nil
}

func decodeJob(in map[string]any) (*ParsedJob, error) {
	var w wireJob
	if err := decode(in, &w); err != nil {
		return nil, err
	}
	return jobFromWire(&w), nil
}

func jobFromWire(w *wireJob) *ParsedJob {
	job := &ParsedJob{
		Title:            text(w.JobTitle),
		Company:          text(w.Company),
		Location:         text(w.Location),
		Description:      text(w.Description),
		RequiredSkills:   opt.Strings(w.RequiredSkills),
		Responsibilities: opt.Strings(w.Responsibilities),
	}
	// companyInfo 里的字段只在顶层缺失时补位
	for _, info := range w.CompanyInfo {
		if !job.Company.IsSet() {
			job.Company = text(info.CompanyName)
		}
		if !job.Location.IsSet() {
			job.Location = text(info.Location)
		}
		if !job.Website.IsSet() {
			job.Website = text(info.Website)
		}
	}
	return job
}

type wireJobPage struct {
	Jobs  []map[string]any `json:"jobs"`
	Count *int             `json:"count"`
}

// decodeJobPage 解析公司职位列表。单条记录解码失败不影响其他记录，
// 只保留 Raw 交给镜像同步校验并逐行报告。
func decodeJobPage(body []byte) (JobPage, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return JobPage{}, fmt.Errorf("unmarshal job page: %w", err)
	}
	var wire wireJobPage
	if err := decode(raw, &wire); err != nil {
		return JobPage{}, err
	}

	page := JobPage{Jobs: make([]ExternalJob, 0, len(wire.Jobs))}
	for _, item := range wire.Jobs {
		page.Jobs = append(page.Jobs, decodeExternalJob(item))
	}
	page.Count = len(page.Jobs)
	if wire.Count != nil {
		page.Count = *wire.Count
	}
	return page, nil
}

func decodeExternalJob(item map[string]any) ExternalJob {
	job := ExternalJob{Raw: item}
	var w wireExternalJob
	if err := decode(item, &w); err != nil {
		if id, ok := item["id"].(string); ok {
			job.ID = strings.TrimSpace(id)
		}
		return job
	}
	job.ID = plain(w.ID)
	job.CompanyID = plain(w.CompanyID)
	job.Title = text(w.Title)
	job.Description = text(w.Description)
	job.Location = text(w.Location)
	job.SkillsRequired = opt.Strings(w.SkillsRequired)
	job.Responsibilities = opt.Strings(w.Responsibilities)
	job.TextHash = text(w.TextHash)
	job.Status = text(w.Status)

	if w.ParsedFields != nil {
		parsed := jobFromWire(w.ParsedFields)
		if !job.Title.IsSet() {
			job.Title = parsed.Title
		}
		if !job.Location.IsSet() {
			job.Location = parsed.Location
		}
		if !job.Description.IsSet() {
			job.Description = parsed.Description
		}
		if job.SkillsRequired == nil {
			job.SkillsRequired = parsed.RequiredSkills
		}
		if job.Responsibilities == nil {
			job.Responsibilities = parsed.Responsibilities
		}
	}
	return job
}

type wireJobMatch struct {
	JobID    *string `json:"job_id"`
	JobTitle *string `json:"job_title"`
	Scores   `json:",squash"`
}

type wireCandidate struct {
	ID    *string `json:"id"`
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

type wireCandidateMatch struct {
	CVID      *string        `json:"cv_id"`
	Candidate *wireCandidate `json:"candidate"`
	Scores    `json:",squash"`
}

func decodeJobMatches(body []byte) ([]JobMatch, error) {
	var raw []any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal matches: %w", err)
	}
	var wire []wireJobMatch
	if err := decode(raw, &wire); err != nil {
		return nil, err
	}
	out := make([]JobMatch, 0, len(wire))
	for _, w := range wire {
		out = append(out, JobMatch{
			JobID:    plain(w.JobID),
			JobTitle: plain(w.JobTitle),
			Scores:   w.Scores,
		})
	}
	return out, nil
}

func decodeCandidateMatches(body []byte) ([]CandidateMatch, error) {
	var raw []any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal matches: %w", err)
	}
	var wire []wireCandidateMatch
	if err := decode(raw, &wire); err != nil {
		return nil, err
	}
	out := make([]CandidateMatch, 0, len(wire))
	for _, w := range wire {
		m := CandidateMatch{CVID: plain(w.CVID), Scores: w.Scores}
		if c := w.Candidate; c != nil {
			m.CandidateID = plain(c.ID)
			m.Name = plain(c.Name)
			m.Email = plain(c.Email)
		}
		out = append(out, m)
	}
	return out, nil
}
