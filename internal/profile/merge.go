package profile

import (
	"talent-mirror/internal/matching"
	"talent-mirror/internal/mirror"
	"talent-mirror/internal/model"
	"talent-mirror/internal/opt"

	"gorm.io/datatypes"
)

// Merge 把一次简历解析结果合并进已有档案。
// bio 和创建时间保持不变；解析器拥有的字段一律以本次解析为准，
// 缺失或哨兵值写为 NULL，解析器给出的空列表会覆盖旧列表。
// existing 为 nil 时以 ownerID 作为新档案的主键。
func Merge(existing *model.CandidateProfile, ownerID string, res *matching.ParseResult) model.CandidateProfile {
	var out model.CandidateProfile
	if existing != nil {
		out.ID = existing.ID
		out.Bio = existing.Bio
		out.CreatedAt = existing.CreatedAt
		out.CVFileName = existing.CVFileName
		out.CVFileType = existing.CVFileType
	}
	if out.ID == "" {
		out.ID = ownerID
	}

	cv := &matching.ParsedCV{}
	if res != nil && res.CV != nil {
		cv = res.CV
	}
	out.Address = cv.Address.Ptr()
	out.EmailFromCV = cv.Email.Ptr()
	out.PhoneNumber = cv.Phone.Ptr()
	out.GithubURL = cv.Github.Ptr()
	out.LinkedinURL = cv.Linkedin.Ptr()
	out.PortfolioURL = cv.Portfolio.Ptr()
	out.Skills = datatypes.JSONSlice[string](cv.Skills)
	out.Education = datatypes.JSONSlice[model.Education](cv.Education)
	out.WorkExperience = datatypes.JSONSlice[model.WorkEntry](cv.WorkExperience)
	out.Certifications = datatypes.JSONSlice[string](cv.Certifications)
	out.ExperienceYears = cv.ExperienceYears.Ptr()

	out.CVHash, out.CVID = nil, nil
	out.ParsedCVData, out.CVEmbeddings = nil, nil
	if res != nil {
		out.CVHash = opt.Text(res.Hash).Ptr()
		out.CVID = opt.Text(res.DocumentID).Ptr()
		out.ParsedCVData = datatypes.JSON(res.ParsedData)
		out.CVEmbeddings = datatypes.JSON(res.Embeddings)
	}
	return out
}

// MergeJob 把一次职位解析结果合并进本地职位镜像。
// 状态和创建时间沿用已有行，新职位默认 active。
func MergeJob(existing *model.Job, companyID string, res *matching.ParseResult) model.Job {
	out := model.Job{CompanyID: companyID, Status: model.JobStatusActive}
	if existing != nil {
		out.CreatedAt = existing.CreatedAt
		if existing.Status != "" {
			out.Status = existing.Status
		}
	}

	parsed := &matching.ParsedJob{}
	if res != nil {
		out.ID = res.DocumentID
		if res.Job != nil {
			parsed = res.Job
		}
	}

	out.Title = parsed.Title.OrElse("")
	out.Description = mirror.PlainText(parsed.Description.OrElse(""))
	if out.Description == "" && res != nil {
		out.Description = mirror.PlainText(res.JobText.OrElse(""))
	}
	if out.Description == "" {
		out.Description = model.DescriptionPlaceholder
	}
	out.Location = parsed.Location.Ptr()
	out.RemoteOption = mirror.IsRemote(parsed.Location)

	skills := parsed.RequiredSkills
	if skills == nil {
		skills = []string{}
	}
	responsibilities := parsed.Responsibilities
	if responsibilities == nil {
		responsibilities = []string{}
	}
	out.SkillsRequired = datatypes.JSONSlice[string](skills)
	out.Responsibilities = datatypes.JSONSlice[string](responsibilities)

	if res != nil {
		out.ParsedJobData = datatypes.JSON(res.ParsedData)
		out.JobText = res.JobText.Ptr()
		out.TextHash = opt.Text(res.Hash).Ptr()
		out.JobEmbeddings = datatypes.JSON(res.Embeddings)
	}
	return out
}
