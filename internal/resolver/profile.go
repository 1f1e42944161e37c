package resolver

import (
	"strings"

	"talent-mirror/internal/matching"
	"talent-mirror/internal/model"
	"talent-mirror/internal/opt"
)

// NotAvailable 是字段缺失时的显示文本。
const NotAvailable = "Not available"

// Source 标记字段值的来源。
type Source string

const (
	SourceNone    Source = ""
	SourceParsed  Source = "parsed"
	SourceStored  Source = "stored"
	SourceAccount Source = "account"
)

// Field 一个解析后的展示字段。
type Field struct {
	Name      string `json:"name"`
	Value     string `json:"value,omitempty"`
	Source    Source `json:"source,omitempty"`
	Available bool   `json:"available"`
}

// Display 返回用于展示的值，缺失时为 NotAvailable 而不是空串。
func (f Field) Display() string {
	if !f.Available {
		return NotAvailable
	}
	return f.Value
}

// ResolvedProfile 每次读取时计算的候选人档案视图，不落库。
type ResolvedProfile struct {
	ID        string   `json:"id"`
	Name      Field    `json:"name"`
	Bio       Field    `json:"bio"`
	Email     Field    `json:"email"`
	Phone     Field    `json:"phone"`
	Address   Field    `json:"address"`
	Github    Field    `json:"github"`
	Linkedin  Field    `json:"linkedin"`
	Portfolio Field    `json:"portfolio"`
	Skills    []string `json:"skills"`

	Education       []model.Education `json:"education"`
	WorkExperience  []model.WorkEntry `json:"work_experience"`
	Certifications  []string          `json:"certifications"`
	ExperienceYears *int              `json:"experience_years"`
	CVHash          *string           `json:"cv_hash"`
}

// Fields 返回所有多来源字段，便于统一遍历。
func (p ResolvedProfile) Fields() []Field {
	return []Field{p.Name, p.Bio, p.Email, p.Phone, p.Address, p.Github, p.Linkedin, p.Portfolio}
}

// fieldSpec 描述一个多来源字段的三个来源，顺序即优先级。
type fieldSpec struct {
	name    string
	parsed  func(*matching.ParsedCV) opt.Value[string]
	stored  func(*model.CandidateProfile) opt.Value[string]
	account func(*model.Account) opt.Value[string]
	set     func(*ResolvedProfile, Field)
}

func none[S any](S) opt.Value[string] { return opt.None[string]() }

var fieldSpecs = []fieldSpec{
	{
		name:    "name",
		parsed:  func(cv *matching.ParsedCV) opt.Value[string] { return cv.Name },
		stored:  none[*model.CandidateProfile],
		account: accountName,
		set:     func(p *ResolvedProfile, f Field) { p.Name = f },
	},
	{
		name:    "bio",
		parsed:  none[*matching.ParsedCV],
		stored:  func(c *model.CandidateProfile) opt.Value[string] { return opt.TextPtr(c.Bio) },
		account: none[*model.Account],
		set:     func(p *ResolvedProfile, f Field) { p.Bio = f },
	},
	{
		name:    "email",
		parsed:  func(cv *matching.ParsedCV) opt.Value[string] { return cv.Email },
		stored:  func(c *model.CandidateProfile) opt.Value[string] { return opt.TextPtr(c.EmailFromCV) },
		account: func(a *model.Account) opt.Value[string] { return opt.TextPtr(a.Email) },
		set:     func(p *ResolvedProfile, f Field) { p.Email = f },
	},
	{
		name:    "phone",
		parsed:  func(cv *matching.ParsedCV) opt.Value[string] { return cv.Phone },
		stored:  func(c *model.CandidateProfile) opt.Value[string] { return opt.TextPtr(c.PhoneNumber) },
		account: none[*model.Account],
		set:     func(p *ResolvedProfile, f Field) { p.Phone = f },
	},
	{
		name:    "address",
		parsed:  func(cv *matching.ParsedCV) opt.Value[string] { return cv.Address },
		stored:  func(c *model.CandidateProfile) opt.Value[string] { return opt.TextPtr(c.Address) },
		account: func(a *model.Account) opt.Value[string] { return opt.TextPtr(a.Location) },
		set:     func(p *ResolvedProfile, f Field) { p.Address = f },
	},
	{
		name:    "github",
		parsed:  func(cv *matching.ParsedCV) opt.Value[string] { return cv.Github },
		stored:  func(c *model.CandidateProfile) opt.Value[string] { return opt.TextPtr(c.GithubURL) },
		account: none[*model.Account],
		set:     func(p *ResolvedProfile, f Field) { p.Github = f },
	},
	{
		name:    "linkedin",
		parsed:  func(cv *matching.ParsedCV) opt.Value[string] { return cv.Linkedin },
		stored:  func(c *model.CandidateProfile) opt.Value[string] { return opt.TextPtr(c.LinkedinURL) },
		account: none[*model.Account],
		set:     func(p *ResolvedProfile, f Field) { p.Linkedin = f },
	},
	{
		name:    "portfolio",
		parsed:  func(cv *matching.ParsedCV) opt.Value[string] { return cv.Portfolio },
		stored:  func(c *model.CandidateProfile) opt.Value[string] { return opt.TextPtr(c.PortfolioURL) },
		account: none[*model.Account],
		set:     func(p *ResolvedProfile, f Field) { p.Portfolio = f },
	},
}

var sourceOrder = []Source{SourceParsed, SourceStored, SourceAccount}

func accountName(a *model.Account) opt.Value[string] {
	parts := make([]string, 0, 2)
	for _, v := range []opt.Value[string]{opt.TextPtr(a.FirstName), opt.TextPtr(a.LastName)} {
		if s, ok := v.Get(); ok {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return opt.None[string]()
	}
	return opt.Some(strings.Join(parts, " "))
}

// ResolveProfile 合并解析结果、已存档案与账户资料三个来源。任一来源可为 nil。
func ResolveProfile(parsed *matching.ParsedCV, stored *model.CandidateProfile, account *model.Account) ResolvedProfile {
	var out ResolvedProfile
	switch {
	case stored != nil:
		out.ID = stored.ID
	case account != nil:
		out.ID = account.ID
	}

	for _, spec := range fieldSpecs {
		sources := make([]opt.Value[string], len(sourceOrder))
		if parsed != nil {
			sources[0] = spec.parsed(parsed)
		}
		if stored != nil {
			sources[1] = spec.stored(stored)
		}
		if account != nil {
			sources[2] = spec.account(account)
		}
		value, idx := ResolveWith(Unknown[string], sources...)
		field := Field{Name: spec.name}
		if v, ok := value.Get(); ok {
			field.Value = v
			field.Source = sourceOrder[idx]
			field.Available = true
		}
		spec.set(&out, field)
	}

	out.Skills = resolveList(parsedList(parsed, func(cv *matching.ParsedCV) []string { return cv.Skills }), storedList(stored, func(c *model.CandidateProfile) []string { return c.Skills }))
	out.Certifications = resolveList(parsedList(parsed, func(cv *matching.ParsedCV) []string { return cv.Certifications }), storedList(stored, func(c *model.CandidateProfile) []string { return c.Certifications }))
	if parsed != nil && parsed.Education != nil {
		out.Education = parsed.Education
	} else if stored != nil {
		out.Education = stored.Education
	}
	if parsed != nil && parsed.WorkExperience != nil {
		out.WorkExperience = parsed.WorkExperience
	} else if stored != nil {
		out.WorkExperience = stored.WorkExperience
	}

	var storedYears opt.Value[int]
	if stored != nil {
		storedYears = opt.FromPtr(stored.ExperienceYears)
		out.CVHash = stored.CVHash
	}
	var parsedYears opt.Value[int]
	if parsed != nil {
		parsedYears = parsed.ExperienceYears
	}
	out.ExperienceYears = Resolve("experience_years", parsedYears, storedYears).Ptr()
	return out
}

func parsedList(cv *matching.ParsedCV, get func(*matching.ParsedCV) []string) []string {
	if cv == nil {
		return nil
	}
	return get(cv)
}

func storedList(c *model.CandidateProfile, get func(*model.CandidateProfile) []string) []string {
	if c == nil {
		return nil
	}
	return get(c)
}

// resolveList 列表字段：第一个被提供（非 nil）的来源胜出，元素再过滤一次哨兵。
// 结果永不为 nil。
func resolveList(sources ...[]string) []string {
	for _, src := range sources {
		if src != nil {
			return opt.Strings(src)
		}
	}
	return []string{}
}
