package company

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"talent-mirror/internal/apperr"
	"talent-mirror/internal/model"
	"talent-mirror/internal/opt"
)

// Store 定义持久化接口。
type Store interface {
	UpsertCompany(ctx context.Context, company *model.Company) error
}

// Config 控制可选的公司规模。
type Config struct {
	AllowedSizes []string `yaml:"allowed_sizes" json:"allowed_sizes"`
}

// Request 表示公司资料编辑请求，空字符串表示清空。
type Request struct {
	ID          string `json:"id"`
	Description string `json:"company_description"`
	WebsiteURL  string `json:"website_url"`
	CompanySize string `json:"company_size"`
	Industry    string `json:"industry"`
	FoundedYear *int   `json:"founded_year"`
}

// Service 负责校验并写入公司资料。
type Service struct {
	store Store
	sizes map[string]string
	now   func() time.Time
}

// NewService 创建公司资料服务。
func NewService(store Store, cfg Config) *Service {
	sizes := make(map[string]string)
	for _, size := range cfg.AllowedSizes {
		if trimmed := strings.TrimSpace(size); trimmed != "" {
			sizes[strings.ToLower(trimmed)] = trimmed
		}
	}
	return &Service{store: store, sizes: sizes, now: time.Now}
}

// Save 校验请求并写入数据库。
func (s *Service) Save(ctx context.Context, req Request) (model.Company, error) {
	const op = "company.Save"
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return model.Company{}, apperr.Validation(op, "company id required")
	}

	website, err := normalizeWebsite(req.WebsiteURL)
	if err != nil {
		return model.Company{}, apperr.Validation(op, err.Error())
	}

	size := opt.Text(req.CompanySize)
	if v, ok := size.Get(); ok && len(s.sizes) > 0 {
		canonical, known := s.sizes[strings.ToLower(v)]
		if !known {
			return model.Company{}, apperr.Validation(op, fmt.Sprintf("unknown company size %s", v))
		}
		size = opt.Some(canonical)
	}

	if y := req.FoundedYear; y != nil && (*y < 1800 || *y > s.now().Year()) {
		return model.Company{}, apperr.Validation(op, fmt.Sprintf("founded year %d out of range", *y))
	}

	company := model.Company{
		ID:                 id,
		CompanyDescription: opt.Text(req.Description).Ptr(),
		WebsiteURL:         website.Ptr(),
		CompanySize:        size.Ptr(),
		Industry:           opt.Text(req.Industry).Ptr(),
		FoundedYear:        req.FoundedYear,
	}
	if err := s.store.UpsertCompany(ctx, &company); err != nil {
		return model.Company{}, apperr.E(apperr.CodeInternal, op, "save company", err)
	}
	return company, nil
}

// normalizeWebsite 缺少协议时补 https://，只接受 http/https 且必须有主机名。
func normalizeWebsite(raw string) (opt.Value[string], error) {
	text := opt.Text(raw)
	v, ok := text.Get()
	if !ok {
		return text, nil
	}
	if !strings.Contains(v, "://") {
		v = "https://" + v
	}
	u, err := url.Parse(v)
	if err != nil {
		return opt.None[string](), fmt.Errorf("invalid website url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return opt.None[string](), fmt.Errorf("unsupported website scheme %s", u.Scheme)
	}
	if u.Host == "" {
		return opt.None[string](), fmt.Errorf("website url has no host")
	}
	return opt.Some(u.String()), nil
}
