package model

import "time"

// Account 账户资料，由认证系统写入，这里只读，作为字段解析的最低优先级来源。
type Account struct {
	ID          string    `gorm:"column:id;primaryKey" json:"id"`
	UserType    string    `gorm:"column:user_type" json:"user_type"`
	Email       *string   `gorm:"column:email" json:"email"`
	FirstName   *string   `gorm:"column:first_name" json:"first_name"`
	LastName    *string   `gorm:"column:last_name" json:"last_name"`
	Location    *string   `gorm:"column:location" json:"location"`
	CompanyName *string   `gorm:"column:company_name" json:"company_name"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Account) TableName() string { return "accounts" }

// Company 公司资料，按 id upsert。
type Company struct {
	ID                 string    `gorm:"column:id;primaryKey" json:"id"`
	CompanyDescription *string   `gorm:"column:company_description" json:"company_description"`
	WebsiteURL         *string   `gorm:"column:website_url" json:"website_url"`
	CompanySize        *string   `gorm:"column:company_size" json:"company_size"`
	Industry           *string   `gorm:"column:industry" json:"industry"`
	FoundedYear        *int      `gorm:"column:founded_year" json:"founded_year"`
	CreatedAt          time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Company) TableName() string { return "companies" }
