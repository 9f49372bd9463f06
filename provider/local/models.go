// Package local is an in-process implementation of the hosted backend
// over bun and sqlite. It exists for tests and local development: the
// shell's facade and view-models run against it unchanged.
package local

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AuthUser is the auth-side account record, the local stand-in for the
// hosted service's private users table.
type AuthUser struct {
	bun.BaseModel `bun:"table:auth_users,alias:au"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	RecoveryToken string     `bun:"recovery_token" json:"-"`
	RecoverySent  *time.Time `bun:"recovery_sent_at,nullzero" json:"-"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Profile is the user_profiles row.
type Profile struct {
	bun.BaseModel `bun:"table:user_profiles,alias:up"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,notnull" json:"email,omitempty"`
	DisplayName   *string    `bun:"display_name" json:"display_name,omitempty"`
	Phone         *string    `bun:"phone" json:"phone,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Assessment is the assessments row with its optional linked result.
type Assessment struct {
	bun.BaseModel `bun:"table:assessments,alias:asmt"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	CompanyName   string     `bun:"company_name,notnull" json:"company_name,omitempty"`
	RoleTitle     string     `bun:"role_title,notnull" json:"role_title,omitempty"`
	Status        string     `bun:"status,notnull,default:'draft'" json:"status,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	Result        *Result    `bun:"rel:has-one,join:id=assessment_id" json:"results,omitempty"`
}

// Result is the results row linked to a completed assessment.
type Result struct {
	bun.BaseModel `bun:"table:results,alias:res"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AssessmentID  uuid.UUID  `bun:"assessment_id,notnull,unique,type:uuid" json:"assessment_id,omitempty"`
	OverallScore  float64    `bun:"overall_score,notnull" json:"overallScore"`
	Tier          string     `bun:"tier,notnull" json:"tier"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
