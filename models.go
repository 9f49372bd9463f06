package mettle

import (
	"encoding/json"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
)

// AuthEvent names an auth-state notification.
type AuthEvent = string

const (
	// EventSignedIn fires when a session is established.
	EventSignedIn AuthEvent = "SIGNED_IN"
	// EventSignedOut fires when the session ends.
	EventSignedOut AuthEvent = "SIGNED_OUT"
	// EventTokenRefreshed fires when the access token is rotated.
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	// EventUserUpdated fires after a profile/password change.
	EventUserUpdated AuthEvent = "USER_UPDATED"
	// EventPasswordRecovery fires when a recovery link was followed.
	EventPasswordRecovery AuthEvent = "PASSWORD_RECOVERY"
)

// User is the backend-owned identity record. The shell holds read-only
// cached copies only.
type User struct {
	ID        uuid.UUID  `json:"id,omitempty"`
	Email     string     `json:"email,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Session is the proof of authentication issued by the backend. The
// tokens are opaque to the shell; only the refresh loop inspects expiry.
type Session struct {
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	User         *User     `json:"user,omitempty"`
}

// Expired reports whether the access token is past its expiry.
func (s *Session) Expired() bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// UserProfile is the application-level extension of a User, stored in
// the backend's user_profiles table.
type UserProfile struct {
	ID          uuid.UUID  `json:"id,omitempty"`
	Email       string     `json:"email,omitempty"`
	DisplayName *string    `json:"display_name,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// ProfileUpdate carries the mutable profile fields.
type ProfileUpdate struct {
	DisplayName *string `json:"display_name,omitempty"`
	Phone       *string `json:"phone,omitempty"`
}

// Validate will run validation rules
func (p ProfileUpdate) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.DisplayName, validation.Length(1, 200)),
		validation.Field(&p.Phone, validation.By(validatePhone)),
	)
}

// Normalize rewrites the phone number to E.164 when one is present.
func (p *ProfileUpdate) Normalize(region string) error {
	if p.Phone == nil || *p.Phone == "" {
		return nil
	}

	num, err := phonenumbers.Parse(*p.Phone, region)
	if err != nil {
		return err
	}

	formatted := phonenumbers.Format(num, phonenumbers.E164)
	p.Phone = &formatted
	return nil
}

func validatePhone(value any) error {
	phone, _ := value.(*string)
	if phone == nil || *phone == "" {
		return nil
	}

	num, err := phonenumbers.Parse(*phone, "US")
	if err != nil {
		return err
	}

	return validation.Validate(phonenumbers.Format(num, phonenumbers.E164), is.E164)
}

// AssessmentStatus is the lifecycle state of an assessment
type AssessmentStatus = string

const (
	// AssessmentDraft was created but not started
	AssessmentDraft AssessmentStatus = "draft"
	// AssessmentActive is in progress
	AssessmentActive AssessmentStatus = "active"
	// AssessmentCompleted has a result attached
	AssessmentCompleted AssessmentStatus = "completed"
)

// UserAssessment is the per-user assessment summary row. ResultScore
// and ResultTier stay nil unless a result row is linked.
type UserAssessment struct {
	ID          uuid.UUID        `json:"id,omitempty"`
	UserID      uuid.UUID        `json:"user_id,omitempty"`
	CompanyName string           `json:"company_name,omitempty"`
	RoleTitle   string           `json:"role_title,omitempty"`
	Status      AssessmentStatus `json:"status,omitempty"`
	CreatedAt   time.Time        `json:"created_at,omitempty"`
	ResultScore *float64         `json:"result_score,omitempty"`
	ResultTier  *string          `json:"result_tier,omitempty"`
}

// assessmentRow is the wire shape of an assessment with its optional
// embedded result, as returned by the joined table read.
type assessmentRow struct {
	ID          uuid.UUID         `json:"id"`
	UserID      uuid.UUID         `json:"user_id"`
	CompanyName string            `json:"company_name"`
	RoleTitle   string            `json:"role_title"`
	Status      AssessmentStatus  `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	Result      *assessmentResult `json:"results"`
}

type assessmentResult struct {
	OverallScore float64 `json:"overallScore"`
	Tier         string  `json:"tier"`
}

func (r assessmentRow) toAssessment() UserAssessment {
	a := UserAssessment{
		ID:          r.ID,
		UserID:      r.UserID,
		CompanyName: r.CompanyName,
		RoleTitle:   r.RoleTitle,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
	}

	if r.Result != nil {
		score := r.Result.OverallScore
		tier := r.Result.Tier
		a.ResultScore = &score
		a.ResultTier = &tier
	}

	return a
}

func decodeAssessments(data []byte) ([]UserAssessment, error) {
	var rows []assessmentRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}

	out := make([]UserAssessment, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toAssessment())
	}

	return out, nil
}
