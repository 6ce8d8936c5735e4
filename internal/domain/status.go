package domain

// ApplicationStatus is the closed set of lifecycle states an application can
// be in. All workflow comparisons and the transition table key off this type;
// raw strings never enter the state machine.
type ApplicationStatus string

const (
	StatusDraft             ApplicationStatus = "DRAFT"
	StatusIdentityPending   ApplicationStatus = "IDENTITY_PENDING"
	StatusIdentityCompleted ApplicationStatus = "IDENTITY_COMPLETED"
	StatusCreditPending     ApplicationStatus = "CREDIT_PENDING"
	StatusCreditCompleted   ApplicationStatus = "CREDIT_COMPLETED"
	StatusEligible          ApplicationStatus = "ELIGIBLE"
	StatusNotEligible       ApplicationStatus = "NOT_ELIGIBLE"
)

// AllStatuses lists every lifecycle state in pipeline order.
var AllStatuses = []ApplicationStatus{
	StatusDraft,
	StatusIdentityPending,
	StatusIdentityCompleted,
	StatusCreditPending,
	StatusCreditCompleted,
	StatusEligible,
	StatusNotEligible,
}

// ActiveStatuses are the non-terminal states. An applicant may hold at most
// one application in an active state per tax ID.
var ActiveStatuses = []ApplicationStatus{
	StatusDraft,
	StatusIdentityPending,
	StatusIdentityCompleted,
	StatusCreditPending,
	StatusCreditCompleted,
}

func (s ApplicationStatus) String() string { return string(s) }

// Valid reports whether s is a member of the closed status set.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusIdentityPending, StatusIdentityCompleted,
		StatusCreditPending, StatusCreditCompleted, StatusEligible, StatusNotEligible:
		return true
	}
	return false
}

// EmploymentType classifies the applicant's income source.
type EmploymentType string

const (
	EmploymentSalaried     EmploymentType = "SALARIED"
	EmploymentSelfEmployed EmploymentType = "SELF_EMPLOYED"
)

func (e EmploymentType) String() string { return string(e) }

func (e EmploymentType) Valid() bool {
	return e == EmploymentSalaried || e == EmploymentSelfEmployed
}

// IdentityStatus is the verdict of one identity verification attempt.
type IdentityStatus string

const (
	IdentityPending IdentityStatus = "PENDING"
	IdentityPassed  IdentityStatus = "PASSED"
	IdentityFailed  IdentityStatus = "FAILED"
)

func (s IdentityStatus) String() string { return string(s) }
