// Constants backing the string and enum columns of the tables.
// The zero value is kept out of the role enum so that gin's
// `binding:"required"` can tell "missing" from a real value.
package model

// User role in platform
type Role uint8

const (
	RoleUser Role = iota + 1
	RoleAdmin
)

// ApplicationStatus is the lifecycle state of an application.
type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "pending"
	ApplicationStatusAccepted ApplicationStatus = "accepted"
	ApplicationStatusRejected ApplicationStatus = "rejected"
)

// IsDecision reports whether s is a status an owner can move an application to.
func (s ApplicationStatus) IsDecision() bool {
	return s == ApplicationStatusAccepted || s == ApplicationStatusRejected
}

// ProjectStage of a posted project
type ProjectStage string

const (
	ProjectStageIdea      ProjectStage = "idea"
	ProjectStagePrototype ProjectStage = "prototype"
	ProjectStageMVP       ProjectStage = "mvp"
	ProjectStageLaunched  ProjectStage = "launched"
)

func (s ProjectStage) Valid() bool {
	switch s {
	case ProjectStageIdea, ProjectStagePrototype, ProjectStageMVP, ProjectStageLaunched:
		return true
	default:
		return false
	}
}

// OutboxKind names the side effect an outbox item performs.
type OutboxKind string

const (
	OutboxKindChatBootstrap       OutboxKind = "chat.bootstrap"
	OutboxKindApplicantDecision   OutboxKind = "email.applicant_decision"
	OutboxKindOwnerNewApplication OutboxKind = "email.owner_new_application"
)

func (k OutboxKind) String() string {
	return string(k)
}

// OutboxStatus of a queued side effect
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending" // waiting for (another) attempt
	OutboxStatusDone    OutboxStatus = "done"    // handler succeeded
	OutboxStatusDead    OutboxStatus = "dead"    // gave up after max attempts
)
