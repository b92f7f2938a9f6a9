package model

import "time"

type DeployStatus string

const (
	StatusQueued      DeployStatus = "queued"
	StatusCheckingOut DeployStatus = "checking_out"
	StatusBuilding    DeployStatus = "building"
	StatusPushing     DeployStatus = "pushing"
	StatusDeploying   DeployStatus = "deploying"
	StatusDeployed    DeployStatus = "deployed"
	StatusFailed      DeployStatus = "failed"
)

// Deployment is one pipeline run: checkout → build → push → cutover.
// FromColor/ToColor are filled in once the deploy stage has resolved
// which slot is live and which one it is rolling onto.
type Deployment struct {
	ID         string          `json:"id"`
	App        string          `json:"app"`
	CommitSHA  string          `json:"commitSha"`
	ImageTag   string          `json:"imageTag"`
	FromColor  DeploymentColor `json:"fromColor,omitempty"`
	ToColor    DeploymentColor `json:"toColor,omitempty"`
	Status     DeployStatus    `json:"status"`
	Steps      []StepLog       `json:"steps"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt *time.Time      `json:"finishedAt,omitempty"`
	WorkDir    string          `json:"-"` // temp dir for checkout/build, not persisted
}

type StepLog struct {
	Step       string       `json:"step"`
	Status     DeployStatus `json:"status"`
	DurationMs int64        `json:"durationMs,omitempty"`
	Output     string       `json:"output,omitempty"`
}

type HealthCheck struct {
	ID         string    `json:"id"`
	App        string    `json:"app"`
	Healthy    bool      `json:"healthy"`
	ResponseMs int       `json:"responseMs"`
	CheckedAt  time.Time `json:"checkedAt"`
}
