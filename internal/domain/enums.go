package domain

// SubmitType - тип элемента обратной связи.
type SubmitType string

const (
	TypeBug     SubmitType = "bug"
	TypeFeature SubmitType = "feature"
	TypeImprove SubmitType = "improve"
)

func (t SubmitType) Valid() bool {
	switch t {
	case TypeBug, TypeFeature, TypeImprove:
		return true
	}
	return false
}

// Label - подпись типа на доске.
func (t SubmitType) Label() string {
	if t == TypeBug {
		return "Issue"
	}
	return "Suggestion"
}

// Status - видимость элемента или комментария.
type Status string

const (
	StatusPublic  Status = "public"
	StatusPrivate Status = "private"
)

func (s Status) Valid() bool { return s == StatusPublic || s == StatusPrivate }

// Progress - стадия работы над элементом.
type Progress string

const (
	ProgressOpen       Progress = "open"
	ProgressInProgress Progress = "in_progress"
	ProgressDone       Progress = "done"
)

func (p Progress) Valid() bool {
	switch p {
	case ProgressOpen, ProgressInProgress, ProgressDone:
		return true
	}
	return false
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type UploadStatus string

const (
	UploadPending   UploadStatus = "pending"
	UploadPublished UploadStatus = "published"
)

// ParentType - к чему относится вложение.
type ParentType string

const (
	ParentTopic   ParentType = "topic"
	ParentComment ParentType = "comment"
)

func (p ParentType) Valid() bool { return p == ParentTopic || p == ParentComment }
