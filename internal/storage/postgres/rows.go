package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/UkralStul/feedback-board-service/internal/domain"

	"gorm.io/datatypes"
)

// submitRow - строка таблицы submits. Вложенные массивы документа лежат в JSON-колонках.
type submitRow struct {
	ID         string         `gorm:"type:varchar(64);primary_key"`
	AccountID  string         `gorm:"type:varchar(64);index;not null"`
	Email      string         `gorm:"type:varchar(320)"`
	Type       string         `gorm:"type:varchar(16);index"`
	Title      string         `gorm:"type:varchar(512);not null"`
	Desc       string         `gorm:"column:description;type:text"`
	Status     string         `gorm:"type:varchar(16);index"`
	Progress   string         `gorm:"type:varchar(16);index"`
	Votes      int            `gorm:"not null;default:0"`
	Voters     datatypes.JSON `gorm:"type:json"`
	Comments   datatypes.JSON `gorm:"type:json"`
	Files      datatypes.JSON `gorm:"type:json"`
	Images     datatypes.JSON `gorm:"type:json"`
	BugFiles   datatypes.JSON `gorm:"type:json"`
	ConsoleLog datatypes.JSON `gorm:"type:json"`
	DeviceInfo string         `gorm:"type:text"`
	Revision   int64          `gorm:"not null;default:1"`
	CreatedAt  time.Time      `gorm:"index"`
}

func (submitRow) TableName() string { return "submits" }

// commentRow - строка таблицы submit_comments.
type commentRow struct {
	ID             string         `gorm:"type:varchar(64);primary_key"`
	AccountID      string         `gorm:"type:varchar(64);index"`
	SubmitID       string         `gorm:"type:varchar(64);index"`
	SubmitTitle    string         `gorm:"type:varchar(512)"`
	Role           string         `gorm:"type:varchar(16)"`
	Email          string         `gorm:"type:varchar(320)"`
	Content        string         `gorm:"type:text"`
	Files          datatypes.JSON `gorm:"type:json"`
	IsThread       bool
	ThreadParentID string         `gorm:"type:varchar(64);index"`
	ThreadReplies  datatypes.JSON `gorm:"type:json"`
	Status         string         `gorm:"type:varchar(16)"`
	Revision       int64          `gorm:"not null;default:1"`
	CreatedAt      time.Time
}

func (commentRow) TableName() string { return "submit_comments" }

func encodeJSON(v any) (datatypes.JSON, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

func decodeJSON(raw datatypes.JSON, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func toSubmitRow(s *domain.Submit) (*submitRow, error) {
	row := &submitRow{
		ID:         s.ID,
		AccountID:  s.AccountID,
		Email:      s.Email,
		Type:       string(s.Type),
		Title:      s.Title,
		Desc:       s.Desc,
		Status:     string(s.Status),
		Progress:   string(s.Progress),
		Votes:      s.Votes,
		DeviceInfo: s.DeviceInfo,
		Revision:   s.Revision,
		CreatedAt:  s.CreatedAt.UTC(),
	}
	var err error
	for _, f := range []struct {
		dst *datatypes.JSON
		src any
	}{
		{&row.Voters, nonNil(s.Voters)},
		{&row.Comments, nonNil(s.Comments)},
		{&row.Files, nonNil(s.Files)},
		{&row.Images, nonNil(s.Images)},
		{&row.BugFiles, nonNil(s.BugFiles)},
		{&row.ConsoleLog, nonNil(s.ConsoleLog)},
	} {
		if *f.dst, err = encodeJSON(f.src); err != nil {
			return nil, fmt.Errorf("encode submit %s: %w", s.ID, err)
		}
	}
	return row, nil
}

func (r *submitRow) toDomain() (*domain.Submit, error) {
	s := &domain.Submit{
		ID:         r.ID,
		AccountID:  r.AccountID,
		Email:      r.Email,
		Type:       domain.SubmitType(r.Type),
		Title:      r.Title,
		Desc:       r.Desc,
		Status:     domain.Status(r.Status),
		Progress:   domain.Progress(r.Progress),
		Votes:      r.Votes,
		DeviceInfo: r.DeviceInfo,
		Revision:   r.Revision,
		CreatedAt:  r.CreatedAt.UTC(),
	}
	for _, f := range []struct {
		src datatypes.JSON
		dst any
	}{
		{r.Voters, &s.Voters},
		{r.Comments, &s.Comments},
		{r.Files, &s.Files},
		{r.Images, &s.Images},
		{r.BugFiles, &s.BugFiles},
		{r.ConsoleLog, &s.ConsoleLog},
	} {
		if err := decodeJSON(f.src, f.dst); err != nil {
			return nil, fmt.Errorf("decode submit %s: %w", r.ID, err)
		}
	}
	return s, nil
}

func toCommentRow(c *domain.Comment) (*commentRow, error) {
	files, err := encodeJSON(nonNil(c.Files))
	if err != nil {
		return nil, fmt.Errorf("encode comment %s: %w", c.ID, err)
	}
	replies, err := encodeJSON(nonNil(c.ThreadReplies))
	if err != nil {
		return nil, fmt.Errorf("encode comment %s: %w", c.ID, err)
	}
	return &commentRow{
		ID:             c.ID,
		AccountID:      c.AccountID,
		SubmitID:       c.SubmitID,
		SubmitTitle:    c.SubmitTitle,
		Role:           string(c.Role),
		Email:          c.Email,
		Content:        c.Content,
		Files:          files,
		IsThread:       c.IsThread,
		ThreadParentID: c.ThreadParentID,
		ThreadReplies:  replies,
		Status:         string(c.Status),
		Revision:       c.Revision,
		CreatedAt:      c.CreatedAt.UTC(),
	}, nil
}

func (r *commentRow) toDomain() (*domain.Comment, error) {
	c := &domain.Comment{
		ID:             r.ID,
		AccountID:      r.AccountID,
		SubmitID:       r.SubmitID,
		SubmitTitle:    r.SubmitTitle,
		Role:           domain.Role(r.Role),
		Email:          r.Email,
		Content:        r.Content,
		IsThread:       r.IsThread,
		ThreadParentID: r.ThreadParentID,
		Status:         domain.Status(r.Status),
		Revision:       r.Revision,
		CreatedAt:      r.CreatedAt.UTC(),
	}
	if err := decodeJSON(r.Files, &c.Files); err != nil {
		return nil, fmt.Errorf("decode comment %s: %w", r.ID, err)
	}
	if err := decodeJSON(r.ThreadReplies, &c.ThreadReplies); err != nil {
		return nil, fmt.Errorf("decode comment %s: %w", r.ID, err)
	}
	return c, nil
}

// nonNil пишет пустой массив вместо null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
