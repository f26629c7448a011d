package domain

import "time"

// Account представляет тенанта: владельца доски и её настройки.
// Slug совпадает с поддоменом доски (acme.ssimple.co -> acme).
type Account struct {
	ID           string    `json:"account_id" gorm:"type:varchar(64);primary_key"`
	Slug         string    `json:"brand_url" gorm:"type:varchar(128);uniqueIndex;not null"`
	AdminEmail   string    `json:"admin_email" gorm:"type:varchar(320);index"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255)"`
	BrandName    string    `json:"brand_name" gorm:"type:varchar(255)"`
	PrimaryColor string    `json:"primary_color" gorm:"type:varchar(32)"`
	HomeURL      string    `json:"home_url" gorm:"type:varchar(2048)"`
	BoardTitle   string    `json:"board_title" gorm:"type:varchar(255)"`
	Plan         string    `json:"type" gorm:"type:varchar(32);default:free"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Submit - элемент обратной связи (баг, фича, улучшение).
// Голоса и ссылки на комментарии хранятся внутри документа, любая запись
// перезаписывает документ целиком. Revision увеличивается при каждой записи.
type Submit struct {
	ID         string       `json:"id"`
	AccountID  string       `json:"account_id"`
	Email      string       `json:"email"`
	Type       SubmitType   `json:"type"`
	Title      string       `json:"title"`
	Desc       string       `json:"desc"`
	Status     Status       `json:"status"`
	Progress   Progress     `json:"progress"`
	Votes      int          `json:"votes"`
	Voters     []Voter      `json:"voters"`
	Comments   []CommentRef `json:"comments"`
	Files      []Upload     `json:"files"`
	Images     []Upload     `json:"images,omitempty"`
	BugFiles   []Upload     `json:"bug_files,omitempty"`
	ConsoleLog []ConsoleLog `json:"console_log,omitempty"`
	DeviceInfo string       `json:"device_info,omitempty"`
	Revision   int64        `json:"revision"`
	CreatedAt  time.Time    `json:"created_at"`
}

// HasVoted сообщает, голосовал ли уже пользователь с этим email.
func (s *Submit) HasVoted(email string) bool {
	for _, v := range s.Voters {
		if v.Email == email {
			return true
		}
	}
	return false
}

// CountedVotes - количество голосов, которое должно быть в Votes.
func (s *Submit) CountedVotes() int {
	n := 0
	for _, v := range s.Voters {
		if v.Impact.Counts() {
			n++
		}
	}
	return n
}

// AllFiles возвращает все вложения, принадлежащие самому элементу.
func (s *Submit) AllFiles() []Upload {
	all := make([]Upload, 0, len(s.Files)+len(s.Images)+len(s.BugFiles))
	all = append(all, s.Files...)
	all = append(all, s.Images...)
	return append(all, s.BugFiles...)
}

// CommentRef - ссылка на документ комментария по ID.
type CommentRef struct {
	ID string `json:"id"`
}

// ConsoleLog - снимок строки консоли, присланный виджетом вместе с багом.
type ConsoleLog struct {
	Type      string `json:"type"`
	TimeStamp string `json:"time_stamp"`
	Value     string `json:"value"`
}

// Comment представляет комментарий к элементу обратной связи.
// Ответ в треде - отдельный документ с ThreadParentID, корень треда хранит
// список ответов в ThreadReplies.
type Comment struct {
	ID             string       `json:"id"`
	AccountID      string       `json:"account_id"`
	SubmitID       string       `json:"submit_id"`
	SubmitTitle    string       `json:"submit_title"`
	Role           Role         `json:"role"`
	Email          string       `json:"email"`
	Content        string       `json:"content"`
	Files          []Upload     `json:"files"`
	IsThread       bool         `json:"is_thread"`
	ThreadParentID string       `json:"thread_parent_id,omitempty"`
	ThreadReplies  []CommentRef `json:"thread_replies"`
	Status         Status       `json:"status"`
	Revision       int64        `json:"revision"`
	CreatedAt      time.Time    `json:"created_at"`
}

// MaxThreadDepth - максимальная вложенность ответов.
const MaxThreadDepth = 1

// Depth - глубина комментария: 0 для корневого, 1 для ответа.
func (c *Comment) Depth() int {
	if c.ThreadParentID != "" {
		return 1
	}
	return 0
}

// Repliable сообщает, можно ли ответить на комментарий.
func (c *Comment) Repliable() bool {
	return c.Role != RoleAdmin && c.Depth() < MaxThreadDepth
}

// Voter - голос пользователя. Хранится и внутри Submit, и отдельным документом.
type Voter struct {
	ID              string    `json:"id" gorm:"type:varchar(64);primary_key"`
	AccountID       string    `json:"account_id" gorm:"type:varchar(64);index"`
	SubmitID        string    `json:"submit_id" gorm:"type:varchar(64);index"`
	SubmitTitle     string    `json:"submit_title" gorm:"type:varchar(255)"`
	Email           string    `json:"email" gorm:"type:varchar(320)"`
	Impact          Impact    `json:"impact" gorm:"type:smallint;not null"`
	FeedbackContent string    `json:"feedback_content,omitempty" gorm:"type:text"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName - имя коллекции голосов.
func (Voter) TableName() string { return "submit_votes" }

// Upload - метаданные загруженного файла. Файл виден только в статусе published.
type Upload struct {
	ID          string       `json:"id" gorm:"type:varchar(64);primary_key"`
	AccountID   string       `json:"account_id" gorm:"type:varchar(64);index"`
	Type        string       `json:"type" gorm:"type:varchar(32)"`
	ParentType  ParentType   `json:"parent_type" gorm:"type:varchar(16)"`
	ParentID    string       `json:"parent_id" gorm:"type:varchar(64);index"`
	Status      UploadStatus `json:"status" gorm:"type:varchar(16);not null"`
	DownloadURL string       `json:"download_url" gorm:"type:varchar(2048)"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Profile - адресат еженедельного дайджеста, один на email в рамках тенанта.
type Profile struct {
	ID        string    `json:"id" gorm:"type:varchar(64);primary_key"`
	AccountID string    `json:"account_id" gorm:"type:varchar(64);uniqueIndex:idx_profile_email"`
	Email     string    `json:"email" gorm:"type:varchar(320);uniqueIndex:idx_profile_email"`
	Type      string    `json:"type" gorm:"type:varchar(32)"`
	CreatedAt time.Time `json:"created_at"`
}

// PublishedOnly отбрасывает вложения, которые ещё не опубликованы.
func PublishedOnly(files []Upload) []Upload {
	out := make([]Upload, 0, len(files))
	for _, f := range files {
		if f.Status == UploadPublished {
			out = append(out, f)
		}
	}
	return out
}
