package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/UkralStul/feedback-board-service/internal/domain"
	"github.com/UkralStul/feedback-board-service/internal/logging"
	"github.com/UkralStul/feedback-board-service/internal/storage"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Store реализует интерфейс Storage с использованием PostgreSQL.
type Store struct {
	db *gorm.DB
}

// New создает новый экземпляр хранилища PostgreSQL.
func New(dsn string) (*Store, error) {
	return NewWithDialector(postgres.Open(dsn))
}

// NewWithDialector открывает хранилище поверх любого диалекта gorm (sqlite в тестах).
func NewWithDialector(dialector gorm.Dialector) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logging.NewGormAdapter(logging.Module("storage"), 200*time.Millisecond),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Выполняем миграцию схемы
	if err := db.AutoMigrate(
		&domain.Account{},
		&submitRow{},
		&commentRow{},
		&domain.Voter{},
		&domain.Profile{},
		&domain.Upload{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// notFound переводит ошибку gorm в storage.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return err
}

// deleted проверяет, что удаление затронуло строку.
func deleted(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// === Account Methods ===

func (s *Store) GetAccountBySlug(ctx context.Context, slug string) (*domain.Account, error) {
	var acc domain.Account
	if err := s.db.WithContext(ctx).First(&acc, "slug = ?", slug).Error; err != nil {
		return nil, notFound(err)
	}
	return &acc, nil
}

func (s *Store) GetAccountByID(ctx context.Context, id string) (*domain.Account, error) {
	var acc domain.Account
	if err := s.db.WithContext(ctx).First(&acc, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &acc, nil
}

func (s *Store) GetAccountByAdminEmail(ctx context.Context, email string) (*domain.Account, error) {
	var acc domain.Account
	if err := s.db.WithContext(ctx).First(&acc, "admin_email = ?", email).Error; err != nil {
		return nil, notFound(err)
	}
	return &acc, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	var accounts []*domain.Account
	err := s.db.WithContext(ctx).Order("id ASC").Find(&accounts).Error
	return accounts, err
}

func (s *Store) SaveAccount(ctx context.Context, account *domain.Account) error {
	return s.db.WithContext(ctx).Save(account).Error
}

// === Submit Methods ===

func (s *Store) CreateSubmit(ctx context.Context, submit *domain.Submit) error {
	if submit.ID == "" {
		submit.ID = domain.NewID()
	}
	if submit.CreatedAt.IsZero() {
		submit.CreatedAt = time.Now().UTC()
	}
	submit.Revision = 1
	row, err := toSubmitRow(submit)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(row).Error
}

func (s *Store) GetSubmit(ctx context.Context, id string) (*domain.Submit, error) {
	var row submitRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toDomain()
}

func (s *Store) ListSubmits(ctx context.Context, q storage.SubmitQuery) ([]*domain.Submit, error) {
	query := s.db.WithContext(ctx).Model(&submitRow{})
	if q.AccountID != "" {
		query = query.Where("account_id = ?", q.AccountID)
	}
	if q.Status != "" {
		query = query.Where("status = ?", string(q.Status))
	}
	if q.Progress != "" {
		query = query.Where("progress = ?", string(q.Progress))
	}
	if len(q.Types) > 0 {
		types := make([]string, len(q.Types))
		for i, t := range q.Types {
			types[i] = string(t)
		}
		query = query.Where("type IN ?", types)
	}
	if !q.CreatedSince.IsZero() {
		query = query.Where("created_at >= ?", q.CreatedSince.UTC())
	}
	if q.Sort == storage.SortVotes {
		query = query.Order("votes DESC")
	}
	query = query.Order("created_at DESC")
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var rows []submitRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Submit, 0, len(rows))
	for i := range rows {
		sub, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}

func (s *Store) SaveSubmit(ctx context.Context, submit *domain.Submit) error {
	submit.Revision++
	row, err := toSubmitRow(submit)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&submitRow{}).Where("id = ?", submit.ID).Select("*").Updates(row)
	return deleted(res)
}

func (s *Store) MutateSubmit(ctx context.Context, id string, fn storage.SubmitMutation) (*domain.Submit, error) {
	for attempt := 0; attempt < storage.MaxMutateAttempts; attempt++ {
		cur, err := s.GetSubmit(ctx, id)
		if err != nil {
			return nil, err
		}
		seen := cur.Revision
		if err := fn(cur); err != nil {
			return nil, err
		}
		cur.ID = id
		cur.Revision = seen + 1
		row, err := toSubmitRow(cur)
		if err != nil {
			return nil, err
		}
		// Запись проходит, только если документ не менялся после чтения
		res := s.db.WithContext(ctx).Model(&submitRow{}).
			Where("id = ? AND revision = ?", id, seen).
			Select("*").Updates(row)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			return cur, nil
		}
	}
	return nil, fmt.Errorf("mutate submit %s: %w", id, storage.ErrConflict)
}

func (s *Store) DeleteSubmit(ctx context.Context, id string) error {
	return deleted(s.db.WithContext(ctx).Delete(&submitRow{}, "id = ?", id))
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) error {
	if comment.ID == "" {
		comment.ID = domain.NewID()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	comment.Revision = 1
	row, err := toCommentRow(comment)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(row).Error
}

func (s *Store) GetComment(ctx context.Context, id string) (*domain.Comment, error) {
	var row commentRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toDomain()
}

// === Dataloader Method ===

func (s *Store) GetCommentsByIDs(ctx context.Context, ids []string) (map[string]*domain.Comment, error) {
	result := make(map[string]*domain.Comment, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var rows []commentRow
	// Загружаем все комментарии одним запросом
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		c, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		result[c.ID] = c
	}
	return result, nil
}

func (s *Store) MutateComment(ctx context.Context, id string, fn storage.CommentMutation) (*domain.Comment, error) {
	for attempt := 0; attempt < storage.MaxMutateAttempts; attempt++ {
		cur, err := s.GetComment(ctx, id)
		if err != nil {
			return nil, err
		}
		seen := cur.Revision
		if err := fn(cur); err != nil {
			return nil, err
		}
		cur.ID = id
		cur.Revision = seen + 1
		row, err := toCommentRow(cur)
		if err != nil {
			return nil, err
		}
		res := s.db.WithContext(ctx).Model(&commentRow{}).
			Where("id = ? AND revision = ?", id, seen).
			Select("*").Updates(row)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			return cur, nil
		}
	}
	return nil, fmt.Errorf("mutate comment %s: %w", id, storage.ErrConflict)
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	return deleted(s.db.WithContext(ctx).Delete(&commentRow{}, "id = ?", id))
}

// === Vote Methods ===

func (s *Store) CreateVote(ctx context.Context, vote *domain.Voter) error {
	if vote.ID == "" {
		vote.ID = domain.NewID()
	}
	return s.db.WithContext(ctx).Create(vote).Error
}

func (s *Store) ListVotesBySubmit(ctx context.Context, submitID string) ([]*domain.Voter, error) {
	var votes []*domain.Voter
	err := s.db.WithContext(ctx).Where("submit_id = ?", submitID).Order("created_at ASC").Find(&votes).Error
	return votes, err
}

func (s *Store) DeleteVote(ctx context.Context, id string) error {
	return deleted(s.db.WithContext(ctx).Delete(&domain.Voter{}, "id = ?", id))
}

// === Profile Methods ===

func (s *Store) GetProfileByEmail(ctx context.Context, accountID, email string) (*domain.Profile, error) {
	var p domain.Profile
	err := s.db.WithContext(ctx).First(&p, "account_id = ? AND email = ?", accountID, email).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Store) CreateProfile(ctx context.Context, profile *domain.Profile) error {
	if profile.ID == "" {
		profile.ID = domain.NewID()
	}
	return s.db.WithContext(ctx).Create(profile).Error
}

func (s *Store) ListProfiles(ctx context.Context, accountID string) ([]*domain.Profile, error) {
	var profiles []*domain.Profile
	err := s.db.WithContext(ctx).Where("account_id = ?", accountID).Order("created_at ASC").Find(&profiles).Error
	return profiles, err
}

// === Upload Methods ===

func (s *Store) SaveUpload(ctx context.Context, upload *domain.Upload) error {
	return s.db.WithContext(ctx).Save(upload).Error
}

func (s *Store) GetUpload(ctx context.Context, id string) (*domain.Upload, error) {
	var u domain.Upload
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Store) DeleteUpload(ctx context.Context, id string) error {
	return deleted(s.db.WithContext(ctx).Delete(&domain.Upload{}, "id = ?", id))
}
