package inmemory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/UkralStul/feedback-board-service/internal/domain"
	"github.com/UkralStul/feedback-board-service/internal/storage"
)

// Store реализует интерфейс Storage в памяти.
// Документы хранятся копиями, чтобы вызывающий код не мог изменить их в обход записи.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account // map[accountID]
	submits  map[string]*domain.Submit
	comments map[string]*domain.Comment
	votes    map[string]*domain.Voter
	profiles map[string]*domain.Profile
	uploads  map[string]*domain.Upload
}

// New создает новый экземпляр in-memory хранилища.
func New() *Store {
	return &Store{
		accounts: make(map[string]*domain.Account),
		submits:  make(map[string]*domain.Submit),
		comments: make(map[string]*domain.Comment),
		votes:    make(map[string]*domain.Voter),
		profiles: make(map[string]*domain.Profile),
		uploads:  make(map[string]*domain.Upload),
	}
}

// clone делает глубокую копию документа через JSON, как это сделал бы
// настоящий документный клиент.
func clone[T any](v *T) *T {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("inmemory: marshal %T: %v", v, err))
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		panic(fmt.Sprintf("inmemory: unmarshal %T: %v", v, err))
	}
	return out
}

// === Account Methods ===

func (s *Store) GetAccountBySlug(ctx context.Context, slug string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.Slug == slug {
			return clone(a), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) GetAccountByID(ctx context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return clone(a), nil
}

func (s *Store) GetAccountByAdminEmail(ctx context.Context, email string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.AdminEmail == email {
			return clone(a), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, clone(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveAccount(ctx context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account.UpdatedAt = time.Now().UTC()
	s.accounts[account.ID] = clone(account)
	return nil
}

// === Submit Methods ===

func (s *Store) CreateSubmit(ctx context.Context, submit *domain.Submit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if submit.ID == "" {
		submit.ID = domain.NewID()
	}
	if submit.CreatedAt.IsZero() {
		submit.CreatedAt = time.Now().UTC()
	}
	submit.Revision = 1
	s.submits[submit.ID] = clone(submit)
	return nil
}

func (s *Store) GetSubmit(ctx context.Context, id string) (*domain.Submit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submits[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return clone(sub), nil
}

func (s *Store) ListSubmits(ctx context.Context, q storage.SubmitQuery) ([]*domain.Submit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Submit, 0)
	for _, sub := range s.submits {
		if q.Matches(sub) {
			out = append(out, clone(sub))
		}
	}

	// Сортируем по убыванию, при равенстве - по времени создания
	sort.SliceStable(out, func(i, j int) bool {
		if q.Sort == storage.SortVotes && out[i].Votes != out[j].Votes {
			return out[i].Votes > out[j].Votes
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) SaveSubmit(ctx context.Context, submit *domain.Submit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.submits[submit.ID]; !ok {
		return storage.ErrNotFound
	}
	submit.Revision++
	s.submits[submit.ID] = clone(submit)
	return nil
}

func (s *Store) MutateSubmit(ctx context.Context, id string, fn storage.SubmitMutation) (*domain.Submit, error) {
	// Под одной блокировкой чтение и запись атомарны, конфликт невозможен
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.submits[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	next := clone(cur)
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Revision = cur.Revision + 1
	s.submits[id] = clone(next)
	return next, nil
}

func (s *Store) DeleteSubmit(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.submits[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.submits, id)
	return nil
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if comment.ID == "" {
		comment.ID = domain.NewID()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	comment.Revision = 1
	s.comments[comment.ID] = clone(comment)
	return nil
}

func (s *Store) GetComment(ctx context.Context, id string) (*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return clone(c), nil
}

func (s *Store) GetCommentsByIDs(ctx context.Context, ids []string) (map[string]*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make(map[string]*domain.Comment, len(ids))
	for _, id := range ids {
		if c, ok := s.comments[id]; ok {
			results[id] = clone(c)
		}
	}
	return results, nil
}

func (s *Store) MutateComment(ctx context.Context, id string, fn storage.CommentMutation) (*domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.comments[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	next := clone(cur)
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Revision = cur.Revision + 1
	s.comments[id] = clone(next)
	return next, nil
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.comments, id)
	return nil
}

// === Vote Methods ===

func (s *Store) CreateVote(ctx context.Context, vote *domain.Voter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if vote.ID == "" {
		vote.ID = domain.NewID()
	}
	if vote.CreatedAt.IsZero() {
		vote.CreatedAt = time.Now().UTC()
	}
	s.votes[vote.ID] = clone(vote)
	return nil
}

func (s *Store) ListVotesBySubmit(ctx context.Context, submitID string) ([]*domain.Voter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Voter, 0)
	for _, v := range s.votes {
		if v.SubmitID == submitID {
			out = append(out, clone(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteVote(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.votes[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.votes, id)
	return nil
}

// === Profile Methods ===

func (s *Store) GetProfileByEmail(ctx context.Context, accountID, email string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if p.AccountID == accountID && p.Email == email {
			return clone(p), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) CreateProfile(ctx context.Context, profile *domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if profile.ID == "" {
		profile.ID = domain.NewID()
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now().UTC()
	}
	s.profiles[profile.ID] = clone(profile)
	return nil
}

func (s *Store) ListProfiles(ctx context.Context, accountID string) ([]*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Profile, 0)
	for _, p := range s.profiles {
		if p.AccountID == accountID {
			out = append(out, clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// === Upload Methods ===

func (s *Store) SaveUpload(ctx context.Context, upload *domain.Upload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if upload.CreatedAt.IsZero() {
		upload.CreatedAt = time.Now().UTC()
	}
	s.uploads[upload.ID] = clone(upload)
	return nil
}

func (s *Store) GetUpload(ctx context.Context, id string) (*domain.Upload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.uploads[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return clone(u), nil
}

func (s *Store) DeleteUpload(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.uploads[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.uploads, id)
	return nil
}
