package user

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"costura-backend/internal/cache"
	"costura-backend/internal/docstore"
	"costura-backend/internal/platform/apierr"
	"costura-backend/internal/platform/auth"
	"costura-backend/internal/platform/ids"
)

type Service struct {
	store *Store
	clock ids.Clock
	ids   ids.IDGen
	log   *zap.Logger
}

func NewService(remote docstore.Store, local *cache.Store, clock ids.Clock, gen ids.IDGen, log *zap.Logger) *Service {
	return &Service{store: NewStore(remote, local), clock: clock, ids: gen, log: log.Named("user")}
}

func validRole(r string) bool     { return r == RoleAdmin || r == RoleWorker }
func validModality(m string) bool { return m == ModalityDailyRate || m == ModalityPieceRate }

// Authenticate: ローカルキャッシュ → リモートの順。リモートで通ればキャッシュする
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return User{}, apierr.ErrInvalid("username and password are required")
	}

	local, err := s.store.local.GetUserByUsername(ctx, username)
	if err == nil && bcrypt.CompareHashAndPassword([]byte(local.PasswordHash), []byte(password)) == nil {
		u := fromCache(local)
		if !u.Active {
			return User{}, apierr.ErrForbidden("account disabled")
		}
		return u, nil
	}
	if err != nil && !errors.Is(err, cache.ErrNotFound) {
		s.log.Warn("local auth lookup failed", zap.String("username", username), zap.Error(err))
	}

	snaps, err := s.store.findRemoteByUsername(ctx, username)
	if err != nil {
		s.log.Warn("remote auth lookup failed", zap.String("username", username), zap.Error(err))
		return User{}, apierr.ErrUnavailable("remote store unreachable", err)
	}
	for _, snap := range snaps {
		u, err := decodeUser(snap)
		if err != nil {
			s.log.Error("invalid user document", zap.String("path", snap.Path), zap.Error(err))
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
			continue
		}
		if !u.Active {
			return User{}, apierr.ErrForbidden("account disabled")
		}
		if err := s.store.local.UpsertUser(ctx, u.toCache(s.clock.Now())); err != nil {
			s.log.Warn("cache user after login failed", zap.String("user_id", u.ID), zap.Error(err))
		}
		return u, nil
	}
	return User{}, apierr.ErrUnauthenticated("invalid username or password")
}

// Login: auth.Handler から呼ばれる
func (s *Service) Login(ctx context.Context, username, password string) (auth.Principal, error) {
	u, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return auth.Principal{}, err
	}
	return auth.Principal{UserID: u.ID, Role: u.Role, Name: u.Name}, nil
}

func (s *Service) Create(ctx context.Context, in CreateUserRequest) (User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)
	if in.Username == "" || in.Name == "" {
		return User{}, apierr.ErrInvalid("username and name are required")
	}
	if len(in.Password) < 6 {
		return User{}, apierr.ErrInvalid("password must be at least 6 characters")
	}
	if !validRole(in.Role) {
		return User{}, apierr.ErrInvalid("role must be ADMIN or WORKER")
	}
	if !validModality(in.Modality) {
		return User{}, apierr.ErrInvalid("modality must be DAILY_RATE or PIECE_RATE")
	}
	if strings.Contains(in.ID, "/") {
		return User{}, apierr.ErrInvalid("id must not contain '/'")
	}

	id := in.ID
	if id == "" {
		var err error
		if id, err = s.ids.New(); err != nil {
			return User{}, apierr.ErrInternal("id generation failed")
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, apierr.ErrInternal("password hashing failed")
	}

	u := User{
		ID:           id,
		Username:     in.Username,
		PasswordHash: string(hash),
		Name:         in.Name,
		Role:         in.Role,
		Modality:     in.Modality,
		Active:       true,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.store.createRemote(ctx, u); err != nil {
		if errors.Is(err, docstore.ErrAlreadyExists) {
			return User{}, apierr.ErrConflict("username or id already exists")
		}
		return User{}, apierr.ErrUnavailable("create user failed", err)
	}
	s.mirror(ctx, u)
	s.log.Info("user created", zap.String("user_id", u.ID), zap.String("role", u.Role))
	return u, nil
}

func (s *Service) Update(ctx context.Context, id string, in UpdateUserRequest) (User, error) {
	fields := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return User{}, apierr.ErrInvalid("name must not be empty")
		}
		fields["basicInfo.name"] = name
	}
	if in.Role != nil {
		if !validRole(*in.Role) {
			return User{}, apierr.ErrInvalid("role must be ADMIN or WORKER")
		}
		fields["basicInfo.role"] = *in.Role
	}
	if in.Modality != nil {
		if !validModality(*in.Modality) {
			return User{}, apierr.ErrInvalid("modality must be DAILY_RATE or PIECE_RATE")
		}
		fields["basicInfo.modality"] = *in.Modality
	}
	if in.Password != nil {
		if len(*in.Password) < 6 {
			return User{}, apierr.ErrInvalid("password must be at least 6 characters")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return User{}, apierr.ErrInternal("password hashing failed")
		}
		fields["basicInfo.passwordHash"] = string(hash)
	}
	if len(fields) == 0 {
		return User{}, apierr.ErrInvalid("nothing to update")
	}
	return s.updateAndReload(ctx, id, fields)
}

// SetActive: 物理削除はしない
func (s *Service) SetActive(ctx context.Context, id string, active bool) (User, error) {
	return s.updateAndReload(ctx, id, map[string]any{"basicInfo.isActive": active})
}

func (s *Service) updateAndReload(ctx context.Context, id string, fields map[string]any) (User, error) {
	if err := s.store.updateRemote(ctx, id, fields); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return User{}, apierr.ErrNotFound("user not found")
		}
		return User{}, apierr.ErrUnavailable("update user failed", err)
	}
	return s.Get(ctx, id)
}

// Get: リモートを正とし、結果をキャッシュへ反映
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	u, err := s.store.getRemote(ctx, id)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return User{}, apierr.ErrNotFound("user not found")
	case errors.Is(err, docstore.ErrInvalidDocument):
		s.log.Error("invalid user document", zap.String("user_id", id), zap.Error(err))
		return User{}, apierr.ErrInternal("user document is malformed")
	case err != nil:
		return User{}, apierr.ErrUnavailable("get user failed", err)
	}
	s.mirror(ctx, u)
	return u, nil
}

// LookupWorker: 代理操作の対象を確かめる。リモートに届かなければキャッシュを見る
func (s *Service) LookupWorker(ctx context.Context, id string) (string, bool, error) {
	u, err := s.Get(ctx, id)
	if err == nil {
		return u.Name, u.Active, nil
	}
	if !apierr.Is(err, apierr.CodeUnavailable) {
		return "", false, err
	}
	row, lerr := s.store.local.GetUser(ctx, id)
	if lerr != nil {
		return "", false, err
	}
	return row.Name, row.Active, nil
}

// ListWorkers: ローカルキャッシュから
func (s *Service) ListWorkers(ctx context.Context, activeOnly bool) ([]User, error) {
	rows, err := s.store.local.ListUsers(ctx, RoleWorker, activeOnly)
	if err != nil {
		return nil, apierr.ErrInternal("list workers failed")
	}
	out := make([]User, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromCache(r))
	}
	return out, nil
}

// Refresh: リモートの users を全件キャッシュへ。壊れた文書は数えて飛ばす
func (s *Service) Refresh(ctx context.Context) (RefreshReport, error) {
	snaps, err := s.store.listRemote(ctx)
	if err != nil {
		return RefreshReport{}, apierr.ErrUnavailable("list users failed", err)
	}
	now := s.clock.Now()
	var rep RefreshReport
	rows := make([]cache.User, 0, len(snaps))
	for _, snap := range snaps {
		u, err := decodeUser(snap)
		if err != nil {
			rep.Invalid++
			s.log.Error("invalid user document", zap.String("path", snap.Path), zap.Error(err))
			continue
		}
		rows = append(rows, u.toCache(now))
	}
	if err := s.store.local.UpsertUsers(ctx, rows); err != nil {
		return RefreshReport{}, apierr.ErrInternal("cache users failed")
	}
	rep.Updated = len(rows)
	s.log.Info("users refreshed", zap.Int("updated", rep.Updated), zap.Int("invalid", rep.Invalid))
	return rep, nil
}

func (s *Service) mirror(ctx context.Context, u User) {
	if err := s.store.local.UpsertUser(ctx, u.toCache(s.clock.Now())); err != nil {
		s.log.Warn("mirror user to cache failed", zap.String("user_id", u.ID), zap.Error(err))
	}
}
