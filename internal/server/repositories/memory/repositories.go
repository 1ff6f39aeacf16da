package memory

import (
	"context"
	"sort"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type usersRepo struct{ v view }

func (r usersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	err := r.v.do(func(st *state) error {
		if _, ok := st.emails[u.Email]; ok {
			return common.ErrorConflict
		}
		if _, ok := st.users[u.ID]; ok {
			return common.ErrorConflict
		}
		stored := *u
		stored.PasswordHash = append([]byte(nil), u.PasswordHash...)
		st.users[u.ID] = stored
		st.emails[u.Email] = u.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r usersRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	var out *models.User
	err := r.v.do(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return common.ErrorNotFound
		}
		out = copyUser(u)
		return nil
	})
	return out, err
}

func (r usersRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	var out *models.User
	err := r.v.do(func(st *state) error {
		id, ok := st.emails[email]
		if !ok {
			return common.ErrorNotFound
		}
		out = copyUser(st.users[id])
		return nil
	})
	return out, err
}

// GetForUpdate needs no row lock: transactions already run one at a time.
func (r usersRepo) GetForUpdate(ctx context.Context, id string) (*models.User, error) {
	return r.GetByID(ctx, id)
}

func (r usersRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(u *models.User) {
		t := at
		u.LastLoginAt = &t
		u.UpdatedAt = at
	})
}

func (r usersRepo) UpdatePassword(_ context.Context, id string, hash []byte, at time.Time) error {
	return r.update(id, func(u *models.User) {
		u.PasswordHash = append([]byte(nil), hash...)
		u.UpdatedAt = at
	})
}

func (r usersRepo) SetEmailVerified(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(u *models.User) {
		u.EmailVerified = true
		u.UpdatedAt = at
	})
}

func (r usersRepo) SetActive(_ context.Context, id string, active bool, at time.Time) error {
	return r.update(id, func(u *models.User) {
		u.Active = active
		u.UpdatedAt = at
	})
}

func (r usersRepo) update(id string, fn func(u *models.User)) error {
	return r.v.do(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return common.ErrorNotFound
		}
		fn(&u)
		st.users[id] = u
		return nil
	})
}

func copyUser(u models.User) *models.User {
	u.PasswordHash = append([]byte(nil), u.PasswordHash...)
	return &u
}

type sessionsRepo struct{ v view }

func (r sessionsRepo) Create(_ context.Context, s *models.Session) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.users[s.UserID]; !ok {
			return common.ErrorNotFound
		}
		if _, ok := st.sessions[s.ID]; ok {
			return common.ErrorConflict
		}
		st.sessions[s.ID] = *s
		return nil
	})
}

func (r sessionsRepo) Get(_ context.Context, id string) (*models.Session, error) {
	var out *models.Session
	err := r.v.do(func(st *state) error {
		s, ok := st.sessions[id]
		if !ok {
			return common.ErrorNotFound
		}
		out = &s
		return nil
	})
	return out, err
}

// GetForUpdate needs no row lock: transactions already run one at a time.
func (r sessionsRepo) GetForUpdate(ctx context.Context, id string) (*models.Session, error) {
	return r.Get(ctx, id)
}

func (r sessionsRepo) Touch(_ context.Context, id string, at time.Time) error {
	return r.v.do(func(st *state) error {
		s, ok := st.sessions[id]
		if !ok {
			return common.ErrorNotFound
		}
		s.LastActivityAt = at
		st.sessions[id] = s
		return nil
	})
}

func (r sessionsRepo) Invalidate(_ context.Context, id string) (bool, error) {
	var changed bool
	err := r.v.do(func(st *state) error {
		s, ok := st.sessions[id]
		if !ok || !s.IsValid {
			return nil
		}
		s.IsValid = false
		st.sessions[id] = s
		changed = true
		return nil
	})
	return changed, err
}

func (r sessionsRepo) ListValidIDs(_ context.Context, userID string) ([]string, error) {
	var valid []models.Session
	_ = r.v.do(func(st *state) error {
		for _, s := range st.sessions {
			if s.UserID == userID && s.IsValid {
				valid = append(valid, s)
			}
		}
		return nil
	})
	sort.Slice(valid, func(i, j int) bool { return valid[i].CreatedAt.Before(valid[j].CreatedAt) })

	ids := make([]string, 0, len(valid))
	for _, s := range valid {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

type refreshTokensRepo struct{ v view }

func (r refreshTokensRepo) Create(_ context.Context, t *models.RefreshToken) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.refreshTokens[t.TokenHash]; ok {
			return common.ErrorConflict
		}
		st.refreshTokens[t.TokenHash] = *t
		return nil
	})
}

func (r refreshTokensRepo) GetByHash(_ context.Context, tokenHash string) (*models.RefreshToken, error) {
	var out *models.RefreshToken
	err := r.v.do(func(st *state) error {
		t, ok := st.refreshTokens[tokenHash]
		if !ok {
			return common.ErrorNotFound
		}
		out = &t
		return nil
	})
	return out, err
}

func (r refreshTokensRepo) Revoke(_ context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error) {
	var out *models.RefreshToken
	err := r.v.do(func(st *state) error {
		t, ok := st.refreshTokens[tokenHash]
		if !ok || t.Revoked || !now.Before(t.ExpiresAt) {
			return common.ErrorNotFound
		}
		t.Revoked = true
		st.refreshTokens[tokenHash] = t
		out = &t
		return nil
	})
	return out, err
}

func (r refreshTokensRepo) RevokeAllForSession(_ context.Context, sessionID string) (int64, error) {
	var n int64
	err := r.v.do(func(st *state) error {
		for h, t := range st.refreshTokens {
			if t.SessionID == sessionID && !t.Revoked {
				t.Revoked = true
				st.refreshTokens[h] = t
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r refreshTokensRepo) CountActive(_ context.Context, sessionID string, now time.Time) (int, error) {
	var n int
	err := r.v.do(func(st *state) error {
		for _, t := range st.refreshTokens {
			if t.SessionID == sessionID && !t.Revoked && now.Before(t.ExpiresAt) {
				n++
			}
		}
		return nil
	})
	return n, err
}

type confirmationsRepo struct{ v view }

func (r confirmationsRepo) Create(_ context.Context, c *models.EmailConfirmation) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.confirmations[c.TokenHash]; ok {
			return common.ErrorConflict
		}
		st.confirmations[c.TokenHash] = *c
		return nil
	})
}

func (r confirmationsRepo) FindOutstanding(_ context.Context, userID string, now time.Time) (*models.EmailConfirmation, error) {
	var out *models.EmailConfirmation
	err := r.v.do(func(st *state) error {
		for _, c := range st.confirmations {
			if c.UserID != userID || !c.Outstanding(now) {
				continue
			}
			if out == nil || c.CreatedAt.After(out.CreatedAt) {
				c := c
				out = &c
			}
		}
		if out == nil {
			return common.ErrorNotFound
		}
		return nil
	})
	return out, err
}

func (r confirmationsRepo) Confirm(_ context.Context, tokenHash string, now time.Time) (*models.EmailConfirmation, error) {
	var out *models.EmailConfirmation
	err := r.v.do(func(st *state) error {
		c, ok := st.confirmations[tokenHash]
		if !ok || !c.Outstanding(now) {
			return common.ErrorNotFound
		}
		at := now
		c.ConfirmedAt = &at
		st.confirmations[tokenHash] = c
		out = &c
		return nil
	})
	return out, err
}

type resetsRepo struct{ v view }

func (r resetsRepo) Create(_ context.Context, pr *models.PasswordReset) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.resets[pr.TokenHash]; ok {
			return common.ErrorConflict
		}
		st.resets[pr.TokenHash] = *pr
		return nil
	})
}

func (r resetsRepo) Consume(_ context.Context, tokenHash string, now time.Time) (*models.PasswordReset, error) {
	var out *models.PasswordReset
	err := r.v.do(func(st *state) error {
		pr, ok := st.resets[tokenHash]
		if !ok || !pr.Usable(now) {
			return common.ErrorNotFound
		}
		at := now
		pr.UsedAt = &at
		st.resets[tokenHash] = pr
		out = &pr
		return nil
	})
	return out, err
}
