package core

import (
	"context"
	"strings"
	"time"

	"organcore/internal/cache"
	"organcore/internal/infra/persistence/relational"
	"organcore/pkg/domain"
)

// Roles manages the positions memberships refer to.
type Roles struct {
	*env
}

// Create inserts a role.
func (r *Roles) Create(ctx context.Context, name string) (role domain.Role, err error) {
	defer r.observe(ctx, "role.create", time.Now(), &err)
	role = domain.Role{Name: strings.TrimSpace(name)}
	if err = r.check(role); err != nil {
		return domain.Role{}, err
	}
	role.ID, err = r.db.Insert(ctx, `INSERT INTO role (name) VALUES (?) RETURNING rid`, role.Name)
	if err != nil {
		return domain.Role{}, err
	}
	r.cache.Put(cache.TierRole, role.ID, role)
	return role, nil
}

// Get returns the role with id.
func (r *Roles) Get(ctx context.Context, id int64) (role domain.Role, found bool, err error) {
	if role, ok := cache.Lookup[domain.Role](r.cache, cache.TierRole, id); ok {
		return role, true, nil
	}
	defer r.observe(ctx, "role.get", time.Now(), &err)
	role.ID = id
	found, err = r.db.Get(ctx, `SELECT name FROM role WHERE rid = ?`, []any{id}, &role.Name)
	if err != nil || !found {
		return domain.Role{}, false, err
	}
	r.cache.Put(cache.TierRole, id, role)
	return role, true, nil
}

// Find returns roles whose name contains q, case-insensitively.
func (r *Roles) Find(ctx context.Context, q string) (roles []domain.Role, err error) {
	defer r.observe(ctx, "role.find", time.Now(), &err)
	err = r.db.Select(ctx, `SELECT rid, name FROM role WHERE LOWER(name) LIKE ? ESCAPE '\' ORDER BY rid`,
		[]any{relational.Like(q)}, func(s relational.Scanner) error {
			var role domain.Role
			if err := s.Scan(&role.ID, &role.Name); err != nil {
				return err
			}
			roles = append(roles, role)
			return nil
		})
	return roles, err
}

// Rename changes the role name.
func (r *Roles) Rename(ctx context.Context, id int64, name string) (role domain.Role, err error) {
	defer r.observe(ctx, "role.rename", time.Now(), &err)
	role = domain.Role{ID: id, Name: strings.TrimSpace(name)}
	if err = r.check(role); err != nil {
		return domain.Role{}, err
	}
	n, err := r.db.Exec(ctx, `UPDATE role SET name = ? WHERE rid = ?`, role.Name, id)
	if err != nil {
		return domain.Role{}, err
	}
	if n == 0 {
		r.cache.Delete(cache.TierRole, id)
		return domain.Role{}, domain.NotFoundError{Kind: domain.KindRole, ID: id}
	}
	r.cache.Put(cache.TierRole, id, role)
	return role, nil
}

// Remove deletes the role and every membership that holds it.
func (r *Roles) Remove(ctx context.Context, id int64) (removed bool, err error) {
	defer r.observe(ctx, "role.remove", time.Now(), &err)
	n, err := r.db.Exec(ctx, `DELETE FROM role WHERE rid = ?`, id)
	if err != nil {
		return false, err
	}
	r.cache.Delete(cache.TierRole, id)
	if n > 0 {
		r.cache.DropAttrSet(cache.AttrOrganMemberships)
		r.cache.DropAttrSet(cache.AttrOrgMemberships)
		r.cache.DropAttrSet(cache.AttrMembershipSources)
	}
	return n > 0, nil
}
