package service

import (
	"errors"
	"sort"
	"strings"

	"arichat/internal/entity"
	"arichat/internal/nlog"
	"arichat/internal/store"
)

// ErrUserNotFound is returned when no account matches the searched email,
// or when the only match is the caller themselves.
var ErrUserNotFound = errors.New("No user was found with that email")

// DirectoryService finds contact candidates by exact email match. Lookups
// hit the secondary index kept by registration first; records predating
// the index are still reachable through a full scan of the user set,
// which stays O(users) and is only acceptable while the directory is
// small.
type DirectoryService struct {
	st     *store.Store
	logger nlog.Logger
}

func NewDirectoryService(st *store.Store, logger nlog.Logger) *DirectoryService {
	return &DirectoryService{st: st, logger: logger}
}

// NormalizeEmail canonicalizes an address for comparison and indexing.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailIndexKey turns a normalized address into an index key. Dots are
// not legal in store keys, commas never appear in an address.
func EmailIndexKey(normalized string) string {
	return strings.ReplaceAll(normalized, ".", ",")
}

// FindByEmail resolves a user by exact, case-insensitive email match,
// excluding the caller.
func (d *DirectoryService) FindByEmail(query, excludingUID string) (*entity.User, error) {
	norm := NormalizeEmail(query)
	if norm == "" {
		return nil, ErrUserNotFound
	}

	if v, err := d.st.Get(emailIndexPath(EmailIndexKey(norm))); err == nil {
		if uid := asString(v); uid != "" {
			if uid == excludingUID {
				return nil, ErrUserNotFound
			}
			if u := d.load(uid); u != nil {
				return u, nil
			}
		}
	}

	// pre-index records: scan the full user set
	v, err := d.st.Get(usersRoot())
	if err != nil {
		return nil, err
	}
	users := asMap(v)
	uids := make([]string, 0, len(users))
	for uid := range users {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	for _, uid := range uids {
		if uid == excludingUID {
			continue
		}
		u := decodeUser(uid, users[uid])
		if u != nil && NormalizeEmail(u.Email) == norm {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

// Get loads a profile by uid.
func (d *DirectoryService) Get(uid string) (*entity.User, error) {
	v, err := d.st.Get(userPath(uid))
	if err != nil {
		return nil, err
	}
	u := decodeUser(uid, v)
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (d *DirectoryService) load(uid string) *entity.User {
	v, err := d.st.Get(userPath(uid))
	if err != nil {
		d.logger.Logf("Profile read for %s failed {%v}", uid, err)
		return nil
	}
	return decodeUser(uid, v)
}
