// Package bolt provides a bbolt-backed store for single-node deployments.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cameronmore/authd/accounts"
	"github.com/cameronmore/authd/sessions"
	"go.etcd.io/bbolt"
)

var (
	usersBucket     = []byte("users")     // id -> user JSON
	usernamesBucket = []byte("usernames") // username -> id
	sessionsBucket  = []byte("sessions")  // id -> session JSON
	revokedBucket   = []byte("revoked")   // jti -> big-endian unix expiry
)

type Store struct {
	db *bbolt.DB
}

// record is the persisted form of a user; HashedPassword is skipped by the
// JSON tags of accounts.User.
type record struct {
	accounts.Principal
	HashedPassword string `json:"hashedPassword"`
}

type sessionRecord struct {
	UserId    string `json:"userId"`
	ExpiresAt int64  `json:"expiresAt"`
}

// New wraps an open database and creates the buckets it needs.
func New(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{usersBucket, usernamesBucket, sessionsBucket, revokedBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Open opens the bbolt file at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SaveUser(_ context.Context, u accounts.User) error {
	data, err := json.Marshal(record{Principal: u.Principal, HashedPassword: u.HashedPassword})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		names := tx.Bucket(usernamesBucket)
		users := tx.Bucket(usersBucket)
		if names.Get([]byte(u.Username)) != nil || users.Get([]byte(u.UserId)) != nil {
			return accounts.ErrDuplicateUsername
		}
		if err := users.Put([]byte(u.UserId), data); err != nil {
			return err
		}
		return names.Put([]byte(u.Username), []byte(u.UserId))
	})
}

func (s *Store) LoadUserById(_ context.Context, id string) (accounts.User, error) {
	var u accounts.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		u, err = getUser(tx, []byte(id))
		return err
	})
	return u, err
}

func (s *Store) LoadUserByUsername(_ context.Context, username string) (accounts.User, error) {
	var u accounts.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(usernamesBucket).Get([]byte(username))
		if id == nil {
			return accounts.ErrUserNotFound
		}
		var err error
		u, err = getUser(tx, id)
		return err
	})
	return u, err
}

func getUser(tx *bbolt.Tx, id []byte) (accounts.User, error) {
	data := tx.Bucket(usersBucket).Get(id)
	if data == nil {
		return accounts.User{}, accounts.ErrUserNotFound
	}
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return accounts.User{}, fmt.Errorf("decoding user %s: %w", id, err)
	}
	return accounts.User{Principal: r.Principal, HashedPassword: r.HashedPassword}, nil
}

func (s *Store) SaveSession(_ context.Context, sess sessions.Session) error {
	data, err := json.Marshal(sessionRecord{UserId: sess.UserId, ExpiresAt: sess.ExpiresAt.Unix()})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionsBucket).Put([]byte(sess.Id), data)
	})
}

func (s *Store) LoadSessionById(_ context.Context, id sessions.SessionId) (sessions.Session, error) {
	var r sessionRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(sessionsBucket).Get([]byte(id))
		if data == nil {
			return sessions.ErrSessionNotFound
		}
		return json.Unmarshal(data, &r)
	})
	if err != nil {
		return sessions.Session{}, err
	}
	return sessions.Session{Id: id, UserId: r.UserId, ExpiresAt: time.Unix(r.ExpiresAt, 0).UTC()}, nil
}

func (s *Store) DeleteSessionById(_ context.Context, id sessions.SessionId) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(sessionsBucket)
		if b.Get([]byte(id)) == nil {
			return sessions.ErrSessionNotFound
		}
		return b.Delete([]byte(id))
	})
}

func (s *Store) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	return s.deleteWhere(sessionsBucket, func(v []byte) (bool, error) {
		var r sessionRecord
		if err := json.Unmarshal(v, &r); err != nil {
			return false, err
		}
		return r.ExpiresAt <= now.Unix(), nil
	})
}

func (s *Store) RevokeToken(_ context.Context, jti string, expiresAt time.Time) error {
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], uint64(expiresAt.Unix()))
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(revokedBucket).Put([]byte(jti), v[:])
	})
}

func (s *Store) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		revoked = tx.Bucket(revokedBucket).Get([]byte(jti)) != nil
		return nil
	})
	return revoked, err
}

func (s *Store) DeleteExpiredRevocations(_ context.Context, now time.Time) (int64, error) {
	return s.deleteWhere(revokedBucket, func(v []byte) (bool, error) {
		if len(v) != 8 {
			return true, nil
		}
		return int64(binary.BigEndian.Uint64(v)) <= now.Unix(), nil
	})
}

// deleteWhere removes every key in bucket whose value matches. Keys are
// collected first; bbolt cursors must not be mutated while iterating.
func (s *Store) deleteWhere(bucket []byte, match func(v []byte) (bool, error)) (int64, error) {
	var n int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		var doomed [][]byte
		err := b.ForEach(func(k, v []byte) error {
			ok, err := match(v)
			if err != nil {
				return err
			}
			if ok {
				doomed = append(doomed, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range doomed {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		n = int64(len(doomed))
		return nil
	})
	return n, err
}
