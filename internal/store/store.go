// Package store persists learned automata in a bbolt database.
//
// Each model is kept as its JSON document in one bucket and its metadata in
// another, both keyed by a UUID assigned on save.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/usestring/alergia-mcp/internal/alergia"
	"github.com/usestring/alergia-mcp/pkg/automaton"
)

var (
	bModels = []byte("models") // id -> automaton JSON
	bMeta   = []byte("meta")   // id -> Metadata JSON
)

var (
	// ErrNotFound is returned when no model has the requested ID.
	ErrNotFound = errors.New("model not found")
	// ErrInvalidID is returned for IDs that are not UUIDs.
	ErrInvalidID = errors.New("invalid model id")
)

// Source records how a model entered the store.
type Source string

const (
	SourceLearned  Source = "learned"
	SourceTree     Source = "tree"
	SourceImported Source = "imported"
)

// Metadata describes a stored model.
type Metadata struct {
	ID          string          `json:"id"`
	Name        string          `json:"name,omitempty"`
	Source      Source          `json:"source"`
	CreatedAt   time.Time       `json:"created_at"`
	Options     *alergia.Config `json:"options,omitempty"`
	Traces      int             `json:"traces,omitempty"`
	States      int             `json:"states"`
	Transitions int             `json:"transitions"`
	Merges      int             `json:"merges,omitempty"`
	Promotions  int             `json:"promotions,omitempty"`
	Inputs      []string        `json:"inputs"`
	Outputs     []string        `json:"outputs"`
}

// Store is a bbolt-backed model store. It is safe for concurrent use.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening model store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bModels, bMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing model store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the database file path.
func (s *Store) Path() string { return s.db.Path() }

// Save stores a and returns its completed metadata. A fresh ID and creation
// time are assigned when meta leaves them empty. Counts and alphabets are
// always taken from a.
func (s *Store) Save(meta Metadata, a *automaton.Automaton) (Metadata, error) {
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	} else {
		id, err := normalizeID(meta.ID)
		if err != nil {
			return Metadata{}, err
		}
		meta.ID = id
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	if meta.Source == "" {
		meta.Source = SourceLearned
	}
	meta.States = a.NumStates()
	meta.Transitions = a.NumTransitions()
	meta.Inputs = a.Inputs()
	meta.Outputs = a.Outputs()

	model, err := a.MarshalJSON()
	if err != nil {
		return Metadata{}, fmt.Errorf("encoding model: %w", err)
	}
	info, err := json.Marshal(meta)
	if err != nil {
		return Metadata{}, fmt.Errorf("encoding metadata: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		key := []byte(meta.ID)
		if err := tx.Bucket(bModels).Put(key, model); err != nil {
			return err
		}
		return tx.Bucket(bMeta).Put(key, info)
	})
	if err != nil {
		return Metadata{}, fmt.Errorf("saving model %s: %w", meta.ID, err)
	}
	return meta, nil
}

// Get loads the model and metadata stored under id.
func (s *Store) Get(id string) (*automaton.Automaton, Metadata, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, Metadata{}, err
	}

	var model, info []byte
	err = s.db.View(func(tx *bolt.Tx) error {
		key := []byte(id)
		if v := tx.Bucket(bModels).Get(key); v != nil {
			model = append([]byte(nil), v...)
		}
		if v := tx.Bucket(bMeta).Get(key); v != nil {
			info = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, Metadata{}, err
	}
	if model == nil || info == nil {
		return nil, Metadata{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	var meta Metadata
	if err := json.Unmarshal(info, &meta); err != nil {
		return nil, Metadata{}, fmt.Errorf("decoding metadata of %s: %w", id, err)
	}
	a, err := automaton.ParseJSON(model)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("decoding model %s: %w", id, err)
	}
	return a, meta, nil
}

// Metadata returns the metadata stored under id without decoding the model.
func (s *Store) Metadata(id string) (Metadata, error) {
	id, err := normalizeID(id)
	if err != nil {
		return Metadata{}, err
	}
	var meta Metadata
	found := false
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bMeta).Get([]byte(id))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &meta)
	})
	if err != nil {
		return Metadata{}, fmt.Errorf("decoding metadata of %s: %w", id, err)
	}
	if !found {
		return Metadata{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return meta, nil
}

// List returns all metadata, newest first.
func (s *Store) List() ([]Metadata, error) {
	var out []Metadata
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bMeta).ForEach(func(k, v []byte) error {
			var meta Metadata
			if err := json.Unmarshal(v, &meta); err != nil {
				return fmt.Errorf("decoding metadata of %s: %w", k, err)
			}
			out = append(out, meta)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Delete removes the model stored under id.
func (s *Store) Delete(id string) error {
	id, err := normalizeID(id)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		key := []byte(id)
		if tx.Bucket(bMeta).Get(key) == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err := tx.Bucket(bModels).Delete(key); err != nil {
			return err
		}
		return tx.Bucket(bMeta).Delete(key)
	})
}

func normalizeID(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return u.String(), nil
}
