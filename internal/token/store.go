package token

import (
	"encoding/json"
	"fmt"

	"github.com/Klingon-tech/orbital-wallet/internal/storage"
	"github.com/Klingon-tech/orbital-wallet/pkg/types"
)

var prefixToken = []byte("t/") // t/<ref(36)> -> Token JSON

// Store persists tokens. The handle may be a transaction.
type Store struct {
	db storage.KV
}

// NewStore creates a token store.
func NewStore(db storage.KV) *Store {
	return &Store{db: db}
}

// Put stores a token.
func (s *Store) Put(tok *Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("token marshal: %w", err)
	}
	return s.db.Put(tokenKey(tok.Ref), data)
}

// Get retrieves a token by ref.
func (s *Store) Get(ref types.Ref) (*Token, error) {
	data, err := s.db.Get(tokenKey(ref))
	if err != nil {
		return nil, fmt.Errorf("token get: %w", err)
	}
	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("token unmarshal: %w", err)
	}
	return &tok, nil
}

// Has checks if a token is known.
func (s *Store) Has(ref types.Ref) (bool, error) {
	return s.db.Has(tokenKey(ref))
}

// Delete removes a token.
func (s *Store) Delete(ref types.Ref) error {
	return s.db.Delete(tokenKey(ref))
}

// ForEach iterates over all tokens.
// Return a non-nil error from fn to stop iteration early.
func (s *Store) ForEach(fn func(*Token) error) error {
	return s.db.ForEach(prefixToken, func(key, value []byte) error {
		if len(key) != len(prefixToken)+types.RefSize {
			return nil // Malformed key, skip.
		}
		var tok Token
		if err := json.Unmarshal(value, &tok); err != nil {
			return nil // Skip corrupt entries.
		}
		return fn(&tok)
	})
}

// List returns all tokens.
func (s *Store) List() ([]*Token, error) {
	tokens := []*Token{}
	err := s.ForEach(func(tok *Token) error {
		tokens = append(tokens, tok)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// ClearAll removes every token.
func (s *Store) ClearAll() error {
	var keys [][]byte
	if err := s.db.ForEach(prefixToken, func(key, _ []byte) error {
		keys = append(keys, key)
		return nil
	}); err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.db.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func tokenKey(ref types.Ref) []byte {
	key := make([]byte, len(prefixToken)+types.RefSize)
	copy(key, prefixToken)
	copy(key[len(prefixToken):], ref[:])
	return key
}
