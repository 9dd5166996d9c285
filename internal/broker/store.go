package broker

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/Klingon-tech/orbital-wallet/internal/storage"
)

// Key prefixes.
var (
	prefixWhitelist = []byte("broker/whitelist/")
	prefixRecord    = []byte("broker/record/")
	keySurfaceID    = []byte("broker/popupSurfaceId")
)

func whitelistKey(domain string) []byte {
	return append(append([]byte{}, prefixWhitelist...), domain...)
}

func recordKey(k Kind) []byte {
	return append(append([]byte{}, prefixRecord...), k.RecordKey()...)
}

// Whitelist is the set of connected origins.
type Whitelist struct {
	db storage.KV
}

// NewWhitelist creates a whitelist backed by db.
func NewWhitelist(db storage.KV) *Whitelist {
	return &Whitelist{db: db}
}

// Has reports whether domain is connected.
func (w *Whitelist) Has(domain string) (bool, error) {
	if domain == "" {
		return false, nil
	}
	return w.db.Has(whitelistKey(domain))
}

// Add connects an origin. An existing entry gets the new icon.
func (w *Whitelist) Add(o Origin) error {
	if o.Domain == "" {
		return fmt.Errorf("whitelist add: empty domain")
	}
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("whitelist marshal: %w", err)
	}
	return w.db.Put(whitelistKey(o.Domain), data)
}

// Remove disconnects domain and reports whether it was connected.
func (w *Whitelist) Remove(domain string) (bool, error) {
	has, err := w.Has(domain)
	if err != nil || !has {
		return false, err
	}
	if err := w.db.Delete(whitelistKey(domain)); err != nil {
		return false, fmt.Errorf("whitelist remove: %w", err)
	}
	return true, nil
}

// List returns every connected origin ordered by domain.
func (w *Whitelist) List() ([]Origin, error) {
	out := []Origin{}
	err := w.db.ForEach(prefixWhitelist, func(_, value []byte) error {
		var o Origin
		if err := json.Unmarshal(value, &o); err != nil {
			return nil
		}
		out = append(out, o)
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out, err
}

// putRecord persists the pending payload of a request.
func putRecord(kv storage.KV, req *Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("record marshal: %w", err)
	}
	return kv.Put(recordKey(req.Kind), data)
}

// getRecord loads a pending payload.
func getRecord(kv storage.KV, k Kind) (*Request, error) {
	data, err := kv.Get(recordKey(k))
	if err != nil {
		return nil, err
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("record unmarshal: %w", err)
	}
	return &req, nil
}

func deleteRecord(kv storage.KV, k Kind) error {
	return kv.Delete(recordKey(k))
}

// surfaceID returns the recorded surface id, or "".
func surfaceID(kv storage.KV) (string, error) {
	data, err := kv.Get(keySurfaceID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func putSurfaceID(kv storage.KV, id string) error {
	if id == "" {
		return kv.Delete(keySurfaceID)
	}
	return kv.Put(keySurfaceID, []byte(id))
}
