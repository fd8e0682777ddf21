package state

import (
	"encoding/json"
	"fmt"
	"github.com/rotblauer/tilehover/events"
	"go.etcd.io/bbolt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const hoversDBName = "hovers.db"

var hoversBucket = []byte("hovers")

// HoverCount is the tally for one tile, keyed "z/x/y".
type HoverCount struct {
	Key   string    `json:"key"`
	Count uint64    `json:"count"`
	Last  time.Time `json:"last"`
}

// Hovers persists how often each overlay tile has been hovered.
type Hovers struct {
	DB     *bbolt.DB
	logger *slog.Logger
	rOnly  bool
}

// OpenHovers opens (creating if needed) the hover database in dir.
// A writable handle holds the file lock until Close.
func OpenHovers(dir string, readOnly bool) (*Hovers, error) {
	if !readOnly {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, err
		}
	}
	db, err := bbolt.Open(filepath.Join(dir, hoversDBName), 0600, &bbolt.Options{
		ReadOnly: readOnly,
		Timeout:  5 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return &Hovers{
		DB:     db,
		logger: slog.With("state", "hovers"),
		rOnly:  readOnly,
	}, nil
}

func (h *Hovers) Close() error {
	return h.DB.Close()
}

// Record counts one hover of ev's tile.
func (h *Hovers) Record(ev events.Hover) error {
	return h.RecordBatch([]events.Hover{ev})
}

// RecordBatch counts every hover in evs in a single transaction.
func (h *Hovers) RecordBatch(evs []events.Hover) error {
	if h.rOnly {
		return fmt.Errorf("record hover: read-only")
	}
	if len(evs) == 0 {
		return nil
	}
	return h.DB.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(hoversBucket)
		if err != nil {
			return err
		}
		tally := make(map[string]*HoverCount)
		for _, ev := range evs {
			key := ev.Key()
			hc, ok := tally[key]
			if !ok {
				hc = &HoverCount{Key: key}
				if got := bucket.Get([]byte(key)); got != nil {
					if err := json.Unmarshal(got, hc); err != nil {
						return fmt.Errorf("decode %s: %w", key, err)
					}
				}
				tally[key] = hc
			}
			hc.Count++
			if ev.Time.After(hc.Last) {
				hc.Last = ev.Time
			}
		}
		for key, hc := range tally {
			b, err := json.Marshal(hc)
			if err != nil {
				return err
			}
			if err := bucket.Put([]byte(key), b); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get returns the tally for key, zero if never hovered.
func (h *Hovers) Get(key string) (HoverCount, error) {
	hc := HoverCount{Key: key}
	err := h.DB.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(hoversBucket)
		if bucket == nil {
			return nil
		}
		// Gotcha! The value returned by Get is only valid in the scope of the transaction.
		got := bucket.Get([]byte(key))
		if got == nil {
			return nil
		}
		return json.Unmarshal(got, &hc)
	})
	return hc, err
}

// Top returns the most hovered tiles, most first, at most limit of them.
// A limit <= 0 returns all.
func (h *Hovers) Top(limit int) ([]HoverCount, error) {
	var all []HoverCount
	err := h.DB.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(hoversBucket)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			hc := HoverCount{}
			if err := json.Unmarshal(v, &hc); err != nil {
				h.logger.Warn("Skipping undecodable hover count", "key", string(k), "error", err)
				return nil
			}
			all = append(all, hc)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Count == all[j].Count {
			return all[i].Key < all[j].Key
		}
		return all[i].Count > all[j].Count
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
