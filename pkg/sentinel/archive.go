package sentinel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	bucketRuns    = "runs"
	bucketClients = "clients"
)

// ErrRunNotFound is returned when an archived run does not exist
var ErrRunNotFound = errors.New("run not found")

// ClientHistory is the archived state of one client identity across runs
type ClientHistory struct {
	FirstSeen    time.Time      `json:"first_seen"`
	LastSeen     time.Time      `json:"last_seen"`
	LastRunID    string         `json:"last_run_id"`
	Latest       ScannerSummary `json:"latest"`
	TimesFlagged int            `json:"times_flagged"`
}

// Archive keeps run reports and per-client history in a local bbolt file
type Archive struct {
	db *bbolt.DB
}

// OpenArchive opens or creates the archive file
func OpenArchive(path string) (*Archive, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketRuns, bucketClients} {
			if _, e := tx.CreateBucketIfNotExists([]byte(name)); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize archive: %w", err)
	}

	return &Archive{db: db}, nil
}

// Close closes the archive file
func (a *Archive) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Name implements RunSink
func (a *Archive) Name() string {
	return "archive"
}

// Store saves the run report and updates the history of every client it summarizes
func (a *Archive) Store(_ context.Context, report *RunReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode run %s: %w", report.RunID, err)
	}

	return a.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte(bucketRuns)).Put([]byte(report.RunID), data); err != nil {
			return fmt.Errorf("failed to store run %s: %w", report.RunID, err)
		}

		clients := tx.Bucket([]byte(bucketClients))
		for _, s := range report.Summaries {
			var h ClientHistory
			if v := clients.Get([]byte(s.ClientIP)); v != nil {
				if err := json.Unmarshal(v, &h); err != nil {
					return fmt.Errorf("failed to decode history of %s: %w", s.ClientIP, err)
				}
			} else {
				h.FirstSeen = report.GeneratedAt
			}

			h.LastSeen = report.GeneratedAt
			h.LastRunID = report.RunID
			h.Latest = s
			if s.IsScanner {
				h.TimesFlagged++
			}

			v, err := json.Marshal(h)
			if err != nil {
				return err
			}
			if err := clients.Put([]byte(s.ClientIP), v); err != nil {
				return fmt.Errorf("failed to store history of %s: %w", s.ClientIP, err)
			}
		}
		return nil
	})
}

// Run returns an archived run report. Parsed lines and records are not archived.
func (a *Archive) Run(runID string) (*RunReport, error) {
	var report *RunReport
	err := a.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(bucketRuns)).Get([]byte(runID))
		if v == nil {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		var r RunReport
		if err := json.Unmarshal(v, &r); err != nil {
			return fmt.Errorf("failed to decode run %s: %w", runID, err)
		}
		report = &r
		return nil
	})
	return report, err
}

// RunIDs returns archived run IDs, oldest first
func (a *Archive) RunIDs() ([]string, error) {
	var ids []string
	err := a.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketRuns)).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}

// Client returns the archived history of a client identity
func (a *Archive) Client(clientIP string) (ClientHistory, bool, error) {
	var h ClientHistory
	var ok bool
	err := a.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(bucketClients)).Get([]byte(clientIP))
		if v == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(v, &h)
	})
	return h, ok, err
}
