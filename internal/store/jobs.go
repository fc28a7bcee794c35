package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Job is one catalogue item as delivered by a sweep.
type Job struct {
	JobID          string
	ProviderID     string
	BecknStructure json.RawMessage
	Metadata       json.RawMessage
	Hash           string
	TransactionID  string
	BppID          string
	BppURI         string
	LastSyncedAt   time.Time
	UpdatedAt      time.Time
}

// UpsertJobs writes a batch of jobs in one statement. The content columns
// and updated_at move only when the hash changed; transaction_id and
// last_synced_at always track the delivering sweep.
func (s *Store) UpsertJobs(ctx context.Context, jobs []Job) error {
	if len(jobs) == 0 {
		return nil
	}

	n := len(jobs)
	jobIDs := make([]string, n)
	providerIDs := make([]string, n)
	structures := make([]string, n)
	metadatas := make([]string, n)
	hashes := make([]string, n)
	txnIDs := make([]string, n)
	bppIDs := make([]string, n)
	bppURIs := make([]string, n)

	for i, j := range jobs {
		jobIDs[i] = j.JobID
		providerIDs[i] = j.ProviderID
		structures[i] = rawOrNull(j.BecknStructure)
		metadatas[i] = rawOrNull(j.Metadata)
		hashes[i] = j.Hash
		txnIDs[i] = j.TransactionID
		bppIDs[i] = j.BppID
		bppURIs[i] = j.BppURI
	}

	const query = `
		INSERT INTO jobs (job_id, provider_id, beckn_structure, metadata, hash,
		                  transaction_id, bpp_id, bpp_uri, last_synced_at, updated_at)
		SELECT t.job_id, t.provider_id, t.beckn_structure::jsonb, t.metadata::jsonb, t.hash,
		       t.transaction_id, t.bpp_id, t.bpp_uri, now(), now()
		FROM UNNEST($1::text[], $2::text[], $3::text[], $4::text[], $5::text[],
		            $6::text[], $7::text[], $8::text[])
		     AS t(job_id, provider_id, beckn_structure, metadata, hash,
		          transaction_id, bpp_id, bpp_uri)
		ON CONFLICT (job_id, provider_id) DO UPDATE SET
			beckn_structure = CASE WHEN jobs.hash <> EXCLUDED.hash
			                       THEN EXCLUDED.beckn_structure ELSE jobs.beckn_structure END,
			metadata        = CASE WHEN jobs.hash <> EXCLUDED.hash
			                       THEN EXCLUDED.metadata ELSE jobs.metadata END,
			updated_at      = CASE WHEN jobs.hash <> EXCLUDED.hash
			                       THEN now() ELSE jobs.updated_at END,
			hash            = EXCLUDED.hash,
			transaction_id  = EXCLUDED.transaction_id,
			bpp_id          = EXCLUDED.bpp_id,
			bpp_uri         = EXCLUDED.bpp_uri,
			last_synced_at  = now()`

	_, err := s.db.ExecContext(ctx, query,
		pq.Array(jobIDs), pq.Array(providerIDs), pq.Array(structures), pq.Array(metadatas),
		pq.Array(hashes), pq.Array(txnIDs), pq.Array(bppIDs), pq.Array(bppURIs))
	if err != nil {
		return fmt.Errorf("upsert %d jobs: %w", n, err)
	}
	return nil
}

// DeleteStaleJobs removes jobs for a BPP that the latest sweep no longer
// delivered.
func (s *Store) DeleteStaleJobs(ctx context.Context, bppID, latestTxn string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE bpp_id = $1 AND transaction_id <> $2`, bppID, latestTxn)
	if err != nil {
		return 0, fmt.Errorf("delete stale jobs for %s: %w", bppID, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func rawOrNull(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}
