package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Match is one scored (job, profile) pair. JobHash/ProfileHash record the
// content hashes in effect when the score was computed; a pair is stale
// when either differs from the current row hash.
type Match struct {
	JobID       string
	ProfileID   string
	JobHash     string
	ProfileHash string
	Score       int16
	Breakdown   json.RawMessage
	ComputedAt  time.Time
	UpdatedAt   time.Time
}

// Pair identifies one (job, profile) combination in a worklist.
type Pair struct {
	JobID     string
	ProfileID string
}

// UpsertMatch writes one score. computed_at is set on insert only;
// updated_at moves on every write.
func (s *Store) UpsertMatch(ctx context.Context, m Match) error {
	const query = `
		INSERT INTO job_profile_matches
			(job_id, profile_id, job_hash, profile_hash, match_score, score_breakdown, computed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, now(), now())
		ON CONFLICT (job_id, profile_id) DO UPDATE SET
			job_hash        = EXCLUDED.job_hash,
			profile_hash    = EXCLUDED.profile_hash,
			match_score     = EXCLUDED.match_score,
			score_breakdown = EXCLUDED.score_breakdown,
			updated_at      = now()`
	_, err := s.db.ExecContext(ctx, query,
		m.JobID, m.ProfileID, m.JobHash, m.ProfileHash, m.Score, rawOrNull(m.Breakdown))
	if err != nil {
		return fmt.Errorf("upsert match (%s, %s): %w", m.JobID, m.ProfileID, err)
	}
	return nil
}

// NewJobs lists jobs that have no match row yet.
func (s *Store) NewJobs(ctx context.Context) ([]string, error) {
	return s.queryIDs(ctx, `
		SELECT DISTINCT j.job_id FROM jobs j
		WHERE NOT EXISTS (SELECT 1 FROM job_profile_matches m WHERE m.job_id = j.job_id)`)
}

// NewProfiles lists profiles that have no match row yet.
func (s *Store) NewProfiles(ctx context.Context) ([]string, error) {
	return s.queryIDs(ctx, `
		SELECT p.profile_id FROM profiles p
		WHERE NOT EXISTS (SELECT 1 FROM job_profile_matches m WHERE m.profile_id = p.profile_id)`)
}

// StaleMatches lists pairs whose stored hashes no longer match the
// current job or profile hash.
func (s *Store) StaleMatches(ctx context.Context) ([]Pair, error) {
	return s.queryPairs(ctx, `
		SELECT m.job_id, m.profile_id
		FROM job_profile_matches m
		JOIN jobs j ON j.job_id = m.job_id
		JOIN profiles p ON p.profile_id = m.profile_id
		WHERE m.job_hash <> j.hash OR m.profile_hash <> p.hash`)
}

// MissingPairs enumerates (job, profile) combinations with no match row.
// Reconciliation pass; the cartesian join is bounded by the catalogue
// size, and rows already covered by NewJobs/NewProfiles fall out here too.
func (s *Store) MissingPairs(ctx context.Context) ([]Pair, error) {
	return s.queryPairs(ctx, `
		SELECT DISTINCT j.job_id, p.profile_id
		FROM jobs j CROSS JOIN profiles p
		WHERE NOT EXISTS (
			SELECT 1 FROM job_profile_matches m
			WHERE m.job_id = j.job_id AND m.profile_id = p.profile_id)`)
}

func (s *Store) queryIDs(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("worklist query: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) queryPairs(ctx context.Context, query string) ([]Pair, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("worklist query: %w", err)
	}
	defer rows.Close()

	var pairs []Pair
	for rows.Next() {
		var p Pair
		if err := rows.Scan(&p.JobID, &p.ProfileID); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// FetchJob loads one job by id. Provider duplication keeps the same blob,
// so any row will do.
func (s *Store) FetchJob(ctx context.Context, jobID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, provider_id, beckn_structure, hash, transaction_id, bpp_id, bpp_uri
		FROM jobs WHERE job_id = $1 LIMIT 1`, jobID)
	var j Job
	err := row.Scan(&j.JobID, &j.ProviderID, &j.BecknStructure, &j.Hash, &j.TransactionID, &j.BppID, &j.BppURI)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch job %s: %w", jobID, err)
	}
	return &j, nil
}

// FetchProfile loads one profile by id.
func (s *Store) FetchProfile(ctx context.Context, profileID string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT profile_id, user_id, type, metadata, hash
		FROM profiles WHERE profile_id = $1`, profileID)
	var p Profile
	err := row.Scan(&p.ProfileID, &p.UserID, &p.Type, &p.Metadata, &p.Hash)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("profile %s: %w", profileID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch profile %s: %w", profileID, err)
	}
	return &p, nil
}

// FetchAllJobs loads every distinct job (one row per job_id).
func (s *Store) FetchAllJobs(ctx context.Context) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ON (job_id) job_id, provider_id, beckn_structure, hash
		FROM jobs ORDER BY job_id`)
	if err != nil {
		return nil, fmt.Errorf("fetch all jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.JobID, &j.ProviderID, &j.BecknStructure, &j.Hash); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// FetchAllProfiles loads every profile.
func (s *Store) FetchAllProfiles(ctx context.Context) ([]Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT profile_id, user_id, type, metadata, hash FROM profiles`)
	if err != nil {
		return nil, fmt.Errorf("fetch all profiles: %w", err)
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ProfileID, &p.UserID, &p.Type, &p.Metadata, &p.Hash); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// HighMatch is one notification candidate: the scored pair joined with
// the blobs the message template reads from.
type HighMatch struct {
	JobID           string
	ProfileID       string
	Score           int16
	ProfileMetadata json.RawMessage
	JobStructure    json.RawMessage
}

// HighMatches selects pairs at or above minScore, best first.
func (s *Store) HighMatches(ctx context.Context, minScore int16) ([]HighMatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.job_id, m.profile_id, m.match_score, p.metadata, j.beckn_structure
		FROM job_profile_matches m
		JOIN profiles p ON p.profile_id = m.profile_id
		JOIN jobs j ON j.job_id = m.job_id AND j.provider_id = (
			SELECT provider_id FROM jobs WHERE job_id = m.job_id LIMIT 1)
		WHERE m.match_score >= $1
		ORDER BY m.match_score DESC`, minScore)
	if err != nil {
		return nil, fmt.Errorf("high matches: %w", err)
	}
	defer rows.Close()

	var out []HighMatch
	for rows.Next() {
		var h HighMatch
		if err := rows.Scan(&h.JobID, &h.ProfileID, &h.Score, &h.ProfileMetadata, &h.JobStructure); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// textSearchPaths are the JSON paths free text fuzzy-matches against.
var textSearchPaths = [][]string{
	{"descriptor", "name"},
	{"tags", "industry"},
	{"tags", "role"},
	{"tags", "jobDetails", "title"},
	{"tags", "jobProviderLocation"},
	{"tags", "basicInfo", "jobProviderName"},
}

func jsonbText(column string, path []string) string {
	parts := make([]string, 0, len(path))
	for i, p := range path {
		op := "->"
		if i == len(path)-1 {
			op = "->>"
		}
		parts = append(parts, fmt.Sprintf("%s'%s'", op, p))
	}
	return column + strings.Join(parts, "")
}

// MatchQuery is a profile-scoped durable search, assembled by
// BuildMatchQuery so the SQL shape is testable without a database.
type MatchQuery struct {
	Where string
	Args  []interface{}
}

// BuildMatchQuery turns the v3 request filters into a WHERE fragment over
// the jobs/matches join. $1 is always the profile id; free-text tokens use
// the trigram fuzzy operator.
func BuildMatchQuery(profileID, query, primaryFilters, exclude string) MatchQuery {
	args := []interface{}{profileID}
	var conds []string

	addTokens := func(raw string, build func(placeholder string) []string, joiner string) {
		var clauses []string
		for _, tok := range strings.Split(raw, ",") {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			args = append(args, tok)
			placeholder := fmt.Sprintf("$%d", len(args))
			clauses = append(clauses, build(placeholder)...)
		}
		if len(clauses) > 0 {
			conds = append(conds, "("+strings.Join(clauses, " "+joiner+" ")+")")
		}
	}

	// free text: any trigram path may match any token
	addTokens(query, func(ph string) []string {
		var ors []string
		for _, path := range textSearchPaths {
			ors = append(ors, fmt.Sprintf("%s %% %s", jsonbText("j.beckn_structure", path), ph))
		}
		return ors
	}, "OR")

	// primary filters: role or industry contains the token
	addTokens(primaryFilters, func(ph string) []string {
		return []string{
			fmt.Sprintf("(%s ILIKE '%%' || %s || '%%' OR %s ILIKE '%%' || %s || '%%')",
				jsonbText("j.beckn_structure", []string{"tags", "role"}), ph,
				jsonbText("j.beckn_structure", []string{"tags", "industry"}), ph),
		}
	}, "OR")

	// exclude: reject when role or industry contains the token
	addTokens(exclude, func(ph string) []string {
		return []string{
			fmt.Sprintf("NOT (%s ILIKE '%%' || %s || '%%' OR %s ILIKE '%%' || %s || '%%')",
				jsonbText("j.beckn_structure", []string{"tags", "role"}), ph,
				jsonbText("j.beckn_structure", []string{"tags", "industry"}), ph),
		}
	}, "AND")

	where := "m.profile_id = $1"
	if len(conds) > 0 {
		where += " AND " + strings.Join(conds, " AND ")
	}
	return MatchQuery{Where: where, Args: args}
}

// ScoredJob is one v3 result row.
type ScoredJob struct {
	JobID          string
	BecknStructure json.RawMessage
	Score          int16
}

// SearchMatches runs the profile-scoped query: jobs joined with their
// stored score, filtered, best first, paginated. Returns the page plus
// the unpaginated total.
func (s *Store) SearchMatches(ctx context.Context, profileID, query, primaryFilters, exclude string, limit, offset int) ([]ScoredJob, int, error) {
	mq := BuildMatchQuery(profileID, query, primaryFilters, exclude)

	base := `FROM job_profile_matches m
		JOIN jobs j ON j.job_id = m.job_id
		WHERE ` + mq.Where

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT m.job_id) "+base, mq.Args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count matches: %w", err)
	}

	args := append(append([]interface{}{}, mq.Args...), limit, offset)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT job_id, beckn_structure, match_score FROM (
			SELECT DISTINCT ON (m.job_id) m.job_id, j.beckn_structure, m.match_score
			%s
			ORDER BY m.job_id
		) ranked
		ORDER BY match_score DESC, job_id
		LIMIT $%d OFFSET $%d`, base, len(mq.Args)+1, len(mq.Args)+2), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search matches: %w", err)
	}
	defer rows.Close()

	var out []ScoredJob
	for rows.Next() {
		var sj ScoredJob
		if err := rows.Scan(&sj.JobID, &sj.BecknStructure, &sj.Score); err != nil {
			return nil, 0, err
		}
		out = append(out, sj)
	}
	return out, total, rows.Err()
}
