package cache

import "fmt"

// Event stream identifiers.
const (
	StreamAppEvents = "app_events"
	GroupBap        = "bap_group"
	ConsumerWorker  = "worker_1"
)

// CronTxnLatestKey points at the most recently completed sweep's txn id.
// It is written only after pagination has finished for every BPP that
// replied.
const CronTxnLatestKey = "cron_txn:latest"

// SearchKey holds one BPP's serialized on_search payload for a query hash.
func SearchKey(queryHash, bppID string) string {
	return fmt.Sprintf("search:%s:%s", queryHash, bppID)
}

// SearchPattern matches every BPP entry under a query hash.
func SearchPattern(queryHash string) string {
	return fmt.Sprintf("search:%s:*", queryHash)
}

// TxnToQueryKey maps an outbound search txn back to its query hash.
func TxnToQueryKey(txnID string) string {
	return fmt.Sprintf("txn_to_query:%s", txnID)
}

// LastCallKey is the presence-only throttle sentinel per query hash.
func LastCallKey(queryHash string) string {
	return fmt.Sprintf("last_call:%s", queryHash)
}

// CronTxnKey stores sweep metadata for a cron transaction.
func CronTxnKey(txnID string) string {
	return fmt.Sprintf("cron_txn:%s", txnID)
}

// CronJobsKey accumulates the merged per-BPP payload during a sweep.
func CronJobsKey(txnID, bppID string) string {
	return fmt.Sprintf("cron_jobs:%s:%s", txnID, bppID)
}

// CronJobsPattern matches every BPP's merged payload for a sweep.
func CronJobsPattern(txnID string) string {
	return fmt.Sprintf("cron_jobs:%s:*", txnID)
}

// EmbeddingKey is the content-addressed embedding cache key.
func EmbeddingKey(model, textHash string) string {
	return fmt.Sprintf("embedding:%s:%s", model, textHash)
}
