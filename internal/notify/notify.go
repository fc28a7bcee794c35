// Package notify pushes high-score matches to seekers through the
// downstream WhatsApp notification provider.
package notify

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dhiway/jobstack-bap/internal/adapter"
	"github.com/dhiway/jobstack-bap/internal/config"
	"github.com/dhiway/jobstack-bap/internal/scoring"
	"github.com/dhiway/jobstack-bap/internal/store"
)

// discoverURL is the deep link seekers land on from the message.
const discoverURL = "https://getjob.onest.network/0/seeker?tab=discover"

// batchPause spaces provider calls to respect downstream rate limits.
const batchPause = 5 * time.Second

type Dispatcher struct {
	cfg   *config.Config
	store *store.Store
	http  *http.Client

	// sleep is swappable in tests
	sleep func(time.Duration)
}

func NewDispatcher(cfg *config.Config, st *store.Store) *Dispatcher {
	return &Dispatcher{
		cfg:   cfg,
		store: st,
		http:  &http.Client{Timeout: 30 * time.Second},
		sleep: time.Sleep,
	}
}

// Run executes one notification pass: select matches at or above the
// configured threshold and message each seeker, batch by batch. Per-row
// failures are logged and skipped.
func (d *Dispatcher) Run(ctx context.Context) {
	minScore := d.cfg.Cron.Notification.MinScore
	rows, err := d.store.HighMatches(ctx, minScore)
	if err != nil {
		slog.Error("high match selection failed", "error", err)
		return
	}
	if len(rows) == 0 {
		slog.Info("no high matches to notify", "min_score", minScore)
		return
	}

	batchSize := d.cfg.Cron.Notification.Batch
	if batchSize < 1 {
		batchSize = 1
	}
	slog.Info("notification pass started", "matches", len(rows), "batch", batchSize)

	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		for _, row := range rows[start:end] {
			if err := d.notifyMatch(ctx, row); err != nil {
				slog.Error("notification failed",
					"job_id", row.JobID, "profile_id", row.ProfileID, "error", err)
			}
		}
		if end < len(rows) {
			d.sleep(batchPause)
		}
	}
	slog.Info("notification pass completed")
}

// notifyMatch pulls the template fields out of the stored blobs and sends
// one message. Rows without a phone number are skipped silently.
func (d *Dispatcher) notifyMatch(ctx context.Context, row store.HighMatch) error {
	fields, err := ExtractFields(row)
	if err != nil {
		return err
	}
	if fields.Phone == "" {
		return nil
	}
	return d.send(ctx, fields)
}

// Fields are the template variables of one message.
type Fields struct {
	Phone    string
	Name     string
	Role     string
	Provider string
}

// ExtractFields reads the message variables from a high-match row,
// falling back to neutral defaults for missing values.
func ExtractFields(row store.HighMatch) (Fields, error) {
	var profileDoc, jobDoc interface{}
	if err := json.Unmarshal(row.ProfileMetadata, &profileDoc); err != nil {
		return Fields{}, fmt.Errorf("parse profile metadata: %w", err)
	}
	if err := json.Unmarshal(row.JobStructure, &jobDoc); err != nil {
		return Fields{}, fmt.Errorf("parse job blob: %w", err)
	}

	return Fields{
		Phone:    stringAt(profileDoc, "/phone"),
		Name:     stringOr(profileDoc, "/name", "User"),
		Role:     stringOr(jobDoc, "/descriptor/name", "Job"),
		Provider: stringOr(jobDoc, "/tags/basicInfo/jobProviderName", "Company"),
	}, nil
}

func (d *Dispatcher) send(ctx context.Context, f Fields) error {
	svc := d.cfg.Services.Notification
	url := strings.TrimRight(svc.BaseURL, "/") + "/notify"

	payload := map[string]interface{}{
		"channel":     "whatsapp",
		"template_id": "other",
		"to":          f.Phone,
		"priority":    "realtime",
		"variables": map[string]interface{}{
			"contentSid": svc.ContentSID,
			"contentVariables": map[string]string{
				"1": f.Name,
				"2": discoverURL,
				"3": f.Role,
				"4": f.Provider,
			},
		},
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	nonce, err := newNonce()
	if err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	signature := Sign(http.MethodPost, "/notify", timestamp, nonce, svc.NSSecret)

	headers := http.Header{}
	headers.Set("X-NS-Key", svc.NSKeyID)
	headers.Set("X-NS-Timestamp", timestamp)
	headers.Set("X-NS-Nonce", nonce)
	headers.Set("X-NS-Signature", signature)

	slog.Info("sending whatsapp notification", "to", f.Phone)
	return adapter.PostSigned(ctx, d.http, url, payload, headers)
}

// Sign computes the provider signature over
// "{METHOD}\n{PATH}\n{UNIX_TS}\n{HEX_NONCE}".
func Sign(method, path, timestamp, nonce, secret string) string {
	base := strings.Join([]string{method, path, timestamp, nonce}, "\n")
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(base))
	return "v1=" + hex.EncodeToString(mac.Sum(nil))
}

func newNonce() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:]), nil
}

func stringAt(doc interface{}, path string) string {
	v, ok := scoring.Resolve(doc, path)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func stringOr(doc interface{}, path, fallback string) string {
	if s := stringAt(doc, path); s != "" {
		return s
	}
	return fallback
}
