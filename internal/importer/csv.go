// internal/importer/csv.go
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bramblehq/mailvine-backend/internal/model"
	"github.com/bramblehq/mailvine-backend/internal/repository"
	"github.com/bramblehq/mailvine-backend/internal/transport"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Stats summarizes one import run.
type Stats struct {
	TotalRows int `json:"total_rows"`
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Invalid   int `json:"invalid"`
}

// Importer merges CSV contact exports into the subscriber store. Two
// header formats are accepted: the simple email,name,phone layout and the
// point-of-sale export layout (Email Address, First Name, Last Name,
// Phone Number). Existing subscribers are merged, never clobbered:
// non-empty names and phones are kept, and segment tags accumulate.
type Importer struct {
	Subscribers repository.SubscriberRepositoryInterface
	Log         *zap.Logger
}

// vendor export headers mapped to canonical column names
var columnAliases = map[string]string{
	"email address": "email",
	"phone number":  "phone",
	"first name":    "first_name",
	"last name":     "last_name",
}

// ImportCSV reads the whole file and applies it row by row. A malformed
// header aborts the run; malformed rows are counted as invalid and
// skipped.
func (imp *Importer) ImportCSV(r io.Reader, segmentTag string) (*Stats, error) {
	batchID := uuid.NewString()

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("could not read CSV header: %w", err)
	}

	cols := map[string]int{}
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if canonical, ok := columnAliases[key]; ok {
			key = canonical
		}
		cols[key] = i
	}
	if _, ok := cols["email"]; !ok {
		return nil, fmt.Errorf("CSV must have an 'email' or 'Email Address' column")
	}

	stats := &Stats{}
	seen := map[string]bool{}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			stats.Invalid++
			continue
		}
		stats.TotalRows++

		email := strings.ToLower(strings.TrimSpace(field(row, cols, "email")))
		if email == "" || !emailPattern.MatchString(email) {
			stats.Invalid++
			continue
		}
		if seen[email] {
			continue // in-file duplicate
		}
		seen[email] = true

		name := strings.TrimSpace(field(row, cols, "name"))
		if name == "" {
			first := strings.TrimSpace(field(row, cols, "first_name"))
			last := strings.TrimSpace(field(row, cols, "last_name"))
			name = strings.TrimSpace(first + " " + last)
		}

		phone := ""
		if raw := strings.TrimSpace(field(row, cols, "phone")); raw != "" {
			if formatted := transport.FormatPhoneNumber(raw); formatted != "" {
				phone = formatted
			}
		}

		if err := imp.mergeRow(email, name, phone, segmentTag, stats); err != nil {
			imp.Log.Warn("import row failed",
				zap.String("batch_id", batchID), zap.Error(err))
			stats.Invalid++
		}
	}

	imp.Log.Info("csv import finished",
		zap.String("batch_id", batchID),
		zap.Int("total", stats.TotalRows),
		zap.Int("added", stats.Added),
		zap.Int("updated", stats.Updated),
		zap.Int("invalid", stats.Invalid),
	)
	return stats, nil
}

func (imp *Importer) mergeRow(email, name, phone, segmentTag string, stats *Stats) error {
	existing, err := imp.Subscribers.FindByEmail(email)
	if err != nil {
		return err
	}

	now := time.Now()
	if existing != nil {
		if name != "" && existing.DisplayName == "" {
			existing.DisplayName = name
		}
		if phone != "" && imp.Subscribers.DecryptedPhone(existing) == "" {
			if err := imp.Subscribers.SetPhone(existing, phone); err != nil {
				return err
			}
			// A newly supplied phone implies SMS consent from the export.
			existing.SMSSubscribed = true
			existing.SMSOptInAt = &now
		}
		existing.AddSegmentTag(segmentTag)
		if err := imp.Subscribers.Update(existing); err != nil {
			return err
		}
		stats.Updated++
		return nil
	}

	sub := &model.Subscriber{
		DisplayName:     name,
		EmailSubscribed: true,
		EmailOptInAt:    &now,
		SegmentTags:     segmentTag,
	}
	if err := imp.Subscribers.SetEmail(sub, email); err != nil {
		return err
	}
	if phone != "" {
		if err := imp.Subscribers.SetPhone(sub, phone); err != nil {
			return err
		}
		sub.SMSSubscribed = true
		sub.SMSOptInAt = &now
	}
	if err := imp.Subscribers.Create(sub); err != nil {
		return err
	}
	stats.Added++
	return nil
}

func field(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}
