package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/etd-crawler/internal/crawler"
)

// DateLayout is the discovery timestamp format stored in the catalog file.
const DateLayout = "2006-01-02 15:04:05"

var (
	errNotObject = errors.New("not an object")
	errNoID      = errors.New("no usable id in field or key")
)

// wireRecord is the on-disk shape of a record.
type wireRecord struct {
	ID        recordID `json:"id"`
	Filename  string   `json:"filename"`
	Title     string   `json:"title"`
	Date      string   `json:"date"`
	DirectURL string   `json:"direct_url"`
}

// recordID reads the id field written either as a JSON number or as a
// decimal string. Anything else decodes to zero so the map key is used.
type recordID int64

func (r *recordID) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = strings.TrimSpace(unquoted)
	}
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil || id < 1 {
		id = 0
	}
	*r = recordID(id)
	return nil
}

// RecordError describes a catalog entry that could not be fully decoded.
type RecordError struct {
	Key string
	Err error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %q: %v", e.Key, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

func toWire(rec crawler.Record) wireRecord {
	var date string
	if !rec.DiscoveredAt.IsZero() {
		date = rec.DiscoveredAt.In(time.Local).Format(DateLayout)
	}
	return wireRecord{
		ID:        recordID(rec.ID),
		Filename:  rec.Filename,
		Title:     rec.Title,
		Date:      date,
		DirectURL: rec.SourceURL,
	}
}

// fromWire converts one entry. A bad date keeps the record with a zero
// DiscoveredAt and is reported through dateErr.
func fromWire(key string, w wireRecord) (rec crawler.Record, dateErr error, err error) {
	id := int64(w.ID)
	if id == 0 {
		parsed, perr := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if perr != nil || parsed < 1 {
			return crawler.Record{}, nil, errNoID
		}
		id = parsed
	}
	var at time.Time
	if w.Date != "" {
		parsed, perr := time.ParseInLocation(DateLayout, w.Date, time.Local)
		if perr != nil {
			dateErr = fmt.Errorf("date %q: %w", w.Date, perr)
		} else {
			at = parsed
		}
	}
	return crawler.Record{
		ID:           id,
		Filename:     w.Filename,
		Title:        w.Title,
		DiscoveredAt: at,
		SourceURL:    w.DirectURL,
	}, dateErr, nil
}

// Encode serializes records as a JSON object keyed by decimal ID, indented
// with two spaces. Non-ASCII text is written verbatim.
func Encode(records map[int64]crawler.Record) ([]byte, error) {
	wire := make(map[string]wireRecord, len(records))
	for id, rec := range records {
		wire[strconv.FormatInt(id, 10)] = toWire(rec)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(wire); err != nil {
		return nil, fmt.Errorf("encode catalog: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses the catalog file format. err is set only when data is not a
// JSON object; entries that cannot be used are dropped and described in
// problems, as are entries kept without their date.
func Decode(data []byte) (records map[int64]crawler.Record, problems []*RecordError, err error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("decode catalog: %w", err)
	}
	if raw == nil {
		return nil, nil, fmt.Errorf("decode catalog: %w", errNotObject)
	}
	records = make(map[int64]crawler.Record, len(raw))
	for key, msg := range raw {
		if !bytes.HasPrefix(bytes.TrimSpace(msg), []byte("{")) {
			problems = append(problems, &RecordError{Key: key, Err: errNotObject})
			continue
		}
		var w wireRecord
		if err := json.Unmarshal(msg, &w); err != nil {
			problems = append(problems, &RecordError{Key: key, Err: err})
			continue
		}
		rec, dateErr, err := fromWire(key, w)
		if err != nil {
			problems = append(problems, &RecordError{Key: key, Err: err})
			continue
		}
		if dateErr != nil {
			problems = append(problems, &RecordError{Key: key, Err: dateErr})
		}
		records[rec.ID] = rec
	}
	return records, problems, nil
}
