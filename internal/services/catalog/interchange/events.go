// Package interchange reads and writes the catalog's export formats: the
// event log as XML and the projection as a JSON snapshot.
package interchange

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/tellingsounds/lama/internal/services/catalog/domain/event"
)

const (
	exportPageSize  = 500
	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// EventLister pages the log in order.
type EventLister interface {
	ListEvents(ctx context.Context, after event.Cursor, limit int) ([]event.Event, error)
}

type xmlEvent struct {
	XMLName      xml.Name `xml:"event"`
	ID           int64    `xml:"id,attr"`
	Timestamp    string   `xml:"timestamp,attr"`
	Type         string   `xml:"type,attr"`
	Version      int      `xml:"version,attr"`
	ActorID      string   `xml:"actorId,attr"`
	SubjectID    string   `xml:"subjectId,attr"`
	Data         *cdata   `xml:"data"`
	PreviousData *cdata   `xml:"previousData"`
}

type cdata struct {
	Text string `xml:",cdata"`
}

// ExportEvents writes the whole log as an <event_log> document.
func ExportEvents(ctx context.Context, store EventLister, w io.Writer) (int, error) {
	enc, err := startLog(w)
	if err != nil {
		return 0, err
	}
	var (
		cursor event.Cursor
		count  int
	)
	for {
		events, err := store.ListEvents(ctx, cursor, exportPageSize)
		if err != nil {
			return count, fmt.Errorf("list events: %w", err)
		}
		if len(events) == 0 {
			break
		}
		for _, evt := range events {
			if err := encodeEvent(enc, evt); err != nil {
				return count, err
			}
			cursor = evt.Cursor()
			count++
		}
	}
	return count, endLog(enc)
}

// WriteEvents writes events as an <event_log> document.
func WriteEvents(w io.Writer, events []event.Event) error {
	enc, err := startLog(w)
	if err != nil {
		return err
	}
	for _, evt := range events {
		if err := encodeEvent(enc, evt); err != nil {
			return err
		}
	}
	return endLog(enc)
}

var logStart = xml.StartElement{Name: xml.Name{Local: "event_log"}}

func startLog(w io.Writer) (*xml.Encoder, error) {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return nil, err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.EncodeToken(logStart); err != nil {
		return nil, fmt.Errorf("write event log: %w", err)
	}
	return enc, nil
}

func endLog(enc *xml.Encoder) error {
	if err := enc.EncodeToken(logStart.End()); err != nil {
		return fmt.Errorf("write event log: %w", err)
	}
	return enc.Flush()
}

func encodeEvent(enc *xml.Encoder, evt event.Event) error {
	out := xmlEvent{
		ID:        evt.ID,
		Timestamp: evt.Timestamp.UTC().Format(timestampLayout),
		Type:      string(evt.Type),
		Version:   evt.Version,
		ActorID:   evt.ActorID,
		SubjectID: evt.SubjectID,
	}
	var err error
	if out.Data, err = indentBlock(evt.Data); err != nil {
		return fmt.Errorf("event %d data: %w", evt.ID, err)
	}
	if out.Data == nil {
		out.Data = &cdata{Text: "{}"}
	}
	if out.PreviousData, err = indentBlock(evt.PreviousData); err != nil {
		return fmt.Errorf("event %d previousData: %w", evt.ID, err)
	}
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write event %d: %w", evt.ID, err)
	}
	return nil
}

func indentBlock(raw json.RawMessage) (*cdata, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	return &cdata{Text: buf.String()}, nil
}

// ReadEvents parses an <event_log> document. Event ids and timestamps are
// kept so that the log can be replaced as exported.
func ReadEvents(r io.Reader) ([]event.Event, error) {
	var doc struct {
		XMLName xml.Name   `xml:"event_log"`
		Events  []xmlEvent `xml:"event"`
	}
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}
	events := make([]event.Event, 0, len(doc.Events))
	for i, in := range doc.Events {
		evt, err := decodeEvent(in)
		if err != nil {
			return nil, fmt.Errorf("event #%d (id %d): %w", i+1, in.ID, err)
		}
		events = append(events, evt)
	}
	return events, nil
}

func decodeEvent(in xmlEvent) (event.Event, error) {
	if in.Type == "" {
		return event.Event{}, event.ErrTypeRequired
	}
	ts, err := time.Parse(time.RFC3339Nano, in.Timestamp)
	if err != nil {
		return event.Event{}, fmt.Errorf("timestamp: %w", err)
	}
	data, err := compactBlock(in.Data)
	if err != nil {
		return event.Event{}, fmt.Errorf("data: %w", err)
	}
	if data == nil {
		return event.Event{}, fmt.Errorf("data is required")
	}
	previous, err := compactBlock(in.PreviousData)
	if err != nil {
		return event.Event{}, fmt.Errorf("previousData: %w", err)
	}
	return event.Event{
		ID:           in.ID,
		Timestamp:    ts.UTC(),
		Type:         event.Type(in.Type),
		Version:      in.Version,
		ActorID:      in.ActorID,
		SubjectID:    in.SubjectID,
		Data:         data,
		PreviousData: previous,
	}, nil
}

func compactBlock(block *cdata) (json.RawMessage, error) {
	if block == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, bytes.TrimSpace([]byte(block.Text))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
