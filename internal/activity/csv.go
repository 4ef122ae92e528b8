// Package activity writes the append-only CSV activity log.
package activity

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/sweeney/baby-doll/internal/logic"
)

// TimeLayout is the local-time format of the Timestamp column.
const TimeLayout = "2006-01-02 15:04:05"

// Headers is the header row written when the log file is created.
var Headers = []string{
	"Timestamp",
	"Event Type",
	"Baby State",
	"Need Type",
	"Time to Tend (s)",
	"Button Pin",
	"Hold Duration (s)",
	"Message",
}

// CSVWriter appends one row per event to a CSV file.
type CSVWriter struct {
	mu   sync.Mutex
	f    *os.File
	w    *csv.Writer
	pins map[logic.Channel]int
	loc  *time.Location
}

// OpenCSV opens path for appending, writing the header row if the file is new
// or empty. pins maps channels to the pin numbers shown in the Button Pin column.
func OpenCSV(path string, pins map[logic.Channel]int) (*CSVWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open activity log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat activity log: %w", err)
	}

	c := &CSVWriter{f: f, w: csv.NewWriter(f), pins: pins, loc: time.Local}
	if info.Size() == 0 {
		if err := c.writeRow(Headers); err != nil {
			f.Close()
			return nil, err
		}
	}
	return c, nil
}

// Record appends the event as a row. It satisfies engine.Sink.
func (c *CSVWriter) Record(e logic.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.f == nil {
		return fmt.Errorf("activity log closed")
	}
	return c.writeRow(c.row(e))
}

func (c *CSVWriter) row(e logic.Event) []string {
	var tend, pin, hold string
	if e.HasTimeToTend() {
		tend = strconv.FormatInt(int64(e.TimeToTend/time.Second), 10)
	}
	if e.Channel != "" {
		if p, ok := c.pins[e.Channel]; ok {
			pin = strconv.Itoa(p)
		}
	}
	if e.HasHoldDuration() {
		hold = strconv.FormatInt(int64(e.HoldDuration/time.Second), 10)
	}
	return []string{
		e.Timestamp.In(c.loc).Format(TimeLayout),
		e.Kind.Label(),
		string(e.State),
		string(e.Need),
		tend,
		pin,
		hold,
		e.Message,
	}
}

func (c *CSVWriter) writeRow(row []string) error {
	if err := c.w.Write(row); err != nil {
		return fmt.Errorf("write activity row: %w", err)
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("flush activity log: %w", err)
	}
	return nil
}

// Close flushes and closes the file. Further Record calls fail.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.f == nil {
		return nil
	}
	c.w.Flush()
	err := c.f.Close()
	c.f = nil
	return err
}
