// Package importer parses external segment lists (CSV) into create inputs
// for the edit engine.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/okoshkin/dubedit/internal/common"
)

// Row is one imported dialogue line. SpeakerName is resolved to a speaker
// id (creating the speaker if needed) by the edit engine.
type Row struct {
	StartMs        int64
	EndMs          int64
	OriginalText   string
	TranslatedText string
	SpeakerName    string
}

// Expected header: start_ms,end_ms,original_text,translated_text,speaker.
// Column order is fixed; the speaker column may be empty.
func ParseCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 5

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if strings.TrimSpace(header[0]) != "start_ms" || strings.TrimSpace(header[1]) != "end_ms" {
		return nil, fmt.Errorf("unexpected csv header %v: %w", header, common.ErrValidation)
	}

	var rows []Row
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line++

		start, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad start_ms %q: %w", line, rec[0], common.ErrValidation)
		}
		end, err := strconv.ParseInt(strings.TrimSpace(rec[1]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad end_ms %q: %w", line, rec[1], common.ErrValidation)
		}
		if end <= start {
			return nil, fmt.Errorf("line %d: end %d not after start %d: %w", line, end, start, common.ErrValidation)
		}

		rows = append(rows, Row{
			StartMs:        start,
			EndMs:          end,
			OriginalText:   rec[2],
			TranslatedText: rec[3],
			SpeakerName:    strings.TrimSpace(rec[4]),
		})
	}
	return rows, nil
}
