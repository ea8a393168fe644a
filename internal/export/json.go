package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"storekpi/internal"
)

type jsonMetadata struct {
	ExtractionDate string   `json:"extraction_date"`
	TotalStores    int      `json:"total_stores"`
	ErrorCount     int      `json:"error_count"`
	DataFormat     string   `json:"data_format"`
	RunID          string   `json:"run_id"`
	Mode           string   `json:"mode"`
	Regionals      []string `json:"regionals"`
	Year           int      `json:"year"`
	Month          int      `json:"month"`
}

type jsonDocument struct {
	Metadata jsonMetadata      `json:"metadata"`
	Stores   []internal.Record `json:"stores"`
}

func WriteJSON(path string, records []internal.Record, meta Meta) error {
	doc := jsonDocument{
		Metadata: jsonMetadata{
			ExtractionDate: time.Now().Format(time.RFC3339),
			TotalStores:    len(records),
			ErrorCount:     countErrors(records),
			DataFormat:     "structured",
			RunID:          meta.RunID,
			Mode:           string(meta.Mode),
			Regionals:      meta.Regionals,
			Year:           meta.Year,
			Month:          meta.Month,
		},
		Stores: records,
	}
	blob, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, blob, 0o644)
}

// ReadJSON loads a file written by WriteJSON. Store columns keep their order.
func ReadJSON(path string) (Meta, []internal.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return Meta{}, nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	if err := expectDelim(dec, '{'); err != nil {
		return Meta{}, nil, err
	}

	var (
		meta    Meta
		records []internal.Record
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Meta{}, nil, err
		}
		switch tok {
		case "metadata":
			var m jsonMetadata
			if err := dec.Decode(&m); err != nil {
				return Meta{}, nil, fmt.Errorf("metadata: %w", err)
			}
			meta = Meta{RunID: m.RunID, Mode: internal.Mode(m.Mode), Regionals: m.Regionals, Year: m.Year, Month: m.Month}
			if t, err := time.Parse(time.RFC3339, m.ExtractionDate); err == nil {
				meta.StartedAt = t
			}
		case "stores":
			if err := expectDelim(dec, '['); err != nil {
				return Meta{}, nil, err
			}
			for dec.More() {
				fields, err := internal.DecodeFields(dec)
				if err != nil {
					return Meta{}, nil, fmt.Errorf("store %d: %w", len(records)+1, err)
				}
				records = append(records, internal.RawRecord{Columns: fields})
			}
			if err := expectDelim(dec, ']'); err != nil {
				return Meta{}, nil, err
			}
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return Meta{}, nil, err
			}
		}
	}
	return meta, records, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}
