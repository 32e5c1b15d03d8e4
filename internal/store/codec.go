package store

import (
	"encoding/json"
	"net/http"
	"time"
)

type cookieRecord struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Expires time.Time `json:"expires,omitempty"`
}

func encodeCookies(cookies []*http.Cookie) ([]byte, error) {
	records := make([]cookieRecord, 0, len(cookies))
	for _, c := range cookies {
		records = append(records, cookieRecord{Name: c.Name, Value: c.Value, Expires: c.Expires})
	}
	return json.Marshal(records)
}

func decodeCookies(raw []byte) ([]*http.Cookie, error) {
	var records []cookieRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	out := make([]*http.Cookie, 0, len(records))
	for _, r := range records {
		out = append(out, &http.Cookie{Name: r.Name, Value: r.Value, Expires: r.Expires})
	}
	return out, nil
}
