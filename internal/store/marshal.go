package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/querybuilder/internal/options"
)

// timeLayout is the TEXT form of stored timestamps. Fixed-width so that
// lexical order matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func marshalOptions(o options.Options) (string, error) {
	b, err := json.Marshal(options.Normalize(o))
	if err != nil {
		return "", fmt.Errorf("marshal options: %w", err)
	}
	return string(b), nil
}

func unmarshalOptions(s string) (options.Options, error) {
	var o options.Options
	if err := json.Unmarshal([]byte(s), &o); err != nil {
		return options.Options{}, fmt.Errorf("unmarshal options: %w", err)
	}
	return options.Normalize(o), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
