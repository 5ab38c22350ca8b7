package service

import (
	"strings"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTimestamp ISO-8601 в разных вариантах; без зоны считается UTC
func parseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// timestampOrNow непарсящееся или пустое значение заменяется текущим временем
func timestampOrNow(value string, now Clock) time.Time {
	if t, ok := parseTimestamp(value); ok {
		return t
	}
	return now()
}

// parseCostDate YYYY-MM-DD (полночь UTC) или полный RFC3339
func parseCostDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if !strings.Contains(value, "T") {
		t, err := time.Parse("2006-01-02", value)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return parseTimestamp(value)
}

// isISODate строгая проверка YYYY-MM-DD для диапазона синхронизации
func isISODate(value string) bool {
	if len(value) != len("2006-01-02") {
		return false
	}
	_, err := time.Parse("2006-01-02", value)
	return err == nil
}
