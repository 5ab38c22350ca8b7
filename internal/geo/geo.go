package geo

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Locator определяет страну клика по IP. Пустая строка, если определить не удалось.
type Locator interface {
	Country(ip string) string
	Close() error
}

// MaxMindLocator читает базу GeoLite2 (Country или City)
type MaxMindLocator struct {
	reader *geoip2.Reader
}

func NewMaxMindLocator(dbPath string) (*MaxMindLocator, error) {
	reader, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database: %w", err)
	}
	return &MaxMindLocator{reader: reader}, nil
}

func (m *MaxMindLocator) Country(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}

	record, err := m.reader.Country(parsed)
	if err != nil {
		return ""
	}
	return record.Country.IsoCode
}

func (m *MaxMindLocator) Close() error {
	if m.reader != nil {
		return m.reader.Close()
	}
	return nil
}

// Nop используется, когда база не настроена
type Nop struct{}

func (Nop) Country(string) string { return "" }

func (Nop) Close() error { return nil }

// Open возвращает MaxMind-локатор или Nop при пустом пути
func Open(dbPath string) (Locator, error) {
	if dbPath == "" {
		return Nop{}, nil
	}
	return NewMaxMindLocator(dbPath)
}
