// Package geo resolves IP addresses to coarse locations using a CSV range
// table (start,end,country,region,eu,timezone,city,lat,lon,metro,area).
package geo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"sort"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 4096

// Record is the location of an address range.
type Record struct {
	Range    [2]string  `json:"range"`
	Country  string     `json:"country"`
	Region   string     `json:"region"`
	EU       string     `json:"eu"`
	Timezone string     `json:"timezone"`
	City     string     `json:"city"`
	LL       [2]float64 `json:"ll"`
	Metro    int        `json:"metro"`
	Area     int        `json:"area"`
}

type entry struct {
	start, end netip.Addr
	rec        Record
}

// DB is an immutable range table with a lookup cache.
type DB struct {
	entries []entry
	cache   *lru.Cache[netip.Addr, *Record]
}

// Empty returns a DB that resolves nothing.
func Empty() *DB {
	cache, _ := lru.New[netip.Addr, *Record](1)
	return &DB{cache: cache}
}

// Open loads the table at path. An empty path yields an empty DB.
func Open(path string) (*DB, error) {
	if path == "" {
		return Empty(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() // nolint: errcheck
	return Load(f)
}

// Load parses a CSV table. Rows may appear in any order but must not
// overlap.
func Load(r io.Reader) (*DB, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = 11
	var entries []entry
	for line := 1; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("geo: line %d: %w", line, err)
		}
		e, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("geo: line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].start.Less(entries[j].start) })
	for i := 1; i < len(entries); i++ {
		if !entries[i-1].end.Less(entries[i].start) {
			return nil, fmt.Errorf("geo: range %s overlaps %s", entries[i].start, entries[i-1].start)
		}
	}
	cache, err := lru.New[netip.Addr, *Record](defaultCacheSize)
	if err != nil {
		return nil, err
	}
	return &DB{entries: entries, cache: cache}, nil
}

func parseRow(row []string) (entry, error) {
	start, err := netip.ParseAddr(strings.TrimSpace(row[0]))
	if err != nil {
		return entry{}, err
	}
	end, err := netip.ParseAddr(strings.TrimSpace(row[1]))
	if err != nil {
		return entry{}, err
	}
	start, end = start.Unmap(), end.Unmap()
	if start.Is4() != end.Is4() || end.Less(start) {
		return entry{}, fmt.Errorf("invalid range %s-%s", start, end)
	}
	lat, err := strconv.ParseFloat(row[7], 64)
	if err != nil {
		return entry{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(row[8], 64)
	if err != nil {
		return entry{}, fmt.Errorf("longitude: %w", err)
	}
	metro, _ := strconv.Atoi(row[9])
	area, _ := strconv.Atoi(row[10])
	return entry{start: start, end: end, rec: Record{
		Range:    [2]string{start.String(), end.String()},
		Country:  row[2],
		Region:   row[3],
		EU:       row[4],
		Timezone: row[5],
		City:     row[6],
		LL:       [2]float64{lat, lon},
		Metro:    metro,
		Area:     area,
	}}, nil
}

// Len is the number of ranges loaded.
func (db *DB) Len() int { return len(db.entries) }

// Lookup returns the record covering ip, or nil when the address is
// malformed or not covered.
func (db *DB) Lookup(ip string) *Record {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return nil
	}
	addr = addr.Unmap()
	if rec, ok := db.cache.Get(addr); ok {
		return rec
	}
	rec := db.search(addr)
	db.cache.Add(addr, rec)
	return rec
}

func (db *DB) search(addr netip.Addr) *Record {
	// first range whose end is >= addr
	i := sort.Search(len(db.entries), func(i int) bool { return !db.entries[i].end.Less(addr) })
	if i == len(db.entries) {
		return nil
	}
	e := db.entries[i]
	if addr.Less(e.start) || addr.Is4() != e.start.Is4() {
		return nil
	}
	rec := e.rec
	return &rec
}
