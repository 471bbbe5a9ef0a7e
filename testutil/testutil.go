package testutil

import (
	"math/rand"
	"strconv"
	"strings"
	"sync"
)

// Page is a report page used as a virtualization payload.
type Page struct {
	Number int        `json:"number" msgpack:"number"`
	Header string     `json:"header" msgpack:"header"`
	Rows   [][]string `json:"rows" msgpack:"rows"`
	Totals []float64  `json:"totals" msgpack:"totals"`
}

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	zipf *rand.Zipf
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
	r.zipf = nil
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Bytes returns n pseudo-random bytes.
func (r *RNG) Bytes(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, n)
	_, _ = r.rand.Read(b)
	return b
}

// Skewed returns an index in [0,n) following a Zipf distribution, so low
// indices are drawn far more often than high ones.
// The distribution is fixed by the first n seen until Reset.
func (r *RNG) Skewed(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.zipf == nil {
		r.zipf = rand.NewZipf(r.rand, 1.2, 1, uint64(n-1))
	}
	return int(r.zipf.Uint64()) % n
}

var words = []string{
	"invoice", "customer", "region", "north", "south", "total", "amount",
	"order", "shipped", "pending", "product", "quantity", "discount", "net",
}

// Page generates a page with rows x cols text cells and one total per column.
// Locks only once per call.
func (r *RNG) Page(number, rows, cols int) *Page {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := &Page{
		Number: number,
		Header: "Page " + strconv.Itoa(number),
		Rows:   make([][]string, rows),
		Totals: make([]float64, cols),
	}

	var sb strings.Builder
	for i := range p.Rows {
		row := make([]string, cols)
		for j := range row {
			sb.Reset()
			sb.WriteString(words[r.rand.Intn(len(words))])
			sb.WriteByte(' ')
			sb.WriteString(strconv.Itoa(r.rand.Intn(100000)))
			row[j] = sb.String()
			p.Totals[j] += r.rand.Float64() * 1000
		}
		p.Rows[i] = row
	}
	return p
}

// Pages generates n pages numbered from 0.
func (r *RNG) Pages(n, rows, cols int) []*Page {
	out := make([]*Page, n)
	for i := range out {
		out[i] = r.Page(i, rows, cols)
	}
	return out
}
