package id

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy io.Reader
)

func init() {
	entropy = newEntropy()
}

// newEntropy seeds a monotonic reader from crypto/rand; ulid.Monotonic
// keeps IDs generated within the same millisecond lexicographically
// increasing.
func newEntropy() io.Reader {
	var seed int64
	_ = binary.Read(cryptorand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New returns a ULID string. Time-sortable, which keeps journal rows and
// their SQLite index in event order. Never panics: a monotonic-entropy
// overflow reseeds the reader, and as a last resort the ID is assembled
// from raw random bytes.
func New() string {
	mu.Lock()
	defer mu.Unlock()

	ts := ulid.Timestamp(time.Now().UTC())

	id, err := ulid.New(ts, entropy)
	if err != nil {
		entropy = newEntropy()
		id, err = ulid.New(ts, entropy)
	}
	if err != nil {
		var raw [10]byte
		_, _ = cryptorand.Read(raw[:])
		_ = id.SetTime(ts)
		_ = id.SetEntropy(raw[:])
	}
	return id.String()
}
