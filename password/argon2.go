package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// DefaultMaxPasswordBytes caps plaintext length when Config leaves
// MaxPasswordBytes at zero. Argon2 cost grows with input size.
const DefaultMaxPasswordBytes = 1024

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	minPassBytes          = 10
	phcAlgorithm          = "argon2id"
)

var (
	// ErrPasswordTooShort is returned by Hash for plaintexts under 10 bytes.
	ErrPasswordTooShort = errors.New("password must be at least 10 bytes")
	// ErrPasswordTooLong is returned when plaintext exceeds MaxPasswordBytes.
	ErrPasswordTooLong = errors.New("password exceeds maximum length")
	// ErrMalformedHash is returned for stored hashes that are not argon2id PHC
	// strings this package can verify.
	ErrMalformedHash = errors.New("malformed password hash")
)

// Config holds the argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
}

// Argon2 hashes and verifies account passwords. It is safe for concurrent use.
type Argon2 struct {
	params   Config
	maxBytes int
}

// phc is a decoded $argon2id$ string.
type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

// NewArgon2 validates cfg and returns a hasher using it for new hashes.
func NewArgon2(cfg Config) (*Argon2, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, fmt.Errorf("password memory must be >= %d KB", minMemoryKB)
	case cfg.Time < minTimeCost:
		return nil, errors.New("password time must be >= 1")
	case cfg.Parallelism < minParallelism:
		return nil, errors.New("password parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return nil, fmt.Errorf("password salt length must be >= %d", minSaltLength)
	case cfg.KeyLength < minKeyLength:
		return nil, fmt.Errorf("password key length must be >= %d", minKeyLength)
	case cfg.MaxPasswordBytes < 0:
		return nil, errors.New("password max bytes must be >= 0")
	}

	maxBytes := cfg.MaxPasswordBytes
	if maxBytes == 0 {
		maxBytes = DefaultMaxPasswordBytes
	}
	return &Argon2{params: cfg, maxBytes: maxBytes}, nil
}

// Hash returns a PHC-encoded argon2id hash of plaintext with a fresh salt.
// The bytes are hashed as given; no Unicode normalization is applied.
func (a *Argon2) Hash(plaintext string) (string, error) {
	if len(plaintext) < minPassBytes {
		return "", ErrPasswordTooShort
	}
	if len(plaintext) > a.maxBytes {
		return "", ErrPasswordTooLong
	}

	salt := make([]byte, a.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(plaintext), salt, a.params.Time, a.params.Memory, a.params.Parallelism, a.params.KeyLength)

	return encodePHC(phc{
		memory:      a.params.Memory,
		time:        a.params.Time,
		parallelism: a.params.Parallelism,
		salt:        salt,
		key:         key,
	}), nil
}

// Verify reports whether plaintext matches encoded. The parameters stored in
// encoded are used, so hashes made under older settings keep verifying.
func (a *Argon2) Verify(plaintext, encoded string) (bool, error) {
	if len(plaintext) > a.maxBytes {
		return false, ErrPasswordTooLong
	}
	h, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	key := argon2.IDKey([]byte(plaintext), h.salt, h.time, h.memory, h.parallelism, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(key, h.key) == 1, nil
}

// NeedsUpgrade reports whether encoded was produced with weaker cost
// parameters or a different key length than the hasher's.
func (a *Argon2) NeedsUpgrade(encoded string) (bool, error) {
	h, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}
	return h.memory < a.params.Memory ||
		h.time < a.params.Time ||
		h.parallelism < a.params.Parallelism ||
		uint32(len(h.key)) != a.params.KeyLength, nil
}

func encodePHC(h phc) string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcAlgorithm,
		argon2.Version,
		h.memory,
		h.time,
		h.parallelism,
		base64.StdEncoding.EncodeToString(h.salt),
		base64.StdEncoding.EncodeToString(h.key),
	)
}

// decodePHC parses $argon2id$v=19$m=..,t=..,p=..$salt$key.
func decodePHC(encoded string) (phc, error) {
	var h phc

	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return h, fmt.Errorf("%w: expected 5 sections", ErrMalformedHash)
	}
	if fields[1] != phcAlgorithm {
		return h, fmt.Errorf("%w: unsupported algorithm %q", ErrMalformedHash, fields[1])
	}

	version, ok := strings.CutPrefix(fields[2], "v=")
	if !ok {
		return h, fmt.Errorf("%w: missing version", ErrMalformedHash)
	}
	if v, err := strconv.Atoi(version); err != nil || v != argon2.Version {
		return h, fmt.Errorf("%w: unsupported version %q", ErrMalformedHash, version)
	}

	if err := decodeParams(fields[3], &h); err != nil {
		return h, err
	}

	var err error
	if h.salt, err = base64.StdEncoding.DecodeString(fields[4]); err != nil || len(h.salt) < int(minSaltLength) {
		return h, fmt.Errorf("%w: bad salt", ErrMalformedHash)
	}
	if h.key, err = base64.StdEncoding.DecodeString(fields[5]); err != nil || len(h.key) == 0 {
		return h, fmt.Errorf("%w: bad key", ErrMalformedHash)
	}
	return h, nil
}

func decodeParams(section string, h *phc) error {
	pairs := strings.Split(section, ",")
	if len(pairs) != 3 {
		return fmt.Errorf("%w: expected m, t and p", ErrMalformedHash)
	}

	seen := make(map[string]bool, 3)
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || seen[name] {
			return fmt.Errorf("%w: bad parameter %q", ErrMalformedHash, pair)
		}
		seen[name] = true

		switch name {
		case "m":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || uint32(v) < minMemoryKB {
				return fmt.Errorf("%w: bad memory %q", ErrMalformedHash, raw)
			}
			h.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || uint32(v) < minTimeCost {
				return fmt.Errorf("%w: bad time %q", ErrMalformedHash, raw)
			}
			h.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(raw, 10, 8)
			if err != nil || uint8(v) < minParallelism {
				return fmt.Errorf("%w: bad parallelism %q", ErrMalformedHash, raw)
			}
			h.parallelism = uint8(v)
		default:
			return fmt.Errorf("%w: unknown parameter %q", ErrMalformedHash, name)
		}
	}
	return nil
}
