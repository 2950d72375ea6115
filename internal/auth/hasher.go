// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// Argon2Params is the argon2id cost. It is chosen once per deployment and
// recorded in every digest, so changing it never invalidates stored digests.
type Argon2Params struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
}

// DefaultArgon2Params are the OWASP-recommended argon2id parameters.
var DefaultArgon2Params = Argon2Params{
	Time:      1,
	MemoryKiB: 64 * 1024,
	Threads:   4,
}

const (
	argon2SaltLen = 16 // salt length in bytes
	argon2KeyLen  = 32 // output length in bytes
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides one-way password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted digest of the password.
	Hash(password string) (string, error)

	// Verify reports whether password matches digest. A malformed digest
	// never matches.
	Verify(password, digest string) bool
}

// Argon2idHasher implements PasswordHasher using argon2id in PHC string format.
type Argon2idHasher struct {
	params Argon2Params
}

// NewArgon2idHasher creates a hasher with the given cost. Zero fields fall
// back to DefaultArgon2Params.
func NewArgon2idHasher(params Argon2Params) *Argon2idHasher {
	if params.Time == 0 {
		params.Time = DefaultArgon2Params.Time
	}
	if params.MemoryKiB == 0 {
		params.MemoryKiB = DefaultArgon2Params.MemoryKiB
	}
	if params.Threads == 0 {
		params.Threads = DefaultArgon2Params.Threads
	}
	return &Argon2idHasher{params: params}
}

// Hash produces an argon2id digest of the password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.MemoryKiB, h.params.Threads, argon2KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKiB,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the digest with the salt and cost embedded in digest and
// compares in constant time.
func (h *Argon2idHasher) Verify(password, digest string) bool {
	d, err := parseDigest(digest)
	if err != nil {
		return false
	}
	computed := argon2.IDKey([]byte(password), d.salt, d.time, d.memory, d.threads, uint32(len(d.key)))
	return subtle.ConstantTimeCompare(computed, d.key) == 1
}

type argon2Digest struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func parseDigest(encoded string) (*argon2Digest, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}

	if parts[1] != "argon2id" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if version != argon2.Version {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported argon2 version: %d", version)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	// argon2.IDKey panics on zero threads and rejects memory below 8*threads.
	if threads == 0 || threads > 255 || time == 0 || memory < 8*threads {
		return nil, oops.Code("AUTH_INVALID_HASH").
			With("memory", memory).
			With("time", time).
			With("threads", threads).
			Errorf("invalid argon2 parameters")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if len(key) == 0 || len(key) > 1<<10 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", len(key))
	}

	return &argon2Digest{
		memory:  memory,
		time:    time,
		threads: uint8(threads),
		salt:    salt,
		key:     key,
	}, nil
}
