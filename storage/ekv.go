////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package storage

import (
	"github.com/pkg/errors"
	"gitlab.com/elixxir/ekv"
)

// storage keys for the two SDK blobs inside one ekv instance
const (
	secureBlobKey    = "mfaSecureBlob"
	nonSecureBlobKey = "mfaNonSecureBlob"
)

// EkvStore adapts one key of an ekv.KeyValue to the Store contract.
type EkvStore struct {
	kv  ekv.KeyValue
	key string
}

// NewEkvStore wraps a single key of the given key-value store.
func NewEkvStore(kv ekv.KeyValue, kind Kind) *EkvStore {
	key := nonSecureBlobKey
	if kind == Secure {
		key = secureBlobKey
	}
	return &EkvStore{kv: kv, key: key}
}

// OpenKV opens the encrypted on-disk ekv at baseDir, shared between the
// blob stores and the crypto engine's own keys.
func OpenKV(baseDir, password string) (ekv.KeyValue, error) {
	fs, err := ekv.NewFilestore(baseDir, password)
	if err != nil {
		return nil, errors.WithMessagef(err,
			"failed to open filestore at %s", baseDir)
	}
	return fs, nil
}

// NewFilestores opens an encrypted on-disk ekv at baseDir and returns the
// secure and non-secure stores backed by it. The password encrypts the
// whole file store, so the "non-secure" blob is merely the one whose
// contents are also safe to mirror elsewhere.
func NewFilestores(baseDir, password string) (secure, nonSecure Store, err error) {
	fs, err := ekv.NewFilestore(baseDir, password)
	if err != nil {
		return nil, nil, errors.WithMessagef(err,
			"failed to open filestore at %s", baseDir)
	}
	return NewEkvStore(fs, Secure), NewEkvStore(fs, NonSecure), nil
}

// NewMemstores returns memory-backed secure and non-secure stores. Used by
// tests and throwaway sessions.
func NewMemstores() (secure, nonSecure Store) {
	kv := ekv.MakeMemstore()
	return NewEkvStore(kv, Secure), NewEkvStore(kv, NonSecure)
}

// rawBlob adapts a plain byte slice to the ekv Marshaler/Unmarshaler pair.
type rawBlob struct {
	data []byte
}

func (b *rawBlob) Marshal() []byte { return b.data }

func (b *rawBlob) Unmarshal(data []byte) error {
	b.data = data
	return nil
}

func (s *EkvStore) Set(data []byte) error {
	if err := s.kv.Set(s.key, &rawBlob{data: data}); err != nil {
		return errors.WithMessagef(err, "failed to write blob %q", s.key)
	}
	return nil
}

func (s *EkvStore) Get() ([]byte, error) {
	blob := &rawBlob{}
	if err := s.kv.Get(s.key, blob); err != nil {
		if !ekv.Exists(err) {
			// Never written; not an error.
			return nil, nil
		}
		return nil, errors.WithMessagef(err, "failed to read blob %q", s.key)
	}
	return blob.data, nil
}

func (s *EkvStore) Clear() error {
	err := s.kv.Delete(s.key)
	if err != nil && ekv.Exists(err) {
		return errors.WithMessagef(err, "failed to clear blob %q", s.key)
	}
	return nil
}
