// errors.go - Mix key error kinds.
// Copyright (C) 2018  David Anthony Stainton.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package mixkey

import "errors"

// Sentinel errors identifying the failure kinds a caller needs to
// distinguish. Wrap the underlying cause with fmt.Errorf("...: %w", ...)
// and compare with errors.Is.
var (
	// ErrCreateCacheFailed means the backing store could not be opened or
	// written on first use.
	ErrCreateCacheFailed = errors.New("mixkey: failed to create cache")

	// ErrLoadCacheFailed means an existing directory's stored epoch did
	// not match the requested epoch.
	ErrLoadCacheFailed = errors.New("mixkey: failed to load cache, epoch mismatch")

	// ErrKeyError means the ECDH collaborator rejected stored key bytes
	// or failed to generate a new keypair.
	ErrKeyError = errors.New("mixkey: key error")

	// ErrIoError means a filesystem or RNG I/O failure occurred during
	// construction.
	ErrIoError = errors.New("mixkey: io error")

	// ErrStoreError means a store get/put failed during IsReplay or
	// private key sealing.
	ErrStoreError = errors.New("mixkey: store error")
)
