// Copyright 2025 The HashSet Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hashset

import (
	"hash/maphash"
	"log/slog"
)

// Option provides an interface to do work on a Set while it is being
// created.
type Option[K comparable] interface {
	apply(s *Set[K])
}

type hashOption[K comparable] struct {
	hash func(key K, seed maphash.Seed) uint32
}

func (op hashOption[K]) apply(s *Set[K]) {
	s.hash = op.hash
}

// WithHash is an option to specify the hash function to use for a Set[K].
// The returned value 0 is reserved for empty slots; a key hashing to 0 is
// transparently remapped to 1, so hash functions need not avoid it.
func WithHash[K comparable](hash func(key K, seed maphash.Seed) uint32) Option[K] {
	return hashOption[K]{hash}
}

type loggerOption[K comparable] struct {
	logger *slog.Logger
}

func (op loggerOption[K]) apply(s *Set[K]) {
	s.logger = op.logger
}

// WithLogger is an option to specify the logger used for diagnostics such as
// the Reserve shrink warning. Defaults to slog.Default().
func WithLogger[K comparable](logger *slog.Logger) Option[K] {
	return loggerOption[K]{logger}
}

// Allocator specifies an interface for allocating and releasing memory used
// by a Set. The default allocator utilizes Go's builtin make() and allows
// the GC to reclaim memory.
//
// If the allocator is manually managing memory and requires that keys and
// metadata be freed then Set.Close must be called in order to ensure
// FreeKeys and FreeMetadata are called.
type Allocator[K comparable] interface {
	// AllocKeys should return a slice equivalent to make([]K, n).
	AllocKeys(n int) []K

	// AllocMetadata should return a slice equivalent to make([]Metadata, n).
	AllocMetadata(n int) []Metadata

	// FreeKeys can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by AllocKeys.
	FreeKeys(v []K)

	// FreeMetadata can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocMetadata.
	FreeMetadata(v []Metadata)
}

type defaultAllocator[K comparable] struct{}

func (defaultAllocator[K]) AllocKeys(n int) []K {
	return make([]K, n)
}

func (defaultAllocator[K]) AllocMetadata(n int) []Metadata {
	return make([]Metadata, n)
}

func (defaultAllocator[K]) FreeKeys(v []K) {
}

func (defaultAllocator[K]) FreeMetadata(v []Metadata) {
}

type allocatorOption[K comparable] struct {
	allocator Allocator[K]
}

func (op allocatorOption[K]) apply(s *Set[K]) {
	s.allocator = op.allocator
}

// WithAllocator is an option for specifying the Allocator to use for a
// Set[K].
func WithAllocator[K comparable](allocator Allocator[K]) Option[K] {
	return allocatorOption[K]{allocator}
}
