// Copyright 2025 Poiesic Systems
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


package badgerindex

import "errors"

var (
	// ErrStoreRequired is returned when an index is opened without a corpus store.
	ErrStoreRequired = errors.New("corpus store required")

	// ErrEmbedderRequired is returned when an index is opened without an embedder.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrUnknownProject indicates the requested project is not the one the index is scoped to.
	ErrUnknownProject = errors.New("unknown project")
)
