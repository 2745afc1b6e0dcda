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


// Package session implements the search lifecycle controller: executing
// queries against a streaming backend, accumulating match ranges in a
// stable path-then-position order while results are still arriving, and
// maintaining a navigable cursor over the growing set.
//
// Concurrency follows a single-owner model. One goroutine drains the
// controller's call queue and is the only writer of session state;
// stream consumers, the indexing-progress listener, and semantic query
// tasks run as independent goroutines that post closures back into the
// queue. Each closure carries the search ID (or toggle generation) it
// was spawned under and is discarded when superseded, which is what
// keeps rapid re-executions race-free without locks.
package session
